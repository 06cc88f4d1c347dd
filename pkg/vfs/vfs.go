// Package vfs implements Ember's sandboxed virtual filesystem (spec
// §4.C): an ordered mount table that maps virtual paths to host
// paths, with a resolution algorithm designed so that no virtual
// path can ever escape the host root it was mounted under.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// maxPathLength bounds a virtual path's length; anything longer is
// rejected outright rather than handed to the OS.
const maxPathLength = 4096

// resolveCacheSize bounds the LRU cache of resolved paths. The cache
// is keyed on (generation, virtual_path) so a mount/unmount bumps the
// generation and implicitly invalidates every prior entry without a
// separate sweep.
const resolveCacheSize = 512

// Mount is one entry of the ordered mount table (spec §4.C "Mount
// table: an ordered list of (virtual_prefix, host_path, flags)").
type Mount struct {
	VirtualPrefix string
	HostPath      string
	ReadOnly      bool
}

type cacheKey struct {
	generation int
	path       string
}

// FS is one VM's virtual filesystem. It is not safe for concurrent
// use from multiple goroutines, matching the VM's own single-threaded
// contract (spec §5 "The VFS mount table is per-VM").
type FS struct {
	mounts     []Mount
	generation int
	cache      *lru.Cache[cacheKey, string]
	log        *logrus.Entry
}

// New returns an FS with the default mounts installed: `/app` over
// the current working directory and `/tmp` over the host temp
// directory, both read-write, then applies EMBER_MOUNTS on top (spec
// §4.C "Initialized with /app -> cwd (RW) and /tmp -> host temp dir
// (RW). Additional mounts may be provided via environment
// configuration").
func New(log *logrus.Entry) (*FS, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	cache, err := lru.New[cacheKey, string](resolveCacheSize)
	if err != nil {
		return nil, err
	}
	fs := &FS{cache: cache, log: log}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("vfs: resolve cwd: %w", err)
	}
	if err := fs.Mount("/app", cwd, false); err != nil {
		return nil, err
	}

	tmp := os.Getenv("TMPDIR")
	if tmp == "" {
		tmp = os.TempDir()
	}
	if err := fs.Mount("/tmp", tmp, false); err != nil {
		return nil, err
	}

	if spec := os.Getenv("EMBER_MOUNTS"); spec != "" {
		if err := fs.applyMountSpec(spec); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// applyMountSpec parses comma-separated "/virtual:/host[:ro]" entries
// (spec §6 "EMBER_MOUNTS — comma-separated... applied at VM init
// after defaults").
func (fs *FS) applyMountSpec(spec string) error {
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return fmt.Errorf("vfs: malformed EMBER_MOUNTS entry %q", entry)
		}
		readOnly := len(parts) == 3 && parts[2] == "ro"
		if err := fs.Mount(parts[0], parts[1], readOnly); err != nil {
			return err
		}
	}
	return nil
}

// Mount adds a new entry to the mount table and bumps the generation
// so cached resolutions are invalidated.
func (fs *FS) Mount(virtualPrefix, hostPath string, readOnly bool) error {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return fmt.Errorf("vfs: mount %q: %w", hostPath, err)
	}
	fs.mounts = append(fs.mounts, Mount{
		VirtualPrefix: cleanVirtualPrefix(virtualPrefix),
		HostPath:      filepath.Clean(abs),
		ReadOnly:      readOnly,
	})
	fs.generation++
	return nil
}

// Unmount removes every mount whose virtual prefix exactly matches
// and reports whether anything was removed.
func (fs *FS) Unmount(virtualPrefix string) bool {
	prefix := cleanVirtualPrefix(virtualPrefix)
	kept := fs.mounts[:0]
	removed := false
	for _, m := range fs.mounts {
		if m.VirtualPrefix == prefix {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	fs.mounts = kept
	if removed {
		fs.generation++
	}
	return removed
}

func cleanVirtualPrefix(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// isValidComponent rejects empty, ".", "..", and components carrying
// a NUL, newline, or non-tab control byte (spec §4.C step 2).
func isValidComponent(c string) bool {
	if c == "" || c == "." || c == ".." {
		return false
	}
	for _, r := range c {
		if r == 0 || r == '\n' {
			return false
		}
		if r < 0x20 && r != '\t' {
			return false
		}
	}
	return true
}

// findMount returns the mount with the longest virtual prefix that is
// either the entire path or followed by a '/' (spec §4.C step 3).
func (fs *FS) findMount(virtualPath string) (Mount, bool) {
	best := -1
	var bestMount Mount
	for _, m := range fs.mounts {
		if !strings.HasPrefix(virtualPath, m.VirtualPrefix) {
			continue
		}
		rest := virtualPath[len(m.VirtualPrefix):]
		if rest != "" && rest[0] != '/' {
			continue
		}
		if len(m.VirtualPrefix) > best {
			best = len(m.VirtualPrefix)
			bestMount = m
		}
	}
	return bestMount, best >= 0
}

// Resolve implements the six-step algorithm from spec §4.C, logging
// every rejection as a security event (spec §4.C "every rejection
// path emits a security log line (stderr) and returns a failure
// indicator").
func (fs *FS) Resolve(virtualPath string) (string, error) {
	if err := fs.validate(virtualPath); err != nil {
		fs.deny(virtualPath, err)
		return "", err
	}

	key := cacheKey{generation: fs.generation, path: virtualPath}
	if cached, ok := fs.cache.Get(key); ok {
		return cached, nil
	}

	mount, ok := fs.findMount(virtualPath)
	if !ok {
		err := fmt.Errorf("vfs: no mount covers %q", virtualPath)
		fs.deny(virtualPath, err)
		return "", err
	}

	suffix := strings.TrimPrefix(virtualPath, mount.VirtualPrefix)
	candidate := filepath.Join(mount.HostPath, suffix)

	resolved, err := fs.confine(candidate, mount)
	if err != nil {
		fs.deny(virtualPath, err)
		return "", err
	}

	fs.cache.Add(key, resolved)
	return resolved, nil
}

// confine canonicalizes candidate and checks it stays within
// mount.HostPath (spec §4.C step 5: canonicalize, and if that fails
// because the file doesn't exist yet, apply the same prefix check to
// the un-canonicalized result).
func (fs *FS) confine(candidate string, mount Mount) (string, error) {
	real, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if !withinRoot(filepath.Clean(candidate), mount.HostPath) {
			return "", fmt.Errorf("vfs: path escapes mount %q", mount.VirtualPrefix)
		}
		return filepath.Clean(candidate), nil
	}
	realRoot, err := filepath.EvalSymlinks(mount.HostPath)
	if err != nil {
		realRoot = mount.HostPath
	}
	if !withinRoot(real, realRoot) {
		return "", fmt.Errorf("vfs: path escapes mount %q", mount.VirtualPrefix)
	}
	return real, nil
}

func withinRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func (fs *FS) validate(virtualPath string) error {
	if virtualPath == "" || len(virtualPath) > maxPathLength {
		return fmt.Errorf("vfs: path empty or too long")
	}
	if !strings.HasPrefix(virtualPath, "/") {
		return fmt.Errorf("vfs: path %q is not absolute", virtualPath)
	}
	for _, c := range strings.Split(virtualPath, "/") {
		if c == "" {
			continue // leading slash and repeated slashes collapse harmlessly
		}
		if !isValidComponent(c) {
			return fmt.Errorf("vfs: invalid path component %q in %q", c, virtualPath)
		}
	}
	return nil
}

func (fs *FS) deny(virtualPath string, err error) {
	fs.log.WithFields(logrus.Fields{
		"virtual_path": virtualPath,
		"reason":       err.Error(),
	}).Warn("vfs: access denied")
}

// CheckAccess reports whether writing (or reading, if writing is
// false) to virtualPath is permitted by the matching mount (spec
// §4.C "check_access: find the matching mount; deny if writing and
// mount is read-only; allow otherwise").
func (fs *FS) CheckAccess(virtualPath string, writing bool) bool {
	if err := fs.validate(virtualPath); err != nil {
		fs.deny(virtualPath, err)
		return false
	}
	mount, ok := fs.findMount(virtualPath)
	if !ok {
		fs.deny(virtualPath, fmt.Errorf("vfs: no mount covers %q", virtualPath))
		return false
	}
	if writing && mount.ReadOnly {
		fs.deny(virtualPath, fmt.Errorf("vfs: mount %q is read-only", mount.VirtualPrefix))
		return false
	}
	return true
}
