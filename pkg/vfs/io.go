package vfs

import "os"

// ReadFile resolves virtualPath and reads it, returning ok=false on
// any denial or I/O failure rather than propagating an error (spec
// §4.C "The caller (a native I/O function) translates the failure
// into a nil return (reads)... No exception is raised").
func (fs *FS) ReadFile(virtualPath string) (data []byte, ok bool) {
	host, err := fs.Resolve(virtualPath)
	if err != nil {
		return nil, false
	}
	if !fs.CheckAccess(virtualPath, false) {
		return nil, false
	}
	b, err := os.ReadFile(host)
	if err != nil {
		fs.deny(virtualPath, err)
		return nil, false
	}
	return b, true
}

// WriteFile resolves virtualPath, checks write access, and writes
// data, returning ok=false on denial or I/O failure (spec §4.C "...or
// a false return (writes)").
func (fs *FS) WriteFile(virtualPath string, data []byte) (ok bool) {
	if !fs.CheckAccess(virtualPath, true) {
		return false
	}
	host, err := fs.Resolve(virtualPath)
	if err != nil {
		return false
	}
	if err := os.WriteFile(host, data, 0o644); err != nil {
		fs.deny(virtualPath, err)
		return false
	}
	return true
}
