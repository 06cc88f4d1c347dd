package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/ember-lang/ember/pkg/bytecode"
)

// Debugger provides an interactive pause-and-inspect prompt over a
// running VM. A breakpoint is keyed by the chunk it sits in plus an
// instruction offset, since one VM's Go call stack can have several
// chunks active at once (one per nested Ember call), unlike a flat
// instruction array.
type Debugger struct {
	vm          *VM
	breakpoints map[bkey]bool
	stepMode    bool
	enabled     bool
}

type bkey struct {
	chunk *bytecode.Chunk
	ip    int
}

// NewDebugger returns a debugger attached to vm, initially disabled.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[bkey]bool)}
}

func (d *Debugger) Enable()               { d.enabled = true }
func (d *Debugger) Disable()              { d.enabled = false }
func (d *Debugger) SetStepMode(on bool)   { d.stepMode = on }
func (d *Debugger) ClearBreakpoints()     { d.breakpoints = make(map[bkey]bool) }

func (d *Debugger) AddBreakpoint(chunk *bytecode.Chunk, ip int) {
	d.breakpoints[bkey{chunk, ip}] = true
}

func (d *Debugger) RemoveBreakpoint(chunk *bytecode.Chunk, ip int) {
	delete(d.breakpoints, bkey{chunk, ip})
}

// shouldPause reports whether execution should stop before fr's next
// instruction; called from vm.run's dispatch loop once per iteration
// when a debugger is attached and enabled.
func (d *Debugger) shouldPause(fr *frame) bool {
	if !d.enabled {
		return false
	}
	if d.stepMode {
		return true
	}
	return d.breakpoints[bkey{fr.chunk, fr.ip}]
}

func (d *Debugger) showCurrentInstruction(fr *frame) {
	if fr.ip >= len(fr.chunk.Code) {
		fmt.Println("(at end of chunk)")
		return
	}
	inst := fr.chunk.Code[fr.ip]
	fmt.Printf("  %4d: %s", fr.ip, inst.Op)
	if inst.Operand != 0 {
		fmt.Printf(" %d", inst.Operand)
	}
	fmt.Println()
}

func (d *Debugger) showStack() {
	vm := d.vm
	fmt.Println("Stack (top to bottom):")
	if vm.sp == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := vm.sp - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, spew.Sdump(vm.stack[i]))
	}
}

func (d *Debugger) showLocals(fr *frame) {
	fmt.Println("Locals for current frame:")
	n := fr.chunk.NumLocals
	if n == 0 {
		fmt.Println("  (none)")
		return
	}
	for i := 0; i < n; i++ {
		fmt.Printf("  [%d] %s\n", i, spew.Sdump(d.vm.stack[fr.localBase+i]))
	}
}

func (d *Debugger) showGlobals() {
	fmt.Println("Globals:")
	if len(d.vm.globals) == 0 {
		fmt.Println("  (none)")
		return
	}
	for name, v := range d.vm.globals {
		fmt.Printf("  %s = %v\n", name, v)
	}
}

func (d *Debugger) showCallStack() {
	fmt.Println("Call stack (innermost first):")
	frames := d.vm.frames
	if len(frames) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		name := "<script>"
		if fr.fn != nil {
			name = fr.fn.Name
		}
		fmt.Printf("  %s", name)
		if fr.selector != "" {
			fmt.Printf(" (%s)", fr.selector)
		}
		fmt.Printf(" [ip=%d line=%d]\n", fr.ip, fr.currentLine())
	}
}

// InteractivePrompt blocks on stdin issuing debugger commands against
// fr until the user resumes execution or aborts it. Called from
// vm.run when shouldPause(fr) is true.
func (d *Debugger) InteractivePrompt(fr *frame) (resume bool) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("\n=== paused ===")
	d.showCurrentInstruction(fr)

	for {
		fmt.Print("ember-debug> ")
		if !scanner.Scan() {
			return false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true
		case "stack", "st":
			d.showStack()
		case "locals", "l":
			d.showLocals(fr)
		case "globals", "g":
			d.showGlobals()
		case "callstack", "cs":
			d.showCallStack()
		case "instruction", "i":
			d.showCurrentInstruction(fr)
		case "break", "b":
			if len(parts) < 2 {
				fmt.Println("usage: break <ip>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid instruction offset")
				continue
			}
			d.AddBreakpoint(fr.chunk, ip)
			fmt.Printf("breakpoint set at %d in %s\n", ip, fr.chunk.Name)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <ip>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid instruction offset")
				continue
			}
			d.RemoveBreakpoint(fr.chunk, ip)
		case "quit", "q":
			return false
		default:
			fmt.Printf("unknown command %q (type 'help')\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  help, h              show this help")
	fmt.Println("  continue, c          resume execution")
	fmt.Println("  step, s, next, n     execute one instruction and pause again")
	fmt.Println("  stack, st            dump the operand stack")
	fmt.Println("  locals, l            dump the current frame's locals")
	fmt.Println("  globals, g           dump globals")
	fmt.Println("  callstack, cs        show the Ember call stack")
	fmt.Println("  instruction, i       show the instruction about to run")
	fmt.Println("  break <ip>, b        set a breakpoint in the current chunk")
	fmt.Println("  delete <ip>, d       remove a breakpoint in the current chunk")
	fmt.Println("  quit, q              abort execution")
}
