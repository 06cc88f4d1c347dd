// Command ember is a reference host for the Ember scripting language:
// a file runner, a disassembler, and an interactive REPL built on the
// same embedding API (pkg/vm.VM) any Go program would use to embed
// Ember (spec §6).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ember-lang/ember/pkg/bytecode"
	"github.com/ember-lang/ember/pkg/compiler"
	"github.com/ember-lang/ember/pkg/vm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		runREPL()
		return
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		fmt.Printf("ember version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	case "repl":
		runREPL()
	case "run":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "error: no file specified")
			printUsage()
			os.Exit(1)
		}
		runFile(os.Args[2])
	case "disassemble", "disasm":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "error: no file specified")
			os.Exit(1)
		}
		disassembleFile(os.Args[2])
	default:
		runFile(os.Args[1])
	}
}

func printUsage() {
	fmt.Println("ember - an embeddable scripting language")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ember                  Start an interactive REPL")
	fmt.Println("  ember <file>           Run a .ember source file")
	fmt.Println("  ember run <file>       Run a .ember source file")
	fmt.Println("  ember disassemble <f>  Print a file's compiled bytecode")
	fmt.Println("  ember repl             Start an interactive REPL")
	fmt.Println("  ember version          Show version")
	fmt.Println("  ember help             Show this help")
}

// compileAdapter bridges pkg/compiler's Diagnostic type to the
// smaller shape pkg/vm.Eval expects, since pkg/vm deliberately never
// imports pkg/compiler (it stays a leaf consumer of whatever front
// end a host wires in via SetCompiler).
func compileAdapter(src string) (*bytecode.Chunk, []vm.CompileDiagnostic) {
	chunk, diags := compiler.Compile(src)
	out := make([]vm.CompileDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = vm.CompileDiagnostic{Line: d.Line, Message: d.Error()}
	}
	return chunk, out
}

func newVM() *vm.VM {
	log := logrus.NewEntry(logrus.StandardLogger())
	v, err := vm.New(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: initializing VM: %v\n", err)
		os.Exit(1)
	}
	v.SetCompiler(compileAdapter)
	return v
}

func runFile(filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(1)
	}

	v := newVM()
	if _, err := v.Eval(string(data), compileAdapter); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func disassembleFile(filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(1)
	}
	chunk, diags := compiler.Compile(string(data))
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	}
	fmt.Print(bytecode.Disassemble(chunk))
}

// runREPL hosts a persistent VM across inputs so declarations and
// side effects from one line remain visible to the next, matching the
// "globals and heap persist across Eval calls" contract of the
// embedding API itself (spec §6).
func runREPL() {
	fmt.Printf("ember REPL v%s\n", version)
	fmt.Println("Type ':help' for help, ':quit' to exit.")
	fmt.Println()

	v := newVM()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("ember> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":exit":
			return
		case ":help":
			printREPLHelp()
			continue
		}

		result, err := v.Eval(line, compileAdapter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if result != nil {
			fmt.Printf("=> %s\n", result.String())
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
	}
}

func printREPLHelp() {
	fmt.Println("Commands:")
	fmt.Println("  :help     show this help")
	fmt.Println("  :quit     exit the REPL")
	fmt.Println()
	fmt.Println("Declarations and side effects persist across lines,")
	fmt.Println("the same way repeated eval() calls behave against one VM.")
}
