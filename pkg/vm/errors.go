package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ember-lang/ember/pkg/value"
)

// Code is the embedding-API error-code taxonomy (spec §6 "error
// codes"): a host never has to parse a message string to decide how
// to react to a failed eval/call.
type Code int

const (
	CodeOK       Code = 0
	CodeCompile  Code = -1
	CodeRuntime  Code = -2
	CodeType     Code = -3
	CodeMemory   Code = -4
	CodeSecurity Code = -5
	CodeSystem   Code = -6
	CodeInternal Code = -7
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeCompile:
		return "COMPILE"
	case CodeRuntime:
		return "RUNTIME"
	case CodeType:
		return "TYPE"
	case CodeMemory:
		return "MEMORY"
	case CodeSecurity:
		return "SECURITY"
	case CodeSystem:
		return "SYSTEM"
	case CodeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// StackFrame is one entry of a captured call stack, adapted from the
// teacher's vm.StackFrame to Ember's function/selector vocabulary.
type StackFrame struct {
	FunctionName string
	Selector     string
	IP           int
	Line         int
}

// RuntimeError is the Go-level error a failed Eval/Call returns. It
// carries a Code the host can branch on and the call stack captured
// at the point of failure; Error() renders both for a human reading
// stderr.
type RuntimeError struct {
	Code    Code
	Message string
	Stack   []StackFrame
	cause   error
	// Exception is set when this error represents an Ember-level
	// exception (a THROW/RETHROW, or a runtime exception such as
	// ArithmeticError) that left the frame it was raised in uncaught,
	// as opposed to a host-level failure (stack
	// overflow, bad opcode, type mismatch in VM plumbing itself).
	// Intermediate call frames check this field to decide whether
	// one of their own try handlers should catch it before it
	// propagates further (spec §4.F "propagates by unwinding call
	// frames until a handler is found or the program terminates").
	Exception *value.ObjException
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	if len(e.Stack) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.Stack) - 1; i >= 0; i-- {
			f := e.Stack[i]
			fmt.Fprintf(&b, "\n  at %s", f.FunctionName)
			if f.Selector != "" {
				fmt.Fprintf(&b, " (%s)", f.Selector)
			}
			if f.Line > 0 {
				fmt.Fprintf(&b, " [line %d]", f.Line)
			}
		}
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error { return e.cause }

func newError(code Code, stack []StackFrame, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...), Stack: stack}
}

func wrapError(code Code, stack []StackFrame, cause error, context string) *RuntimeError {
	return &RuntimeError{Code: code, Message: context, Stack: stack, cause: errors.WithStack(cause)}
}

// uncaughtError wraps an Ember exception that reached the top of the
// call stack with no handler left to try it against.
func uncaughtError(stack []StackFrame, exc *value.ObjException) *RuntimeError {
	return &RuntimeError{Code: CodeRuntime, Message: "uncaught exception: " + exc.String(), Stack: stack, Exception: exc}
}
