// errors.go — error kinds and caret-snippet rendering.
//
// Four error kinds cross the public surface:
//
//   - *LexError     (lexer.go) — invalid character, unterminated literal.
//   - *SyntaxError  — unexpected token, malformed construct, invalid goto.
//     Parsing aborts on the first one; no partial AST is returned.
//   - *RuntimeError — type mismatch, arithmetic on a non-number, calling a
//     non-function, const reassignment, ... Unwinds the evaluation; pcall
//     converts it to a (false, message) pair.
//   - *CancelError  — cooperative cancellation. Fatal to the evaluation and
//     deliberately NOT caught by pcall.
//
// WrapErrorWithName renders lex/syntax/runtime errors as a plain-text
// snippet with a caret under the offending column, one line of context on
// each side:
//
//	syntax error in <main> at 3:12: unexpected token ')'
//
//	   2 | local x = (1 + 2
//	   3 |              )
//	       |            ^
//	   4 | end
//
// Other errors pass through unchanged.
package lunar

import (
	"errors"
	"fmt"
	"strings"
)

// SyntaxError reports the first malformed construct found by the parser.
// Line and Col are 1-based. Incomplete marks input that failed only
// because it ended early (interactive mode); REPLs use it to keep reading.
type SyntaxError struct {
	Msg        string
	Line       int
	Col        int
	Incomplete bool
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// RuntimeError is an execution-time fault with a 1-based source location.
// Val is set when script code raised a non-string value through error();
// pcall hands it back unchanged.
type RuntimeError struct {
	Msg  string
	Line int
	Col  int
	Val  *Value
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// CancelError is raised by the cooperative cancellation checks at loop and
// call boundaries when the host context is done.
type CancelError struct {
	Cause error
}

func (e *CancelError) Error() string {
	if e.Cause != nil {
		return "evaluation canceled: " + e.Cause.Error()
	}
	return "evaluation canceled"
}

func (e *CancelError) Unwrap() error { return e.Cause }

// IsIncomplete reports whether err means "input ended mid-construct" —
// the REPL continuation signal.
func IsIncomplete(err error) bool {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se.Incomplete
	}
	var le *LexError
	if errors.As(err, &le) {
		return le.Incomplete
	}
	return false
}

// WrapErrorWithName augments lex/syntax/runtime errors with a caret snippet
// of src. srcName labels the snippet ("<main>", a script name, ...); empty
// srcName omits the label. Other error values are returned unchanged.
func WrapErrorWithName(err error, srcName, src string) error {
	switch e := err.(type) {
	case *LexError:
		// LexError Col is 0-based; render 1-based.
		return &renderedError{caretSnippet(src, "lex error", srcName, e.Line, e.Col+1, e.Msg), err}
	case *SyntaxError:
		return &renderedError{caretSnippet(src, "syntax error", srcName, e.Line, e.Col, e.Msg), err}
	case *RuntimeError:
		return &renderedError{caretSnippet(src, "runtime error", srcName, e.Line, e.Col, e.Msg), err}
	default:
		return err
	}
}

// renderedError carries the snippet text while keeping the underlying
// typed error reachable through errors.As.
type renderedError struct {
	msg   string
	cause error
}

func (e *renderedError) Error() string { return e.msg }
func (e *renderedError) Unwrap() error { return e.cause }

// caretSnippet builds the header + context lines + caret. Coordinates are
// 1-based and clamped to the source bounds.
func caretSnippet(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
