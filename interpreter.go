// interpreter.go — public evaluation surface.
//
// An Interpreter owns a globals table, an optional persistent top-level
// scope, and the host bridge. Scripts run through EvalSource /
// EvalPersistentSource / EvalAST; host code calls back into script
// functions through Apply. Inside the evaluator, runtime faults travel as
// panic(*RuntimeError) and cancellation as panic(*CancelError); both are
// recovered here at the boundary and returned as ordinary errors, so
// control flow (break/return/goto) never shares a channel with faults.
package lunar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// DefaultMaxDepth bounds script call nesting before a stack overflow
// error is raised.
const DefaultMaxDepth = 200

// Interpreter evaluates parsed chunks against a shared globals table.
// It is not safe for concurrent evaluation; run one script at a time or
// give each goroutine its own Interpreter.
type Interpreter struct {
	globals *Table
	persist *Env // top-level locals kept across EvalPersistentSource calls

	logger   *slog.Logger
	stdout   io.Writer
	maxDepth int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the structured logger used for evaluation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) { in.logger = l }
}

// WithStdout redirects print output.
func WithStdout(w io.Writer) Option {
	return func(in *Interpreter) { in.stdout = w }
}

// WithMaxDepth overrides the call-nesting limit.
func WithMaxDepth(n int) Option {
	return func(in *Interpreter) { in.maxDepth = n }
}

// WithInvoker registers every operation the invoker advertises as a
// global native function, dispatching through inv.Invoke.
func WithInvoker(inv Invoker) Option {
	return func(in *Interpreter) {
		for _, name := range inv.Names() {
			op := name
			in.RegisterNative(op, func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
				return inv.Invoke(cc, op, args)
			})
		}
	}
}

// NewInterpreter builds an interpreter with the standard library
// installed in its globals table.
func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{
		globals:  NewTable(),
		logger:   slog.Default(),
		stdout:   os.Stdout,
		maxDepth: DefaultMaxDepth,
	}
	in.persist = NewEnv(nil)
	registerBuiltins(in)
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Global reads a name from the globals table (Nil if absent).
func (in *Interpreter) Global(name string) Value {
	return in.globals.Get(Str(name))
}

// SetGlobal writes a name into the globals table.
func (in *Interpreter) SetGlobal(name string, v Value) {
	_ = in.globals.Set(Str(name), v)
}

// Lookup resolves a name the way a script would at top level: persistent
// locals first, then globals.
func (in *Interpreter) Lookup(name string) (Value, bool) {
	if v, ok := in.persist.Get(name); ok {
		return v, true
	}
	v := in.globals.Get(Str(name))
	return v, v.Tag != VTNil
}

// EvalSource parses and evaluates src as a fresh chunk. Top-level locals
// are discarded afterwards; only globals persist. Returns the chunk's
// return values.
func (in *Interpreter) EvalSource(ctx context.Context, name, src string) ([]Value, error) {
	return in.evalSource(ctx, name, src, NewEnv(nil))
}

// EvalPersistentSource evaluates src with top-level locals kept alive
// across calls, REPL-style.
func (in *Interpreter) EvalPersistentSource(ctx context.Context, name, src string) ([]Value, error) {
	return in.evalSource(ctx, name, src, in.persist)
}

func (in *Interpreter) evalSource(ctx context.Context, name, src string, env *Env) ([]Value, error) {
	ast, spans, err := ParseWithSpans(src)
	if err != nil {
		return nil, WrapErrorWithName(err, name, src)
	}
	ref := &SourceRef{Name: name, Src: src, Spans: spans}
	vals, err := in.run(ctx, ast, ref, env)
	if err != nil {
		return nil, WrapErrorWithName(err, name, src)
	}
	return vals, nil
}

// EvalAST evaluates an already-parsed chunk. Runtime errors carry no
// source positions since no span index is available.
func (in *Interpreter) EvalAST(ctx context.Context, ast S) ([]Value, error) {
	return in.run(ctx, ast, nil, NewEnv(nil))
}

func (in *Interpreter) run(ctx context.Context, ast S, ref *SourceRef, env *Env) (vals []Value, err error) {
	ex := &exec{in: in, ctx: ctx, src: ref}
	defer func() { err = recoverFault(recover(), err) }()

	c := ex.execStmts(ast, env, nil)
	switch c.kind {
	case ctrlReturn:
		return c.vals, nil
	case ctrlNormal:
		return nil, nil
	case ctrlBreak:
		return nil, &RuntimeError{Msg: "break outside a loop"}
	case ctrlGoto:
		return nil, &RuntimeError{Msg: fmt.Sprintf("no visible label '%s' for goto", c.label)}
	}
	return nil, nil
}

// Apply calls a script function value from host code.
func (in *Interpreter) Apply(ctx context.Context, fn Value, args ...Value) (vals []Value, err error) {
	ex := &exec{in: in, ctx: ctx}
	defer func() { err = recoverFault(recover(), err) }()
	return ex.call(fn, args, nil), nil
}

// recoverFault converts the evaluator's panic channel back into errors at
// the public boundary. Anything that is not a known fault keeps panicking.
func recoverFault(r any, prev error) error {
	if r == nil {
		return prev
	}
	switch e := r.(type) {
	case *RuntimeError:
		return e
	case *CancelError:
		return e
	}
	panic(r)
}
