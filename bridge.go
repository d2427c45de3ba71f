// bridge.go — the host side of the interpreter: native functions, the
// CallCtx they receive, deferred (asynchronous) results, and conversions
// between Go values and script values.
package lunar

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// NativeFunc is a host function callable from script code. It returns
// either immediate values, a Deferred the evaluator will await, or an
// error (raised as a runtime fault at the call site; return a
// *RuntimeError to control the message and payload).
type NativeFunc func(cc *CallCtx, args []Value) ([]Value, *Deferred, error)

// Invoker exposes a set of host operations to scripts. Each name becomes
// a global native dispatching through Invoke (see WithInvoker).
type Invoker interface {
	Names() []string
	Invoke(cc *CallCtx, op string, args []Value) ([]Value, *Deferred, error)
}

// CallCtx is passed to every native invocation. It carries the evaluation
// context and lets the native call back into script code.
type CallCtx struct {
	Ctx    context.Context
	Interp *Interpreter

	ex   *exec
	path NodePath
}

// Call invokes a script function value from inside a native. Runtime
// faults come back as *RuntimeError; cancellation keeps unwinding and is
// never returned here.
func (cc *CallCtx) Call(fn Value, args ...Value) (vals []Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()
	return cc.ex.call(fn, args, cc.path), nil
}

// position resolves the call site of the running native, when known.
func (cc *CallCtx) position() (int, int) {
	if cc.ex != nil && cc.ex.src != nil && cc.ex.src.Spans != nil {
		if sp, ok := cc.ex.src.Spans.Get(joinPath(cc.ex.src.PathBase, cc.path)); ok {
			return PosAt(cc.ex.src.Src, sp.StartByte)
		}
	}
	return 0, 0
}

// RegisterNative installs a host function as a global.
func (in *Interpreter) RegisterNative(name string, fn NativeFunc) {
	in.SetGlobal(name, FunVal(&Function{Name: name, Native: fn}))
}

////////////////////////////////////////////////////////////////////////////
//                                DEFERRED
////////////////////////////////////////////////////////////////////////////

type deferredResult struct {
	vals []Value
	err  error
}

// Deferred is a one-shot asynchronous result. A native returns one to
// keep the calling script suspended until Resolve or Reject fires from
// another goroutine; the evaluator's await also honors cancellation, so a
// canceled context unblocks the script even if the host never completes.
type Deferred struct {
	ch   chan deferredResult
	once sync.Once
}

// NewDeferred creates an unresolved Deferred.
func NewDeferred() *Deferred {
	return &Deferred{ch: make(chan deferredResult, 1)}
}

// Resolve completes the Deferred with values. Only the first completion
// wins; later Resolve/Reject calls are ignored.
func (d *Deferred) Resolve(vals ...Value) {
	d.once.Do(func() { d.ch <- deferredResult{vals: vals} })
}

// Reject completes the Deferred with an error, raised at the script call
// site as a runtime fault.
func (d *Deferred) Reject(err error) {
	d.once.Do(func() { d.ch <- deferredResult{err: err} })
}

// IsReady reports whether a completion is already buffered.
func (d *Deferred) IsReady() bool { return len(d.ch) > 0 }

////////////////////////////////////////////////////////////////////////////
//                            GO ↔ SCRIPT VALUES
////////////////////////////////////////////////////////////////////////////

// FromGo converts a plain Go value (the kinds produced by YAML/JSON
// decoding) into a script value. Maps become tables with string keys
// sorted for determinism; slices become sequences.
func FromGo(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Nil, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint64:
		return Int(int64(v)), nil
	case float64:
		return Num(v), nil
	case float32:
		return Num(float64(v)), nil
	case string:
		return Str(v), nil
	case []any:
		t := NewTable()
		for _, el := range v {
			ev, err := FromGo(el)
			if err != nil {
				return Nil, err
			}
			t.Append(ev)
		}
		return TableVal(t), nil
	case map[string]any:
		t := NewTable()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ev, err := FromGo(v[k])
			if err != nil {
				return Nil, err
			}
			if err := t.Set(Str(k), ev); err != nil {
				return Nil, err
			}
		}
		return TableVal(t), nil
	}
	return Nil, fmt.Errorf("cannot convert %T to a script value", x)
}

// ToGo converts a script value back to plain Go data. Tables with only
// sequence entries become []any, otherwise map[string]any keyed by the
// string form of each key. Functions do not convert.
func ToGo(v Value) (any, error) {
	switch v.Tag {
	case VTNil:
		return nil, nil
	case VTBool:
		return v.Data.(bool), nil
	case VTInt:
		return v.Data.(int64), nil
	case VTNum:
		return v.Data.(float64), nil
	case VTStr:
		return v.Data.(string), nil
	case VTTable:
		t := v.Data.(*Table)
		if t.hashLen() == 0 {
			out := make([]any, 0, t.Len())
			for i := int64(1); i <= t.Len(); i++ {
				gv, err := ToGo(t.Get(Int(i)))
				if err != nil {
					return nil, err
				}
				out = append(out, gv)
			}
			return out, nil
		}
		out := make(map[string]any, t.Len())
		k := Nil
		for {
			key, val, ok := t.Next(k)
			if !ok {
				break
			}
			gv, err := ToGo(val)
			if err != nil {
				return nil, err
			}
			out[key.String()] = gv
			k = key
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert a %s value to Go", v.TypeName())
}
