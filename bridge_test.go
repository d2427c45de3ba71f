package lunar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

func TestRegisterNative(t *testing.T) {
	in := NewInterpreter(WithStdout(io.Discard))

	var got []Value
	in.RegisterNative("flash", func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		got = append(got, args...)
		return []Value{Str("ok")}, nil, nil
	})

	vals, err := in.EvalSource(context.Background(), "t", `return flash("hi", 2)`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !Equal(got[0], Str("hi")) || !Equal(got[1], Int(2)) {
		t.Fatalf("native saw %v", got)
	}
	if !Equal(single(vals), Str("ok")) {
		t.Fatalf("script saw %v", vals)
	}
}

func TestNativeErrorBecomesRuntimeError(t *testing.T) {
	in := NewInterpreter(WithStdout(io.Discard))
	in.RegisterNative("boom", func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		return nil, nil, fmt.Errorf("device not ready")
	})

	// raised at the call site: pcall can protect against it
	vals, err := in.EvalSource(context.Background(), "t", `
local ok, msg = pcall(boom)
return ok, msg`)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(vals[0], False) {
		t.Fatal("pcall should report failure")
	}
	if !Equal(vals[1], Str("device not ready")) {
		t.Fatalf("message = %v", vals[1])
	}
}

func TestDeferredResolution(t *testing.T) {
	in := NewInterpreter(WithStdout(io.Discard))

	in.RegisterNative("fetch", func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		def := NewDeferred()
		go func() {
			time.Sleep(10 * time.Millisecond)
			def.Resolve(Int(41))
		}()
		return nil, def, nil
	})

	// the script suspends at the native call and resumes with the result
	vals, err := in.EvalSource(context.Background(), "t", "return fetch() + 1")
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(single(vals), Int(42)) {
		t.Fatalf("got %v", vals)
	}
}

func TestDeferredRejection(t *testing.T) {
	in := NewInterpreter(WithStdout(io.Discard))
	in.RegisterNative("fail", func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		def := NewDeferred()
		def.Reject(errors.New("remote said no"))
		return nil, def, nil
	})

	vals, err := in.EvalSource(context.Background(), "t", `
local ok, msg = pcall(fail)
return ok, msg`)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(vals[0], False) || !Equal(vals[1], Str("remote said no")) {
		t.Fatalf("got %v", vals)
	}
}

func TestDeferredCancellation(t *testing.T) {
	in := NewInterpreter(WithStdout(io.Discard))
	in.RegisterNative("hang", func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		return nil, NewDeferred(), nil // never resolved
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := in.EvalSource(ctx, "t", "return hang()")
	var ce *CancelError
	if !errors.As(err, &ce) {
		t.Fatalf("awaiting a dead deferred must cancel, got %v", err)
	}
}

func TestDeferredFirstCompletionWins(t *testing.T) {
	def := NewDeferred()
	def.Resolve(Int(1))
	def.Reject(errors.New("too late"))
	if !def.IsReady() {
		t.Fatal("resolved deferred should be ready")
	}
	r := <-def.ch
	if r.err != nil || len(r.vals) != 1 || !Equal(r.vals[0], Int(1)) {
		t.Fatalf("result = %+v", r)
	}
}

type testInvoker struct {
	calls []string
}

func (ti *testInvoker) Names() []string { return []string{"ping", "echo"} }

func (ti *testInvoker) Invoke(cc *CallCtx, op string, args []Value) ([]Value, *Deferred, error) {
	ti.calls = append(ti.calls, op)
	switch op {
	case "ping":
		return []Value{Str("pong")}, nil, nil
	case "echo":
		return args, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown op %q", op)
}

func TestWithInvoker(t *testing.T) {
	inv := &testInvoker{}
	in := NewInterpreter(WithStdout(io.Discard), WithInvoker(inv))

	vals, err := in.EvalSource(context.Background(), "t", `return ping(), echo(5)`)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(vals[0], Str("pong")) || !Equal(vals[1], Int(5)) {
		t.Fatalf("got %v", vals)
	}
	if len(inv.calls) != 2 {
		t.Fatalf("invoker calls = %v", inv.calls)
	}
}

func TestNativeCallsBackIntoScript(t *testing.T) {
	in := NewInterpreter(WithStdout(io.Discard))
	in.RegisterNative("twice", func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		fn := args[0]
		first, err := cc.Call(fn, Int(1))
		if err != nil {
			return nil, nil, err
		}
		second, err := cc.Call(fn, single(first))
		if err != nil {
			return nil, nil, err
		}
		return second, nil, nil
	})

	vals, err := in.EvalSource(context.Background(), "t", "return twice(function(x) return x + 10 end)")
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(single(vals), Int(21)) {
		t.Fatalf("got %v", vals)
	}
}

func TestFromGoToGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name": "lamp",
		"on":   true,
		"dim":  0.5,
		"tags": []any{"a", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	tb := v.Data.(*Table)
	if !Equal(tb.Get(Str("name")), Str("lamp")) {
		t.Fatalf("name = %v", tb.Get(Str("name")))
	}
	if tb.Get(Str("tags")).Data.(*Table).Len() != 2 {
		t.Fatal("tags should be a 2-element sequence")
	}

	back, err := ToGo(v)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("round trip produced %T", back)
	}
	if m["on"] != true {
		t.Fatalf("on = %v", m["on"])
	}

	seq, err := ToGo(Value{Tag: VTTable, Data: tb.Get(Str("tags")).Data})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := seq.([]any); !ok || len(s) != 2 || s[0] != "a" {
		t.Fatalf("tags round trip = %#v", seq)
	}

	if _, err := FromGo(struct{}{}); err == nil {
		t.Fatal("unconvertible Go values must error")
	}
}
