// stdlib.go — the builtin globals installed by NewInterpreter.
//
// The set is the Lua base library trimmed to what embedded scripts need:
// printing, type inspection, conversions, iteration, protected calls, raw
// table access, and metatable management. Hosts extend it through
// RegisterNative and WithInvoker (bridge.go).
package lunar

import (
	"fmt"
	"strconv"
	"strings"
)

func registerBuiltins(in *Interpreter) {
	in.SetGlobal("_G", TableVal(in.globals))

	nextVal := FunVal(&Function{Name: "next", Native: bNext})
	ipairsIterVal := FunVal(&Function{Name: "ipairs_iterator", Native: bIpairsIter})

	in.RegisterNative("print", bPrint)
	in.RegisterNative("type", bType)
	in.RegisterNative("tostring", bTostring)
	in.RegisterNative("tonumber", bTonumber)
	in.SetGlobal("next", nextVal)
	in.RegisterNative("pairs", makePairs(nextVal))
	in.RegisterNative("ipairs", makeIpairs(ipairsIterVal))
	in.RegisterNative("select", bSelect)
	in.RegisterNative("error", bError)
	in.RegisterNative("assert", bAssert)
	in.RegisterNative("pcall", bPcall)
	in.RegisterNative("rawget", bRawget)
	in.RegisterNative("rawset", bRawset)
	in.RegisterNative("rawequal", bRawequal)
	in.RegisterNative("rawlen", bRawlen)
	in.RegisterNative("setmetatable", bSetmetatable)
	in.RegisterNative("getmetatable", bGetmetatable)
}

// ── argument helpers ──────────────────────────────────────────────────────

func argAt(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Nil
}

func argTable(args []Value, i int, fname string) (*Table, error) {
	v := argAt(args, i)
	if v.Tag != VTTable {
		return nil, fmt.Errorf("bad argument #%d to '%s' (table expected, got %s)",
			i+1, fname, v.TypeName())
	}
	return v.Data.(*Table), nil
}

// tostringValue renders v for print/tostring, honoring __tostring.
func tostringValue(cc *CallCtx, v Value) (string, error) {
	if h := metaField(v, "__tostring"); h.Tag != VTNil {
		rs, err := cc.Call(h, v)
		if err != nil {
			return "", err
		}
		r := single(rs)
		if r.Tag != VTStr {
			return "", fmt.Errorf("'__tostring' must return a string")
		}
		return r.Data.(string), nil
	}
	return v.String(), nil
}

// ── builtins ──────────────────────────────────────────────────────────────

func bPrint(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := tostringValue(cc, a)
		if err != nil {
			return nil, nil, err
		}
		parts[i] = s
	}
	fmt.Fprintln(cc.Interp.stdout, strings.Join(parts, "\t"))
	return nil, nil, nil
}

func bType(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	return []Value{Str(argAt(args, 0).TypeName())}, nil, nil
}

func bTostring(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	s, err := tostringValue(cc, argAt(args, 0))
	if err != nil {
		return nil, nil, err
	}
	return []Value{Str(s)}, nil, nil
}

func bTonumber(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	v := argAt(args, 0)

	if base := argAt(args, 1); base.Tag != VTNil {
		b, ok := toInteger(base)
		if !ok || b < 2 || b > 36 {
			return nil, nil, fmt.Errorf("bad argument #2 to 'tonumber' (base out of range)")
		}
		if v.Tag != VTStr {
			return nil, nil, fmt.Errorf("bad argument #1 to 'tonumber' (string expected, got %s)",
				v.TypeName())
		}
		s := strings.TrimSpace(v.Data.(string))
		n, err := strconv.ParseInt(strings.ToLower(s), int(b), 64)
		if err != nil {
			return []Value{Nil}, nil, nil
		}
		return []Value{Int(n)}, nil, nil
	}

	switch v.Tag {
	case VTInt, VTNum:
		return []Value{v}, nil, nil
	case VTStr:
		if n, ok := strToNum(v.Data.(string)); ok {
			return []Value{n}, nil, nil
		}
	}
	return []Value{Nil}, nil, nil
}

func bNext(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	t, err := argTable(args, 0, "next")
	if err != nil {
		return nil, nil, err
	}
	k, v, ok := t.Next(argAt(args, 1))
	if !ok {
		return []Value{Nil}, nil, nil
	}
	return []Value{k, v}, nil, nil
}

// makePairs builds the pairs builtin around the shared next value so that
// `pairs(t)` and the documented (next, t, nil) triple are the same thing.
func makePairs(nextVal Value) NativeFunc {
	return func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		v := argAt(args, 0)
		if h := metaField(v, "__pairs"); h.Tag != VTNil {
			rs, err := cc.Call(h, v)
			if err != nil {
				return nil, nil, err
			}
			return adjust(rs, 3), nil, nil
		}
		if _, err := argTable(args, 0, "pairs"); err != nil {
			return nil, nil, err
		}
		return []Value{nextVal, v, Nil}, nil, nil
	}
}

func makeIpairs(iter Value) NativeFunc {
	return func(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
		if _, err := argTable(args, 0, "ipairs"); err != nil {
			return nil, nil, err
		}
		return []Value{iter, argAt(args, 0), Int(0)}, nil, nil
	}
}

func bIpairsIter(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	t, err := argTable(args, 0, "ipairs")
	if err != nil {
		return nil, nil, err
	}
	i, _ := toInteger(argAt(args, 1))
	i++
	v := t.Get(Int(i))
	if v.Tag == VTNil {
		return []Value{Nil}, nil, nil
	}
	return []Value{Int(i), v}, nil, nil
}

func bSelect(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	sel := argAt(args, 0)
	rest := args[1:]
	if sel.Tag == VTStr && sel.Data.(string) == "#" {
		return []Value{Int(int64(len(rest)))}, nil, nil
	}
	n, ok := toInteger(sel)
	if !ok || n == 0 {
		return nil, nil, fmt.Errorf("bad argument #1 to 'select' (number expected)")
	}
	if n < 0 {
		n = int64(len(rest)) + n + 1
		if n < 1 {
			return nil, nil, fmt.Errorf("bad argument #1 to 'select' (index out of range)")
		}
	}
	if n > int64(len(rest)) {
		return nil, nil, nil
	}
	return rest[n-1:], nil, nil
}

func bError(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	v := argAt(args, 0)
	line, col := cc.position()
	if v.Tag == VTStr {
		return nil, nil, &RuntimeError{Msg: v.Data.(string), Line: line, Col: col}
	}
	return nil, nil, &RuntimeError{Msg: v.String(), Line: line, Col: col, Val: &v}
}

func bAssert(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	if argAt(args, 0).Truthy() {
		return args, nil, nil
	}
	line, col := cc.position()
	if msg := argAt(args, 1); msg.Tag != VTNil {
		if msg.Tag == VTStr {
			return nil, nil, &RuntimeError{Msg: msg.Data.(string), Line: line, Col: col}
		}
		return nil, nil, &RuntimeError{Msg: msg.String(), Line: line, Col: col, Val: &msg}
	}
	return nil, nil, &RuntimeError{Msg: "assertion failed!", Line: line, Col: col}
}

// bPcall runs a function in protected mode: runtime faults become a
// (false, message) pair. Cancellation is NOT protected; it keeps
// unwinding so a canceled script cannot trap itself alive.
func bPcall(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	fn := argAt(args, 0)
	rs, err := cc.Call(fn, args[1:]...)
	if err != nil {
		if re, ok := err.(*RuntimeError); ok {
			if re.Val != nil {
				return []Value{False, *re.Val}, nil, nil
			}
			return []Value{False, Str(re.Msg)}, nil, nil
		}
		return []Value{False, Str(err.Error())}, nil, nil
	}
	return append([]Value{True}, rs...), nil, nil
}

func bRawget(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	t, err := argTable(args, 0, "rawget")
	if err != nil {
		return nil, nil, err
	}
	return []Value{t.Get(argAt(args, 1))}, nil, nil
}

func bRawset(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	t, err := argTable(args, 0, "rawset")
	if err != nil {
		return nil, nil, err
	}
	if err := t.Set(argAt(args, 1), argAt(args, 2)); err != nil {
		return nil, nil, err
	}
	return []Value{argAt(args, 0)}, nil, nil
}

func bRawequal(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	return []Value{Bool(Equal(argAt(args, 0), argAt(args, 1)))}, nil, nil
}

func bRawlen(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	v := argAt(args, 0)
	switch v.Tag {
	case VTStr:
		return []Value{Int(int64(len(v.Data.(string))))}, nil, nil
	case VTTable:
		return []Value{Int(v.Data.(*Table).Len())}, nil, nil
	}
	return nil, nil, fmt.Errorf("table or string expected")
}

func bSetmetatable(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	t, err := argTable(args, 0, "setmetatable")
	if err != nil {
		return nil, nil, err
	}
	if metaField(argAt(args, 0), "__metatable").Tag != VTNil {
		return nil, nil, fmt.Errorf("cannot change a protected metatable")
	}
	switch mt := argAt(args, 1); mt.Tag {
	case VTNil:
		t.Meta = nil
	case VTTable:
		t.Meta = mt.Data.(*Table)
	default:
		return nil, nil, fmt.Errorf("bad argument #2 to 'setmetatable' (nil or table expected)")
	}
	return []Value{argAt(args, 0)}, nil, nil
}

func bGetmetatable(cc *CallCtx, args []Value) ([]Value, *Deferred, error) {
	v := argAt(args, 0)
	if prot := metaField(v, "__metatable"); prot.Tag != VTNil {
		return []Value{prot}, nil, nil
	}
	if v.Tag == VTTable {
		if mt := v.Data.(*Table).Meta; mt != nil {
			return []Value{TableVal(mt)}, nil, nil
		}
	}
	return []Value{Nil}, nil, nil
}
