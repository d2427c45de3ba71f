// interpreter_exec.go — the tree-walking evaluator.
//
// Statement execution returns an explicit ctrl outcome (normal, break,
// return, goto) that propagates through enclosing blocks until something
// consumes it; runtime faults never ride this channel, they panic as
// *RuntimeError and are recovered at the public API surface
// (interpreter.go). Node paths are threaded alongside evaluation so
// faults can be positioned through the chunk's SpanIndex without the AST
// carrying location fields.
package lunar

import (
	"context"
	"fmt"
	"math"
)

type ctrlKind int

const (
	ctrlNormal ctrlKind = iota
	ctrlBreak
	ctrlReturn
	ctrlGoto
)

// ctrl is the outcome of executing a statement or block.
type ctrl struct {
	kind  ctrlKind
	vals  []Value // return values
	label string  // goto target
}

// exec is the per-evaluation state: one exec per EvalSource/Apply call.
type exec struct {
	in  *Interpreter
	ctx context.Context
	src *SourceRef // chunk of the function currently executing

	depth   int
	varargs []Value // `...` of the function currently executing
}

// checkCancel panics with *CancelError when the evaluation context is
// done. Called at loop back-edges and call boundaries.
func (ex *exec) checkCancel() {
	if ex.ctx == nil {
		return
	}
	if err := ex.ctx.Err(); err != nil {
		panic(&CancelError{Cause: err})
	}
}

// fail raises a runtime fault positioned at the given node.
func (ex *exec) fail(path NodePath, format string, args ...any) {
	line, col := 0, 0
	if ex.src != nil && ex.src.Spans != nil {
		if sp, ok := ex.src.Spans.Get(joinPath(ex.src.PathBase, path)); ok {
			line, col = PosAt(ex.src.Src, sp.StartByte)
		}
	}
	panic(&RuntimeError{Msg: fmt.Sprintf(format, args...), Line: line, Col: col})
}

////////////////////////////////////////////////////////////////////////////
//                               STATEMENTS
////////////////////////////////////////////////////////////////////////////

// execStmts runs the statements of a ("block") node in env. A goto whose
// label lives in this block jumps in place; anything else propagates.
func (ex *exec) execStmts(block S, env *Env, path NodePath) ctrl {
	i := 1
	for i < len(block) {
		st := block[i].(S)
		c := ex.execStmt(st, env, append(path, i-1))
		if c.kind == ctrlGoto {
			if j := findLabel(block, c.label); j >= 0 {
				i = j + 1
				continue
			}
		}
		if c.kind != ctrlNormal {
			return c
		}
		i++
	}
	return ctrl{}
}

func findLabel(block S, label string) int {
	for ci := 1; ci < len(block); ci++ {
		if st, ok := block[ci].(S); ok && st[0].(string) == "label" && st[1].(string) == label {
			return ci
		}
	}
	return -1
}

// execBlockScoped runs a block in a fresh child scope.
func (ex *exec) execBlockScoped(block S, env *Env, path NodePath) ctrl {
	return ex.execStmts(block, NewEnv(env), path)
}

func (ex *exec) execStmt(st S, env *Env, path NodePath) ctrl {
	switch st[0].(string) {

	case "local":
		names := st[1].(S)
		vals := ex.evalExplist(st[2].(S), env, append(path, 1))
		vals = adjust(vals, len(names)-1)
		for ci := 1; ci < len(names); ci++ {
			nn := names[ci].(S)
			name, attrib := nn[1].(string), nn[2].(string)
			if attrib == "const" || attrib == "close" {
				env.DefineConst(name, vals[ci-1])
			} else {
				env.Define(name, vals[ci-1])
			}
		}
		return ctrl{}

	case "localfunc":
		// the name is visible inside the body, enabling recursion
		name := st[1].(string)
		env.Define(name, Nil)
		fn := ex.evalExpr(st[2].(S), env, append(path, 1))
		if _, err := env.Set(name, fn); err != nil {
			ex.fail(path, "%s", err.Error())
		}
		return ctrl{}

	case "assign":
		return ex.execAssign(st, env, path)

	case "call", "method":
		ex.evalMulti(st, env, path)
		return ctrl{}

	case "do":
		return ex.execBlockScoped(st[1].(S), env, append(path, 0))

	case "if":
		for ci := 1; ci < len(st); ci++ {
			part := st[ci].(S)
			cpath := append(path, ci-1)
			if part[0].(string) == "else" {
				return ex.execBlockScoped(part[1].(S), env, append(cpath, 0))
			}
			cond := ex.evalExpr(part[1].(S), env, append(cpath, 0))
			if cond.Truthy() {
				return ex.execBlockScoped(part[2].(S), env, append(cpath, 1))
			}
		}
		return ctrl{}

	case "while":
		for {
			ex.checkCancel()
			if !ex.evalExpr(st[1].(S), env, append(path, 0)).Truthy() {
				return ctrl{}
			}
			c := ex.execBlockScoped(st[2].(S), env, append(path, 1))
			if c.kind == ctrlBreak {
				return ctrl{}
			}
			if c.kind != ctrlNormal {
				return c
			}
		}

	case "repeat":
		// the until condition sees the body's locals
		for {
			ex.checkCancel()
			benv := NewEnv(env)
			c := ex.execStmts(st[1].(S), benv, append(path, 0))
			if c.kind == ctrlBreak {
				return ctrl{}
			}
			if c.kind != ctrlNormal {
				return c
			}
			if ex.evalExpr(st[2].(S), benv, append(path, 1)).Truthy() {
				return ctrl{}
			}
		}

	case "fornum":
		return ex.execForNum(st, env, path)

	case "forin":
		return ex.execForIn(st, env, path)

	case "return":
		vals := ex.evalExplist(st[1].(S), env, append(path, 0))
		return ctrl{kind: ctrlReturn, vals: vals}

	case "break":
		return ctrl{kind: ctrlBreak}

	case "goto":
		return ctrl{kind: ctrlGoto, label: st[1].(string)}

	case "label":
		return ctrl{}
	}

	ex.fail(path, "unknown statement '%v'", st[0])
	return ctrl{}
}

func (ex *exec) execAssign(st S, env *Env, path NodePath) ctrl {
	targets := st[1].(S)

	// evaluate target prefixes left to right before the value list
	setters := make([]func(Value), 0, len(targets)-1)
	for ci := 1; ci < len(targets); ci++ {
		t := targets[ci].(S)
		// copied: the setter outlives later appends on path
		tpath := joinPath(path, NodePath{0, ci - 1})
		switch t[0].(string) {
		case "id":
			name := t[1].(string)
			setters = append(setters, func(v Value) {
				found, err := env.Set(name, v)
				if err != nil {
					ex.fail(tpath, "%s", err.Error())
				}
				if !found {
					_ = ex.in.globals.Set(Str(name), v)
				}
			})
		case "get":
			obj := ex.evalExpr(t[1].(S), env, append(tpath, 0))
			key := Str(t[2].(S)[1].(string))
			setters = append(setters, func(v Value) { ex.setIndex(obj, key, v, tpath) })
		case "idx":
			obj := ex.evalExpr(t[1].(S), env, append(tpath, 0))
			key := ex.evalExpr(t[2].(S), env, append(tpath, 1))
			setters = append(setters, func(v Value) { ex.setIndex(obj, key, v, tpath) })
		}
	}

	vals := ex.evalExplist(st[2].(S), env, append(path, 1))
	vals = adjust(vals, len(setters))
	for i, set := range setters {
		set(vals[i])
	}
	return ctrl{}
}

func (ex *exec) execForNum(st S, env *Env, path NodePath) ctrl {
	name := st[1].(string)
	startV := ex.forNumber(st[2].(S), env, append(path, 1), "initial")
	stopV := ex.forNumber(st[3].(S), env, append(path, 2), "limit")
	stepV := ex.forNumber(st[4].(S), env, append(path, 3), "step")
	body := st[5].(S)
	bodyPath := joinPath(path, NodePath{4})

	runBody := func(iv Value) (ctrl, bool) {
		ex.checkCancel()
		benv := NewEnv(env)
		benv.Define(name, iv)
		c := ex.execStmts(body, benv, bodyPath)
		if c.kind == ctrlBreak {
			return ctrl{}, true
		}
		if c.kind != ctrlNormal {
			return c, true
		}
		return ctrl{}, false
	}

	if startV.Tag == VTInt && stopV.Tag == VTInt && stepV.Tag == VTInt {
		start, stop, step := startV.Data.(int64), stopV.Data.(int64), stepV.Data.(int64)
		if step == 0 {
			ex.fail(append(path, 3), "'for' step is zero")
		}
		for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
			if c, done := runBody(Int(i)); done {
				return c
			}
			// stop before the counter would wrap
			if step > 0 && i > math.MaxInt64-step {
				break
			}
			if step < 0 && i < math.MinInt64-step {
				break
			}
		}
		return ctrl{}
	}

	start, stop, step := toFloat(startV), toFloat(stopV), toFloat(stepV)
	if step == 0 {
		ex.fail(append(path, 3), "'for' step is zero")
	}
	for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
		if c, done := runBody(Num(i)); done {
			return c
		}
	}
	return ctrl{}
}

func (ex *exec) forNumber(e S, env *Env, path NodePath, what string) Value {
	v := ex.evalExpr(e, env, path)
	if v.Tag != VTInt && v.Tag != VTNum {
		ex.fail(path, "'for' %s value must be a number", what)
	}
	return v
}

func (ex *exec) execForIn(st S, env *Env, path NodePath) ctrl {
	names := st[1].(S)
	vals := ex.evalExplist(st[2].(S), env, append(path, 1))
	vals = adjust(vals, 3)
	iter, state, control := vals[0], vals[1], vals[2]
	body := st[3].(S)
	bodyPath := joinPath(path, NodePath{2})

	for {
		ex.checkCancel()
		rs := ex.call(iter, []Value{state, control}, append(path, 1))
		if len(rs) == 0 || rs[0].Tag == VTNil {
			return ctrl{}
		}
		control = rs[0]

		benv := NewEnv(env)
		rs = adjust(rs, len(names)-1)
		for ci := 1; ci < len(names); ci++ {
			benv.Define(names[ci].(S)[1].(string), rs[ci-1])
		}
		c := ex.execStmts(body, benv, bodyPath)
		if c.kind == ctrlBreak {
			return ctrl{}
		}
		if c.kind != ctrlNormal {
			return c
		}
	}
}

////////////////////////////////////////////////////////////////////////////
//                               EXPRESSIONS
////////////////////////////////////////////////////////////////////////////

// adjust resizes a value list to exactly n, padding with nils.
func adjust(vals []Value, n int) []Value {
	for len(vals) < n {
		vals = append(vals, Nil)
	}
	return vals[:n]
}

func single(vals []Value) Value {
	if len(vals) == 0 {
		return Nil
	}
	return vals[0]
}

// isMultiExpr reports whether a node can yield multiple values when it is
// the last element of an expression list.
func isMultiExpr(e S) bool {
	switch e[0].(string) {
	case "call", "method", "vararg":
		return true
	}
	return false
}

// evalExplist evaluates an ("explist") node with Lua adjustment: every
// expression but the last is truncated to one value; a trailing call,
// method call, or `...` expands into all of its results.
func (ex *exec) evalExplist(list S, env *Env, path NodePath) []Value {
	var out []Value
	for ci := 1; ci < len(list); ci++ {
		e := list[ci].(S)
		epath := append(path, ci-1)
		if ci == len(list)-1 && isMultiExpr(e) {
			out = append(out, ex.evalMulti(e, env, epath)...)
		} else {
			out = append(out, ex.evalExpr(e, env, epath))
		}
	}
	return out
}

// evalArgs evaluates call arguments with the same trailing expansion.
func (ex *exec) evalArgs(call S, firstArg int, env *Env, path NodePath) []Value {
	var out []Value
	for ci := firstArg; ci < len(call); ci++ {
		e := call[ci].(S)
		epath := append(path, ci-1)
		if ci == len(call)-1 && isMultiExpr(e) {
			out = append(out, ex.evalMulti(e, env, epath)...)
		} else {
			out = append(out, ex.evalExpr(e, env, epath))
		}
	}
	return out
}

// evalExpr evaluates an expression to exactly one value.
func (ex *exec) evalExpr(e S, env *Env, path NodePath) Value {
	switch e[0].(string) {

	case "nil":
		return Nil
	case "bool":
		return Bool(e[1].(bool))
	case "int":
		return Int(e[1].(int64))
	case "num":
		return Num(e[1].(float64))
	case "str":
		return Str(e[1].(string))

	case "vararg":
		return single(ex.varargs)

	case "id":
		name := e[1].(string)
		if v, ok := env.Get(name); ok {
			return v
		}
		return ex.in.globals.Get(Str(name))

	case "paren":
		return single(ex.evalMulti(e[1].(S), env, append(path, 0)))

	case "unop":
		return ex.evalUnop(e, env, path)

	case "binop":
		op := e[1].(string)
		switch op {
		case "and":
			l := ex.evalExpr(e[2].(S), env, append(path, 1))
			if !l.Truthy() {
				return l
			}
			return ex.evalExpr(e[3].(S), env, append(path, 2))
		case "or":
			l := ex.evalExpr(e[2].(S), env, append(path, 1))
			if l.Truthy() {
				return l
			}
			return ex.evalExpr(e[3].(S), env, append(path, 2))
		}
		l := ex.evalExpr(e[2].(S), env, append(path, 1))
		r := ex.evalExpr(e[3].(S), env, append(path, 2))
		return ex.evalBinop(op, l, r, path)

	case "get":
		obj := ex.evalExpr(e[1].(S), env, append(path, 0))
		return ex.index(obj, Str(e[2].(S)[1].(string)), path)

	case "idx":
		obj := ex.evalExpr(e[1].(S), env, append(path, 0))
		key := ex.evalExpr(e[2].(S), env, append(path, 1))
		return ex.index(obj, key, path)

	case "call", "method":
		return single(ex.evalMulti(e, env, path))

	case "function":
		return ex.evalFunction(e, env, path)

	case "table":
		return ex.evalTable(e, env, path)
	}

	ex.fail(path, "unknown expression '%v'", e[0])
	return Nil
}

// evalMulti evaluates a potentially multi-valued expression.
func (ex *exec) evalMulti(e S, env *Env, path NodePath) []Value {
	switch e[0].(string) {

	case "call":
		callee := ex.evalExpr(e[1].(S), env, append(path, 0))
		args := ex.evalArgs(e, 2, env, path)
		return ex.call(callee, args, path)

	case "method":
		// receiver is evaluated exactly once
		obj := ex.evalExpr(e[1].(S), env, append(path, 0))
		m := ex.index(obj, Str(e[2].(string)), path)
		args := append([]Value{obj}, ex.evalArgs(e, 3, env, path)...)
		return ex.call(m, args, path)

	case "vararg":
		out := make([]Value, len(ex.varargs))
		copy(out, ex.varargs)
		return out
	}

	return []Value{ex.evalExpr(e, env, path)}
}

func (ex *exec) evalFunction(e S, env *Env, path NodePath) Value {
	params := e[1].(S)
	ps := make([]string, 0, len(params)-1)
	for ci := 1; ci < len(params); ci++ {
		ps = append(ps, params[ci].(string))
	}
	return FunVal(&Function{
		Params:   ps,
		IsVararg: e[2].(bool),
		Body:     e[3].(S),
		Env:      env,
		Src:      ex.src,
		BodyPath: joinPath(path, NodePath{2}),
	})
}

func (ex *exec) evalTable(e S, env *Env, path NodePath) Value {
	tbl := NewTable()
	for ci := 1; ci < len(e); ci++ {
		f := e[ci].(S)
		fpath := append(path, ci-1)
		switch f[0].(string) {
		case "item":
			v := f[1].(S)
			if ci == len(e)-1 && isMultiExpr(v) {
				for _, mv := range ex.evalMulti(v, env, append(fpath, 0)) {
					tbl.Append(mv)
				}
			} else {
				tbl.Append(ex.evalExpr(v, env, append(fpath, 0)))
			}
		case "fieldk":
			k := ex.evalExpr(f[1].(S), env, append(fpath, 0))
			v := ex.evalExpr(f[2].(S), env, append(fpath, 1))
			if err := tbl.Set(k, v); err != nil {
				ex.fail(fpath, "%s", err.Error())
			}
		}
	}
	return TableVal(tbl)
}

////////////////////////////////////////////////////////////////////////////
//                                 CALLS
////////////////////////////////////////////////////////////////////////////

// call invokes any callable value: script closures, natives (awaiting a
// Deferred result if one is returned), and tables with a __call handler.
func (ex *exec) call(fn Value, args []Value, path NodePath) []Value {
	ex.checkCancel()

	if fn.Tag != VTFun {
		if mm := metaField(fn, "__call"); mm.Tag != VTNil {
			return ex.call(mm, append([]Value{fn}, args...), path)
		}
		ex.fail(path, "attempt to call a %s value", fn.TypeName())
	}

	ex.depth++
	defer func() { ex.depth-- }()
	if ex.depth > ex.in.maxDepth {
		ex.fail(path, "stack overflow")
	}

	f := fn.Data.(*Function)
	if f.Native != nil {
		cc := &CallCtx{Ctx: ex.ctx, Interp: ex.in, ex: ex, path: path}
		vals, def, err := f.Native(cc, args)
		if err != nil {
			if re, ok := err.(*RuntimeError); ok {
				panic(re)
			}
			ex.fail(path, "%s", err.Error())
		}
		if def != nil {
			return ex.await(def, path)
		}
		return vals
	}

	callEnv := NewEnv(f.Env)
	bound := adjust(args, len(f.Params))
	for i, p := range f.Params {
		callEnv.Define(p, bound[i])
	}

	savedVarargs, savedSrc := ex.varargs, ex.src
	defer func() { ex.varargs, ex.src = savedVarargs, savedSrc }()
	if f.IsVararg && len(args) > len(f.Params) {
		ex.varargs = args[len(f.Params):]
	} else {
		ex.varargs = nil
	}
	ex.src = f.Src

	c := ex.execStmts(f.Body, callEnv, f.BodyPath)
	switch c.kind {
	case ctrlReturn:
		return c.vals
	case ctrlBreak:
		ex.fail(path, "break outside a loop")
	case ctrlGoto:
		ex.fail(path, "no visible label '%s' for goto", c.label)
	}
	return nil
}

// await blocks on a Deferred produced by a native, honoring cancellation.
func (ex *exec) await(def *Deferred, path NodePath) []Value {
	var done <-chan struct{}
	if ex.ctx != nil {
		done = ex.ctx.Done()
	}
	select {
	case r := <-def.ch:
		if r.err != nil {
			ex.fail(path, "%s", r.err.Error())
		}
		return r.vals
	case <-done:
		panic(&CancelError{Cause: ex.ctx.Err()})
	}
}
