// interpreter_ops.go — operator semantics: indexing, arithmetic,
// comparison, concatenation, length, and bitwise ops, each consulting
// metatable handlers before (or instead of) the builtin rule.
//
// Number rules follow Lua 5.4: `+ - * // %` stay integer when both
// operands are integers, `/` and `^` always produce floats, and the
// bitwise operators demand operands with an exact integer representation.
// Strings coerce to numbers in arithmetic and concatenation but nowhere
// else.
package lunar

import "math"

// maxMetaChain bounds __index/__newindex table chains.
const maxMetaChain = 100

// metaField returns the named metatable entry of v, or Nil. Only tables
// carry metatables.
func metaField(v Value, name string) Value {
	if v.Tag != VTTable {
		return Nil
	}
	t := v.Data.(*Table)
	if t.Meta == nil {
		return Nil
	}
	return t.Meta.Get(Str(name))
}

////////////////////////////////////////////////////////////////////////////
//                                INDEXING
////////////////////////////////////////////////////////////////////////////

// index reads obj[key], following __index handlers.
func (ex *exec) index(obj, key Value, path NodePath) Value {
	for i := 0; i < maxMetaChain; i++ {
		if obj.Tag == VTTable {
			t := obj.Data.(*Table)
			if v := t.Get(key); v.Tag != VTNil {
				return v
			}
			h := metaField(obj, "__index")
			if h.Tag == VTNil {
				return Nil
			}
			if h.Tag == VTFun {
				return single(ex.call(h, []Value{obj, key}, path))
			}
			obj = h
			continue
		}
		h := metaField(obj, "__index")
		if h.Tag == VTNil {
			ex.fail(path, "attempt to index a %s value", obj.TypeName())
		}
		if h.Tag == VTFun {
			return single(ex.call(h, []Value{obj, key}, path))
		}
		obj = h
	}
	ex.fail(path, "'__index' chain too long; possible loop")
	return Nil
}

// setIndex writes obj[key] = v, following __newindex handlers. A raw hit
// on an existing key bypasses the handler, as does the absence of one.
func (ex *exec) setIndex(obj, key, v Value, path NodePath) {
	for i := 0; i < maxMetaChain; i++ {
		if obj.Tag == VTTable {
			t := obj.Data.(*Table)
			h := metaField(obj, "__newindex")
			if h.Tag == VTNil || t.Get(key).Tag != VTNil {
				if err := t.Set(key, v); err != nil {
					ex.fail(path, "%s", err.Error())
				}
				return
			}
			if h.Tag == VTFun {
				ex.call(h, []Value{obj, key, v}, path)
				return
			}
			obj = h
			continue
		}
		h := metaField(obj, "__newindex")
		if h.Tag == VTNil {
			ex.fail(path, "attempt to index a %s value", obj.TypeName())
		}
		if h.Tag == VTFun {
			ex.call(h, []Value{obj, key, v}, path)
			return
		}
		obj = h
	}
	ex.fail(path, "'__newindex' chain too long; possible loop")
}

////////////////////////////////////////////////////////////////////////////
//                             BINARY OPERATORS
////////////////////////////////////////////////////////////////////////////

func (ex *exec) evalBinop(op string, l, r Value, path NodePath) Value {
	switch op {
	case "+", "-", "*", "/", "//", "%", "^":
		return ex.arith(op, l, r, path)
	case "..":
		return ex.concat(l, r, path)
	case "==":
		return Bool(ex.valsEqual(l, r, path))
	case "~=":
		return Bool(!ex.valsEqual(l, r, path))
	case "<":
		return ex.compare("<", l, r, path)
	case "<=":
		return ex.compare("<=", l, r, path)
	case ">":
		return ex.compare("<", r, l, path)
	case ">=":
		return ex.compare("<=", r, l, path)
	case "&", "|", "~", "<<", ">>":
		return ex.bitwise(op, l, r, path)
	}
	ex.fail(path, "unknown operator '%s'", op)
	return Nil
}

// arithOperand coerces a value to a number for arithmetic: numbers pass
// through, numeric strings convert.
func arithOperand(v Value) (Value, bool) {
	switch v.Tag {
	case VTInt, VTNum:
		return v, true
	case VTStr:
		if n, ok := strToNum(v.Data.(string)); ok {
			return n, true
		}
	}
	return Nil, false
}

var arithEvents = map[string]string{
	"+": "__add", "-": "__sub", "*": "__mul", "/": "__div",
	"//": "__idiv", "%": "__mod", "^": "__pow",
}

func (ex *exec) arith(op string, l, r Value, path NodePath) Value {
	ln, lok := arithOperand(l)
	rn, rok := arithOperand(r)
	if lok && rok {
		// `/` and `^` are float operations even on integer operands
		if op != "/" && op != "^" && ln.Tag == VTInt && rn.Tag == VTInt {
			return ex.intArith(op, ln.Data.(int64), rn.Data.(int64), path)
		}
		return ex.floatArith(op, toFloat(ln), toFloat(rn), path)
	}
	if v, ok := ex.metaBinop(arithEvents[op], l, r, path); ok {
		return v
	}
	bad := l
	if lok {
		bad = r
	}
	ex.fail(path, "attempt to perform arithmetic on a %s value", bad.TypeName())
	return Nil
}

func (ex *exec) intArith(op string, a, b int64, path NodePath) Value {
	switch op {
	case "+":
		return Int(a + b)
	case "-":
		return Int(a - b)
	case "*":
		return Int(a * b)
	case "//":
		if b == 0 {
			ex.fail(path, "attempt to perform 'n//0'")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q-- // floor, not truncation
		}
		return Int(q)
	case "%":
		if b == 0 {
			ex.fail(path, "attempt to perform 'n%%0'")
		}
		m := a % b
		if m != 0 && ((a < 0) != (b < 0)) {
			m += b
		}
		return Int(m)
	}
	ex.fail(path, "unknown operator '%s'", op)
	return Nil
}

func (ex *exec) floatArith(op string, a, b float64, path NodePath) Value {
	switch op {
	case "+":
		return Num(a + b)
	case "-":
		return Num(a - b)
	case "*":
		return Num(a * b)
	case "/":
		return Num(a / b)
	case "^":
		return Num(math.Pow(a, b))
	case "//":
		return Num(math.Floor(a / b))
	case "%":
		m := a - math.Floor(a/b)*b
		return Num(m)
	}
	ex.fail(path, "unknown operator '%s'", op)
	return Nil
}

func toFloat(v Value) float64 {
	if v.Tag == VTInt {
		return float64(v.Data.(int64))
	}
	return v.Data.(float64)
}

func (ex *exec) concat(l, r Value, path NodePath) Value {
	ls, lok := concatOperand(l)
	rs, rok := concatOperand(r)
	if lok && rok {
		return Str(ls + rs)
	}
	if v, ok := ex.metaBinop("__concat", l, r, path); ok {
		return v
	}
	bad := l
	if lok {
		bad = r
	}
	ex.fail(path, "attempt to concatenate a %s value", bad.TypeName())
	return Nil
}

func concatOperand(v Value) (string, bool) {
	return numToStr(v)
}

// valsEqual implements `==`: primitive equality first, then __eq when two
// raw-unequal tables are compared.
func (ex *exec) valsEqual(l, r Value, path NodePath) bool {
	if Equal(l, r) {
		return true
	}
	if l.Tag == VTTable && r.Tag == VTTable {
		h := metaField(l, "__eq")
		if h.Tag == VTNil {
			h = metaField(r, "__eq")
		}
		if h.Tag != VTNil {
			return single(ex.call(h, []Value{l, r}, path)).Truthy()
		}
	}
	return false
}

func (ex *exec) compare(op string, l, r Value, path NodePath) Value {
	if (l.Tag == VTInt || l.Tag == VTNum) && (r.Tag == VTInt || r.Tag == VTNum) {
		if l.Tag == VTInt && r.Tag == VTInt {
			a, b := l.Data.(int64), r.Data.(int64)
			if op == "<" {
				return Bool(a < b)
			}
			return Bool(a <= b)
		}
		a, b := toFloat(l), toFloat(r)
		if op == "<" {
			return Bool(a < b)
		}
		return Bool(a <= b)
	}
	if l.Tag == VTStr && r.Tag == VTStr {
		a, b := l.Data.(string), r.Data.(string)
		if op == "<" {
			return Bool(a < b)
		}
		return Bool(a <= b)
	}
	event := "__lt"
	if op == "<=" {
		event = "__le"
	}
	if v, ok := ex.metaBinop(event, l, r, path); ok {
		return Bool(v.Truthy())
	}
	ex.fail(path, "attempt to compare %s with %s", l.TypeName(), r.TypeName())
	return Nil
}

var bitEvents = map[string]string{
	"&": "__band", "|": "__bor", "~": "__bxor", "<<": "__shl", ">>": "__shr",
}

func (ex *exec) bitwise(op string, l, r Value, path NodePath) Value {
	a, aok := toInteger(l)
	b, bok := toInteger(r)
	if aok && bok {
		switch op {
		case "&":
			return Int(a & b)
		case "|":
			return Int(a | b)
		case "~":
			return Int(a ^ b)
		case "<<":
			return Int(shiftLeft(a, b))
		case ">>":
			return Int(shiftLeft(a, -b))
		}
	}
	if v, ok := ex.metaBinop(bitEvents[op], l, r, path); ok {
		return v
	}
	bad, badok := l, aok
	if aok {
		bad, badok = r, bok
	}
	if (bad.Tag == VTInt || bad.Tag == VTNum) && !badok {
		ex.fail(path, "number has no integer representation")
	}
	ex.fail(path, "attempt to perform bitwise operation on a %s value", bad.TypeName())
	return Nil
}

// shiftLeft is Lua's logical shift: negative amounts shift right, amounts
// of 64 or more produce zero.
func shiftLeft(a, n int64) int64 {
	if n <= -64 || n >= 64 {
		return 0
	}
	if n >= 0 {
		return int64(uint64(a) << uint(n))
	}
	return int64(uint64(a) >> uint(-n))
}

// toInteger converts a value to int64 when it has an exact integer
// representation: integers, integral floats, and numeric strings thereof.
func toInteger(v Value) (int64, bool) {
	switch v.Tag {
	case VTInt:
		return v.Data.(int64), true
	case VTNum:
		f := v.Data.(float64)
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return 0, false
		}
		i := int64(f)
		if float64(i) != f {
			return 0, false
		}
		return i, true
	case VTStr:
		if n, ok := strToNum(v.Data.(string)); ok {
			return toInteger(n)
		}
	}
	return 0, false
}

func (ex *exec) metaBinop(event string, l, r Value, path NodePath) (Value, bool) {
	h := metaField(l, event)
	if h.Tag == VTNil {
		h = metaField(r, event)
	}
	if h.Tag == VTNil {
		return Nil, false
	}
	return single(ex.call(h, []Value{l, r}, path)), true
}

////////////////////////////////////////////////////////////////////////////
//                              UNARY OPERATORS
////////////////////////////////////////////////////////////////////////////

func (ex *exec) evalUnop(e S, env *Env, path NodePath) Value {
	op := e[1].(string)
	v := ex.evalExpr(e[2].(S), env, append(path, 1))

	switch op {
	case "not":
		return Bool(!v.Truthy())

	case "-":
		if n, ok := arithOperand(v); ok {
			if n.Tag == VTInt {
				return Int(-n.Data.(int64))
			}
			return Num(-n.Data.(float64))
		}
		if h := metaField(v, "__unm"); h.Tag != VTNil {
			return single(ex.call(h, []Value{v, v}, path))
		}
		ex.fail(path, "attempt to perform arithmetic on a %s value", v.TypeName())

	case "#":
		return ex.length(v, path)

	case "~":
		if i, ok := toInteger(v); ok {
			return Int(^i)
		}
		if h := metaField(v, "__bnot"); h.Tag != VTNil {
			return single(ex.call(h, []Value{v, v}, path))
		}
		if v.Tag == VTInt || v.Tag == VTNum {
			ex.fail(path, "number has no integer representation")
		}
		ex.fail(path, "attempt to perform bitwise operation on a %s value", v.TypeName())
	}
	ex.fail(path, "unknown operator '%s'", op)
	return Nil
}

// length implements `#`: byte length for strings, __len then the border
// count for tables.
func (ex *exec) length(v Value, path NodePath) Value {
	switch v.Tag {
	case VTStr:
		return Int(int64(len(v.Data.(string))))
	case VTTable:
		if h := metaField(v, "__len"); h.Tag != VTNil {
			return single(ex.call(h, []Value{v}, path))
		}
		return Int(v.Data.(*Table).Len())
	}
	ex.fail(path, "attempt to get length of a %s value", v.TypeName())
	return Nil
}
