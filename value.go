// value.go — the Lunar runtime value model.
//
// Value is a tagged union over nil, boolean, integer, float, string
// (arbitrary byte sequence), table, and function. Integers and floats are
// distinct subtypes: bitwise operators demand integer operands, `/` and
// `^` always produce floats, and `//`, `%`, `+`, `-`, `*` stay integral on
// integer operands. Tables combine a contiguous array part (keys 1..n with
// no nil holes, defining length and ordered iteration) with an
// insertion-ordered hash part for every other key. Functions are either
// closures (body AST plus the *Env captured by reference at creation) or
// natives (host callbacks, see bridge.go).
package lunar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueTag enumerates the runtime kinds a Value may hold.
type ValueTag int

const (
	VTNil   ValueTag = iota // no payload
	VTBool                  // bool
	VTInt                   // int64
	VTNum                   // float64
	VTStr                   // string (raw bytes)
	VTTable                 // *Table
	VTFun                   // *Function
)

// Value is the universal runtime carrier. Tag selects the live case of
// Data. Values are small and copied freely; tables and functions are
// shared through their pointers.
type Value struct {
	Tag  ValueTag
	Data any
}

// Nil is the singleton nil Value.
var Nil = Value{Tag: VTNil}

var (
	True  = Value{Tag: VTBool, Data: true}
	False = Value{Tag: VTBool, Data: false}
)

func Bool(b bool) Value        { return Value{Tag: VTBool, Data: b} }
func Int(n int64) Value        { return Value{Tag: VTInt, Data: n} }
func Num(f float64) Value      { return Value{Tag: VTNum, Data: f} }
func Str(s string) Value       { return Value{Tag: VTStr, Data: s} }
func TableVal(t *Table) Value  { return Value{Tag: VTTable, Data: t} }
func FunVal(f *Function) Value { return Value{Tag: VTFun, Data: f} }

// Truthy implements conditional truth: everything except nil and false is
// true, including 0 and the empty string.
func (v Value) Truthy() bool {
	switch v.Tag {
	case VTNil:
		return false
	case VTBool:
		return v.Data.(bool)
	default:
		return true
	}
}

// TypeName returns the user-facing type name used in diagnostics and by
// the `type` builtin. Integers and floats both read "number".
func (v Value) TypeName() string {
	switch v.Tag {
	case VTNil:
		return "nil"
	case VTBool:
		return "boolean"
	case VTInt, VTNum:
		return "number"
	case VTStr:
		return "string"
	case VTTable:
		return "table"
	case VTFun:
		return "function"
	default:
		return "unknown"
	}
}

// String renders v the way tostring does.
func (v Value) String() string {
	switch v.Tag {
	case VTNil:
		return "nil"
	case VTBool:
		if v.Data.(bool) {
			return "true"
		}
		return "false"
	case VTInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case VTNum:
		f := v.Data.(float64)
		if math.IsInf(f, 1) {
			return "inf"
		}
		if math.IsInf(f, -1) {
			return "-inf"
		}
		if math.IsNaN(f) {
			return "nan"
		}
		s := strconv.FormatFloat(f, 'g', 14, 64)
		// keep floats visually distinct from integers
		if !strings.ContainsAny(s, ".eEni") {
			s += ".0"
		}
		return s
	case VTStr:
		return v.Data.(string)
	case VTTable:
		return fmt.Sprintf("table: %p", v.Data.(*Table))
	case VTFun:
		f := v.Data.(*Function)
		if f.Native != nil {
			return fmt.Sprintf("builtin: %p", f)
		}
		return fmt.Sprintf("function: %p", f)
	default:
		return "<unknown>"
	}
}

// Equal implements == semantics: no cross-type coercion except that
// integers and floats compare numerically (1 == 1.0). Tables and functions
// compare by identity; __eq dispatch is layered on top in the evaluator.
func Equal(a, b Value) bool {
	if a.Tag == b.Tag {
		switch a.Tag {
		case VTNil:
			return true
		case VTBool:
			return a.Data.(bool) == b.Data.(bool)
		case VTInt:
			return a.Data.(int64) == b.Data.(int64)
		case VTNum:
			return a.Data.(float64) == b.Data.(float64)
		case VTStr:
			return a.Data.(string) == b.Data.(string)
		case VTTable:
			return a.Data.(*Table) == b.Data.(*Table)
		case VTFun:
			return a.Data.(*Function) == b.Data.(*Function)
		}
		return false
	}
	// mixed int/float numeric equality
	if a.Tag == VTInt && b.Tag == VTNum {
		return float64(a.Data.(int64)) == b.Data.(float64)
	}
	if a.Tag == VTNum && b.Tag == VTInt {
		return a.Data.(float64) == float64(b.Data.(int64))
	}
	return false
}

////////////////////////////////////////////////////////////////////////////
//                                  TABLE
////////////////////////////////////////////////////////////////////////////

// Table is the associative structure: arr holds the sequence region
// (key i ↔ arr[i-1], no nil holes), hash holds everything else with keys
// kept in insertion order so iteration is deterministic. Meta, when set,
// supplies operator/index/call hooks consulted before the builtin rules.
type Table struct {
	arr  []Value
	hash map[Value]Value
	keys []Value // insertion order of hash keys
	Meta *Table
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// normalizeKey folds float keys with integral values onto integer keys so
// t[1] and t[1.0] address the same slot. NaN and nil are invalid keys;
// the bool result is false for those.
func normalizeKey(k Value) (Value, bool) {
	switch k.Tag {
	case VTNil:
		return Nil, false
	case VTNum:
		f := k.Data.(float64)
		if math.IsNaN(f) {
			return Nil, false
		}
		if i := int64(f); float64(i) == f {
			return Int(i), true
		}
	}
	return k, true
}

// Get returns the raw value stored at k (Nil when absent). No __index
// dispatch happens here; that is the evaluator's job.
func (t *Table) Get(k Value) Value {
	k, ok := normalizeKey(k)
	if !ok {
		return Nil
	}
	if k.Tag == VTInt {
		i := k.Data.(int64)
		if i >= 1 && int(i) <= len(t.arr) {
			return t.arr[i-1]
		}
	}
	if t.hash == nil {
		return Nil
	}
	return t.hash[k]
}

// Set stores v at k, maintaining the sequence region: assigning the slot
// just past the array part grows it (absorbing any now-contiguous hash
// keys), and assigning nil removes the key. Returns an error for nil or
// NaN keys.
func (t *Table) Set(k, v Value) error {
	k, ok := normalizeKey(k)
	if !ok {
		if k.Tag == VTNil {
			return fmt.Errorf("table index is nil")
		}
		return fmt.Errorf("table index is NaN")
	}

	if k.Tag == VTInt {
		i := k.Data.(int64)
		if i >= 1 && int(i) <= len(t.arr) {
			t.arr[i-1] = v
			if v.Tag == VTNil && int(i) == len(t.arr) {
				t.shrinkArr()
			}
			return nil
		}
		if int64(len(t.arr))+1 == i && v.Tag != VTNil {
			t.arr = append(t.arr, v)
			t.migrateFromHash()
			return nil
		}
	}

	if v.Tag == VTNil {
		t.deleteHash(k)
		return nil
	}
	if t.hash == nil {
		t.hash = make(map[Value]Value)
	}
	if _, exists := t.hash[k]; !exists {
		t.keys = append(t.keys, k)
	}
	t.hash[k] = v
	return nil
}

// shrinkArr pops trailing nils so the array part keeps the 1..n no-hole
// invariant.
func (t *Table) shrinkArr() {
	for len(t.arr) > 0 && t.arr[len(t.arr)-1].Tag == VTNil {
		t.arr = t.arr[:len(t.arr)-1]
	}
}

// migrateFromHash moves hash entries that have become contiguous with the
// array part (n+1, n+2, ...) into it.
func (t *Table) migrateFromHash() {
	for {
		next := Int(int64(len(t.arr)) + 1)
		v, ok := t.hash[next]
		if !ok || v.Tag == VTNil {
			return
		}
		t.arr = append(t.arr, v)
		t.deleteHash(next)
	}
}

func (t *Table) deleteHash(k Value) {
	if t.hash == nil {
		return
	}
	if _, ok := t.hash[k]; !ok {
		return
	}
	delete(t.hash, k)
	for i, kk := range t.keys {
		if kk == k {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Len is the sequence length: the n of the contiguous 1..n region.
func (t *Table) Len() int64 { return int64(len(t.arr)) }

// hashLen counts live hash-part keys.
func (t *Table) hashLen() int64 { return int64(len(t.keys)) }

// Append adds v at the end of the sequence region.
func (t *Table) Append(v Value) {
	if v.Tag == VTNil {
		return
	}
	t.arr = append(t.arr, v)
	t.migrateFromHash()
}

// Next supports the stateless iteration protocol: Next(Nil) yields the
// first pair, Next(k) the pair following k, and ok=false terminates.
// Array entries come first in index order, then hash entries in insertion
// order.
func (t *Table) Next(k Value) (Value, Value, bool) {
	k, valid := normalizeKey(k)
	if !valid {
		return Nil, Nil, false
	}

	// start of iteration
	if k.Tag == VTNil {
		if len(t.arr) > 0 {
			return Int(1), t.arr[0], true
		}
		return t.firstHash(0)
	}

	if k.Tag == VTInt {
		i := k.Data.(int64)
		if i >= 1 && int(i) <= len(t.arr) {
			if int(i) < len(t.arr) {
				return Int(i + 1), t.arr[i], true
			}
			return t.firstHash(0)
		}
	}

	for i, kk := range t.keys {
		if kk == k {
			return t.firstHash(i + 1)
		}
	}
	return Nil, Nil, false
}

func (t *Table) firstHash(from int) (Value, Value, bool) {
	for i := from; i < len(t.keys); i++ {
		k := t.keys[i]
		if v, ok := t.hash[k]; ok && v.Tag != VTNil {
			return k, v, true
		}
	}
	return Nil, Nil, false
}

////////////////////////////////////////////////////////////////////////////
//                                FUNCTION
////////////////////////////////////////////////////////////////////////////

// Function is a first-class callable: a closure over its defining
// environment, or a native when Native is non-nil (Body/Env unused then).
type Function struct {
	Name     string   // best-effort name for diagnostics
	Params   []string // declared parameter names in order
	IsVararg bool     // accepts `...`
	Body     S        // ("block", ...) — nil for natives
	Env      *Env     // defining environment, captured by reference

	Src      *SourceRef // source + span base of the body, for diagnostics
	BodyPath NodePath   // path of Body within Src's tree

	Native NativeFunc // host callback; nil for closures
}

// numToStr mirrors the coercion used when numbers meet `..`.
func numToStr(v Value) (string, bool) {
	switch v.Tag {
	case VTInt, VTNum:
		return v.String(), true
	case VTStr:
		return v.Data.(string), true
	}
	return "", false
}

// strToNum attempts the numeric coercion applied to string operands of
// arithmetic operators. Leading/trailing space is tolerated; hex literals
// are accepted.
func strToNum(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Nil, false
	}
	neg := false
	body := s
	if body[0] == '+' || body[0] == '-' {
		neg = body[0] == '-'
		body = body[1:]
	}
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		if u, err := strconv.ParseUint(body[2:], 16, 64); err == nil {
			n := int64(u)
			if neg {
				n = -n
			}
			return Int(n), true
		}
		return Nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Num(f), true
	}
	return Nil, false
}
