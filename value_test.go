package lunar

import "testing"

func TestValueTruthiness(t *testing.T) {
	falsy := []Value{Nil, False}
	for _, v := range falsy {
		if v.Truthy() {
			t.Errorf("%v should be falsy", v)
		}
	}
	truthy := []Value{True, Int(0), Num(0), Str(""), TableVal(NewTable())}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Errorf("%v should be truthy", v)
		}
	}
}

func TestValueEqualIntFloat(t *testing.T) {
	if !Equal(Int(2), Num(2.0)) {
		t.Error("2 == 2.0 numerically")
	}
	if Equal(Int(2), Str("2")) {
		t.Error("no cross-type coercion in equality")
	}
	if Equal(Num(0.5), Int(0)) {
		t.Error("0.5 ~= 0")
	}
}

func TestValueTypeNames(t *testing.T) {
	if Int(1).TypeName() != "number" || Num(1.5).TypeName() != "number" {
		t.Error("int and float both report number")
	}
	if Nil.TypeName() != "nil" || Str("").TypeName() != "string" {
		t.Error("bad type names")
	}
}

func TestValueStringRendering(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Int(42), "42"},
		{Num(1.0), "1.0"},
		{Num(0.5), "0.5"},
		{Str("hi"), "hi"},
		{True, "true"},
		{Nil, "nil"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestTableArrayPart(t *testing.T) {
	tb := NewTable()
	for i := int64(1); i <= 5; i++ {
		if err := tb.Set(Int(i), Int(i*10)); err != nil {
			t.Fatal(err)
		}
	}
	if tb.Len() != 5 {
		t.Fatalf("Len = %d, want 5", tb.Len())
	}
	if got := tb.Get(Int(3)); !Equal(got, Int(30)) {
		t.Fatalf("t[3] = %v", got)
	}
}

func TestTableNilAssignmentDeletes(t *testing.T) {
	tb := NewTable()
	_ = tb.Set(Str("k"), Int(1))
	_ = tb.Set(Str("k"), Nil)
	if got := tb.Get(Str("k")); got.Tag != VTNil {
		t.Fatalf("deleted key still present: %v", got)
	}

	// deleting the tail of the array part shrinks the border
	for i := int64(1); i <= 3; i++ {
		_ = tb.Set(Int(i), Int(i))
	}
	_ = tb.Set(Int(3), Nil)
	if tb.Len() != 2 {
		t.Fatalf("Len after tail delete = %d, want 2", tb.Len())
	}
}

func TestTableFloatKeyNormalization(t *testing.T) {
	tb := NewTable()
	_ = tb.Set(Num(2.0), Str("two"))
	if got := tb.Get(Int(2)); !Equal(got, Str("two")) {
		t.Fatalf("t[2.0] and t[2] should be the same slot, got %v", got)
	}
	_ = tb.Set(Num(0.5), Str("half"))
	if got := tb.Get(Num(0.5)); !Equal(got, Str("half")) {
		t.Fatalf("non-integral float keys keep their identity, got %v", got)
	}
}

func TestTableInvalidKeys(t *testing.T) {
	tb := NewTable()
	if err := tb.Set(Nil, Int(1)); err == nil {
		t.Error("nil key must be rejected")
	}
	nan := Num(na())
	if err := tb.Set(nan, Int(1)); err == nil {
		t.Error("NaN key must be rejected")
	}
}

func na() float64 {
	z := 0.0
	return z / z
}

func TestTableNextIterationOrder(t *testing.T) {
	tb := NewTable()
	_ = tb.Set(Int(1), Str("a"))
	_ = tb.Set(Int(2), Str("b"))
	_ = tb.Set(Str("x"), Int(10))
	_ = tb.Set(Str("y"), Int(20))

	var keys []Value
	k := Nil
	for {
		nk, _, ok := tb.Next(k)
		if !ok {
			break
		}
		keys = append(keys, nk)
		k = nk
	}
	want := []Value{Int(1), Int(2), Str("x"), Str("y")}
	if len(keys) != len(want) {
		t.Fatalf("iterated %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if !Equal(keys[i], want[i]) {
			t.Fatalf("key %d = %v, want %v (array first, then insertion order)", i, keys[i], want[i])
		}
	}
}

func TestTableAppendMigratesHashEntries(t *testing.T) {
	tb := NewTable()
	_ = tb.Set(Int(2), Str("b")) // lands in hash: not contiguous yet
	_ = tb.Set(Int(1), Str("a")) // extends array; 2 should migrate
	if tb.Len() != 2 {
		t.Fatalf("Len = %d, want 2 after migration", tb.Len())
	}
	if got := tb.Get(Int(2)); !Equal(got, Str("b")) {
		t.Fatalf("t[2] = %v", got)
	}
}

func TestStrToNum(t *testing.T) {
	tests := []struct {
		in   string
		want Value
		ok   bool
	}{
		{"42", Int(42), true},
		{" 42 ", Int(42), true},
		{"-7", Int(-7), true},
		{"0x10", Int(16), true},
		{"3.5", Num(3.5), true},
		{"1e2", Num(100), true},
		{"", Nil, false},
		{"abc", Nil, false},
		{"12abc", Nil, false},
	}
	for _, tt := range tests {
		got, ok := strToNum(tt.in)
		if ok != tt.ok {
			t.Errorf("strToNum(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !Equal(got, tt.want) {
			t.Errorf("strToNum(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
