package lunar

import "testing"

func TestEnvDefineAndGet(t *testing.T) {
	e := NewEnv(nil)
	e.Define("x", Int(1))
	if v, ok := e.Get("x"); !ok || !Equal(v, Int(1)) {
		t.Fatalf("Get(x) = %v, %v", v, ok)
	}
	if _, ok := e.Get("missing"); ok {
		t.Fatal("missing name should not resolve")
	}
}

func TestEnvChainLookupAndShadowing(t *testing.T) {
	parent := NewEnv(nil)
	parent.Define("x", Int(1))
	parent.Define("y", Int(2))

	child := NewEnv(parent)
	child.Define("x", Int(10))

	if v, _ := child.Get("x"); !Equal(v, Int(10)) {
		t.Fatalf("child x = %v, want shadowing 10", v)
	}
	if v, _ := child.Get("y"); !Equal(v, Int(2)) {
		t.Fatalf("child y = %v, want parent's 2", v)
	}
}

func TestEnvSetWalksChain(t *testing.T) {
	parent := NewEnv(nil)
	parent.Define("x", Int(1))
	child := NewEnv(parent)

	found, err := child.Set("x", Int(5))
	if err != nil || !found {
		t.Fatalf("Set: found=%v err=%v", found, err)
	}
	if v, _ := parent.Get("x"); !Equal(v, Int(5)) {
		t.Fatalf("parent x = %v, want 5 (shared by reference)", v)
	}

	found, err = child.Set("nowhere", Int(1))
	if err != nil || found {
		t.Fatalf("unbound Set should report not found, got found=%v err=%v", found, err)
	}
}

func TestEnvConstReassignment(t *testing.T) {
	e := NewEnv(nil)
	e.DefineConst("k", Int(1))
	if _, err := e.Set("k", Int(2)); err == nil {
		t.Fatal("assigning to a const slot must fail")
	}
	if v, _ := e.Get("k"); !Equal(v, Int(1)) {
		t.Fatalf("const value changed: %v", v)
	}
}
