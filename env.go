// env.go — chained lexical environments.
//
// An Env maps names to mutable slots and links to its parent scope; lookup
// walks the chain outward. Slots remember a const marker so reassigning a
// <const> local fails. Environments are shared by reference: every closure
// created inside a scope sees later mutations of that scope's slots, and
// the environment stays alive as long as any closure or child scope still
// references it (the Go GC handles the longest-holder lifetime, including
// the cyclic closure ↔ table ↔ environment case).
package lunar

import "fmt"

type slot struct {
	v     Value
	konst bool
}

// Env is one scope frame.
type Env struct {
	parent *Env
	slots  map[string]*slot
}

// NewEnv creates a frame with the given parent (nil for the root).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, slots: make(map[string]*slot)}
}

// Define binds name in this frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value) {
	e.slots[name] = &slot{v: v}
}

// DefineConst binds name in this frame and rejects later reassignment.
func (e *Env) DefineConst(name string, v Value) {
	e.slots[name] = &slot{v: v, konst: true}
}

// Set updates the nearest visible binding of name. It reports an error for
// const slots and a miss when no frame binds the name (the caller decides
// whether that falls through to a globals table).
func (e *Env) Set(name string, v Value) (found bool, err error) {
	for f := e; f != nil; f = f.parent {
		if s, ok := f.slots[name]; ok {
			if s.konst {
				return true, fmt.Errorf("attempt to assign to const variable '%s'", name)
			}
			s.v = v
			return true, nil
		}
	}
	return false, nil
}

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	for f := e; f != nil; f = f.parent {
		if s, ok := f.slots[name]; ok {
			return s.v, true
		}
	}
	return Nil, false
}

// Has reports whether name is bound anywhere on the chain.
func (e *Env) Has(name string) bool {
	_, ok := e.Get(name)
	return ok
}
