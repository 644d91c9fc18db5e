package rstmgo

import "sync/atomic"

// box wraps an arbitrary value so it can live inside an atomic.Value,
// which requires every Store to carry the exact same concrete type.
type box struct{ v any }

// Var is the runtime's untyped transactional memory word: the generic
// SharedHandle[T] in handle.go is the typed view application code holds,
// backed by one of these. It generalizes the teacher's Var (lock +
// interface{} value) by separating the lock into the shared orecTable
// (striping) and keeping only the committed value and table identity
// here.
type Var struct {
	id    uint64
	orec  *orec
	value atomic.Value
}

// NewVar allocates a fresh transactional word bound to rt's orec table
// and initializes it to val outside of any transaction -- matching the
// teacher's bare `var x Var` plus an initializing Atomically block, but
// without requiring the caller to run one.
func NewVar(rt *Runtime, val any) *Var {
	id := rt.nextVarID.Add(1)
	v := &Var{id: id, orec: rt.orecs.get(id)}
	v.store(val)
	return v
}

func (v *Var) load() any {
	if b, ok := v.value.Load().(box); ok {
		return b.v
	}
	return nil
}

func (v *Var) store(val any) {
	v.value.Store(box{v: val})
}
