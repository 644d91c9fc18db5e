package rstmgo

// SharedHandle is a typed transactional memory cell: section 6's
// sh_ptr, generalized with a Go type parameter the way the
// other_examples reference files' TVar[T] is, over the runtime's
// untyped Var. It stores an address; it is never itself read or
// written. Opening it through a Txn yields a capability -- a reading or
// writing view -- that borrows the transaction and logs the access the
// view's kind implies, per section 9's "model this as a capability type
// at the API level" guidance.
type SharedHandle[T any] struct {
	v *Var
}

// NewSharedHandle allocates a fresh handle bound to rt, initialized to
// val outside of any transaction.
func NewSharedHandle[T any](rt *Runtime, val T) *SharedHandle[T] {
	return &SharedHandle[T]{v: NewVar(rt, val)}
}

// Open returns a reading view (rd_ptr): Get logs a transactional read.
func (h *SharedHandle[T]) Open(txn *Txn) ReadHandle[T] {
	return ReadHandle[T]{h: h, txn: txn}
}

// OpenRW returns a writing view (wr_ptr): Get logs a transactional read
// and Set logs a transactional write.
func (h *SharedHandle[T]) OpenRW(txn *Txn) WriteHandle[T] {
	return WriteHandle[T]{h: h, txn: txn}
}

// OpenUnprotected returns an unprotected view (un_ptr) that bypasses the
// runtime entirely: no read is logged, no write is validated. Using one
// on an object any other transaction could still observe is the
// programmer error section 7 calls Misuse; the runtime does not detect
// it, matching spec.md's explicit statement that detection is not
// required.
func (h *SharedHandle[T]) OpenUnprotected() UnprotectedHandle[T] {
	return UnprotectedHandle[T]{h: h}
}

// ReadHandle is a reading view of a SharedHandle, valid only for the
// lifetime of the Txn it was opened from.
type ReadHandle[T any] struct {
	h   *SharedHandle[T]
	txn *Txn
}

// Get returns the value as observed by the owning transaction.
func (r ReadHandle[T]) Get() T {
	return r.txn.Read(r.h.v).(T)
}

// WriteHandle is a reading-and-writing view of a SharedHandle, valid
// only for the lifetime of the Txn it was opened from.
type WriteHandle[T any] struct {
	h   *SharedHandle[T]
	txn *Txn
}

// Get returns the value as observed by the owning transaction,
// including this transaction's own prior writes.
func (w WriteHandle[T]) Get() T {
	return w.txn.Read(w.h.v).(T)
}

// Set records val as the value to publish when the owning transaction
// commits.
func (w WriteHandle[T]) Set(val T) {
	w.txn.Write(w.h.v, val)
}

// UnprotectedHandle is a direct, unlogged view of a SharedHandle's
// current value. It must only be used on objects the caller can prove
// no other transaction can currently observe (e.g. just-allocated, or
// privatized behind a fence).
type UnprotectedHandle[T any] struct {
	h *SharedHandle[T]
}

// Get reads the value directly, with no logging or validation.
func (u UnprotectedHandle[T]) Get() T {
	return u.h.v.load().(T)
}

// Set writes the value directly, with no logging or validation.
func (u UnprotectedHandle[T]) Set(val T) {
	u.h.v.store(val)
}
