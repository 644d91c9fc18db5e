package rstmgo

// Txn is the handle a transaction body reads and writes through. It is
// created fresh for every attempt (every call to the body passed to
// Runtime.Atomically) and borrows its owning Descriptor's logs; it must
// not be retained past the body's return.
//
// Read/Write/Retry report recoverable conflicts by panicking with the
// runtime's internal sentinel errors rather than returning an error the
// body must remember to check. Runtime.Atomically recovers those
// panics and re-executes the body, mirroring section 9's guidance that
// rollback should behave like a checkpoint-restore rather than leave a
// body author threading error returns through every statement; it is
// the same sentinel-panic idiom the `vsdmars-stm` reference
// implementation uses for its own Retry.
type Txn struct {
	d *Descriptor
}

// Read returns the current value of v as observed by this transaction,
// logging it for commit-time validation (section 4.3's transactional
// read barrier).
func (t *Txn) Read(v *Var) any {
	val, err := t.d.read(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Write records val as the value v should take on commit (section
// 4.3's transactional write barrier). Nothing else observes val until
// this transaction commits.
func (t *Txn) Write(v *Var, val any) {
	if err := t.d.write(v, val); err != nil {
		panic(err)
	}
}

// Retry aborts the current attempt and blocks the calling goroutine
// until some address this transaction has read changes, then restarts
// the body (section 4.8). It must not be called from a transaction that
// has made no reads: there is nothing to wait on, so under RetryBloom and
// RetryVisRead the goroutine parks forever, and under RetrySleep the body
// re-runs every poll interval without end.
func (t *Txn) Retry() {
	panic(errRetryRequested)
}

// TryInevitable attempts to make the current transaction inevitable
// (section 4.7): guaranteed to commit, and permitted to perform
// irrevocable actions. It must be called before the transaction's first
// read; see the Open Questions note in SPEC_FULL.md on post-read
// inevitability.
// It returns false if another transaction already holds the token, in
// which case the caller decides whether to continue non-inevitably or
// retry later.
func (t *Txn) TryInevitable() bool {
	if len(t.d.readLog) > 0 {
		return false
	}
	ok := t.d.rt.inev.TryAcquire(t.d)
	if ok {
		t.d.inevitable = true
	}
	return ok
}

// Inevitable is TryInevitable's error-returning counterpart, for
// callers that would rather propagate the section 7 "Inevitability
// denied" error kind as a value than branch on a bool.
func (t *Txn) Inevitable() error {
	if !t.TryInevitable() {
		return ErrInevitabilityDenied
	}
	return nil
}

// Alloc allocates a transactional buffer owned by this transaction: it
// is discarded if the transaction aborts and becomes ordinary
// program-owned memory on commit (section 4.5).
func (t *Txn) Alloc(size int) []byte {
	return t.d.rt.TxAlloc(t.d, size)
}

// Free defers release of ptr until this transaction commits, at which
// point it is handed to the epoch reclaimer (section 4.5).
func (t *Txn) Free(ptr any) {
	t.d.rt.TxFree(t.d, ptr)
}
