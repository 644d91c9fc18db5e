package rstmgo

// readEntry records a Var and the orec version observed when it was
// read, so validation and timestamp extension can re-check it later. The
// read log may hold duplicate entries for the same Var across repeated
// reads, matching section 4 of the data model.
type readEntry struct {
	v       *Var
	version uint64
}

// writeEntry is the at-most-one-per-address redo-log slot the teacher's
// map[*Var]interface{} write set generalizes into.
type writeEntry struct {
	v   *Var
	val any
}

// undoEntry records a Var's pre-write value for eager-update mode, so
// rollback can restore it in reverse order.
type undoEntry struct {
	v   *Var
	old any
}

// lockEntry records an orec this transaction has acquired and the
// version it held immediately before locking, so abort can release it
// back to that version.
type lockEntry struct {
	v           *Var
	prevVersion uint64
}
