package rstmgo

import "context"

// PrivatizationBarrier implements section 4.9: after a writer commit
// that privatizes some address (takes it out of the shared data set),
// any concurrent transaction that could still write to it must have
// finished before the committer's Fence call returns.
type PrivatizationBarrier interface {
	Fence(d *Descriptor)
}

func newPrivatizationBarrier(kind PrivKind, rt *Runtime) PrivatizationBarrier {
	switch kind {
	case PrivCommitSerialization:
		return commitSerializationBarrier{}
	default:
		return &TxFence{rt: rt}
	}
}

// TxFence waits until every thread that was inside a transaction at the
// moment of the call has either committed/aborted or observed a later
// epoch, adapting the epoch reclaimer's own drain (section 4.5) into
// the fence section 4.9 asks for: a committer cannot return until no
// concurrent transaction could still be mid-flight against the data it
// just privatized.
type TxFence struct {
	rt *Runtime
}

func (f *TxFence) Fence(d *Descriptor) {
	_ = f.rt.reclaimer.Drain(context.Background())
}

// commitSerializationBarrier relies on the fact that every committing
// writer already advances and is ordered by the global clock (C3): once
// a transaction's end_time is published, every later-starting
// transaction's snapshot is already past it, so no separate fence is
// needed beyond the ordering C7's commit protocol already provides.
type commitSerializationBarrier struct{}

func (commitSerializationBarrier) Fence(d *Descriptor) {}
