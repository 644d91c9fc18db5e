package rstmgo

import (
	"testing"
	"time"

	"github.com/shambakey1/rstmgo/cm"
	"github.com/stretchr/testify/require"
)

// TestBeginCommitNoOpDoesNotAdvanceClock covers section 8's round-trip
// property: begin;commit with no reads or writes must not advance the
// global clock.
func TestBeginCommitNoOpDoesNotAdvanceClock(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Shutdown()

	before := rt.clock.Snapshot()
	d := rt.ThreadInit()
	defer rt.ThreadShutdown(d)

	rt.Atomically(d, func(txn *Txn) {})

	require.Equal(t, before, rt.clock.Snapshot())
}

// TestWriterCommitReturnsUnderPrivTxFence exercises the default
// Privatization: PrivTxFence policy (section 4.9) end-to-end against a
// real writer commit. TxFence drains every issued reclaimer epoch, and
// the committing transaction's own begin-time epoch is among those
// issued: Fence must not run until that epoch has been left, or the
// commit would wait on itself forever. The commit is run on its own
// goroutine with a bounded timeout so a future regression of that
// ordering fails this test instead of hanging the whole suite.
func TestWriterCommitReturnsUnderPrivTxFence(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, PrivTxFence, cfg.Privatization)
	cfg.OrecTableSize = 1 << 8
	rt := NewRuntime(cfg)
	defer rt.Shutdown()

	v := NewVar(rt, 0)
	d := rt.ThreadInit()
	defer rt.ThreadShutdown(d)

	done := make(chan struct{})
	go func() {
		rt.Atomically(d, func(txn *Txn) {
			txn.Write(v, 1)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer commit under PrivTxFence did not return: committer fenced on its own epoch")
	}

	require.Equal(t, 1, v.load())
}

// TestThreadShutdownReportsStats covers the supplemented RSTM
// thr_shutdown counters.
func TestThreadShutdownReportsStats(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Shutdown()

	v := NewVar(rt, 0)
	d := rt.ThreadInit()

	rt.Atomically(d, func(txn *Txn) {
		txn.Write(v, 1)
	})
	rt.Atomically(d, func(txn *Txn) {
		txn.Write(v, 2)
	})

	stats := rt.ThreadShutdown(d)
	require.Equal(t, uint64(2), stats.Commits)
	require.Equal(t, uint64(0), stats.Aborts)
}

// TestCapacityExceededAborts exercises the Capacity-exhaustion error
// kind directly against the write barrier: once the write log crosses
// SoftLogBound, further writes report ErrCapacityExceeded instead of
// growing the log without bound, and memory is left unchanged (not
// corrupted) once the caller rolls back.
func TestCapacityExceededAborts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftLogBound = 4
	cfg.OrecTableSize = 1 << 8
	rt := NewRuntime(cfg)
	defer rt.Shutdown()

	vars := make([]*Var, 8)
	for i := range vars {
		vars[i] = NewVar(rt, 0)
	}

	d := rt.ThreadInit()
	defer rt.ThreadShutdown(d)

	d.begin()
	var failedAt int
	for i, v := range vars {
		if err := d.write(v, 1); err != nil {
			require.ErrorIs(t, err, ErrCapacityExceeded)
			failedAt = i
			break
		}
	}
	require.Equal(t, cfg.SoftLogBound, failedAt)
	d.rollback()

	for _, v := range vars {
		require.Equal(t, 0, v.load())
	}
}

// TestEagerModeAcquiresOrecForWholeTransaction exercises ModeEE's undo-log
// discipline: a concurrent reader never sees a half-applied eager write
// because the writer holds the orec for the whole transaction.
func TestEagerModeAcquiresOrecForWholeTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeEE
	cfg.OrecTableSize = 1 << 8
	rt := NewRuntime(cfg)
	defer rt.Shutdown()

	x := NewVar(rt, 0)
	d := rt.ThreadInit()
	defer rt.ThreadShutdown(d)

	d.begin()
	require.NoError(t, d.write(x, 99))

	_, locked := x.orec.peek()
	require.True(t, locked)
	require.Equal(t, d, x.orec.currentOwner())

	require.NoError(t, d.tryCommit())
	_, locked = x.orec.peek()
	require.False(t, locked)
	require.Equal(t, 99, x.load())
}

// TestAggressiveContentionManagerAbortsOwner exercises the Aggressive
// policy's always-AbortOther verdict via a real WAW conflict: thread A
// holds the orec (eager acquire); thread B's Aggressive manager CASes
// A's status to aborted, the single linearization point of a remote
// cancellation (section 5). The victim only actually releases the orec
// on its own next orec interaction -- simulated here by calling write
// again on the holder, which now observes its own aborted status and
// reports errConflict instead of touching memory.
func TestAggressiveContentionManagerAbortsOwner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeEE
	cfg.OrecTableSize = 1 << 8
	rt := NewRuntime(cfg)
	defer rt.Shutdown()

	x := NewVar(rt, 0)

	holder := rt.ThreadInit()
	holder.begin()
	require.NoError(t, holder.write(x, 1))

	aggressor := rt.ThreadInit()
	aggressor.cmMgr = cm.NewAggressive()
	aggressor.begin()
	action, err := aggressor.onConflict(cm.WAW, holder, 0, 1000)
	require.NoError(t, err)
	require.Equal(t, verdictRetryBarrier, action)
	require.Equal(t, statusAborted, holder.statusValue())

	err = holder.write(x, 3)
	require.ErrorIs(t, err, errConflict)
	holder.rollback()

	_, locked := x.orec.peek()
	require.False(t, locked)

	require.NoError(t, aggressor.write(x, 2))
	require.NoError(t, aggressor.tryCommit())
	require.Equal(t, 2, x.load())
}
