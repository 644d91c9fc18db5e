package reclaim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnterLeaveAdvancesDoneUntil(t *testing.T) {
	r := New()
	defer r.Stop()

	e1 := r.EnterEpoch()
	e2 := r.EnterEpoch()
	require.Less(t, e1, e2)

	r.LeaveEpoch(e1)
	require.Eventually(t, func() bool { return r.DoneUntil() >= e1 }, time.Second, time.Millisecond)

	r.LeaveEpoch(e2)
	require.Eventually(t, func() bool { return r.DoneUntil() >= e2 }, time.Second, time.Millisecond)
}

func TestDoneUntilStallsOnOutstandingEpoch(t *testing.T) {
	r := New()
	defer r.Stop()

	e1 := r.EnterEpoch()
	e2 := r.EnterEpoch()
	r.LeaveEpoch(e2)

	time.Sleep(10 * time.Millisecond)
	require.Less(t, r.DoneUntil(), e1)

	r.LeaveEpoch(e1)
	require.Eventually(t, func() bool { return r.DoneUntil() >= e2 }, time.Second, time.Millisecond)
}

func TestDeferRunsOnceEpochRetired(t *testing.T) {
	r := New()
	defer r.Stop()

	e1 := r.EnterEpoch()
	ran := make(chan struct{})
	r.Defer(e1, func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("free ran before epoch retired")
	case <-time.After(20 * time.Millisecond):
	}

	r.LeaveEpoch(e1)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("free never ran")
	}
}

func TestWaitForEpochRespectsContext(t *testing.T) {
	r := New()
	defer r.Stop()

	e1 := r.EnterEpoch()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.WaitForEpoch(ctx, e1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDrainWaitsForAllIssuedEpochs(t *testing.T) {
	r := New()
	defer r.Stop()

	e1 := r.EnterEpoch()
	done := make(chan error, 1)
	go func() {
		done <- r.Drain(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("drain returned before outstanding epoch retired")
	case <-time.After(20 * time.Millisecond):
	}

	r.LeaveEpoch(e1)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drain never returned")
	}
}
