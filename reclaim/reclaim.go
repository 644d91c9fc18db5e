// Package reclaim implements epoch-based memory reclamation for deferred
// frees: every transaction takes a fresh epoch from a monotone counter
// when it begins and retires it when it ends, and an object whose free is
// deferred against an epoch is only released once that epoch and every
// earlier one have been retired.
package reclaim

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
)

const _markBuffer = 256

// Reclaimer tracks outstanding epochs and runs deferred frees once it is
// safe to do so. It is adapted from a watermark tracker that advances a
// "done until" counter as timestamps retire: here the timestamps are
// per-thread epochs rather than MVCC read marks, and retiring an epoch
// also fires any frees deferred against it.
type Reclaimer struct {
	wg sync.WaitGroup

	doneUntil atomic.Uint64
	issued    atomic.Uint64

	markC chan mark
	stopC chan struct{}
}

type mark struct {
	epoch  uint64
	done   bool
	waiter chan struct{}
	free   func()
}

// New starts a Reclaimer's background bookkeeping goroutine.
func New() *Reclaimer {
	r := &Reclaimer{
		markC: make(chan mark, _markBuffer),
		stopC: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.process()
	return r
}

// Stop shuts the reclaimer down. No further EnterEpoch/LeaveEpoch/Defer
// calls may be made afterward.
func (r *Reclaimer) Stop() {
	close(r.stopC)
	r.wg.Wait()
}

// EnterEpoch publishes a new outstanding epoch for the calling thread and
// returns it; the thread must later call LeaveEpoch with the same value.
func (r *Reclaimer) EnterEpoch() uint64 {
	epoch := r.issued.Add(1)
	r.markC <- mark{epoch: epoch}
	return epoch
}

// LeaveEpoch retires the epoch obtained from EnterEpoch, allowing it (and
// any earlier epoch with no other outstanding thread) to be considered
// reclaimable.
func (r *Reclaimer) LeaveEpoch(epoch uint64) {
	r.markC <- mark{epoch: epoch, done: true}
}

// LastIssued returns the most recently issued epoch.
func (r *Reclaimer) LastIssued() uint64 {
	return r.issued.Load()
}

// DoneUntil returns the highest epoch every registered thread has fully
// retired.
func (r *Reclaimer) DoneUntil() uint64 {
	return r.doneUntil.Load()
}

// Defer schedules fn to run once epoch has been retired by every thread.
// If epoch is already reclaimable, fn may run inline.
func (r *Reclaimer) Defer(epoch uint64, fn func()) {
	if r.DoneUntil() >= epoch {
		fn()
		return
	}
	r.markC <- mark{epoch: epoch, free: fn}
}

// WaitForEpoch blocks until epoch has been retired by every thread, or ctx
// is cancelled.
func (r *Reclaimer) WaitForEpoch(ctx context.Context, epoch uint64) error {
	if r.DoneUntil() >= epoch {
		return nil
	}
	waiter := make(chan struct{})
	r.markC <- mark{epoch: epoch, waiter: waiter}
	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits until every epoch issued so far has been retired: a
// privatization fence.
func (r *Reclaimer) Drain(ctx context.Context) error {
	return r.WaitForEpoch(ctx, r.LastIssued())
}

func (r *Reclaimer) process() {
	defer r.wg.Done()

	var epochs lowHeap
	pending := make(map[uint64]int)
	waiters := make(map[uint64][]chan struct{})
	frees := make(map[uint64][]func())

	heap.Init(&epochs)
	for {
		select {
		case <-r.stopC:
			close(r.markC)
			return
		case m := <-r.markC:
			switch {
			case m.waiter != nil:
				if r.DoneUntil() >= m.epoch {
					close(m.waiter)
				} else {
					waiters[m.epoch] = append(waiters[m.epoch], m.waiter)
				}
			case m.free != nil:
				if r.DoneUntil() >= m.epoch {
					m.free()
				} else {
					frees[m.epoch] = append(frees[m.epoch], m.free)
				}
			default:
				ts := m.epoch
				prev, ok := pending[ts]
				if !ok {
					heap.Push(&epochs, ts)
				}
				delta := 1
				if m.done {
					delta = -1
				}
				pending[ts] = prev + delta

				currDoneUntil := r.DoneUntil()
				doneUntil := currDoneUntil
				for epochs.Len() > 0 {
					min := epochs[0]
					if pending[min] > 0 {
						break
					}
					heap.Pop(&epochs)
					delete(pending, min)
					doneUntil = min
				}

				if doneUntil > currDoneUntil {
					r.doneUntil.Store(doneUntil)
					for t, cs := range waiters {
						if t <= doneUntil {
							for _, ch := range cs {
								close(ch)
							}
							delete(waiters, t)
						}
					}
					for t, fns := range frees {
						if t <= doneUntil {
							for _, fn := range fns {
								fn()
							}
							delete(frees, t)
						}
					}
				}
			}
		}
	}
}

type lowHeap []uint64

func (h *lowHeap) Len() int            { return len(*h) }
func (h *lowHeap) Less(i, j int) bool  { return (*h)[i] < (*h)[j] }
func (h *lowHeap) Swap(i, j int)       { (*h)[i], (*h)[j] = (*h)[j], (*h)[i] }
func (h *lowHeap) Push(x any)          { *h = append(*h, x.(uint64)) }
func (h *lowHeap) Pop() any {
	curr := *h
	n := len(curr)
	e := curr[n-1]
	*h = curr[0 : n-1]
	return e
}
