package rstmgo

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/shambakey1/rstmgo/bloom"
)

// sleepRetryPollInterval bounds how long a SleepPolicy waiter blocks
// before waking on its own to revalidate, rather than relying solely on
// a committing writer's notification -- grounded on RSTM's
// STM_RETRY_SLEEP body, which parks on a timed wait instead of a precise
// wakeup set.
const sleepRetryPollInterval = 10 * time.Millisecond

// retryWaiter is one parked transaction's published wait-handle (section
// 4.8 step 1): either the exact set of Var identities its read log
// depends on (RetrySleep, RetryVisRead) or a Bloom sketch of the same
// set (RetryBloom), plus the channel a committing writer closes to wake
// it.
type retryWaiter struct {
	ids    map[uint64]struct{}
	sketch *bloom.Filter
	wake   chan struct{}
}

// retryRegistry implements the retry subsystem (C9): parked
// transactions publish a wait-handle keyed by their read set, and a
// committing writer wakes every waiter whose handle intersects the
// addresses it just wrote (section 4.8 step 3). The three RetryKind
// values select how precisely the wait-handle is represented, directly
// grounded on RSTM's three `#if`-gated Descriptor::retry() bodies
// (STM_RETRY_SLEEP / STM_RETRY_BLOOM / STM_RETRY_VISREAD).
type retryRegistry struct {
	kind RetryKind

	mu      sync.Mutex
	waiters map[*Descriptor]*retryWaiter
}

func newRetryRegistry(kind RetryKind) *retryRegistry {
	return &retryRegistry{kind: kind, waiters: make(map[*Descriptor]*retryWaiter)}
}

// register publishes d's current read log as a wait-handle.
func (r *retryRegistry) register(d *Descriptor) {
	w := &retryWaiter{wake: make(chan struct{})}
	if r.kind == RetryBloom {
		w.sketch = bloom.NewDefault(len(d.readLog) + 1)
		for _, e := range d.readLog {
			w.sketch.Add(idKey(e.v.id))
		}
	} else {
		w.ids = make(map[uint64]struct{}, len(d.readLog))
		for _, e := range d.readLog {
			w.ids[e.v.id] = struct{}{}
		}
	}
	r.mu.Lock()
	r.waiters[d] = w
	r.mu.Unlock()
}

func (r *retryRegistry) unregister(d *Descriptor) {
	r.mu.Lock()
	delete(r.waiters, d)
	r.mu.Unlock()
}

// park blocks the calling goroutine until notify wakes it, or -- under
// RetrySleep -- until a bounded poll interval elapses so the caller's
// next begin simply revalidates and re-blocks if still stale.
func (r *retryRegistry) park(d *Descriptor) {
	r.mu.Lock()
	w := r.waiters[d]
	r.mu.Unlock()
	if w == nil {
		return
	}
	defer r.unregister(d)

	if r.kind == RetrySleep {
		timer := time.NewTimer(sleepRetryPollInterval)
		defer timer.Stop()
		select {
		case <-w.wake:
		case <-timer.C:
		}
		return
	}
	<-w.wake
}

// notify wakes every parked waiter whose wait-handle might intersect
// touched, the set of Var identities a committing writer just
// published. A Bloom-sketched waiter may wake spuriously (false
// positive); an exact-set waiter never does.
func (r *retryRegistry) notify(touched []uint64) {
	if len(touched) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for d, w := range r.waiters {
		if !r.intersects(w, touched) {
			continue
		}
		select {
		case <-w.wake:
		default:
			close(w.wake)
		}
		delete(r.waiters, d)
	}
}

func (r *retryRegistry) intersects(w *retryWaiter, touched []uint64) bool {
	if w.sketch != nil {
		keys := make([][]byte, len(touched))
		for i, id := range touched {
			keys[i] = idKey(id)
		}
		return w.sketch.Intersects(keys)
	}
	for _, id := range touched {
		if _, ok := w.ids[id]; ok {
			return true
		}
	}
	return false
}

func idKey(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}
