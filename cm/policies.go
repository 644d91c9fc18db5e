package cm

import (
	"sync/atomic"
	"time"
)

// Backoff constants for Polite, grounded on the exponential-backoff
// schedule dijkstracula-go-ilock uses for its condvar waiters.
const (
	startingBackoff = 50 * time.Microsecond
	maxBackoff      = 500 * time.Millisecond
	backoffFactor   = 2
)

// Aggressive always aborts the peer it conflicts with; it never waits and
// never backs off itself.
type Aggressive struct{}

func NewAggressive() Manager { return Aggressive{} }

func (Aggressive) Priority() int64 { return 0 }
func (Aggressive) OnBegin()        {}
func (Aggressive) OnCommit()       {}
func (Aggressive) OnAbort()        {}
func (Aggressive) OnContention()   {}
func (Aggressive) OnRAW(Peer) Verdict { return AbortOther }
func (Aggressive) OnWAW(Peer) Verdict { return AbortOther }
func (Aggressive) OnWAR(Peer) Verdict { return AbortOther }

// Timid always aborts itself on conflict. This is the policy the teacher
// implements implicitly -- tryAcquire failing always led to abortAndRetry,
// never to aborting the owner -- lifted out here as a first-class, named
// policy so it can be selected like any other.
type Timid struct{}

func NewTimid() Manager { return Timid{} }

func (Timid) Priority() int64 { return 0 }
func (Timid) OnBegin()        {}
func (Timid) OnCommit()       {}
func (Timid) OnAbort()        {}
func (Timid) OnContention()   {}
func (Timid) OnRAW(Peer) Verdict { return AbortSelf }
func (Timid) OnWAW(Peer) Verdict { return AbortSelf }
func (Timid) OnWAR(Peer) Verdict { return AbortSelf }

// Polite waits with exponential backoff, self-aborting once the delay
// crosses maxBackoff.
type Polite struct {
	delay time.Duration
}

func NewPolite() Manager { return &Polite{delay: startingBackoff} }

func (p *Polite) Priority() int64 { return 0 }
func (p *Polite) OnBegin()        { p.delay = startingBackoff }
func (p *Polite) OnCommit()       {}
func (p *Polite) OnAbort()        {}

func (p *Polite) OnContention() {
	if p.delay >= maxBackoff {
		return
	}
	time.Sleep(p.delay)
	p.delay *= backoffFactor
}

func (p *Polite) verdict() Verdict {
	if p.delay >= maxBackoff {
		return AbortSelf
	}
	return Wait
}

func (p *Polite) OnRAW(Peer) Verdict { return p.verdict() }
func (p *Polite) OnWAW(Peer) Verdict { return p.verdict() }
func (p *Polite) OnWAR(Peer) Verdict { return p.verdict() }

// Polka is priority-weighted: it raises its own priority on every abort and
// resets to zero on every commit. Higher priority wins the conflict; equal
// priority backs off.
type Polka struct {
	priority atomic.Int64
}

func NewPolka() Manager { return &Polka{} }

func (p *Polka) Priority() int64 { return p.priority.Load() }
func (p *Polka) OnBegin()        {}
func (p *Polka) OnCommit()       { p.priority.Store(0) }
func (p *Polka) OnAbort()        { p.priority.Add(1) }
func (p *Polka) OnContention()   {}

func (p *Polka) decide(other Peer) Verdict {
	if p.Priority() > other.Priority() {
		return AbortOther
	}
	if p.Priority() < other.Priority() {
		return AbortSelf
	}
	return Wait
}

func (p *Polka) OnRAW(other Peer) Verdict { return p.decide(other) }
func (p *Polka) OnWAW(other Peer) Verdict { return p.decide(other) }
func (p *Polka) OnWAR(other Peer) Verdict { return p.decide(other) }

// Karma is Polka's sibling: priority accumulates across the thread's whole
// lifetime instead of resetting on commit, so a thread that has aborted
// many times keeps winning conflicts even after it finally commits.
type Karma struct {
	priority atomic.Int64
}

func NewKarma() Manager { return &Karma{} }

func (k *Karma) Priority() int64 { return k.priority.Load() }
func (k *Karma) OnBegin()        {}
func (k *Karma) OnCommit()       {}
func (k *Karma) OnAbort()        { k.priority.Add(1) }
func (k *Karma) OnContention()   {}

func (k *Karma) decide(other Peer) Verdict {
	if k.Priority() > other.Priority() {
		return AbortOther
	}
	if k.Priority() < other.Priority() {
		return AbortSelf
	}
	return Wait
}

func (k *Karma) OnRAW(other Peer) Verdict { return k.decide(other) }
func (k *Karma) OnWAW(other Peer) Verdict { return k.decide(other) }
func (k *Karma) OnWAR(other Peer) Verdict { return k.decide(other) }
