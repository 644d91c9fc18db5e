// Package cm implements the pluggable contention-manager interface the
// transaction core consults on every conflict: given a conflict it renders
// a verdict -- abort the caller, abort the peer, or make the caller wait
// and retry the barrier.
package cm

// Kind identifies which barrier produced the conflict.
type Kind int

const (
	// RAW: self wants to read an address a concurrent writer owns.
	RAW Kind = iota
	// WAW: self wants to write an address a concurrent writer owns.
	WAW
	// WAR: self wants to write an address a concurrent visible reader holds.
	WAR
)

// Verdict is the contention manager's ruling on a single conflict.
type Verdict int

const (
	AbortSelf Verdict = iota
	AbortOther
	Wait
)

// Peer is the minimal view of a remote transaction a Manager needs in order
// to arbitrate: its current priority, for the priority-based policies.
// Every Manager is itself a Peer, since the runtime hands a transaction's
// own manager to its opponent's manager and vice versa.
type Peer interface {
	Priority() int64
}

// Manager is one thread's contention-management policy and state. It lives
// for the thread's whole lifetime, since policies like Karma accumulate
// priority across many transactions, with OnBegin/OnCommit/OnAbort marking
// transaction boundaries so per-transaction bookkeeping (Polka's
// priority, Polite's backoff delay) can reset where the policy calls for it.
type Manager interface {
	Peer

	OnBegin()
	OnCommit()
	OnAbort()

	OnRAW(other Peer) Verdict
	OnWAW(other Peer) Verdict
	OnWAR(other Peer) Verdict

	// OnContention is called before the runtime retries a barrier after a
	// Wait verdict, and before a write barrier retries after backing off
	// from the inevitable transaction's Bloom sketch. It is not called
	// after a failed CAS or when a locked orec has no owner recorded yet.
	OnContention()
}

// NewFunc constructs a fresh Manager for a newly registered thread.
type NewFunc func() Manager
