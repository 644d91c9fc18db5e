package rstmgo

import "github.com/shambakey1/rstmgo/cm"

// Mode selects the acquire/update discipline a Runtime's transactions use,
// per spec section 6's acquire/update flag. The teacher only ever ran
// lazy-acquire/lazy-update ("ll"); ModeEE and ModeEL generalize the write
// barrier (descriptor.go's write/ensureAcquired) to two of the other three
// combinations section 4.3 describes. Lazy-acquire/eager-update is not
// offered.
type Mode int

const (
	// ModeLL is lazy-acquire/lazy-update: writes only land in the redo log
	// until commit, which both acquires orecs and replays the log. This is
	// the teacher's only mode and remains the default.
	ModeLL Mode = iota
	// ModeEL is eager-acquire/lazy-update: orecs are locked as soon as a
	// write barrier runs, but memory isn't touched until commit replay.
	ModeEL
	// ModeEE is eager-acquire/eager-update: writes land in memory
	// immediately, guarded by an undo log that rollback replays in reverse.
	ModeEE
)

func (m Mode) String() string {
	switch m {
	case ModeLL:
		return "ll"
	case ModeEL:
		return "el"
	case ModeEE:
		return "ee"
	default:
		return "unknown"
	}
}

// Config configures a Runtime. The zero value is not meaningful; use
// DefaultConfig and override individual fields.
type Config struct {
	// Mode selects the acquire/update discipline (section 6).
	Mode Mode

	// NewContentionManager constructs a fresh cm.Manager for every thread
	// that registers via ThreadInit. Defaults to cm.NewTimid, matching the
	// teacher's implicit always-abort-self behavior.
	NewContentionManager cm.NewFunc

	// Inevitability selects which single-writer admission policy
	// TryInevitable uses (section 4.7). Defaults to InevNone.
	Inevitability InevKind

	// Privatization selects the fence strategy applied after a writer
	// commit (section 4.9). Defaults to PrivTxFence.
	Privatization PrivKind

	// Retry selects the wakeup policy Txn.Retry parks on (section 4.8).
	// Defaults to RetrySleep.
	Retry RetryKind

	// OrecTableSize is the number of stripes in the orec table (C2). It is
	// rounded up to a power of two; defaults to 1<<20 per section 4.1's
	// example sizing.
	OrecTableSize int

	// SoftLogBound is the per-log entry count past which a transaction
	// self-aborts with ErrCapacityExceeded (section 7, "Capacity
	// exhaustion"). Defaults to 4096.
	SoftLogBound int
}

// InevKind selects an inevitability admission policy by name, mirroring
// the "inev" flag's enumerated values in section 6 (none maps to a
// policy that always denies).
type InevKind int

const (
	InevNone InevKind = iota
	InevGRL
	InevDrain
	InevBloom
)

// PrivKind selects a privatization barrier strategy, mirroring the "priv"
// flag. Only the two strategies section 4.9 actually describes
// (tx fence, commit serialization) are implemented; "nonblocking" and
// "logic" privatization are named in section 6's flag table but are not
// separate RSTM mechanisms this runtime builds -- they describe
// application-level disciplines layered on top of one of these two.
type PrivKind int

const (
	PrivTxFence PrivKind = iota
	PrivCommitSerialization
)

// RetryKind selects a retry wakeup policy, mirroring the "retry" flag.
type RetryKind int

const (
	RetrySleep RetryKind = iota
	RetryBloom
	RetryVisRead
)

// DefaultConfig returns the teacher's only supported configuration: lazy
// acquire/lazy update, a Timid contention manager, no inevitability
// admission, a tx-fence privatization barrier, and sleep-based retry --
// so existing TL2-style callers need zero configuration to match the
// original behavior.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeLL,
		NewContentionManager: cm.NewTimid,
		Inevitability:        InevNone,
		Privatization:        PrivTxFence,
		Retry:                RetrySleep,
		OrecTableSize:        1 << 20,
		SoftLogBound:         4096,
	}
}
