package rstmgo

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

const lockedBit = uint64(1) << 63

// orec is an ownership record: a versioned write lock. The high bit of
// word marks it locked; the remaining 63 bits are a version stamped from
// the global clock at the locking writer's commit. While locked, owner
// names the Descriptor holding it. This splits the teacher's single
// tagged versionedWriteLock word into two fields because Go cannot pack a
// live pointer and a 63-bit version into one machine word the way the
// original bit-tagging trick does; an explicit pair of atomics is the
// idiomatic substitute.
type orec struct {
	word  atomic.Uint64
	owner atomic.Pointer[Descriptor]
}

// peek returns the current version and whether the orec is locked.
func (o *orec) peek() (version uint64, locked bool) {
	w := o.word.Load()
	return w &^ lockedBit, w&lockedBit != 0
}

// version returns the current version with the lock bit cleared. If the
// orec is locked this is the version it held just before being locked
// (tryLock keeps those bits); the version it will carry once released
// is not known until its owner releases it.
func (o *orec) version() uint64 {
	return o.word.Load() &^ lockedBit
}

// tryLock attempts to transition the orec from unlocked-at-expected to
// locked-by-me. It fails if the orec is no longer at expected (someone
// else changed it, locked or not).
func (o *orec) tryLock(expected uint64, me *Descriptor) bool {
	if !o.word.CompareAndSwap(expected, expected|lockedBit) {
		return false
	}
	o.owner.Store(me)
	return true
}

// release unlocks the orec and stamps it with newVersion. Releasing an
// already-unlocked orec is a harmless no-op, matching the idempotent
// cleanup RSTM's CleanOnAbort/CleanOnCommit helpers provide when more
// than one thread notices a stale lock.
func (o *orec) release(newVersion uint64) {
	w := o.word.Load()
	if w&lockedBit == 0 {
		return
	}
	o.owner.Store(nil)
	o.word.Store(newVersion)
}

// currentOwner returns the Descriptor holding the lock, or nil if
// unlocked.
func (o *orec) currentOwner() *Descriptor {
	return o.owner.Load()
}

// orecTable is a fixed, power-of-two striped table of orecs: several
// addresses may hash to the same orec, which is the striping scheme
// section 4.1 describes and which the teacher's one-orec-per-Var design
// is the degenerate case of (a table far larger than the live Var count).
type orecTable struct {
	stripes []orec
	mask    uint64
}

func newOrecTable(size int) *orecTable {
	n := 1
	for n < size {
		n <<= 1
	}
	return &orecTable{
		stripes: make([]orec, n),
		mask:    uint64(n - 1),
	}
}

func (t *orecTable) get(id uint64) *orec {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	h := murmur3.Sum64(buf[:])
	return &t.stripes[h&t.mask]
}
