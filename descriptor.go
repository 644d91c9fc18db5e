package rstmgo

import (
	"sync/atomic"

	"github.com/shambakey1/rstmgo/cm"
)

type txStatus int32

const (
	statusActive txStatus = iota
	statusCommitted
	statusAborted
)

// ThreadStats mirrors the per-thread commit/abort/retry counters RSTM
// reports when a thread shuts down.
type ThreadStats struct {
	Commits uint64
	Aborts  uint64
	Retrys  uint64
}

// Descriptor is a thread's transaction state: the in-progress
// transaction's logs plus the persistent, cross-transaction bookkeeping
// (contention manager, stats, reclaimer epoch) the teacher folded into a
// single reused Txn value.
type Descriptor struct {
	rt *Runtime

	status atomic.Int32

	startTime uint64
	readLog   []readEntry
	writeLog  map[*Var]writeEntry
	undoLog   []undoEntry
	lockList  []lockEntry

	cmMgr cm.Manager
	depth int

	inevitable     bool
	inevReadOpened bool

	epoch uint64

	deferredFrees []func()

	stats ThreadStats
}

// Priority lets a Descriptor stand in as a cm.Peer for its opponent's
// contention manager.
func (d *Descriptor) Priority() int64 { return d.cmMgr.Priority() }

func (d *Descriptor) statusValue() txStatus { return txStatus(d.status.Load()) }

func (d *Descriptor) casStatus(from, to txStatus) bool {
	return d.status.CompareAndSwap(int32(from), int32(to))
}

func (d *Descriptor) begin() {
	d.status.Store(int32(statusActive))
	d.startTime = d.rt.clock.Snapshot()
	d.readLog = d.readLog[:0]
	if d.writeLog == nil {
		d.writeLog = make(map[*Var]writeEntry)
	} else {
		for k := range d.writeLog {
			delete(d.writeLog, k)
		}
	}
	d.undoLog = d.undoLog[:0]
	d.lockList = d.lockList[:0]
	d.deferredFrees = d.deferredFrees[:0]
	d.inevitable = false
	d.inevReadOpened = false
	d.cmMgr.OnBegin()
	d.epoch = d.rt.reclaimer.EnterEpoch()
	d.rt.inev.AdmitBegin()
}

// leaveEpoch retires this transaction's outstanding reclaimer epoch.
// It must run before any privatization fence (section 4.9) the same
// commit performs: a fence that drains every issued epoch would
// otherwise wait on the committer's own not-yet-left epoch forever.
func (d *Descriptor) leaveEpoch() {
	d.rt.reclaimer.LeaveEpoch(d.epoch)
}

func (d *Descriptor) finish() {
	d.rt.inev.AdmitEnd()
	if d.inevitable {
		d.rt.inev.Release(d)
	}
}

// read is the transactional read barrier.
func (d *Descriptor) read(v *Var) (any, error) {
	if d.statusValue() == statusAborted {
		return nil, errConflict
	}
	if we, ok := d.writeLog[v]; ok {
		return we.val, nil
	}
	if d.inevitable {
		d.inevReadOpened = true
		return v.load(), nil
	}

	const maxSpins = 10000
	for spins := 0; ; spins++ {
		v1, locked := v.orec.peek()
		if locked {
			owner := v.orec.currentOwner()
			if owner == d {
				return v.load(), nil
			}
			if owner == nil {
				continue
			}
			action, err := d.onConflict(cm.RAW, owner, spins, maxSpins)
			if err != nil {
				return nil, err
			}
			if action == verdictRetryBarrier {
				continue
			}
		}

		val := v.load()
		v2 := v.orec.version()
		if v2 != v1 {
			continue
		}
		if v1 > d.startTime {
			if !d.extendTimestamp() {
				return nil, errConflict
			}
		}

		d.readLog = append(d.readLog, readEntry{v: v, version: v1})
		if err := d.checkCapacity(len(d.readLog)); err != nil {
			return nil, err
		}
		return val, nil
	}
}

// write is the transactional write barrier, dispatching on the
// configured update mode.
func (d *Descriptor) write(v *Var, val any) error {
	if d.statusValue() == statusAborted {
		return errConflict
	}
	switch d.rt.config.Mode {
	case ModeEE:
		if err := d.ensureAcquired(v); err != nil {
			return err
		}
		if _, touched := d.writeLog[v]; !touched {
			d.undoLog = append(d.undoLog, undoEntry{v: v, old: v.load()})
			if err := d.checkCapacity(len(d.undoLog)); err != nil {
				return err
			}
		}
		v.store(val)
	case ModeEL:
		if err := d.ensureAcquired(v); err != nil {
			return err
		}
	default: // ModeLL
	}

	d.writeLog[v] = writeEntry{v: v, val: val}
	return d.checkCapacity(len(d.writeLog))
}

// ensureAcquired locks v's orec for this transaction if not already held,
// invoking the contention manager on every conflict. Acquiring an
// already-self-owned orec is a no-op, which is what lets eager and lazy
// acquire share this single code path.
func (d *Descriptor) ensureAcquired(v *Var) error {
	const maxSpins = 10000
	for spins := 0; ; spins++ {
		if !d.inevitable && d.bloomConflict(v) {
			d.cmMgr.OnContention()
			continue
		}
		version, locked := v.orec.peek()
		if locked {
			owner := v.orec.currentOwner()
			if owner == d {
				return nil
			}
			if owner == nil {
				continue
			}
			action, err := d.onConflict(cm.WAW, owner, spins, maxSpins)
			if err != nil {
				return err
			}
			if action == verdictRetryBarrier {
				continue
			}
			continue
		}
		if !v.orec.tryLock(version, d) {
			continue
		}
		d.lockList = append(d.lockList, lockEntry{v: v, prevVersion: version})
		if d.inevitable {
			d.bloomTouch(v)
		}
		return d.checkCapacity(len(d.lockList))
	}
}

// bloomConflict reports whether v is held by the current inevitable
// transaction, per BloomPolicy's cheap pre-check (section 4.7): a
// non-inevitable writer can back off before ever touching v's orec
// instead of discovering the conflict only via a failed CAS.
func (d *Descriptor) bloomConflict(v *Var) bool {
	bp, ok := d.rt.inev.(interface{ Conflicts(uint64) bool })
	return ok && bp.Conflicts(v.id)
}

// bloomTouch records that this (inevitable) transaction holds v's orec,
// for bloomConflict to find.
func (d *Descriptor) bloomTouch(v *Var) {
	if bp, ok := d.rt.inev.(interface{ Touch(uint64) }); ok {
		bp.Touch(v.id)
	}
}

type conflictAction int

const (
	verdictRetryBarrier conflictAction = iota
)

// onConflict asks the contention manager what to do about a conflict
// with owner, carries out AbortSelf/AbortOther/Wait, and reports whether
// the caller should simply retry its barrier loop. It returns an error
// only when this transaction itself must abort.
func (d *Descriptor) onConflict(kind cm.Kind, owner *Descriptor, spins, maxSpins int) (conflictAction, error) {
	if spins >= maxSpins {
		return verdictRetryBarrier, errConflict
	}

	var verdict cm.Verdict
	switch kind {
	case cm.RAW:
		verdict = d.cmMgr.OnRAW(owner)
	case cm.WAW:
		verdict = d.cmMgr.OnWAW(owner)
	default:
		verdict = d.cmMgr.OnWAR(owner)
	}

	switch verdict {
	case cm.AbortSelf:
		return verdictRetryBarrier, errConflict
	case cm.AbortOther:
		owner.casStatus(statusActive, statusAborted)
		return verdictRetryBarrier, nil
	default: // cm.Wait
		d.cmMgr.OnContention()
		return verdictRetryBarrier, nil
	}
}

func (d *Descriptor) validateEntry(e readEntry, allowSelfLock bool) bool {
	version, locked := e.v.orec.peek()
	if locked {
		owner := e.v.orec.currentOwner()
		if allowSelfLock && owner == d {
			// tryLock keeps the pre-lock version bits, so a self-held orec
			// still shows whether it changed between the read and the lock.
			return version == e.version
		}
		return false
	}
	return version == e.version
}

func (d *Descriptor) validateReadLog() bool {
	for _, e := range d.readLog {
		if !d.validateEntry(e, true) {
			return false
		}
	}
	return true
}

// extendTimestamp re-validates the whole read log against a fresh clock
// snapshot and, if every entry still holds, advances start_time to that
// snapshot so future reads are compared against it instead of aborting.
func (d *Descriptor) extendTimestamp() bool {
	now := d.rt.clock.Snapshot()
	if !d.validateReadLog() {
		return false
	}
	d.startTime = now
	return true
}

// tryCommit attempts to finalize the transaction, returning errConflict
// if validation fails (caller must roll back and retry).
func (d *Descriptor) tryCommit() error {
	if d.statusValue() == statusAborted {
		return errConflict
	}
	if len(d.writeLog) == 0 {
		if !d.validateReadLog() {
			return errConflict
		}
		d.status.Store(int32(statusCommitted))
		d.stats.Commits++
		d.cmMgr.OnCommit()
		d.leaveEpoch()
		for _, fn := range d.deferredFrees {
			d.rt.reclaimer.Defer(d.rt.reclaimer.LastIssued(), fn)
		}
		d.finish()
		return nil
	}

	if d.rt.config.Mode == ModeLL {
		for v := range d.writeLog {
			if err := d.ensureAcquired(v); err != nil {
				return err
			}
		}
	}

	endTime := d.rt.clock.Advance()
	if endTime != d.startTime+1 {
		if !d.validateReadLog() {
			d.releaseAll(0)
			return errConflict
		}
	}

	if d.rt.config.Mode != ModeEE {
		for v, we := range d.writeLog {
			v.store(we.val)
		}
	}

	d.releaseAll(endTime)
	d.status.Store(int32(statusCommitted))
	d.stats.Commits++
	d.cmMgr.OnCommit()

	// Leave this transaction's own epoch before fencing: Fence may drain
	// every currently issued epoch (TxFence does, via the reclaimer), and
	// that includes the epoch this commit itself entered at begin. Draining
	// it without having left it first would make every writer commit wait
	// on itself forever.
	d.leaveEpoch()

	touched := make([]uint64, 0, len(d.writeLog))
	for v := range d.writeLog {
		touched = append(touched, v.id)
	}
	d.rt.waitCh.notify(touched)
	d.rt.priv.Fence(d)

	freeEpoch := d.rt.reclaimer.LastIssued()
	for _, fn := range d.deferredFrees {
		d.rt.reclaimer.Defer(freeEpoch, fn)
	}

	d.finish()
	return nil
}

func (d *Descriptor) releaseAll(version uint64) {
	for _, le := range d.lockList {
		if version == 0 {
			le.v.orec.release(le.prevVersion)
		} else {
			le.v.orec.release(version)
		}
	}
}

// rollback undoes eager writes, releases every held orec back to its
// pre-transaction version, and marks the transaction aborted. The caller
// is expected to re-execute the transaction body.
func (d *Descriptor) rollback() {
	for i := len(d.undoLog) - 1; i >= 0; i-- {
		e := d.undoLog[i]
		e.v.store(e.old)
	}
	d.releaseAll(0)
	d.status.Store(int32(statusAborted))
	d.stats.Aborts++
	d.cmMgr.OnAbort()
	d.deferredFrees = d.deferredFrees[:0]
	d.leaveEpoch()
	d.finish()
}

func (d *Descriptor) checkCapacity(n int) error {
	if n > d.rt.config.SoftLogBound {
		return ErrCapacityExceeded
	}
	return nil
}
