package vfs

import (
	"sync/atomic"
	"time"
)

// TimeAction selects what SetTimes does with one timestamp.
type TimeAction int

const (
	// TimeDontChange leaves the timestamp alone.
	TimeDontChange TimeAction = iota
	// TimeSet stores TimeOp.Time, if updates are enabled on the handle.
	TimeSet
	// TimeDisableUpdate stops automatic updates through this handle.
	TimeDisableUpdate
	// TimeResumeUpdate re-enables automatic updates through this handle.
	TimeResumeUpdate
)

// TimeOp is one timestamp instruction for SetTimes.
type TimeOp struct {
	Action TimeAction
	Time   time.Time
}

// SetAttributes replaces the entry's attributes with the supported bits of
// attrs.
func (fs *Filesystem) SetAttributes(h *Handle, attrs uint32) (err error) {
	defer fs.observe("set_attributes", time.Now(), &err)

	stat := h.entry.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	stat.attrs = NewAttributes(attrs)
	h.updateAtime(stat, time.Now())
	return nil
}

// SetTimes applies one instruction to each of the creation, access and
// modify timestamps.
func (fs *Filesystem) SetTimes(h *Handle, creation, access, write TimeOp) (err error) {
	defer fs.observe("set_times", time.Now(), &err)

	stat := h.entry.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	applyTimeOp(creation, &stat.ctime, &h.ctimeEnabled)
	applyTimeOp(write, &stat.mtime, &h.mtimeEnabled)
	applyTimeOp(access, &stat.atime, &h.atimeEnabled)
	return nil
}

func applyTimeOp(op TimeOp, target *time.Time, enabled *atomic.Bool) {
	switch op.Action {
	case TimeSet:
		if enabled.Load() {
			*target = op.Time
		}
	case TimeDisableUpdate:
		enabled.Store(false)
	case TimeResumeUpdate:
		enabled.Store(true)
	}
}
