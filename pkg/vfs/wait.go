package vfs

import "time"

// waitFor polls ready every interval until it returns true or budget is
// spent. An exhausted budget yields ErrIOTimeout even if ready would have
// turned true on the very next poll.
func waitFor(ready func() bool, budget, interval time.Duration) error {
	remaining := budget
	for remaining > 0 && !ready() {
		time.Sleep(interval)
		remaining -= interval
	}
	if remaining <= 0 {
		return ErrIOTimeout
	}
	return nil
}

// wait applies the filesystem's configured budget and interval.
func (fs *Filesystem) wait(ready func() bool) error {
	return waitFor(ready, fs.waitTimeout, fs.pollInterval)
}

// streamReady returns a predicate evaluated under st's read lock.
func streamReady(st *AltStream, check func(*AltStream) bool) func() bool {
	return func() bool {
		st.mu.RLock()
		defer st.mu.RUnlock()
		return check(st)
	}
}
