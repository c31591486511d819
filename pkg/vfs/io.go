package vfs

import "time"

// Read copies content starting at offset into buf and returns the number of
// bytes copied. Reads at or past the end return 0.
//
// A handle bound to a remote stream waits until the requested range has
// arrived (clamped to the advertised length) or fails with ErrIOTimeout;
// it never returns a short read for data that is still on its way.
func (fs *Filesystem) Read(h *Handle, offset int64, buf []byte) (n int, err error) {
	defer fs.observe("read", time.Now(), &err)

	if offset < 0 {
		return 0, newError(ErrInvalidParameter, "read", "")
	}

	if st := h.boundStream(); st != nil {
		if st.remote {
			length := int64(len(buf))
			ready := streamReady(st, func(s *AltStream) bool { return s.covers(offset, length) })
			if err := fs.wait(ready); err != nil {
				return 0, withOp(err, "read", "")
			}
		}
		st.mu.RLock()
		n = copyFrom(st.data, offset, buf)
		st.mu.RUnlock()
		return n, nil
	}

	f, ok := h.entry.(*File)
	if !ok {
		return 0, newError(ErrInvalidDeviceRequest, "read", "")
	}
	f.mu.RLock()
	n = copyFrom(f.data, offset, buf)
	f.mu.RUnlock()
	return n, nil
}

// Write stores data at offset, or at the current end when writeToEOF is
// set, growing and zero-filling the content as needed. Content fetched from
// the origin is read-only.
func (fs *Filesystem) Write(h *Handle, offset int64, data []byte, writeToEOF bool) (n int, err error) {
	defer fs.observe("write", time.Now(), &err)

	if offset < 0 && !writeToEOF {
		return 0, newError(ErrInvalidParameter, "write", "")
	}

	if st := h.boundStream(); st != nil {
		if st.remote {
			return 0, newError(ErrAccessDenied, "write", "")
		}
		st.mu.Lock()
		st.data, err = fs.writeAt(st.data, offset, data, writeToEOF)
		st.mu.Unlock()
	} else {
		f, ok := h.entry.(*File)
		if !ok {
			return 0, newError(ErrAccessDenied, "write", "")
		}
		f.mu.Lock()
		f.data, err = fs.writeAt(f.data, offset, data, writeToEOF)
		f.mu.Unlock()
	}
	if err != nil {
		return 0, withOp(err, "write", "")
	}

	stat := h.entry.Stat()
	stat.mu.Lock()
	stat.attrs |= AttrArchive
	stat.mu.Unlock()

	h.delayWrite(time.Now())
	return len(data), nil
}

// Flush is accepted and does nothing: content is always resident.
func (fs *Filesystem) Flush(h *Handle) error {
	return nil
}

// SetEndOfFile truncates or zero-extends the content to size.
func (fs *Filesystem) SetEndOfFile(h *Handle, size int64) (err error) {
	defer fs.observe("set_end_of_file", time.Now(), &err)
	return fs.resizeContent(h, "set_end_of_file", size, resize)
}

// SetAllocationSize reserves capacity for size bytes. A size below the
// current length truncates.
func (fs *Filesystem) SetAllocationSize(h *Handle, size int64) (err error) {
	defer fs.observe("set_allocation_size", time.Now(), &err)
	return fs.resizeContent(h, "set_allocation_size", size, allocate)
}

func (fs *Filesystem) resizeContent(h *Handle, op string, size int64, apply func([]byte, int64) []byte) error {
	if size < 0 || size > fs.maxFileSize {
		return newError(ErrInvalidParameter, op, "")
	}

	if st := h.boundStream(); st != nil {
		if st.remote {
			return newError(ErrAccessDenied, op, "")
		}
		st.mu.Lock()
		st.data = apply(st.data, size)
		st.mu.Unlock()
	} else {
		switch e := h.entry.(type) {
		case *File:
			e.mu.Lock()
			e.data = apply(e.data, size)
			e.mu.Unlock()
		case *HTTPFile:
			return newError(ErrAccessDenied, op, "")
		default:
			return newError(ErrInvalidDeviceRequest, op, "")
		}
	}

	stat := h.entry.Stat()
	stat.mu.Lock()
	h.updateMtime(stat, time.Now())
	stat.mu.Unlock()
	return nil
}

func copyFrom(src []byte, offset int64, dst []byte) int {
	if offset >= int64(len(src)) {
		return 0
	}
	return copy(dst, src[offset:])
}

// writeAt stores p at offset (or at the end when toEOF is set). Content
// may not grow past the filesystem's maximum file size.
func (fs *Filesystem) writeAt(buf []byte, offset int64, p []byte, toEOF bool) ([]byte, error) {
	if toEOF {
		offset = int64(len(buf))
	}
	// offset and the limit are both non-negative, so the subtraction
	// cannot overflow.
	if offset > fs.maxFileSize || int64(len(p)) > fs.maxFileSize-offset {
		return buf, ErrInvalidParameter
	}
	end := offset + int64(len(p))
	if end > int64(len(buf)) {
		buf = resize(buf, end)
	}
	copy(buf[offset:], p)
	return buf, nil
}

// maxGrowSlack bounds the spare capacity added when content grows.
const maxGrowSlack = 64 << 20

// resize sets the length to n. Bytes exposed by growing are zero even when
// the backing array held older data.
func resize(buf []byte, n int64) []byte {
	old := int64(len(buf))
	if n <= old {
		return buf[:n]
	}
	if n <= int64(cap(buf)) {
		buf = buf[:n]
		clear(buf[old:])
		return buf
	}
	grown := make([]byte, n, max(n, min(2*int64(cap(buf)), n+maxGrowSlack)))
	copy(grown, buf)
	return grown
}

// allocate makes the capacity exactly n, truncating if n is below the
// current length.
func allocate(buf []byte, n int64) []byte {
	if n < int64(len(buf)) {
		buf = buf[:n]
	}
	if n == int64(cap(buf)) {
		return buf
	}
	out := make([]byte, len(buf), n)
	copy(out, buf)
	return out
}
