package vfs

import "time"

// DeleteFile records whether the handle's target should be removed when
// its last handle closes. The target is the bound named stream if any,
// otherwise the entry. Passing false cancels an earlier request.
func (fs *Filesystem) DeleteFile(h *Handle, deleteOnClose bool) (err error) {
	defer fs.observe("delete_file", time.Now(), &err)

	stat := h.entry.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	if stat.attrs.Has(AttrReadonly) {
		return newError(ErrCannotDelete, "delete_file", "")
	}

	if st := h.namedStream(); st != nil {
		st.mu.Lock()
		st.deletePending = deleteOnClose
		st.mu.Unlock()
		return nil
	}
	stat.deletePending = deleteOnClose
	return nil
}

// DeleteDirectory records whether the directory should be removed when its
// last handle closes. The root cannot be deleted, and a directory with
// children cannot be marked.
func (fs *Filesystem) DeleteDirectory(h *Handle, deleteOnClose bool) (err error) {
	defer fs.observe("delete_directory", time.Now(), &err)

	if h.boundStream() != nil {
		return newError(ErrInvalidDeviceRequest, "delete_directory", "")
	}
	dir, ok := h.entry.(*Directory)
	if !ok {
		return newError(ErrInvalidDeviceRequest, "delete_directory", "")
	}

	// Children first: a concurrent Create inserting into dir holds this
	// lock, so the emptiness check cannot go stale before pending is set.
	dir.mu.RLock()
	defer dir.mu.RUnlock()
	dir.stat.mu.Lock()
	defer dir.stat.mu.Unlock()

	if dir.stat.parent == 0 {
		return newError(ErrAccessDenied, "delete_directory", "")
	}
	if deleteOnClose && len(dir.children) > 0 {
		return newError(ErrDirectoryNotEmpty, "delete_directory", "")
	}
	dir.stat.deletePending = deleteOnClose
	return nil
}
