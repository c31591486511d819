package vfs

import (
	"errors"
	"sort"
	"time"

	"github.com/marmos91/httpmemfs/pkg/security"
)

// FileInfo describes an open entry or stream.
type FileInfo struct {
	Attributes     Attributes
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	Size           int64
	NumberOfLinks  uint32
	FileIndex      uint64
}

// FindData describes one directory child.
type FindData struct {
	Name           string
	Attributes     Attributes
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	Size           int64
}

// StreamEntry describes one stream of an entry.
type StreamEntry struct {
	Name string
	Size int64
}

// VolumeInfo describes the mounted volume.
type VolumeInfo struct {
	Name               string
	SerialNumber       uint32
	MaxComponentLength uint32
	Flags              VolumeFlags
	FileSystemName     string
}

// VolumeFlags advertise volume capabilities.
type VolumeFlags uint32

const (
	VolumeCaseSensitiveSearch VolumeFlags = 0x00000001
	VolumeCasePreservedNames  VolumeFlags = 0x00000002
	VolumeUnicodeOnDisk       VolumeFlags = 0x00000004
	VolumePersistentACLs      VolumeFlags = 0x00000008
	VolumeNamedStreams        VolumeFlags = 0x00040000
)

// DiskSpace reports capacity figures.
type DiskSpace struct {
	ByteCount          uint64
	FreeByteCount      uint64
	AvailableByteCount uint64
}

// GetInfo returns metadata for the handle's target. For a remote stream the
// size is the advertised content length, which is available as soon as the
// response headers arrive; until then GetInfo waits.
func (fs *Filesystem) GetInfo(h *Handle) (info FileInfo, err error) {
	defer fs.observe("get_info", time.Now(), &err)

	var size int64
	if st := h.boundStream(); st != nil {
		if st.remote {
			if err := fs.wait(streamReady(st, (*AltStream).sizeKnown)); err != nil {
				return FileInfo{}, withOp(err, "get_info", "")
			}
		}
		st.mu.RLock()
		size = st.size()
		st.mu.RUnlock()
	} else {
		size = contentSize(h.entry)
	}

	stat := h.entry.Stat()
	stat.mu.RLock()
	defer stat.mu.RUnlock()

	return FileInfo{
		Attributes:     stat.attrs.Effective(h.IsDir()),
		CreationTime:   stat.ctime,
		LastAccessTime: stat.atime,
		LastWriteTime:  stat.mtime,
		Size:           size,
		NumberOfLinks:  1,
		FileIndex:      uint64(stat.id),
	}, nil
}

// contentSize is the size of e's default content without waiting.
func contentSize(e Entry) int64 {
	switch e := e.(type) {
	case *File:
		return e.size()
	case *HTTPFile:
		st := e.current()
		if st == nil {
			return 0
		}
		st.mu.RLock()
		defer st.mu.RUnlock()
		return st.size()
	default:
		return 0
	}
}

// FindChildren lists the children of a directory handle, sorted by name.
// Sizes of files still downloading are reported as far as known; listing
// never waits.
func (fs *Filesystem) FindChildren(h *Handle) (out []FindData, err error) {
	defer fs.observe("find_children", time.Now(), &err)

	if h.boundStream() != nil {
		return nil, newError(ErrInvalidDeviceRequest, "find_children", "")
	}
	dir, ok := h.entry.(*Directory)
	if !ok {
		return nil, newError(ErrInvalidDeviceRequest, "find_children", "")
	}

	dir.mu.RLock()
	defer dir.mu.RUnlock()

	children := dir.list()
	out = make([]FindData, 0, len(children))
	for _, c := range children {
		stat := c.entry.Stat()
		stat.mu.RLock()
		fd := FindData{
			Name:           c.name,
			Attributes:     stat.attrs.Effective(c.entry.IsDir()),
			CreationTime:   stat.ctime,
			LastAccessTime: stat.atime,
			LastWriteTime:  stat.mtime,
		}
		stat.mu.RUnlock()
		fd.Size = contentSize(c.entry)
		out = append(out, fd)
	}
	return out, nil
}

// FindStreams lists the default data stream (files only) followed by every
// named stream of the handle's entry.
func (fs *Filesystem) FindStreams(h *Handle) (out []StreamEntry, err error) {
	defer fs.observe("find_streams", time.Now(), &err)

	if !h.entry.IsDir() {
		out = append(out, StreamEntry{Name: "::$DATA", Size: contentSize(h.entry)})
	}

	stat := h.entry.Stat()
	stat.mu.RLock()
	defer stat.mu.RUnlock()

	named := make([]StreamEntry, 0, len(stat.streams))
	for _, ns := range stat.streams {
		ns.stream.mu.RLock()
		size := int64(len(ns.stream.data))
		ns.stream.mu.RUnlock()
		named = append(named, StreamEntry{Name: ":" + ns.name + ":$DATA", Size: size})
	}
	sort.Slice(named, func(i, j int) bool { return named[i].Name < named[j].Name })
	return append(out, named...), nil
}

// GetSecurity copies the requested parts of the entry's descriptor into
// buf. When buf is too short the error wraps *security.BufferTooSmallError
// carrying the needed size.
func (fs *Filesystem) GetSecurity(h *Handle, info security.Information, buf []byte) (n int, err error) {
	defer fs.observe("get_security", time.Now(), &err)

	stat := h.entry.Stat()
	stat.mu.RLock()
	defer stat.mu.RUnlock()

	n, err = stat.sec.Get(info, buf)
	if err != nil {
		if errors.Is(err, security.ErrBufferTooSmall) {
			return 0, wrapError(ErrBufferTooSmall, "get_security", "", err)
		}
		return 0, wrapError(ErrInvalidParameter, "get_security", "", err)
	}
	return n, nil
}

// SetSecurity updates the entry's descriptor.
func (fs *Filesystem) SetSecurity(h *Handle, info security.Information, buf []byte) (err error) {
	defer fs.observe("set_security", time.Now(), &err)

	stat := h.entry.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	if err := stat.sec.Set(info, buf); err != nil {
		return wrapError(ErrInvalidParameter, "set_security", "", err)
	}
	h.updateAtime(stat, time.Now())
	return nil
}

// VolumeInfo describes the volume to the host.
func (fs *Filesystem) VolumeInfo() VolumeInfo {
	return VolumeInfo{
		Name:               fs.volumeName,
		SerialNumber:       0,
		MaxComponentLength: MaxComponentLength,
		Flags:              VolumeCasePreservedNames | VolumeUnicodeOnDisk | VolumePersistentACLs | VolumeNamedStreams,
		FileSystemName:     "NTFS",
	}
}

// DiskFreeSpace reports fixed figures: the volume lives in memory and has
// no meaningful capacity.
func (fs *Filesystem) DiskFreeSpace() DiskSpace {
	return DiskSpace{
		ByteCount:          1024 * 1024 * 1024,
		FreeByteCount:      512 * 1024 * 1024,
		AvailableByteCount: 512 * 1024 * 1024,
	}
}
