package vfs

import (
	"sort"
	"sync"
	"sync/atomic"
)

// EntryKind distinguishes the three kinds of entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindHTTPFile
	KindDirectory
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindHTTPFile:
		return "http-file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Entry is a node of the tree: *File, *HTTPFile or *Directory.
// Two entries are the same entry only if they are the same pointer.
type Entry interface {
	// Stat returns the shared metadata block.
	Stat() *Stat

	// Kind reports which concrete type the entry is.
	Kind() EntryKind

	// IsDir is shorthand for Kind() == KindDirectory.
	IsDir() bool

	sealed()
}

// File is a local, writable file held entirely in memory.
type File struct {
	stat *Stat

	mu   sync.RWMutex
	data []byte
}

func newFile(stat *Stat) *File {
	return &File{stat: stat}
}

func (f *File) Stat() *Stat     { return f.stat }
func (f *File) Kind() EntryKind { return KindFile }
func (f *File) IsDir() bool     { return false }
func (*File) sealed()           {}

func (f *File) size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int64(len(f.data))
}

// HTTPFile is a file whose content comes from the origin. Its bytes live in
// the remote stream created by the most recent open; nothing is kept
// between opens.
type HTTPFile struct {
	stat *Stat
	url  string

	// downloadPending is set when a fetch is scheduled and cleared when it
	// finishes, successfully or not.
	downloadPending atomic.Bool

	mu     sync.RWMutex
	stream *AltStream
}

func newHTTPFile(stat *Stat, url string) *HTTPFile {
	return &HTTPFile{stat: stat, url: url}
}

func (h *HTTPFile) Stat() *Stat     { return h.stat }
func (h *HTTPFile) Kind() EntryKind { return KindHTTPFile }
func (h *HTTPFile) IsDir() bool     { return false }
func (*HTTPFile) sealed()           {}

// URL returns the origin URL the content is fetched from.
func (h *HTTPFile) URL() string { return h.url }

// DownloadPending reports whether a fetch is still running.
func (h *HTTPFile) DownloadPending() bool { return h.downloadPending.Load() }

func (h *HTTPFile) current() *AltStream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stream
}

func (h *HTTPFile) bind(st *AltStream) {
	h.mu.Lock()
	h.stream = st
	h.mu.Unlock()
}

// Directory is a container of named children.
//
// mu guards children only; metadata lives under stat.mu. When both are
// needed, mu is taken first.
type Directory struct {
	stat *Stat

	mu       sync.RWMutex
	children map[string]*dirChild
}

type dirChild struct {
	name  string
	entry Entry
}

func newDirectory(stat *Stat) *Directory {
	return &Directory{stat: stat, children: make(map[string]*dirChild)}
}

func (d *Directory) Stat() *Stat     { return d.stat }
func (d *Directory) Kind() EntryKind { return KindDirectory }
func (d *Directory) IsDir() bool     { return true }
func (*Directory) sealed()           {}

// child looks up a child by name. Caller holds mu.
func (d *Directory) child(name string) Entry {
	if c, ok := d.children[foldName(name)]; ok {
		return c.entry
	}
	return nil
}

// childName returns the stored spelling of name. Caller holds mu.
func (d *Directory) childName(name string) string {
	if c, ok := d.children[foldName(name)]; ok {
		return c.name
	}
	return ""
}

// insert adds or replaces a child. Caller holds mu for writing.
func (d *Directory) insert(name string, e Entry) {
	d.children[foldName(name)] = &dirChild{name: name, entry: e}
}

// remove deletes a child by name. Caller holds mu for writing.
func (d *Directory) remove(name string) {
	delete(d.children, foldName(name))
}

// removeEntry deletes e wherever it is stored. Caller holds mu for
// writing.
func (d *Directory) removeEntry(e Entry) bool {
	for k, c := range d.children {
		if c.entry == e {
			delete(d.children, k)
			return true
		}
	}
	return false
}

// nameOf returns the name under which e is stored. Caller holds mu.
func (d *Directory) nameOf(e Entry) (string, bool) {
	for _, c := range d.children {
		if c.entry == e {
			return c.name, true
		}
	}
	return "", false
}

// list returns the children sorted by name. Caller holds mu.
func (d *Directory) list() []dirChild {
	out := make([]dirChild, 0, len(d.children))
	for _, c := range d.children {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// pending reports whether d is marked for deletion. Caller holds d.mu.
func (d *Directory) pending() bool {
	d.stat.mu.RLock()
	defer d.stat.mu.RUnlock()
	return d.stat.deletePending
}

// Len returns the number of children.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.children)
}
