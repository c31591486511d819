// Package vfs is an in-memory filesystem whose unknown files are fetched on
// demand from an HTTP origin.
//
// A Filesystem owns the entry tree, the id counter, the worker pool used
// for background fetches and the origin they come from. Every operation is
// a method on Filesystem taking the *Handle returned by Create; the host
// driver layer translates its own calls into these methods 1:1.
//
// Locking follows one order everywhere:
//
//	Directory child map  ->  entry Stat  ->  AltStream / File data
//
// Two child maps (cross-directory move) are locked in ascending entry id
// order. No operation holds a Stat lock while it acquires a child map lock.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/httpmemfs/internal/logger"
	"github.com/marmos91/httpmemfs/pkg/filter"
	"github.com/marmos91/httpmemfs/pkg/origin"
	"github.com/marmos91/httpmemfs/pkg/security"
	"github.com/marmos91/httpmemfs/pkg/workerpool"
)

// ReadonlyPolicy decides which existing entries Create treats as readonly
// when checking write access and delete-on-close.
type ReadonlyPolicy string

const (
	// ReadonlyFromAttributes uses the entry's stored readonly bit.
	ReadonlyFromAttributes ReadonlyPolicy = "attribute"

	// ReadonlyAlways treats every existing entry as readonly.
	ReadonlyAlways ReadonlyPolicy = "always"
)

const (
	DefaultWaitTimeout  = 30 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
	DefaultVolumeName   = "httpmemfs"
	DefaultMaxFileSize  = int64(4 << 30)
)

// Options configure a Filesystem.
type Options struct {
	// Origin serves content for fetch-through. Required.
	Origin origin.Origin

	// Pool runs fetches. Required; the Filesystem does not own it.
	Pool *workerpool.Pool

	// Security creates descriptors. Nil uses an empty blob provider.
	Security security.Provider

	// Filter refuses matching paths in Create. Nil disables filtering.
	Filter filter.Matcher

	// WaitTimeout bounds every wait for remote content.
	WaitTimeout time.Duration

	// PollInterval is the delay between checks while waiting.
	PollInterval time.Duration

	// ReadonlyPolicy defaults to ReadonlyFromAttributes.
	ReadonlyPolicy ReadonlyPolicy

	// VolumeName is reported by VolumeInfo.
	VolumeName string

	// MaxFileSize caps the length of any local content. Writes and
	// resizes beyond it fail with ErrInvalidParameter.
	MaxFileSize int64

	// Metrics receives operation and download measurements. Nil disables.
	Metrics Metrics
}

// Filesystem is the engine. It is safe for concurrent use.
type Filesystem struct {
	root     *Directory
	origin   origin.Origin
	pool     *workerpool.Pool
	security security.Provider
	filter   filter.Matcher
	metrics  Metrics

	waitTimeout    time.Duration
	pollInterval   time.Duration
	readonlyPolicy ReadonlyPolicy
	volumeName     string
	maxFileSize    int64

	idSeq       atomic.Uint64
	handleSeq   atomic.Uint64
	openHandles atomic.Int64
	inFlight    atomic.Int64

	dirsMu sync.RWMutex
	dirs   map[EntryID]*Directory
}

// New creates an empty filesystem with a root directory.
func New(opts Options) (*Filesystem, error) {
	if opts.Origin == nil {
		return nil, errors.New("vfs: origin is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("vfs: worker pool is required")
	}

	fs := &Filesystem{
		origin:         opts.Origin,
		pool:           opts.Pool,
		security:       opts.Security,
		filter:         opts.Filter,
		metrics:        opts.Metrics,
		waitTimeout:    opts.WaitTimeout,
		pollInterval:   opts.PollInterval,
		readonlyPolicy: opts.ReadonlyPolicy,
		volumeName:     opts.VolumeName,
		maxFileSize:    opts.MaxFileSize,
		dirs:           make(map[EntryID]*Directory),
	}
	if fs.security == nil {
		fs.security = security.NewBlobProvider(nil)
	}
	if fs.metrics == nil {
		fs.metrics = noopMetrics{}
	}
	if fs.waitTimeout <= 0 {
		fs.waitTimeout = DefaultWaitTimeout
	}
	if fs.pollInterval <= 0 {
		fs.pollInterval = DefaultPollInterval
	}
	switch fs.readonlyPolicy {
	case "":
		fs.readonlyPolicy = ReadonlyFromAttributes
	case ReadonlyFromAttributes, ReadonlyAlways:
	default:
		return nil, fmt.Errorf("vfs: unknown readonly policy %q", opts.ReadonlyPolicy)
	}
	if fs.volumeName == "" {
		fs.volumeName = DefaultVolumeName
	}
	if fs.maxFileSize <= 0 {
		fs.maxFileSize = DefaultMaxFileSize
	}

	desc, err := fs.security.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("vfs: root security descriptor: %w", err)
	}
	fs.root = newDirectory(newStat(fs.nextID(), 0, desc, 0))
	fs.registerDir(fs.root)

	logger.Debug("vfs: volume %q ready (wait_timeout=%s poll_interval=%s readonly_policy=%s)",
		fs.volumeName, fs.waitTimeout, fs.pollInterval, fs.readonlyPolicy)

	return fs, nil
}

// Root returns the root directory.
func (fs *Filesystem) Root() *Directory { return fs.root }

// OpenHandles returns the number of handles not yet closed.
func (fs *Filesystem) OpenHandles() int { return int(fs.openHandles.Load()) }

// DownloadsInFlight returns the number of fetches started and not finished.
func (fs *Filesystem) DownloadsInFlight() int { return int(fs.inFlight.Load()) }

// Shutdown waits for background fetches to finish by draining the worker
// pool. No Create may run concurrently with or after Shutdown.
func (fs *Filesystem) Shutdown(ctx context.Context) error {
	return fs.pool.CloseContext(ctx)
}

func (fs *Filesystem) nextID() EntryID {
	return EntryID(fs.idSeq.Add(1))
}

// isReadonly applies the readonly policy. Caller holds the Stat lock.
func (fs *Filesystem) isReadonly(s *Stat) bool {
	if fs.readonlyPolicy == ReadonlyAlways {
		return true
	}
	return s.attrs.Has(AttrReadonly)
}

// ============================================================================
// Directory index
// ============================================================================

func (fs *Filesystem) registerDir(d *Directory) {
	fs.dirsMu.Lock()
	fs.dirs[d.stat.id] = d
	fs.dirsMu.Unlock()
}

func (fs *Filesystem) lookupDir(id EntryID) *Directory {
	fs.dirsMu.RLock()
	defer fs.dirsMu.RUnlock()
	return fs.dirs[id]
}

// forgetDir drops an unlinked directory from the index. A directory that
// still has children stays indexed because those children may have open
// handles whose disposal needs to find it.
func (fs *Filesystem) forgetDir(d *Directory) {
	if d.Len() > 0 {
		return
	}
	fs.dirsMu.Lock()
	delete(fs.dirs, d.stat.id)
	fs.dirsMu.Unlock()
}

// ============================================================================
// Entry construction
// ============================================================================

// newChildStat builds the Stat of a new child of parent, inheriting the
// parent's security descriptor.
func (fs *Filesystem) newChildStat(parent *Directory, attrs Attributes, creator []byte, token security.Token, isDir bool) (*Stat, error) {
	parent.stat.mu.RLock()
	parentDesc := parent.stat.sec
	parent.stat.mu.RUnlock()

	desc, err := fs.security.NewInherited(parentDesc, creator, token, isDir)
	if err != nil {
		return nil, fmt.Errorf("inherit security descriptor: %w", err)
	}
	return newStat(fs.nextID(), attrs, desc, parent.stat.id), nil
}

// attach links e into parent under name and touches the parent's modify
// time. Caller holds parent.mu for writing.
func (fs *Filesystem) attach(parent *Directory, name string, e Entry) {
	parent.stat.mu.Lock()
	parent.stat.touchModified(time.Now())
	parent.stat.mu.Unlock()

	parent.insert(name, e)
	if d, ok := e.(*Directory); ok {
		fs.registerDir(d)
	}
}

// newChildDirectory creates and links an empty directory. Caller holds
// parent.mu for writing.
func (fs *Filesystem) newChildDirectory(parent *Directory, name string, attrs Attributes, creator []byte, token security.Token) (*Directory, error) {
	stat, err := fs.newChildStat(parent, attrs, creator, token, true)
	if err != nil {
		return nil, err
	}
	d := newDirectory(stat)
	fs.attach(parent, name, d)
	return d, nil
}

// ============================================================================
// Instrumentation
// ============================================================================

// observe records one operation. Use as: defer fs.observe("read", time.Now(), &err)
func (fs *Filesystem) observe(op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	fs.metrics.ObserveOperation(op, CodeOf(err), time.Since(start))
}
