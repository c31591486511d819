package vfs

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/httpmemfs/internal/logger"
	"github.com/marmos91/httpmemfs/pkg/filter"
	"github.com/marmos91/httpmemfs/pkg/security"
)

// AccessMask is the access requested by an open.
type AccessMask uint32

const (
	AccessReadData        AccessMask = 0x00000001
	AccessWriteData       AccessMask = 0x00000002
	AccessAppendData      AccessMask = 0x00000004
	AccessReadEA          AccessMask = 0x00000008
	AccessWriteEA         AccessMask = 0x00000010
	AccessExecute         AccessMask = 0x00000020
	AccessReadAttributes  AccessMask = 0x00000080
	AccessWriteAttributes AccessMask = 0x00000100
	AccessDelete          AccessMask = 0x00010000
	AccessReadControl     AccessMask = 0x00020000
	AccessWriteDAC        AccessMask = 0x00040000
	AccessWriteOwner      AccessMask = 0x00080000
	AccessSynchronize     AccessMask = 0x00100000
	AccessGenericAll      AccessMask = 0x10000000
	AccessGenericExecute  AccessMask = 0x20000000
	AccessGenericWrite    AccessMask = 0x40000000
	AccessGenericRead     AccessMask = 0x80000000
)

var accessNames = []struct {
	bit  AccessMask
	name string
}{
	{AccessReadData, "READ_DATA"},
	{AccessWriteData, "WRITE_DATA"},
	{AccessAppendData, "APPEND_DATA"},
	{AccessReadEA, "READ_EA"},
	{AccessWriteEA, "WRITE_EA"},
	{AccessExecute, "EXECUTE"},
	{AccessReadAttributes, "READ_ATTRIBUTES"},
	{AccessWriteAttributes, "WRITE_ATTRIBUTES"},
	{AccessDelete, "DELETE"},
	{AccessReadControl, "READ_CONTROL"},
	{AccessWriteDAC, "WRITE_DAC"},
	{AccessWriteOwner, "WRITE_OWNER"},
	{AccessSynchronize, "SYNCHRONIZE"},
	{AccessGenericAll, "GENERIC_ALL"},
	{AccessGenericExecute, "GENERIC_EXECUTE"},
	{AccessGenericWrite, "GENERIC_WRITE"},
	{AccessGenericRead, "GENERIC_READ"},
}

func (a AccessMask) String() string {
	if a == 0 {
		return "0"
	}
	var parts []string
	for _, n := range accessNames {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

func (a AccessMask) wantsWrite() bool {
	return a&(AccessWriteData|AccessAppendData|AccessGenericWrite|AccessGenericAll) != 0
}

// wantsData reports whether the open will touch content rather than only
// attributes. Opens that do not skip the body download.
func (a AccessMask) wantsData() bool {
	return a&(AccessReadData|AccessWriteData|AccessAppendData|AccessExecute|
		AccessGenericRead|AccessGenericWrite|AccessGenericExecute|AccessGenericAll) != 0
}

// Disposition is what Create does depending on whether the target exists.
type Disposition uint32

const (
	DispositionSupersede   Disposition = 0
	DispositionOpen        Disposition = 1
	DispositionCreate      Disposition = 2
	DispositionOpenIf      Disposition = 3
	DispositionOverwrite   Disposition = 4
	DispositionOverwriteIf Disposition = 5
)

func (d Disposition) String() string {
	switch d {
	case DispositionSupersede:
		return "SUPERSEDE"
	case DispositionOpen:
		return "OPEN"
	case DispositionCreate:
		return "CREATE"
	case DispositionOpenIf:
		return "OPEN_IF"
	case DispositionOverwrite:
		return "OVERWRITE"
	case DispositionOverwriteIf:
		return "OVERWRITE_IF"
	default:
		return "INVALID"
	}
}

func (d Disposition) truncates() bool {
	return d == DispositionSupersede || d == DispositionOverwrite || d == DispositionOverwriteIf
}

// CreateOptions are the option bits of an open.
type CreateOptions uint32

const (
	OptionDirectoryFile    CreateOptions = 0x00000001
	OptionNonDirectoryFile CreateOptions = 0x00000040
	OptionDeleteOnClose    CreateOptions = 0x00001000
)

// CreateRequest carries the arguments of Create.
type CreateRequest struct {
	Path        string
	Access      AccessMask
	Attributes  uint32
	Disposition Disposition
	Options     CreateOptions

	// SecurityDescriptor is the creator-supplied descriptor, if any.
	SecurityDescriptor []byte

	// Token identifies the caller to the security provider.
	Token security.Token

	// ProcessID is only logged.
	ProcessID uint32
}

// CreateResult is returned by a successful Create.
type CreateResult struct {
	Handle *Handle

	// IsDir reports whether the handle addresses a directory.
	IsDir bool

	// Created reports whether a new entry or stream was made.
	Created bool
}

// Create opens or creates the entry at req.Path.
func (fs *Filesystem) Create(req CreateRequest) (res *CreateResult, err error) {
	defer fs.observe("create", time.Now(), &err)

	logger.Debug("create: %q disposition=%s access=%s options=%#x pid=%d",
		req.Path, req.Disposition, req.Access, uint32(req.Options), req.ProcessID)

	if req.Disposition > DispositionOverwriteIf {
		return nil, newError(ErrInvalidParameter, "create", req.Path)
	}

	if fs.filter != nil {
		if fs.filter.Match(req.Path, req.Options&OptionDirectoryFile != 0) == filter.Ignore {
			logger.Debug("create: %q ignored by filter", req.Path)
			return nil, newError(ErrAccessDenied, "create", req.Path)
		}
	}

	r, err := fs.resolve(req.Path)
	if err != nil {
		return nil, withOp(err, "create", req.Path)
	}

	deleteOnClose := req.Options&OptionDeleteOnClose != 0

	if r.parent == nil || (r.name.FileName == "" && r.parent == fs.root) {
		res, err = fs.openRoot(r, req, deleteOnClose)
	} else if r.name.FileName == "" {
		err = ErrInvalidName
	} else {
		var dl *download
		r.parent.mu.Lock()
		if existing := r.parent.child(r.name.FileName); existing != nil {
			res, dl, err = fs.openExisting(r, existing, req, deleteOnClose)
		} else {
			res, dl, err = fs.createNew(r, req, deleteOnClose)
		}
		r.parent.mu.Unlock()

		if err == nil && dl != nil {
			fs.startDownload(dl)
		}
	}
	if err != nil {
		return nil, withOp(err, "create", req.Path)
	}

	fs.metrics.SetOpenHandles(int(fs.openHandles.Add(1)))
	logger.Debug("create: %q -> handle %d entry %d (created=%t dir=%t)",
		req.Path, res.Handle.index, res.Handle.entry.Stat().id, res.Created, res.IsDir)
	return res, nil
}

func (fs *Filesystem) openRoot(r resolved, req CreateRequest, deleteOnClose bool) (*CreateResult, error) {
	if r.name.Stream != nil {
		isDefault, err := r.name.Stream.CheckDefault(true)
		if err != nil {
			return nil, err
		}
		if !isDefault {
			return nil, ErrInvalidName
		}
	}
	if req.Options&OptionNonDirectoryFile != 0 {
		return nil, ErrFileIsADirectory
	}
	if req.Disposition != DispositionOpen && req.Disposition != DispositionOpenIf {
		return nil, ErrInvalidParameter
	}

	fs.root.stat.mu.Lock()
	h := fs.newHandle(fs.root, nil, deleteOnClose)
	fs.root.stat.mu.Unlock()
	return &CreateResult{Handle: h, IsDir: true}, nil
}

// openExisting opens an entry found in the parent. Caller holds
// r.parent.mu for writing.
func (fs *Filesystem) openExisting(r resolved, e Entry, req CreateRequest, deleteOnClose bool) (*CreateResult, *download, error) {
	stat := e.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	readonly := fs.isReadonly(stat)
	requested := NewAttributes(req.Attributes)
	// Overwriting a hidden system file must restate both bits.
	hiddenSystem := stat.attrs.Has(AttrHidden|AttrSystem) && !requested.Has(AttrHidden|AttrSystem)

	if readonly && req.Access.wantsWrite() {
		return nil, nil, ErrAccessDenied
	}
	if stat.deletePending {
		return nil, nil, ErrDeletePending
	}
	if readonly && deleteOnClose {
		return nil, nil, ErrCannotDelete
	}

	si, err := r.name.namedStream(e.IsDir())
	if err != nil {
		return nil, nil, err
	}
	if si != nil {
		res, err := fs.openNamedStream(e, si, req.Disposition, readonly, deleteOnClose)
		return res, nil, err
	}

	now := time.Now()
	switch e := e.(type) {
	case *File:
		if req.Options&OptionDirectoryFile != 0 {
			return nil, nil, ErrNotADirectory
		}
		switch {
		case req.Disposition.truncates():
			if (req.Disposition != DispositionSupersede && readonly) || hiddenSystem {
				return nil, nil, ErrAccessDenied
			}
			e.mu.Lock()
			e.data = nil
			e.mu.Unlock()
			stat.attrs = requested | AttrArchive
			stat.touchModified(now)
		case req.Disposition == DispositionCreate:
			return nil, nil, ErrNameCollision
		}
		return &CreateResult{Handle: fs.newHandle(e, nil, deleteOnClose)}, nil, nil

	case *HTTPFile:
		if req.Options&OptionDirectoryFile != 0 {
			return nil, nil, ErrNotADirectory
		}
		switch req.Disposition {
		case DispositionOpen, DispositionOpenIf:
		case DispositionCreate:
			return nil, nil, ErrNameCollision
		default:
			return nil, nil, ErrInvalidParameter
		}
		h, dl := fs.openRemote(e, req.Access, deleteOnClose)
		return &CreateResult{Handle: h}, dl, nil

	case *Directory:
		if req.Options&OptionNonDirectoryFile != 0 {
			return nil, nil, ErrFileIsADirectory
		}
		switch req.Disposition {
		case DispositionOpen, DispositionOpenIf:
		case DispositionCreate:
			return nil, nil, ErrNameCollision
		default:
			return nil, nil, ErrInvalidParameter
		}
		return &CreateResult{Handle: fs.newHandle(e, nil, deleteOnClose), IsDir: true}, nil, nil
	}

	panic("vfs: unknown entry kind")
}

// openNamedStream opens or creates a named stream of e. Caller holds the
// Stat write lock.
func (fs *Filesystem) openNamedStream(e Entry, si *StreamInfo, disp Disposition, readonly, deleteOnClose bool) (*CreateResult, error) {
	stat := e.Stat()
	now := time.Now()

	if st := stat.stream(si.Name); st != nil {
		st.mu.RLock()
		pending := st.deletePending
		st.mu.RUnlock()
		if pending {
			return nil, ErrDeletePending
		}

		switch {
		case disp.truncates():
			if disp != DispositionSupersede && readonly {
				return nil, ErrAccessDenied
			}
			stat.attrs |= AttrArchive
			stat.touchModified(now)
			st.mu.Lock()
			st.data = nil
			st.mu.Unlock()
		case disp == DispositionCreate:
			return nil, ErrNameCollision
		}
		return &CreateResult{Handle: fs.newHandle(e, st, deleteOnClose)}, nil
	}

	if disp == DispositionOpen || disp == DispositionOverwrite {
		return nil, ErrNotFound
	}
	if readonly {
		return nil, ErrAccessDenied
	}

	st := newAltStream()
	stat.touchAccessed(now)
	stat.putStream(si.Name, st)
	return &CreateResult{Handle: fs.newHandle(e, st, deleteOnClose), Created: true}, nil
}

// openRemote binds a fresh remote stream to hf and prepares the fetch that
// fills it. Caller holds the Stat write lock.
func (fs *Filesystem) openRemote(hf *HTTPFile, access AccessMask, deleteOnClose bool) (*Handle, *download) {
	st := newRemoteStream()
	hf.bind(st)
	hf.downloadPending.Store(true)

	h := fs.newHandle(hf, st, deleteOnClose)
	return h, &download{
		id:       uuid.New(),
		file:     hf,
		stream:   st,
		url:      hf.url,
		wantBody: access.wantsData(),
	}
}

// createNew handles a leaf that does not exist yet. Caller holds
// r.parent.mu for writing.
func (fs *Filesystem) createNew(r resolved, req CreateRequest, deleteOnClose bool) (*CreateResult, *download, error) {
	parent := r.parent

	parent.stat.mu.RLock()
	pending := parent.stat.deletePending
	parent.stat.mu.RUnlock()
	if pending {
		return nil, nil, ErrDeletePending
	}

	attrs := NewAttributes(req.Attributes)
	if attrs.Has(AttrReadonly) && deleteOnClose {
		return nil, nil, ErrCannotDelete
	}

	if req.Options&OptionDirectoryFile != 0 {
		switch req.Disposition {
		case DispositionCreate, DispositionOpenIf:
		case DispositionOpen:
			return nil, nil, ErrNotFound
		default:
			return nil, nil, ErrInvalidParameter
		}
		si, err := r.name.namedStream(true)
		if err != nil {
			return nil, nil, err
		}

		d, err := fs.newChildDirectory(parent, r.name.FileName, attrs, req.SecurityDescriptor, req.Token)
		if err != nil {
			return nil, nil, err
		}
		return fs.handleOnNew(d, si, deleteOnClose), nil, nil
	}

	si, err := r.name.namedStream(false)
	if err != nil {
		return nil, nil, err
	}

	// Open or Overwrite of something never seen locally means the caller
	// expects it to exist: look for it at the origin.
	if req.Disposition == DispositionOpen || req.Disposition == DispositionOverwrite {
		if si != nil {
			return nil, nil, ErrNotFound
		}
		return fs.fetchThrough(r, req, attrs, deleteOnClose)
	}

	stat, err := fs.newChildStat(parent, attrs|AttrArchive, req.SecurityDescriptor, req.Token, false)
	if err != nil {
		return nil, nil, err
	}
	f := newFile(stat)
	fs.attach(parent, r.name.FileName, f)
	return fs.handleOnNew(f, si, deleteOnClose), nil, nil
}

// handleOnNew opens a handle on a freshly created entry, creating the
// named stream si first when given.
func (fs *Filesystem) handleOnNew(e Entry, si *StreamInfo, deleteOnClose bool) *CreateResult {
	stat := e.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	var st *AltStream
	if si != nil {
		st = newAltStream()
		stat.putStream(si.Name, st)
	}
	return &CreateResult{
		Handle:  fs.newHandle(e, st, deleteOnClose),
		IsDir:   e.IsDir() && st == nil,
		Created: true,
	}
}

// fetchThrough creates an HTTPFile for a path never seen locally and
// prepares its first download. Caller holds r.parent.mu for writing.
func (fs *Filesystem) fetchThrough(r resolved, req CreateRequest, attrs Attributes, deleteOnClose bool) (*CreateResult, *download, error) {
	url, err := fs.origin.Resolve(r.relative())
	if err != nil {
		return nil, nil, wrapError(ErrInvalidName, "create", req.Path, err)
	}

	stat, err := fs.newChildStat(r.parent, attrs, req.SecurityDescriptor, req.Token, false)
	if err != nil {
		return nil, nil, err
	}
	hf := newHTTPFile(stat, url)
	fs.attach(r.parent, r.name.FileName, hf)

	stat.mu.Lock()
	h, dl := fs.openRemote(hf, req.Access, deleteOnClose)
	stat.mu.Unlock()

	logger.Debug("create: fetch-through %q -> %s", req.Path, url)
	return &CreateResult{Handle: h, Created: true}, dl, nil
}
