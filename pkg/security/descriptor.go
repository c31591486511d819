// Package security supplies the opaque security descriptors attached to
// every filesystem entry.
//
// The engine never interprets descriptor contents. It asks a Provider for a
// default descriptor (for the root), for one inherited from a parent (for
// every created entry) and forwards get/set requests to the Descriptor.
package security

import (
	"errors"
	"fmt"
	"sync"
)

// Information selects which parts of a descriptor a get or set applies to.
// Bits follow the usual owner/group/DACL/SACL layout.
type Information uint32

const (
	OwnerInformation Information = 1 << iota
	GroupInformation
	DACLInformation
	SACLInformation
)

// Token identifies the caller on whose behalf an entry is created. The
// default provider ignores it.
type Token any

// ErrBufferTooSmall is wrapped by BufferTooSmallError.
var ErrBufferTooSmall = errors.New("buffer too small for security descriptor")

// BufferTooSmallError reports the size a Get needs.
type BufferTooSmallError struct {
	Needed int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("%v: need %d bytes", ErrBufferTooSmall, e.Needed)
}

func (e *BufferTooSmallError) Unwrap() error { return ErrBufferTooSmall }

// Descriptor is an entry's security descriptor.
type Descriptor interface {
	// Get copies the requested parts into buf and returns the number of
	// bytes written. A short buf yields *BufferTooSmallError.
	Get(info Information, buf []byte) (int, error)

	// Set replaces the requested parts from the serialized form in buf.
	Set(info Information, buf []byte) error
}

// Provider creates descriptors.
type Provider interface {
	// NewDefault returns the descriptor for the root directory.
	NewDefault() (Descriptor, error)

	// NewInherited derives a descriptor for a new child of parent. creator
	// is the serialized descriptor supplied with the create request, may be
	// empty.
	NewInherited(parent Descriptor, creator []byte, token Token, isDir bool) (Descriptor, error)
}

// blobProvider stores descriptors as opaque byte slices, one per
// Information bit.
type blobProvider struct {
	defaults map[Information][]byte
}

// NewBlobProvider returns a Provider whose descriptors are kept as raw
// byte blobs. defaults seeds the root descriptor; it may be nil.
func NewBlobProvider(defaults map[Information][]byte) Provider {
	d := make(map[Information][]byte, len(defaults))
	for k, v := range defaults {
		d[k] = append([]byte(nil), v...)
	}
	return &blobProvider{defaults: d}
}

func (p *blobProvider) NewDefault() (Descriptor, error) {
	b := &Blob{parts: make(map[Information][]byte, len(p.defaults))}
	for k, v := range p.defaults {
		b.parts[k] = append([]byte(nil), v...)
	}
	return b, nil
}

func (p *blobProvider) NewInherited(parent Descriptor, creator []byte, _ Token, _ bool) (Descriptor, error) {
	b := &Blob{parts: make(map[Information][]byte)}

	if pb, ok := parent.(*Blob); ok && pb != nil {
		pb.mu.RLock()
		for k, v := range pb.parts {
			b.parts[k] = append([]byte(nil), v...)
		}
		pb.mu.RUnlock()
	} else if parent != nil {
		return nil, fmt.Errorf("unsupported parent descriptor type %T", parent)
	}

	if len(creator) > 0 {
		// An explicit descriptor from the creator wins over inheritance
		// for the parts it carries.
		b.parts[DACLInformation] = append([]byte(nil), creator...)
	}
	return b, nil
}

// Blob is the Descriptor produced by the blob provider.
type Blob struct {
	mu    sync.RWMutex
	parts map[Information][]byte
}

func (b *Blob) Get(info Information, buf []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	needed := 0
	for _, bit := range bits(info) {
		needed += len(b.parts[bit])
	}
	if needed > len(buf) {
		return 0, &BufferTooSmallError{Needed: needed}
	}

	n := 0
	for _, bit := range bits(info) {
		n += copy(buf[n:], b.parts[bit])
	}
	return n, nil
}

func (b *Blob) Set(info Information, buf []byte) error {
	set := bits(info)
	if len(set) == 0 {
		return errors.New("no security information selected")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// Every selected part receives the same serialized value; the blob
	// format has no internal structure to split it by.
	for _, bit := range set {
		b.parts[bit] = append([]byte(nil), buf...)
	}
	return nil
}

func bits(info Information) []Information {
	var out []Information
	for _, bit := range []Information{OwnerInformation, GroupInformation, DACLInformation, SACLInformation} {
		if info&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}
