package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAndInherited(t *testing.T) {
	p := NewBlobProvider(map[Information][]byte{
		OwnerInformation: []byte("owner"),
		DACLInformation:  []byte("dacl"),
	})

	root, err := p.NewDefault()
	require.NoError(t, err)

	child, err := p.NewInherited(root, nil, nil, false)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := child.Get(OwnerInformation|DACLInformation, buf)
	require.NoError(t, err)
	assert.Equal(t, "ownerdacl", string(buf[:n]))

	// Changing the child does not leak into the parent.
	require.NoError(t, child.Set(DACLInformation, []byte("mine")))
	n, err = root.Get(DACLInformation, buf)
	require.NoError(t, err)
	assert.Equal(t, "dacl", string(buf[:n]))
}

func TestCreatorDescriptorOverridesDACL(t *testing.T) {
	p := NewBlobProvider(map[Information][]byte{DACLInformation: []byte("inherited")})
	root, err := p.NewDefault()
	require.NoError(t, err)

	child, err := p.NewInherited(root, []byte("explicit"), nil, true)
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := child.Get(DACLInformation, buf)
	require.NoError(t, err)
	assert.Equal(t, "explicit", string(buf[:n]))
}

func TestGetBufferTooSmall(t *testing.T) {
	p := NewBlobProvider(map[Information][]byte{GroupInformation: []byte("group-sid")})
	d, err := p.NewDefault()
	require.NoError(t, err)

	_, err = d.Get(GroupInformation, make([]byte, 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBufferTooSmall))

	var tooSmall *BufferTooSmallError
	require.ErrorAs(t, err, &tooSmall)
	assert.Equal(t, len("group-sid"), tooSmall.Needed)
}

func TestSetRequiresSelection(t *testing.T) {
	d, err := NewBlobProvider(nil).NewDefault()
	require.NoError(t, err)
	require.Error(t, d.Set(0, []byte("x")))
}
