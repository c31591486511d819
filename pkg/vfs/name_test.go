package vfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		leaf    string
		file    string
		stream  *StreamInfo
		wantErr bool
	}{
		{leaf: "plain.txt", file: "plain.txt"},
		{leaf: "f:s", file: "f", stream: &StreamInfo{Name: "s", Type: StreamData}},
		{leaf: "f:s:$DATA", file: "f", stream: &StreamInfo{Name: "s", Type: StreamData}},
		{leaf: "f::$data", file: "f", stream: &StreamInfo{Name: "", Type: StreamData}},
		{leaf: "d:$I30:$INDEX_ALLOCATION", file: "d", stream: &StreamInfo{Name: "$I30", Type: StreamIndexAllocation}},
		{leaf: "d::$BITMAP", file: "d", stream: &StreamInfo{Type: StreamBitmap}},
		{leaf: "f:s:$BOGUS", wantErr: true},
		{leaf: "f:" + strings.Repeat("x", MaxComponentLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.leaf, func(t *testing.T) {
			got, err := ParseName(tt.leaf)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.file, got.FileName)
			assert.Equal(t, tt.stream, got.Stream)
		})
	}
}

func TestCheckDefault(t *testing.T) {
	tests := []struct {
		name    string
		si      StreamInfo
		isDir   bool
		want    bool
		wantErr bool
	}{
		{"file default", StreamInfo{Type: StreamData}, false, true, false},
		{"file named", StreamInfo{Name: "s", Type: StreamData}, false, false, false},
		{"file index", StreamInfo{Type: StreamIndexAllocation}, false, false, true},
		{"dir default", StreamInfo{Type: StreamIndexAllocation}, true, true, false},
		{"dir $I30", StreamInfo{Name: "$i30", Type: StreamIndexAllocation}, true, true, false},
		{"dir default data", StreamInfo{Type: StreamData}, true, false, true},
		{"dir named data", StreamInfo{Name: "s", Type: StreamData}, true, false, false},
		{"dir named bitmap", StreamInfo{Name: "s", Type: StreamBitmap}, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.si.CheckDefault(tt.isDir)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitComponents(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitComponents(`\a\\b/c\`))
	assert.Empty(t, splitComponents(`\`))
}

func TestResolveRejectsLongComponents(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	long := strings.Repeat("n", MaxComponentLength+1)

	_, err := fs.Create(CreateRequest{Path: `\` + long + `\f`, Disposition: DispositionCreate})
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = fs.Create(CreateRequest{Path: `\` + long, Disposition: DispositionCreate})
	require.ErrorIs(t, err, ErrInvalidName)
	assert.Zero(t, fs.Root().Len())
}
