package vfs

import "strings"

// MaxComponentLength is the longest accepted path component or stream
// name, in bytes.
const MaxComponentLength = 255

// dirIndexStreamName is the pseudo stream name that denotes a directory's
// own index.
const dirIndexStreamName = "$I30"

// StreamType is the type suffix of a stream reference.
type StreamType int

const (
	StreamData StreamType = iota
	StreamIndexAllocation
	StreamBitmap
)

func (t StreamType) String() string {
	switch t {
	case StreamIndexAllocation:
		return "$INDEX_ALLOCATION"
	case StreamBitmap:
		return "$BITMAP"
	default:
		return "$DATA"
	}
}

func parseStreamType(s string) (StreamType, bool) {
	switch {
	case strings.EqualFold(s, "$DATA"):
		return StreamData, true
	case strings.EqualFold(s, "$INDEX_ALLOCATION"):
		return StreamIndexAllocation, true
	case strings.EqualFold(s, "$BITMAP"):
		return StreamBitmap, true
	}
	return 0, false
}

// StreamInfo is the ":name:type" part of a leaf.
type StreamInfo struct {
	Name string
	Type StreamType
}

// CheckDefault reports whether the reference denotes the entry's implicit
// default content rather than a named stream.
//
// For directories an empty name (or $I30) must be typed $INDEX_ALLOCATION;
// a named $DATA stream on a directory is a real stream. For files only
// $DATA is accepted and the empty name is the default.
func (si StreamInfo) CheckDefault(isDir bool) (bool, error) {
	if isDir {
		if si.Name == "" || strings.EqualFold(si.Name, dirIndexStreamName) {
			if si.Type == StreamIndexAllocation {
				return true, nil
			}
			return false, ErrInvalidName
		}
		if si.Type == StreamData {
			return false, nil
		}
		return false, ErrInvalidName
	}
	if si.Type == StreamData {
		return si.Name == "", nil
	}
	return false, ErrInvalidName
}

// FullName is a parsed leaf component.
type FullName struct {
	FileName string
	Stream   *StreamInfo
}

// ParseName splits a leaf of the form "file[:stream[:type]]".
func ParseName(leaf string) (FullName, error) {
	file, rest, ok := strings.Cut(leaf, ":")
	if !ok {
		return FullName{FileName: leaf}, nil
	}

	name, typ, hasType := strings.Cut(rest, ":")
	si := &StreamInfo{Name: name, Type: StreamData}
	if hasType {
		t, ok := parseStreamType(typ)
		if !ok {
			return FullName{}, ErrInvalidName
		}
		si.Type = t
	}
	if len(si.Name) > MaxComponentLength {
		return FullName{}, ErrInvalidName
	}
	return FullName{FileName: file, Stream: si}, nil
}

// namedStream returns the stream reference when it denotes a named stream
// on an entry of the given kind, or nil when it denotes the default content.
func (n FullName) namedStream(isDir bool) (*StreamInfo, error) {
	if n.Stream == nil {
		return nil, nil
	}
	isDefault, err := n.Stream.CheckDefault(isDir)
	if err != nil {
		return nil, err
	}
	if isDefault {
		return nil, nil
	}
	return n.Stream, nil
}

func (n FullName) String() string {
	if n.Stream == nil {
		return n.FileName
	}
	return n.FileName + ":" + n.Stream.Name + ":" + n.Stream.Type.String()
}

// splitComponents breaks a backslash separated path into its non-empty
// components. Forward slashes are accepted as separators too.
func splitComponents(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '\\' || r == '/' })
}
