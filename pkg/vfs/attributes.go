package vfs

import "strings"

// Attributes is the stored attribute set of an entry.
type Attributes uint32

// Attribute bits, using the values the host driver expects.
const (
	AttrReadonly          Attributes = 0x00000001
	AttrHidden            Attributes = 0x00000002
	AttrSystem            Attributes = 0x00000004
	AttrDirectory         Attributes = 0x00000010
	AttrArchive           Attributes = 0x00000020
	AttrNormal            Attributes = 0x00000080
	AttrTemporary         Attributes = 0x00000100
	AttrOffline           Attributes = 0x00001000
	AttrNotContentIndexed Attributes = 0x00002000
)

// supportedAttributes lists the bits an entry may store. The directory bit
// is not among them; it is derived from the entry kind.
const supportedAttributes = AttrArchive | AttrNormal | AttrHidden | AttrNotContentIndexed |
	AttrOffline | AttrReadonly | AttrSystem | AttrTemporary

// NewAttributes masks raw down to the supported bits.
func NewAttributes(raw uint32) Attributes {
	return Attributes(raw) & supportedAttributes
}

// Has reports whether every bit of flag is set.
func (a Attributes) Has(flag Attributes) bool {
	return a&flag == flag
}

// Effective returns the attributes reported to callers: the directory bit
// is added for directories, and an otherwise empty set reads as normal.
func (a Attributes) Effective(isDir bool) Attributes {
	out := a
	if isDir {
		out |= AttrDirectory
	}
	if out == 0 {
		out = AttrNormal
	}
	return out
}

func (a Attributes) String() string {
	if a == 0 {
		return "0"
	}
	names := []struct {
		bit  Attributes
		name string
	}{
		{AttrReadonly, "READONLY"},
		{AttrHidden, "HIDDEN"},
		{AttrSystem, "SYSTEM"},
		{AttrDirectory, "DIRECTORY"},
		{AttrArchive, "ARCHIVE"},
		{AttrNormal, "NORMAL"},
		{AttrTemporary, "TEMPORARY"},
		{AttrOffline, "OFFLINE"},
		{AttrNotContentIndexed, "NOT_CONTENT_INDEXED"},
	}
	var parts []string
	for _, n := range names {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
