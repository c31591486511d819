package vfs

import (
	"strings"

	"github.com/marmos91/httpmemfs/internal/logger"
)

// resolved is the outcome of splitting a path.
type resolved struct {
	// parent is the directory holding the leaf; nil when the path is the
	// root itself.
	parent *Directory

	// name is the parsed leaf.
	name FullName

	// components are the path components including the leaf (with any
	// stream suffix stripped).
	components []string
}

// relative returns the leaf path relative to the root, '/' separated.
func (r resolved) relative() string {
	return strings.Join(r.components, "/")
}

// resolve splits path into parent directory and leaf.
//
// Missing intermediate directories are created on the way down: the tree
// mirrors a remote namespace that is only discovered as callers walk it,
// so an absent component means "not seen yet", never "does not exist".
// A component naming a non-directory fails with ErrPathNotFound.
func (fs *Filesystem) resolve(path string) (resolved, error) {
	parts := splitComponents(path)
	if len(parts) == 0 {
		return resolved{}, nil
	}

	leaf := parts[len(parts)-1]
	if len(leaf) > MaxComponentLength {
		return resolved{}, ErrInvalidName
	}
	name, err := ParseName(leaf)
	if err != nil {
		return resolved{}, err
	}

	dir := fs.root
	for _, comp := range parts[:len(parts)-1] {
		if len(comp) > MaxComponentLength {
			return resolved{}, ErrInvalidName
		}
		next, err := fs.descend(dir, comp)
		if err != nil {
			return resolved{}, err
		}
		dir = next
	}

	parts[len(parts)-1] = name.FileName
	return resolved{parent: dir, name: name, components: parts}, nil
}

// descend returns the child directory name of dir, creating it if missing.
func (fs *Filesystem) descend(dir *Directory, name string) (*Directory, error) {
	dir.mu.RLock()
	child := dir.child(name)
	dir.mu.RUnlock()

	if child == nil {
		dir.mu.Lock()
		// Someone may have created it between the two locks.
		child = dir.child(name)
		if child == nil && dir.pending() {
			dir.mu.Unlock()
			return nil, ErrDeletePending
		}
		if child == nil {
			logger.Warn("resolve: %q not found under entry %d, creating it", name, dir.stat.id)
			created, err := fs.newChildDirectory(dir, name, 0, nil, nil)
			if err != nil {
				dir.mu.Unlock()
				return nil, err
			}
			child = created
		}
		dir.mu.Unlock()
	}

	sub, ok := child.(*Directory)
	if !ok {
		return nil, ErrPathNotFound
	}
	return sub, nil
}
