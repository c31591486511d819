package vfs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/httpmemfs/internal/logger"
)

// DirTree describes a namespace known up front. A name ending in '/' is a
// folder; anything else is a file.
type DirTree struct {
	Name     string    `yaml:"name" json:"name"`
	Children []DirTree `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (t DirTree) IsFolder() bool {
	return strings.HasSuffix(t.Name, "/")
}

// LoadDirTree reads a tree from a YAML (or JSON) file. The top level may be
// a single node or a list of nodes; a list is wrapped in an unnamed root.
func LoadDirTree(path string) (DirTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DirTree{}, fmt.Errorf("read dir tree: %w", err)
	}

	var list []DirTree
	if err := yaml.Unmarshal(data, &list); err == nil {
		return DirTree{Name: "/", Children: list}, nil
	}

	var tree DirTree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return DirTree{}, fmt.Errorf("parse dir tree %s: %w", path, err)
	}
	return tree, nil
}

// Seed populates the root with tree's children as empty directories and
// empty local files. Nothing is fetched: seeded files shadow the origin.
// Names that already exist are kept: a folder is merged into an existing
// directory, anything else is skipped.
func (fs *Filesystem) Seed(tree DirTree) error {
	return fs.seedInto(fs.root, nil, tree.Children)
}

func (fs *Filesystem) seedInto(dir *Directory, prefix []string, nodes []DirTree) error {
	for _, node := range nodes {
		name := strings.Trim(node.Name, `/\`)
		if name == "" || strings.ContainsAny(name, `/\:`) || len(name) > MaxComponentLength {
			return fmt.Errorf("seed: invalid name %q", node.Name)
		}
		path := append(append([]string(nil), prefix...), name)

		dir.mu.Lock()
		existing := dir.child(name)
		var (
			sub *Directory
			err error
		)
		switch {
		case existing == nil && node.IsFolder():
			sub, err = fs.newChildDirectory(dir, name, 0, nil, nil)
		case existing == nil:
			err = fs.seedFile(dir, name)
		case node.IsFolder():
			if d, ok := existing.(*Directory); ok {
				sub = d
			} else {
				logger.Warn("seed: %q exists and is not a directory, skipping", strings.Join(path, "/"))
			}
		default:
			logger.Warn("seed: %q already exists, skipping", strings.Join(path, "/"))
		}
		dir.mu.Unlock()
		if err != nil {
			return fmt.Errorf("seed %q: %w", strings.Join(path, "/"), err)
		}

		if sub != nil {
			if err := fs.seedInto(sub, path, node.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedFile links an empty local file. Caller holds dir.mu for writing.
func (fs *Filesystem) seedFile(dir *Directory, name string) error {
	stat, err := fs.newChildStat(dir, 0, nil, nil, false)
	if err != nil {
		return err
	}
	fs.attach(dir, name, newFile(stat))
	return nil
}
