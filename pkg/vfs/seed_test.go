package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
- name: docs/
  children:
    - name: readme.md
    - name: guides/
      children:
        - name: intro.md
- name: index.html
`

func TestLoadDirTreeAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	tree, err := LoadDirTree(path)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	assert.True(t, tree.Children[0].IsFolder())
	assert.False(t, tree.Children[1].IsFolder())

	o := newMemOrigin(map[string]string{"docs/guides/intro.md": "# intro"})
	fs := newTestFS(t, o)
	require.NoError(t, fs.Seed(tree))

	assert.True(t, lookup(fs, `\docs`).IsDir())
	assert.True(t, lookup(fs, `\docs\guides`).IsDir())

	intro, ok := lookup(fs, `\docs\guides\intro.md`).(*File)
	require.True(t, ok, "seeded files are local")

	// The seeded file shadows the origin: opening it reads the empty local
	// buffer and never downloads.
	h := create(t, fs, `\docs\guides\intro.md`, DispositionOpen, 0)
	assert.Equal(t, "", readAll(t, fs, h))
	fs.Close(h)
	assert.Zero(t, o.fetchCount("docs/guides/intro.md"))

	// Seeding twice merges folders and keeps existing files.
	require.NoError(t, fs.Seed(tree))
	assert.Same(t, intro, lookup(fs, `\docs\guides\intro.md`))
	assert.Equal(t, 2, fs.Root().Len())
}

func TestLoadDirTreeSingleNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "/", "children": [{"name": "a/"}]}`), 0o644))

	tree, err := LoadDirTree(path)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "a/", tree.Children[0].Name)
}

func TestSeedRejectsBadNames(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	err := fs.Seed(DirTree{Children: []DirTree{{Name: "a:b"}}})
	require.Error(t, err)
}
