package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/fstree/filesystem"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
entries:
  - path: docs/readme.txt
    type: file
    content: "hello\nworld"
    perms: 0o600
  - path: assets/logo.bin
    type: file
    content_base64: AAEC
  - path: cache
    type: dir
  - path: old.log
    type: delete
`

func TestUnmarshal_YAML(t *testing.T) {
	t.Parallel()

	entries, err := Unmarshal([]byte(sampleYAML), "yaml")

	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, []string{"docs", "readme.txt"}, entries[0].Path)
	assert.Equal(t, FileEntry, entries[0].Type)
	assert.Equal(t, "hello\nworld", string(entries[0].Content))
	require.NotNil(t, entries[0].Perms)
	assert.Equal(t, fs.FileMode(0o600), *entries[0].Perms)
	assert.False(t, entries[0].Binary)

	assert.Equal(t, []byte{0, 1, 2}, entries[1].Content)
	assert.True(t, entries[1].Binary, "base64 content implies binary")

	assert.Equal(t, DirEntry, entries[2].Type)
	assert.Nil(t, entries[2].Content)
	assert.Equal(t, DeleteEntry, entries[3].Type)

	for _, e := range entries {
		assert.NotEmpty(t, e.ID, "missing ids are generated")
	}
}

func TestUnmarshal_JSON(t *testing.T) {
	t.Parallel()

	data := []byte(`{"entries":[{"path":"/a/b.txt","type":"file","id":"first","lines":["x","y"]}]}`)

	entries, err := Unmarshal(data, "json")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "first", entries[0].ID)
	assert.Equal(t, []string{"a", "b.txt"}, entries[0].Path, "leading slash is dropped")
	assert.Equal(t, "x\ny", string(entries[0].Content))
}

func TestUnmarshal_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		format string
		errMsg string
	}{
		{"unknown_format", `entries: []`, "toml", "unknown manifest format"},
		{"bad_yaml", "entries: [", "yaml", "failed to unmarshal manifest"},
		{"unknown_type", `{"entries":[{"path":"a","type":"link"}]}`, "json", "unknown entry type"},
		{"empty_path", `{"entries":[{"path":"","type":"dir"}]}`, "json", "empty path"},
		{"root_path", `{"entries":[{"path":"/","type":"dir"}]}`, "json", "refers to the root"},
		{"dir_with_content", `{"entries":[{"path":"a","type":"dir","content":"x"}]}`, "json", "cannot carry content"},
		{"bad_base64", `{"entries":[{"path":"a","type":"file","content_base64":"!!"}]}`, "json", "decode content_base64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestUnmarshal_ParentSegmentsStayBelowRoot(t *testing.T) {
	t.Parallel()

	entries, err := Unmarshal([]byte(`{"entries":[{"path":"../../x/./y","type":"dir"}]}`), "json")

	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, entries[0].Path)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "tree.yml")
	require.NoError(t, os.WriteFile(p, []byte(sampleYAML), 0o600))

	entries, err := LoadFile(p)

	require.NoError(t, err)
	assert.Len(t, entries, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestApply_FlushRealizesTree(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out/old.log", []byte("stale"), 0o644))
	root := filesystem.NewDirectory("/out", filesystem.WithFS(fsys))

	entries, err := Unmarshal([]byte(sampleYAML), "yaml")
	require.NoError(t, err)

	require.NoError(t, Apply(root, entries, Defaults{}))

	// staged only
	_, err = fsys.Stat("/out/docs/readme.txt")
	assert.True(t, os.IsNotExist(err), "apply must not write")

	require.NoError(t, root.Flush())

	data, err := afero.ReadFile(fsys, "/out/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", string(data))
	info, err := fsys.Stat("/out/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	data, err = afero.ReadFile(fsys, "/out/assets/logo.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)

	info, err = fsys.Stat("/out/cache")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = fsys.Stat("/out/old.log")
	assert.True(t, os.IsNotExist(err))
}

func TestApply_Defaults(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	root := filesystem.NewDirectory("/out", filesystem.WithFS(fsys))
	entries := []Entry{
		{ID: "1", Path: []string{"a", "b", "c.txt"}, Type: FileEntry, Content: []byte("c")},
	}

	require.NoError(t, Apply(root, entries, Defaults{FilePerms: 0o640, DirPerms: 0o750, DirectSync: true}))

	a, err := root.Get("a")
	require.NoError(t, err)
	mode, ok := a.FSMode()
	require.True(t, ok)
	assert.Equal(t, fs.FileMode(0o750), mode)

	dir, ok := filesystem.AsDirectory(a)
	require.True(t, ok)
	b, err := dir.Get("b")
	require.NoError(t, err)
	bDir, _ := filesystem.AsDirectory(b)
	c, err := bDir.Get("c.txt")
	require.NoError(t, err)
	file, ok := filesystem.AsFile(c)
	require.True(t, ok)
	assert.True(t, file.DirectSync())
	mode, ok = file.FSMode()
	require.True(t, ok)
	assert.Equal(t, fs.FileMode(0o640), mode)
}

func TestApply_ExistingFileKeepsContentWithoutContent(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out/keep.txt", []byte("original"), 0o644))
	root := filesystem.NewDirectory("/out", filesystem.WithFS(fsys))

	perms := fs.FileMode(0o600)
	entries := []Entry{{ID: "1", Path: []string{"keep.txt"}, Type: FileEntry, Perms: &perms}}
	require.NoError(t, Apply(root, entries, Defaults{}))
	require.NoError(t, root.Flush())

	data, err := afero.ReadFile(fsys, "/out/keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	info, err := fsys.Stat("/out/keep.txt")
	require.NoError(t, err)
	assert.Equal(t, perms, info.Mode().Perm())
}

func TestApply_Conflicts(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out/file", []byte("x"), 0o644))
	require.NoError(t, fsys.MkdirAll("/out/dir", 0o755))
	root := filesystem.NewDirectory("/out", filesystem.WithFS(fsys))

	err := Apply(root, []Entry{{ID: "1", Path: []string{"file", "child.txt"}, Type: FileEntry}}, Defaults{})
	assert.ErrorIs(t, err, filesystem.ErrConflict)

	err = Apply(root, []Entry{{ID: "2", Path: []string{"dir"}, Type: FileEntry}}, Defaults{})
	assert.ErrorIs(t, err, filesystem.ErrConflict)
}

func TestApply_DeleteThenRecreate(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out/site/old.html", []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/out/site.txt", []byte("file"), 0o644))
	root := filesystem.NewDirectory("/out", filesystem.WithFS(fsys))

	entries := []Entry{
		{ID: "1", Path: []string{"site"}, Type: DeleteEntry},
		{ID: "2", Path: []string{"site", "index.html"}, Type: FileEntry, Content: []byte("new")},
		{ID: "3", Path: []string{"site.txt"}, Type: DeleteEntry},
		{ID: "4", Path: []string{"site.txt"}, Type: DirEntry},
	}
	require.NoError(t, Apply(root, entries, Defaults{}))
	require.NoError(t, root.Flush())

	_, err := fsys.Stat("/out/site/old.html")
	assert.True(t, os.IsNotExist(err), "recreated directory starts empty")
	data, err := afero.ReadFile(fsys, "/out/site/index.html")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	info, err := fsys.Stat("/out/site.txt")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestApply_DeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	root := filesystem.NewDirectory("/out", filesystem.WithFS(afero.NewMemMapFs()))

	err := Apply(root, []Entry{{ID: "1", Path: []string{"ghost"}, Type: DeleteEntry}}, Defaults{})

	require.NoError(t, err)
	assert.Empty(t, root.PendingDeletes())
}
