// Package fstree opens a directory on disk as a lazily materialized
// [filesystem.Directory] configured from a [config.Config].
package fstree

import (
	"io/fs"

	"github.com/brettbedarf/fstree/config"
	"github.com/brettbedarf/fstree/factories"
	"github.com/brettbedarf/fstree/filesystem"
	"github.com/brettbedarf/fstree/internal/util"
	"github.com/brettbedarf/fstree/manifest"
)

// Tree is a root directory plus the configuration used to build it
type Tree struct {
	Root *filesystem.Directory

	cfg     *config.Config
	dirOpts []filesystem.DirOption
}

// Open maps the directory at path. Nothing on disk is touched until Flush.
// opts are applied after the options derived from cfg; a nil cfg uses the
// defaults.
func Open(path string, cfg *config.Config, opts ...filesystem.DirOption) *Tree {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	logger := util.GetLogger("Tree")

	t := &Tree{cfg: cfg}
	// subdirectories found on disk are configured like the root
	childDir := func() (filesystem.Node, error) {
		return filesystem.NewDirectory("", t.dirOpts...), nil
	}
	t.dirOpts = []filesystem.DirOption{
		filesystem.WithEncoding(cfg.Encoding),
		filesystem.WithIgnores(cfg.Ignores...),
		filesystem.WithFactories(t.binaryFactories()),
		filesystem.WithDefaultFileFactory(filesystem.FileFactory(filesystem.WithDirectSync(cfg.DirectSync))),
		filesystem.WithChildDirectoryFactory(childDir),
	}
	t.dirOpts = append(t.dirOpts, opts...)

	t.Root = filesystem.NewDirectory(path, t.dirOpts...)
	logger.Debug().Str("path", path).Str("encoding", cfg.Encoding).Int("ignores", len(cfg.Ignores)).
		Msg("Opened tree")
	return t
}

// Apply stages manifest entries on the root using the configured defaults
func (t *Tree) Apply(entries []manifest.Entry) error {
	return manifest.Apply(t.Root, entries, manifest.Defaults{
		FilePerms:  fs.FileMode(t.cfg.FilePerms).Perm(),
		DirPerms:   fs.FileMode(t.cfg.DirPerms).Perm(),
		DirectSync: t.cfg.DirectSync,
		DirOptions: t.dirOpts,
	})
}

// Flush writes the whole tree to disk
func (t *Tree) Flush() error {
	return t.Root.Flush()
}

func (t *Tree) binaryFactories() map[string]filesystem.Factory {
	suffixes := t.cfg.BinarySuffixes
	if suffixes == nil {
		suffixes = factories.BinarySuffixes
	}
	out := make(map[string]filesystem.Factory, len(suffixes))
	for _, suffix := range suffixes {
		out[suffix] = filesystem.FileFactory(
			filesystem.WithContentMode(filesystem.BinaryMode),
			filesystem.WithDirectSync(t.cfg.DirectSync),
		)
	}
	return out
}
