package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/fstree/filesystem"
	"github.com/brettbedarf/fstree/internal/util"
)

// Apply stages entries on root in order. Missing parent directories are
// created. Deleting something that does not exist is not an error.
func Apply(root *filesystem.Directory, entries []Entry, defaults Defaults) error {
	logger := util.GetLogger("Manifest.Apply")
	for _, entry := range entries {
		entryLogger := logger.With().Str("id", entry.ID).Str("path", strings.Join(entry.Path, "/")).Logger()
		entryLogger.Debug().Str("type", string(entry.Type)).Msg("Applying entry")

		parent, err := ensureDir(root, entry.Path[:len(entry.Path)-1], defaults)
		if err != nil {
			return fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		name := entry.Path[len(entry.Path)-1]

		switch entry.Type {
		case DirEntry:
			dir, err := ensureDir(parent, []string{name}, defaults)
			if err != nil {
				return fmt.Errorf("entry %s: %w", entry.ID, err)
			}
			if entry.Perms != nil {
				dir.SetFSMode(*entry.Perms)
			}
		case FileEntry:
			if err := applyFile(parent, name, entry, defaults); err != nil {
				return fmt.Errorf("entry %s: %w", entry.ID, err)
			}
		case DeleteEntry:
			err := parent.Delete(name)
			if errors.Is(err, filesystem.ErrNotFound) {
				entryLogger.Debug().Msg("Nothing to delete")
				continue
			}
			if err != nil {
				return fmt.Errorf("entry %s: %w", entry.ID, err)
			}
		default:
			return fmt.Errorf("entry %s: unknown entry type %q", entry.ID, entry.Type)
		}
	}
	return nil
}

// ensureDir walks segments below dir, creating directories that do not exist
func ensureDir(dir *filesystem.Directory, segments []string, defaults Defaults) (*filesystem.Directory, error) {
	cur := dir
	for _, seg := range segments {
		child, err := cur.Get(seg)
		switch {
		case errors.Is(err, filesystem.ErrNotFound):
			next := filesystem.NewDirectory("", defaults.DirOptions...)
			if defaults.DirPerms != 0 {
				next.SetFSMode(defaults.DirPerms)
			}
			if err := cur.Set(seg, next); err != nil {
				return nil, err
			}
			cur = next
		case err != nil:
			return nil, err
		default:
			next, ok := filesystem.AsDirectory(child)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not a directory", filesystem.ErrConflict, strings.Join(child.Path(), "/"))
			}
			cur = next
		}
	}
	return cur, nil
}

func applyFile(parent *filesystem.Directory, name string, entry Entry, defaults Defaults) error {
	var file *filesystem.File
	child, err := parent.Get(name)
	switch {
	case errors.Is(err, filesystem.ErrNotFound):
		mode := filesystem.TextMode
		if entry.Binary {
			mode = filesystem.BinaryMode
		}
		file = filesystem.NewFile(filesystem.WithContentMode(mode))
		if err := parent.Set(name, file); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		var ok bool
		if file, ok = filesystem.AsFile(child); !ok {
			return fmt.Errorf("%w: %s is a directory", filesystem.ErrConflict, strings.Join(child.Path(), "/"))
		}
	}

	if entry.Content != nil {
		file.SetBytes(entry.Content)
	}
	if entry.DirectSync || defaults.DirectSync {
		file.SetDirectSync(true)
	}
	switch {
	case entry.Perms != nil:
		file.SetFSMode(*entry.Perms)
	case defaults.FilePerms != 0:
		file.SetFSMode(defaults.FilePerms)
	}
	return nil
}
