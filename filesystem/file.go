package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/brettbedarf/fstree/internal/util"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ContentMode selects how a [File] reads and writes its payload.
type ContentMode int

const (
	// TextMode files hold text; lines are available and "\r\n" is read as "\n"
	TextMode ContentMode = iota
	// BinaryMode files hold raw bytes; line access is rejected
	BinaryMode
)

func (m ContentMode) String() string {
	switch m {
	case TextMode:
		return "text"
	case BinaryMode:
		return "binary"
	default:
		return fmt.Sprintf("ContentMode(%d)", int(m))
	}
}

// File is a single file in the tree. Content is loaded on first access and
// written back only by Flush.
type File struct {
	node

	contentMode ContentMode
	dataMu      sync.Mutex // Protects the fields below
	data        []byte
	loaded      bool
	dirty       bool
	directSync  bool
}

// FileOption configures a [File] at construction.
type FileOption func(*File)

// WithContentMode sets the file's content mode. Defaults to [TextMode].
func WithContentMode(mode ContentMode) FileOption {
	return func(f *File) { f.contentMode = mode }
}

// WithDirectSync makes Flush fsync the file after writing.
func WithDirectSync(enabled bool) FileOption {
	return func(f *File) { f.directSync = enabled }
}

// NewFile returns an unattached file node. It gets its name and location when
// stored into a [Directory].
func NewFile(opts ...FileOption) *File {
	f := &File{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *File) IsFile() bool { return true }
func (f *File) IsDir() bool  { return false }

func (f *File) file() *File { return f }

// ContentMode returns the fixed content mode of the file
func (f *File) ContentMode() ContentMode {
	return f.contentMode
}

// DirectSync reports whether flush forces writes to stable storage
func (f *File) DirectSync() bool {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	return f.directSync
}

func (f *File) SetDirectSync(enabled bool) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.directSync = enabled
}

// Dirty reports whether content was assigned since the node was created.
func (f *File) Dirty() bool {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	return f.dirty
}

// Bytes returns a copy of the file content, reading it from disk on first
// access. A binary file that does not exist on disk yields nil; a text file
// yields an empty slice.
func (f *File) Bytes() ([]byte, error) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	if err := f.loadLocked(); err != nil {
		return nil, err
	}
	return slices.Clone(f.data), nil
}

// SetBytes replaces the content with a copy of data and marks the file
// dirty. Disk is untouched until Flush.
func (f *File) SetBytes(data []byte) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.data = slices.Clone(data)
	f.loaded = true
	f.dirty = true
}

// Text returns the content as a string
func (f *File) Text() (string, error) {
	data, err := f.Bytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetText replaces the content with s and marks the file dirty
func (f *File) SetText(s string) {
	f.SetBytes([]byte(s))
}

// Lines splits the content on "\n". Empty content yields no lines.
func (f *File) Lines() ([]string, error) {
	if f.contentMode == BinaryMode {
		return nil, fmt.Errorf("%w: cannot read lines from binary file", ErrInvalidOperation)
	}
	text, err := f.Text()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// SetLines joins lines with "\n" and stores the result as content
func (f *File) SetLines(lines []string) error {
	if f.contentMode == BinaryMode {
		return fmt.Errorf("%w: cannot write lines to binary file", ErrInvalidOperation)
	}
	f.SetText(strings.Join(lines, "\n"))
	return nil
}

// loadLocked populates data from disk once. Caller must hold f.dataMu.
func (f *File) loadLocked() error {
	if f.loaded {
		return nil
	}
	if f.contentMode == TextMode {
		f.data = []byte{}
	}
	if f.shadowed() {
		// replacing an entry queued for deletion; start from the default
		f.loaded = true
		return nil
	}
	p := joinPath(f.FSPath())
	data, err := afero.ReadFile(f.backendFS(), p)
	switch {
	case err == nil:
		if f.contentMode == TextMode {
			data = normalizeNewlines(data)
		}
		f.data = data
	case errors.Is(err, fs.ErrNotExist):
		// nothing on disk yet; keep the empty default
	default:
		return ioFailure("read", p, err)
	}
	f.loaded = true
	return nil
}

// Flush writes the file if it was changed or does not exist yet, then applies
// the mode override if one is set.
func (f *File) Flush() error {
	unlock := lockTree(f)
	defer unlock()
	return f.flushLocked(uuid.NewString())
}

func (f *File) flushLocked(runID string) error {
	logger := util.GetLogger("File.Flush")
	fsys := f.backendFS()
	p := joinPath(f.FSPath())

	_, exists, err := statPath(fsys, p)
	if err != nil {
		return err
	}

	f.dataMu.Lock()
	write := f.dirty || !exists
	var data []byte
	if write {
		err = f.loadLocked()
		data = f.data
	}
	directSync := f.directSync
	f.dataMu.Unlock()
	if err != nil {
		return err
	}

	if write {
		if err := writeFile(fsys, p, data, directSync); err != nil {
			return err
		}
		logger.Trace().Str("run", runID).Str("path", p).Int("bytes", len(data)).Msg("Wrote file")
	}

	if mode, ok := f.modeOverride(); ok {
		if err := fsys.Chmod(p, mode); err != nil {
			return ioFailure("chmod", p, err)
		}
	}
	return nil
}

// writeFile truncates p and writes data in a single call
func writeFile(fsys afero.Fs, p string, data []byte, directSync bool) error {
	file, err := fsys.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return ioFailure("open", p, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close() // nolint:errcheck
		return ioFailure("write", p, err)
	}
	if directSync {
		if err := file.Sync(); err != nil {
			file.Close() // nolint:errcheck
			return ioFailure("sync", p, err)
		}
	}
	if err := file.Close(); err != nil {
		return ioFailure("close", p, err)
	}
	return nil
}

func normalizeNewlines(data []byte) []byte {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return []byte(strings.ReplaceAll(s, "\r", "\n"))
}

var _ Node = (*File)(nil)
