// Package filesystem maps a directory subtree onto an in-memory tree of
// [Directory] and [File] nodes. Children are materialized from disk on first
// lookup, content is read lazily, and nothing is written until Flush.
package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"
)

// defaultBackend is used by trees that never set one with [WithFS]
var defaultBackend afero.Fs = afero.NewOsFs()

// Node is the capability set shared by files and directories.
type Node interface {
	// Name returns the node's segment in the tree
	Name() string
	// Parent returns the owning directory or nil for a root/detached node
	Parent() *Directory
	// Path returns the logical tree path: parent path plus own name
	Path() []string
	// FSPath returns the override path if set, else the logical path.
	// See [ResolvedPath].
	FSPath() []string
	// SetFSPath relocates the node on disk independent of its tree position.
	// Calling it with no segments clears the override.
	SetFSPath(segments ...string)
	// FSMode returns the mode override when set, otherwise the permission
	// bits found on disk. ok is false when neither is available.
	FSMode() (mode fs.FileMode, ok bool)
	// SetFSMode sets a mode override applied with chmod on flush
	SetFSMode(mode fs.FileMode)
	// ClearFSMode removes the mode override
	ClearFSMode()
	// Flush realizes the node's pending state on disk
	Flush() error

	IsFile() bool
	IsDir() bool

	base() *node
	flushLocked(runID string) error
}

// node holds the state common to every [Node]. It is embedded by [File] and
// [Directory] and by anything embedding those.
type node struct {
	mu      sync.RWMutex // Protects the fields below
	name    string
	parent  *Directory   // back-pointer for path computation only
	fsPath  []string     // optional on-disk location override
	fsMode  *fs.FileMode // optional permission override
	backend afero.Fs     // set on roots; descendants inherit it

	// treeMu is the subtree lock. Only the root-most node's instance is used.
	treeMu sync.Mutex
}

func (n *node) base() *node { return n }

// Name returns the node's name
func (n *node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// Parent returns the parent directory; nil for roots
func (n *node) Parent() *Directory {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// Path returns the logical tree path from the root to this node
func (n *node) Path() []string {
	n.mu.RLock()
	name, parent := n.name, n.parent
	n.mu.RUnlock()
	if parent == nil {
		return []string{name}
	}
	return append(parent.Path(), name)
}

// FSPath returns the override path if one is set, else the logical tree
// path. An override on a directory does not move its children.
func (n *node) FSPath() []string {
	n.mu.RLock()
	override := n.fsPath
	n.mu.RUnlock()
	if override != nil {
		return slices.Clone(override)
	}
	return n.Path()
}

func (n *node) SetFSPath(segments ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(segments) == 0 {
		n.fsPath = nil
		return
	}
	n.fsPath = slices.Clone(segments)
}

func (n *node) FSMode() (fs.FileMode, bool) {
	if mode, ok := n.modeOverride(); ok {
		return mode, true
	}
	info, err := n.backendFS().Stat(joinPath(n.FSPath()))
	if err != nil {
		return 0, false
	}
	return info.Mode().Perm(), true
}

func (n *node) SetFSMode(mode fs.FileMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m := mode.Perm()
	n.fsMode = &m
}

func (n *node) ClearFSMode() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fsMode = nil
}

func (n *node) modeOverride() (fs.FileMode, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.fsMode == nil {
		return 0, false
	}
	return *n.fsMode, true
}

// adopt links the node under parent with the given name
func (n *node) adopt(name string, parent *Directory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.name = name
	n.parent = parent
}

// shadowed reports whether the disk entry at n's location belongs to a
// replaced node: n or an ancestor sits under a name its parent has queued
// for deletion. Such disk state is ignored until the deletion is flushed.
func (n *node) shadowed() bool {
	for cur := n; ; {
		cur.mu.RLock()
		name, parent, override := cur.name, cur.parent, cur.fsPath
		cur.mu.RUnlock()
		if parent == nil || override != nil {
			return false
		}
		if parent.isPending(name) {
			return true
		}
		cur = &parent.node
	}
}

// backendFS returns the nearest backend up the parent chain
func (n *node) backendFS() afero.Fs {
	for cur := n; cur != nil; {
		cur.mu.RLock()
		backend, parent := cur.backend, cur.parent
		cur.mu.RUnlock()
		if backend != nil {
			return backend
		}
		if parent == nil {
			break
		}
		cur = &parent.node
	}
	return defaultBackend
}

// root returns the root-most node of the tree containing n
func (n *node) root() *node {
	cur := n
	for {
		parent := cur.Parent()
		if parent == nil {
			return cur
		}
		cur = &parent.node
	}
}

// lockTree acquires the subtree lock of n's root and returns its release
// func. It is not re-entrant: code already holding the lock must call the
// *Locked variants instead.
func lockTree(n Node) func() {
	for {
		root := n.base().root()
		root.treeMu.Lock()
		// n may have been adopted into another tree while we waited
		if n.base().root() == root {
			return root.treeMu.Unlock
		}
		root.treeMu.Unlock()
	}
}

// lockTrees is [lockTree] for two trees. When child belongs to another tree
// that tree is locked as well, after the parent's, so adopting a detached
// subtree waits for a flush already running on it.
func lockTrees(parent, child Node) func() {
	for {
		parentRoot := parent.base().root()
		childRoot := child.base().root()
		parentRoot.treeMu.Lock()
		if childRoot != parentRoot {
			childRoot.treeMu.Lock()
		}
		if parent.base().root() == parentRoot && child.base().root() == childRoot {
			if childRoot == parentRoot {
				return parentRoot.treeMu.Unlock
			}
			return func() {
				childRoot.treeMu.Unlock()
				parentRoot.treeMu.Unlock()
			}
		}
		if childRoot != parentRoot {
			childRoot.treeMu.Unlock()
		}
		parentRoot.treeMu.Unlock()
	}
}

// ResolvedPath returns the absolute filesystem path of n as segments.
func ResolvedPath(n Node) []string {
	return n.FSPath()
}

func joinPath(segments []string) string {
	return filepath.Join(segments...)
}

// statPath reports whether p exists. Only errors other than "not exist"
// are returned.
func statPath(fsys afero.Fs, p string) (os.FileInfo, bool, error) {
	info, err := fsys.Stat(p)
	if err == nil {
		return info, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, ioFailure("stat", p, err)
}

// AsDirectory returns the [Directory] behind n, including one embedded in a
// custom node type.
func AsDirectory(n Node) (*Directory, bool) {
	if v, ok := n.(interface{ directory() *Directory }); ok {
		return v.directory(), true
	}
	return nil, false
}

// AsFile returns the [File] behind n, including one embedded in a custom
// node type.
func AsFile(n Node) (*File, bool) {
	if v, ok := n.(interface{ file() *File }); ok {
		return v.file(), true
	}
	return nil, false
}
