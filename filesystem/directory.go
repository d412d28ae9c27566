package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"

	"github.com/brettbedarf/fstree/internal/util"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// AddHandler is notified with every node stored through [Directory.Set].
// Nodes materialized from disk by lookup do not trigger it.
type AddHandler func(Node)

// Directory maps one directory on disk. Children are looked up in memory
// first and materialized from disk on demand; deletions are recorded and
// applied on the next Flush.
type Directory struct {
	node

	childMu  sync.RWMutex // Protects children and deleted
	children *orderedmap.OrderedMap[string, Node]
	deleted  []string // names to remove from disk on flush; no duplicates

	// Configuration below is fixed at construction
	ignores         map[string]struct{}
	encoding        string
	factories       map[string]Factory // local suffix overrides
	registry        *Registry          // nil means inherit from parent or use the default
	defaultFactory  Factory
	childDirFactory Factory
	onAdd           AddHandler
	backup          bool
}

// DirOption configures a [Directory] at construction.
type DirOption func(*Directory)

// WithFS sets the filesystem backend of the tree rooted at this directory.
// Descendants without their own backend inherit it. Defaults to the OS.
func WithFS(fsys afero.Fs) DirOption {
	return func(d *Directory) { d.backend = fsys }
}

// WithEncoding sets the encoding applied to child names. See [DefaultEncoding].
func WithEncoding(enc string) DirOption {
	return func(d *Directory) { d.encoding = enc }
}

// WithIgnores hides the given names from iteration
func WithIgnores(names ...string) DirOption {
	return func(d *Directory) {
		for _, name := range names {
			d.ignores[name] = struct{}{}
		}
	}
}

// WithFactories sets suffix factories local to this directory. They take
// precedence over registry entries with an equally long suffix.
func WithFactories(factories map[string]Factory) DirOption {
	return func(d *Directory) {
		for suffix, factory := range factories {
			d.factories[suffix] = factory
		}
	}
}

// WithRegistry replaces the process-wide registry for this directory and
// every descendant that does not set its own.
func WithRegistry(r *Registry) DirOption {
	return func(d *Directory) { d.registry = r }
}

// WithDefaultFileFactory sets the factory used when no suffix matches
func WithDefaultFileFactory(factory Factory) DirOption {
	return func(d *Directory) { d.defaultFactory = factory }
}

// WithChildDirectoryFactory sets the factory used for subdirectories found on disk
func WithChildDirectoryFactory(factory Factory) DirOption {
	return func(d *Directory) { d.childDirFactory = factory }
}

// WithAddHandler sets the add notification for this directory and every
// descendant that does not set its own.
func WithAddHandler(handler AddHandler) DirOption {
	return func(d *Directory) { d.onAdd = handler }
}

// WithBackup is accepted for compatibility only. Backup files are no longer
// produced; enabling it logs a warning.
func WithBackup(enabled bool) DirOption {
	return func(d *Directory) { d.backup = enabled }
}

// NewDirectory returns a directory node named name. For a tree root the name
// is the directory's path on disk, e.g. "/tmp/out".
func NewDirectory(name string, opts ...DirOption) *Directory {
	d := &Directory{
		children:        orderedmap.New[string, Node](),
		ignores:         make(map[string]struct{}),
		encoding:        DefaultEncoding,
		factories:       make(map[string]Factory),
		defaultFactory:  FileFactory(),
		childDirFactory: DirectoryFactory(),
	}
	d.name = name
	for _, opt := range opts {
		opt(d)
	}
	if d.backup {
		logger := util.GetLogger("Directory")
		logger.Warn().Str("name", name).Msg("backup handling has been removed from Directory; option ignored")
	}
	return d
}

func (d *Directory) IsFile() bool { return false }
func (d *Directory) IsDir() bool  { return true }

func (d *Directory) directory() *Directory { return d }

// Encoding returns the encoding applied to child names
func (d *Directory) Encoding() string {
	return d.encoding
}

// Set stores child under name and fires the add notification. The child is
// adopted: its name and parent are updated. Assigning a name that is pending
// deletion replaces it: the next flush removes the old entry from disk before
// writing child.
//
// Set waits for flushes running on this tree and on child's tree. Two trees
// must not be set into each other concurrently.
func (d *Directory) Set(name string, child Node) error {
	name, err := encodeName(name, d.encoding)
	if err != nil {
		return err
	}
	if child == nil || !(child.IsFile() || child.IsDir()) {
		return fmt.Errorf("%w: unknown child node", ErrInvalidArgument)
	}
	unlock := lockTrees(d, child)
	d.store(name, child)
	unlock()
	d.notifyAdded(child)
	return nil
}

// Get returns the child called name, materializing it from disk if it is
// not in memory yet. name is decoded and gets the directory's encoding
// applied; names returned by [Directory.Keys] are already encoded and are
// resolved by [Directory.Nodes]. Returns [ErrNotFound] if the child is in
// neither place or only on disk and pending deletion.
func (d *Directory) Get(name string) (Node, error) {
	name, err := encodeName(name, d.encoding)
	if err != nil {
		return nil, err
	}
	if child, ok := d.lookup(name); ok {
		return child, nil
	}
	unlock := lockTree(d)
	defer unlock()
	return d.materializeLocked(name)
}

// Delete removes name from memory at once and schedules its removal from
// disk for the next flush. Names that exist only in memory are dropped
// without scheduling anything.
func (d *Directory) Delete(name string) error {
	name, err := encodeName(name, d.encoding)
	if err != nil {
		return err
	}
	p := joinPath(append(d.FSPath(), name))
	_, onDisk, err := statPath(d.backendFS(), p)
	if err != nil {
		return err
	}
	// stale entries under a replaced directory go with it
	onDisk = onDisk && !d.shadowed()

	d.childMu.Lock()
	defer d.childMu.Unlock()
	_, inMemory := d.children.Delete(name)
	if onDisk && !slices.Contains(d.deleted, name) {
		d.deleted = append(d.deleted, name)
	}
	if !inMemory && !onDisk {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return nil
}

// Keys returns the visible child names in their encoded form: in-memory
// children in insertion order followed by names only present on disk.
// Ignored names and disk entries pending deletion are left out. An
// unreadable directory counts as empty.
func (d *Directory) Keys() []string {
	listing := d.listDisk()

	d.childMu.RLock()
	defer d.childMu.RUnlock()
	keys := make([]string, 0, d.children.Len()+len(listing))
	seen := make(map[string]struct{}, cap(keys))
	add := func(name string, onDiskOnly bool) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		if _, ok := d.ignores[name]; ok {
			return
		}
		// a replacement in memory stays visible while the old entry is queued
		if onDiskOnly && slices.Contains(d.deleted, name) {
			return
		}
		keys = append(keys, name)
	}
	for pair := d.children.Oldest(); pair != nil; pair = pair.Next() {
		add(pair.Key, false)
	}
	for _, name := range listing {
		add(name, true)
	}
	return keys
}

// Len returns the number of visible children, see [Directory.Keys]
func (d *Directory) Len() int {
	return len(d.Keys())
}

// Nodes returns every visible child, materializing those only on disk
func (d *Directory) Nodes() ([]Node, error) {
	keys := d.Keys()
	unlock := lockTree(d)
	defer unlock()
	nodes := make([]Node, 0, len(keys))
	for _, name := range keys {
		child, err := d.getLocked(name)
		if errors.Is(err, ErrNotFound) {
			continue // removed from disk since listing
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, child)
	}
	return nodes, nil
}

// PendingDeletes returns the names scheduled for removal on the next flush
func (d *Directory) PendingDeletes() []string {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	return slices.Clone(d.deleted)
}

// Flush creates the directory, applies pending deletions and flushes every
// child, parents before children. It holds the subtree lock throughout. A
// failure stops the flush; steps already applied stay applied.
func (d *Directory) Flush() error {
	logger := util.GetLogger("Directory.Flush")
	unlock := lockTree(d)
	defer unlock()

	runID := uuid.NewString()
	logger.Debug().Str("run", runID).Str("path", joinPath(d.FSPath())).Msg("Flushing tree")
	if err := d.flushLocked(runID); err != nil {
		logger.Debug().Str("run", runID).Err(err).Msg("Flush failed")
		return err
	}
	return nil
}

func (d *Directory) flushLocked(runID string) error {
	fsys := d.backendFS()
	dirPath := joinPath(d.FSPath())

	if err := d.createLocked(fsys, dirPath, runID); err != nil {
		return err
	}
	if err := d.applyDeletesLocked(fsys, dirPath, runID); err != nil {
		return err
	}
	for _, name := range d.Keys() {
		child, err := d.getLocked(name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !child.IsFile() && !child.IsDir() {
			continue
		}
		if err := child.flushLocked(runID); err != nil {
			return err
		}
	}
	return nil
}

// createLocked makes sure dirPath is a directory and applies the mode override
func (d *Directory) createLocked(fsys afero.Fs, dirPath, runID string) error {
	logger := util.GetLogger("Directory.Flush")

	info, exists, err := statPath(fsys, dirPath)
	if err != nil {
		return err
	}
	if exists && !info.IsDir() {
		return fmt.Errorf("%w: attempted to create a directory where a file already exists: %s", ErrConflict, dirPath)
	}
	if err := fsys.Mkdir(dirPath, 0o777); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return ioFailure("mkdir", dirPath, err)
		}
	} else {
		logger.Trace().Str("run", runID).Str("path", dirPath).Msg("Created directory")
	}
	if mode, ok := d.modeOverride(); ok {
		if err := fsys.Chmod(dirPath, mode); err != nil {
			return ioFailure("chmod", dirPath, err)
		}
	}
	return nil
}

// applyDeletesLocked drains the pending deletions until none are left
func (d *Directory) applyDeletesLocked(fsys afero.Fs, dirPath, runID string) error {
	logger := util.GetLogger("Directory.Flush")
	for {
		d.childMu.Lock()
		if len(d.deleted) == 0 {
			d.childMu.Unlock()
			return nil
		}
		name := d.deleted[0]
		d.deleted = d.deleted[1:]
		d.childMu.Unlock()

		p := filepath.Join(dirPath, name)
		info, exists, err := statPath(fsys, p)
		if err != nil {
			return err
		}
		if !exists {
			continue // already gone
		}
		if info.IsDir() {
			err = fsys.RemoveAll(p)
		} else {
			err = fsys.Remove(p)
		}
		if err != nil {
			return ioFailure("remove", p, err)
		}
		logger.Trace().Str("run", runID).Str("path", p).Bool("dir", info.IsDir()).Msg("Removed")
	}
}

func (d *Directory) isPending(name string) bool {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	return slices.Contains(d.deleted, name)
}

func (d *Directory) lookup(name string) (Node, bool) {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	return d.children.Get(name)
}

// getLocked is [Directory.Get] for callers already holding the subtree lock.
// name must already be encoded.
func (d *Directory) getLocked(name string) (Node, error) {
	if child, ok := d.lookup(name); ok {
		return child, nil
	}
	return d.materializeLocked(name)
}

// materializeLocked creates the in-memory node for an on-disk entry.
// Caller must hold the subtree lock.
func (d *Directory) materializeLocked(name string) (Node, error) {
	// another caller may have materialized or set it while we waited for the lock
	if child, ok := d.lookup(name); ok {
		return child, nil
	}
	p := joinPath(append(d.FSPath(), name))

	if d.isPending(name) || d.shadowed() {
		return nil, fmt.Errorf("%w: %s is pending deletion", ErrNotFound, p)
	}

	info, exists, err := statPath(d.backendFS(), p)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	var child Node
	if info.IsDir() {
		child, err = d.childDirFactory()
		if err != nil {
			return nil, fmt.Errorf("create directory node for %s: %w", p, err)
		}
	} else {
		child = d.createFile(name)
	}
	if child == nil || !(child.IsFile() || child.IsDir()) {
		return nil, fmt.Errorf("%w: unknown child node for %s", ErrInvalidArgument, p)
	}
	d.store(name, child)
	return child, nil
}

// createFile instantiates the node for a file found on disk. Factory errors
// are logged and degrade to a plain [File].
func (d *Directory) createFile(name string) Node {
	logger := util.GetLogger("Directory")

	factory, suffix := resolveFactory(name, d.factories, d.globalFactories())
	if factory == nil {
		factory, suffix = d.defaultFactory, ""
	}
	child, err := factory()
	if err == nil && child != nil {
		return child
	}
	if err == nil {
		err = errors.New("factory returned no node")
	}
	logger.Error().Err(err).Str("name", name).Str("factory", suffix).
		Msg("File creation by factory failed; falling back to File")
	return NewFile()
}

// store adopts child under name without notifying. A pending deletion of
// name stays queued.
func (d *Directory) store(name string, child Node) {
	child.base().adopt(name, d)

	d.childMu.Lock()
	defer d.childMu.Unlock()
	d.children.Set(name, child)
}

func (d *Directory) notifyAdded(child Node) {
	for cur := d; cur != nil; cur = cur.Parent() {
		if cur.onAdd != nil {
			cur.onAdd(child)
			return
		}
	}
}

// globalFactories snapshots the nearest registry up the parent chain
func (d *Directory) globalFactories() map[string]Factory {
	for cur := d; cur != nil; cur = cur.Parent() {
		if cur.registry != nil {
			return cur.registry.Snapshot()
		}
	}
	return defaultRegistry.Snapshot()
}

func (d *Directory) listDisk() []string {
	if d.shadowed() {
		return nil
	}
	infos, err := afero.ReadDir(d.backendFS(), joinPath(d.FSPath()))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

var _ Node = (*Directory)(nil)
