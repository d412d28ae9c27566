package filesystem

import (
	"cmp"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// Factory creates the node for a child discovered on disk. Returning an
// error makes the directory fall back to a plain [File].
//
// Factories run while the subtree lock is held and must not call back into
// the same tree.
type Factory func() (Node, error)

// FileFactory returns a [Factory] producing files with the given options
func FileFactory(opts ...FileOption) Factory {
	return func() (Node, error) {
		return NewFile(opts...), nil
	}
}

// DirectoryFactory returns a [Factory] producing directories with the given options
func DirectoryFactory(opts ...DirOption) Factory {
	return func() (Node, error) {
		return NewDirectory("", opts...), nil
	}
}

// Registry maps filename suffixes to factories. It is safe for concurrent use.
type Registry struct {
	factories *xsync.Map[string, Factory]
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: xsync.NewMap[string, Factory]()}
}

// defaultRegistry is consulted by every directory that was not given its own
// registry with [WithRegistry]
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds or replaces the factory for suffix in the process-wide registry.
// Registration should happen during program init; see [Registry.Register].
func Register(suffix string, factory Factory) {
	defaultRegistry.Register(suffix, factory)
}

// Register adds or replaces the factory for suffix
func (r *Registry) Register(suffix string, factory Factory) {
	r.factories.Store(suffix, factory)
}

// Unregister removes suffix; it is a no-op when suffix is unknown
func (r *Registry) Unregister(suffix string) {
	r.factories.Delete(suffix)
}

// Lookup returns the factory registered for exactly suffix
func (r *Registry) Lookup(suffix string) (Factory, bool) {
	return r.factories.Load(suffix)
}

// Len returns the number of registered suffixes
func (r *Registry) Len() int {
	return r.factories.Size()
}

// Snapshot copies the registry into a plain map
func (r *Registry) Snapshot() map[string]Factory {
	out := make(map[string]Factory, r.factories.Size())
	r.factories.Range(func(suffix string, factory Factory) bool {
		out[suffix] = factory
		return true
	})
	return out
}

// ResolveFactory picks the factory for name from the local and global
// mappings. The longest matching suffix wins regardless of origin; when both
// winners are equally long the local one is used. Returns nil when nothing
// matches.
func ResolveFactory(name string, local, global map[string]Factory) Factory {
	factory, _ := resolveFactory(name, local, global)
	return factory
}

// resolveFactory is [ResolveFactory] also returning the winning suffix
func resolveFactory(name string, local, global map[string]Factory) (Factory, string) {
	localSuffix, localOK := longestSuffix(name, local)
	globalSuffix, globalOK := longestSuffix(name, global)
	if localOK {
		if globalOK && len(globalSuffix) > len(localSuffix) {
			return global[globalSuffix], globalSuffix
		}
		return local[localSuffix], localSuffix
	}
	if globalOK {
		return global[globalSuffix], globalSuffix
	}
	return nil, ""
}

// longestSuffix returns the longest key of factories that name ends with.
// Equal lengths are ordered lexicographically so the result is stable.
func longestSuffix(name string, factories map[string]Factory) (string, bool) {
	if len(factories) == 0 {
		return "", false
	}
	suffixes := make([]string, 0, len(factories))
	for suffix := range factories {
		suffixes = append(suffixes, suffix)
	}
	slices.SortFunc(suffixes, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return suffix, true
		}
	}
	return "", false
}
