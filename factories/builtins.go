// Package factories holds the builtin file factories. Nothing is registered
// implicitly; call [RegisterBuiltins] during program init.
package factories

import (
	"github.com/brettbedarf/fstree/filesystem"
)

type BuiltInFactoryType = string

const (
	// BinaryFactoryType reads and writes common binary formats as bytes
	BinaryFactoryType BuiltInFactoryType = "binary"
	// SyncedFactoryType fsyncs lock and state files on flush
	SyncedFactoryType BuiltInFactoryType = "synced"
)

// BinarySuffixes are the suffixes registered by [BinaryFactoryType]
var BinarySuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".webp",
	".gz", ".tgz", ".zip", ".tar", ".xz", ".zst",
	".pdf", ".so", ".dylib", ".dll", ".exe", ".bin",
	".woff", ".woff2", ".ttf", ".otf",
	".pyc", ".class", ".jar", ".wasm",
}

// SyncedSuffixes are the suffixes registered by [SyncedFactoryType]
var SyncedSuffixes = []string{".lock", ".pid"}

// Binary returns binary file factories keyed by suffix, suitable for
// [filesystem.WithFactories]
func Binary(suffixes ...string) map[string]filesystem.Factory {
	out := make(map[string]filesystem.Factory, len(suffixes))
	for _, suffix := range suffixes {
		out[suffix] = filesystem.FileFactory(filesystem.WithContentMode(filesystem.BinaryMode))
	}
	return out
}

// Synced returns text file factories that fsync on flush
func Synced(suffixes ...string) map[string]filesystem.Factory {
	out := make(map[string]filesystem.Factory, len(suffixes))
	for _, suffix := range suffixes {
		out[suffix] = filesystem.FileFactory(filesystem.WithDirectSync(true))
	}
	return out
}

// RegisterBuiltins registers all built-in factories into r by default
// or only the specific ones if types are provided. A nil r means the
// process-wide registry.
func RegisterBuiltins(r *filesystem.Registry, types ...BuiltInFactoryType) {
	if r == nil {
		r = filesystem.DefaultRegistry()
	}
	if len(types) == 0 {
		// Include all built-in factories here when adding implementations
		types = append(types, BinaryFactoryType, SyncedFactoryType)
	}

	for _, key := range types {
		switch key {
		case BinaryFactoryType:
			registerAll(r, Binary(BinarySuffixes...))
		case SyncedFactoryType:
			registerAll(r, Synced(SyncedSuffixes...))
		}
	}
}

func registerAll(r *filesystem.Registry, factories map[string]filesystem.Factory) {
	for suffix, factory := range factories {
		r.Register(suffix, factory)
	}
}
