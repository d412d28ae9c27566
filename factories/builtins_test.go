package factories

import (
	"sync"
	"testing"

	"github.com/brettbedarf/fstree/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBuiltins_All(t *testing.T) {
	t.Parallel()

	r := filesystem.NewRegistry()
	RegisterBuiltins(r)

	assert.Equal(t, len(BinarySuffixes)+len(SyncedSuffixes), r.Len())
	factory, ok := r.Lookup(".png")
	require.True(t, ok)
	node, err := factory()
	require.NoError(t, err)
	file, ok := node.(*filesystem.File)
	require.True(t, ok)
	assert.Equal(t, filesystem.BinaryMode, file.ContentMode())
}

func TestRegisterBuiltins_Selected(t *testing.T) {
	t.Parallel()

	r := filesystem.NewRegistry()
	RegisterBuiltins(r, SyncedFactoryType)

	assert.Equal(t, len(SyncedSuffixes), r.Len())
	_, ok := r.Lookup(".png")
	assert.False(t, ok, "binary factories must not be registered")

	factory, ok := r.Lookup(".lock")
	require.True(t, ok)
	node, err := factory()
	require.NoError(t, err)
	file := node.(*filesystem.File)
	assert.True(t, file.DirectSync())
	assert.Equal(t, filesystem.TextMode, file.ContentMode())
}

func TestRegisterBuiltins_UnknownTypeIgnored(t *testing.T) {
	t.Parallel()

	r := filesystem.NewRegistry()
	RegisterBuiltins(r, "nope")

	assert.Equal(t, 0, r.Len())
}

func TestBinary_FreshNodePerCall(t *testing.T) {
	t.Parallel()

	factory := Binary(".bin")[".bin"]
	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)

	assert.NotSame(t, a, b, "each call must build a new node")
}

func TestRegisterBuiltins_Concurrent(t *testing.T) {
	t.Parallel()
	var wg sync.WaitGroup
	r := filesystem.NewRegistry()

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RegisterBuiltins(r)
		}()
	}
	wg.Wait()

	assert.Equal(t, len(BinarySuffixes)+len(SyncedSuffixes), r.Len())
}
