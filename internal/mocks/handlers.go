package mocks

import (
	"github.com/brettbedarf/fstree/filesystem"
	"github.com/stretchr/testify/mock"
)

// MockAddHandler records add notifications for testing across packages
type MockAddHandler struct {
	mock.Mock
}

func (m *MockAddHandler) OnAdd(n filesystem.Node) {
	m.Called(n)
}

// Handler returns the mock as a [filesystem.AddHandler]
func (m *MockAddHandler) Handler() filesystem.AddHandler {
	return m.OnAdd
}

// MockFactory implements a [filesystem.Factory] for testing across packages
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) New() (filesystem.Node, error) {
	args := m.Called()

	// Handle function return types so each call can build a fresh node
	if fn, ok := args.Get(0).(func() filesystem.Node); ok {
		return fn(), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(filesystem.Node), args.Error(1)
}

// Factory returns the mock as a [filesystem.Factory]
func (m *MockFactory) Factory() filesystem.Factory {
	return m.New
}
