package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockLogger_With(t *testing.T) {
	m := NewMockLogger().IgnoreDebug()
	m.On("Info", "opened", []any{"port", 1}).Once()

	derived := m.With("link", "a")
	assert.Same(t, m, derived)

	derived.Debug("noise")
	derived.Info("opened", "port", 1)

	m.AssertExpectations(t)
}
