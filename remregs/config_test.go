package remregs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-remregs/logger"
)

func TestNewLinkConfig_Defaults(t *testing.T) {
	cfg, err := NewLinkConfig()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Millisecond, cfg.ReadPollInterval())
	assert.Equal(t, 200, cfg.ReadPollCeiling())
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout())
	assert.Equal(t, time.Millisecond, cfg.SyncPollInterval())
	assert.Equal(t, 250, cfg.SyncPollCeiling())
	assert.Equal(t, 250*time.Millisecond, cfg.SyncTimeout())
	assert.Equal(t, 32, cfg.BufferSize())
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewLinkConfig_Options(t *testing.T) {
	l := logger.NewMockLogger()

	cfg, err := NewLinkConfig(
		WithReadPoll(5*time.Millisecond, 40),
		WithSyncPoll(2*time.Millisecond, 100),
		WithBufferSize(256),
		WithLogger(l),
		WithStateChangeHandler(func(*Link, LinkState, LinkState) {}),
	)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, cfg.ReadTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.SyncTimeout())
	assert.Equal(t, 256, cfg.BufferSize())
	assert.Same(t, l, cfg.GetLogger())
	assert.NotNil(t, cfg.stateHandler)
}

func TestNewLinkConfig_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  LinkOption
	}{
		{"read interval too small", WithReadPoll(time.Microsecond, 10)},
		{"read interval too large", WithReadPoll(2*time.Second, 10)},
		{"read ceiling zero", WithReadPoll(time.Millisecond, 0)},
		{"sync ceiling too large", WithSyncPoll(time.Millisecond, 70000)},
		{"buffer not power of two", WithBufferSize(48)},
		{"buffer too small", WithBufferSize(1)},
		{"buffer too large", WithBufferSize(8192)},
		{"nil handler", WithStateChangeHandler(nil)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewLinkConfig(tt.opt)
			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
