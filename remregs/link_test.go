package remregs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-remregs/logger"
)

func TestNewLink(t *testing.T) {
	_, err := NewLink(nil, nil)
	require.Error(t, err)

	link, err := NewLink(&fakePlatform{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Unsynced, link.State())
	assert.False(t, link.IsSynced())
	assert.Equal(t, DefaultBufferSize, link.Config().BufferSize())
	assert.NotNil(t, link.GetLogger())
	assert.Zero(t, link.Buffered())
}

func TestLink_StateChangeHandler(t *testing.T) {
	type transition struct{ prev, next LinkState }

	var got []transition
	var handlerLink *Link
	link, _, peer := newTestLink(t, WithStateChangeHandler(func(l *Link, prev LinkState, next LinkState) {
		handlerLink = l
		got = append(got, transition{prev, next})
	}))

	require.NoError(t, link.Sync())

	// NAK is not a state change.
	peer.reply(NAK)
	require.ErrorIs(t, link.Perform(OpRead8, 0, nil), ErrOperationRejected)

	// Silence is.
	require.ErrorIs(t, link.Perform(OpRead8, 0, nil), ErrLinkTimeout)

	assert.Same(t, link, handlerLink)
	assert.Equal(t, []transition{
		{Unsynced, Synced},
		{Synced, Unsynced},
	}, got)
}

func TestLink_LogsStateChange(t *testing.T) {
	mockLogger := logger.NewMockLogger().IgnoreDebug()
	mockLogger.On("Info", "remregs: link state changed",
		[]any{"prevState", Unsynced, "newState", Synced}).Once()

	link, _, _ := newTestLink(t, WithLogger(mockLogger))
	assert.Same(t, mockLogger, link.GetLogger())

	require.NoError(t, link.Sync())
	mockLogger.AssertExpectations(t)
}

func TestLink_LogsResponseTimeout(t *testing.T) {
	mockLogger := logger.NewMockLogger().IgnoreDebug()
	mockLogger.On("Info", mock.Anything, mock.Anything)
	mockLogger.On("Warn", "remregs: no response, link unsynced", mock.Anything).Once()

	link, _, _ := newSyncedTestLink(t, WithLogger(mockLogger))

	require.ErrorIs(t, link.SetReg8(1, 1), ErrLinkTimeout)
	mockLogger.AssertExpectations(t)
}

func TestLinkState_String(t *testing.T) {
	assert.Equal(t, "unsynced", Unsynced.String())
	assert.Equal(t, "synced", Synced.String())
	assert.Equal(t, "unknown", LinkState(7).String())
	assert.True(t, Synced.IsSynced())
	assert.False(t, Unsynced.IsSynced())
}

func TestLinkMetrics_Snapshot(t *testing.T) {
	link, _, peer := newSyncedTestLink(t)
	peer.reply(ACK)
	peer.reply(NAK)

	require.NoError(t, link.SetReg8(1, 1))
	require.Error(t, link.SetReg8(1, 1))

	s := link.GetMetrics().Snapshot()
	assert.Equal(t, uint64(2), s.OpCount)
	assert.Equal(t, uint64(1), s.AckCount)
	assert.Equal(t, uint64(1), s.RejectCount)
	assert.Equal(t, uint64(1), s.SyncCount)
	assert.Equal(t, uint64(SyncPreambleLen+1+6), s.BytesSent)
	// sync echo plus two acknowledgements
	assert.Equal(t, uint64(3), s.BytesRecv)
}
