package hotwindow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmesh/internal/models"
)

func TestMemoryWindowAppendAndRangeOrdersBySentAt(t *testing.T) {
	w := NewMemoryWindow()
	ctx := context.Background()
	conversationID := uuid.New()

	require.NoError(t, w.Append(ctx, models.Message{ID: uuid.New(), ConversationID: conversationID, SentAt: 3}))
	require.NoError(t, w.Append(ctx, models.Message{ID: uuid.New(), ConversationID: conversationID, SentAt: 1}))
	require.NoError(t, w.Append(ctx, models.Message{ID: uuid.New(), ConversationID: conversationID, SentAt: 2}))

	entries, err := w.Range(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{entries[0].SentAt, entries[1].SentAt, entries[2].SentAt})
}

func TestMemoryWindowTrimsToMaxEntries(t *testing.T) {
	w := NewMemoryWindow()
	ctx := context.Background()
	conversationID := uuid.New()

	for i := 0; i < MaxEntries+20; i++ {
		require.NoError(t, w.Append(ctx, models.Message{
			ID:             uuid.New(),
			ConversationID: conversationID,
			SentAt:         float64(i),
		}))
	}

	entries, err := w.Range(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, entries, MaxEntries)
	// Oldest entries (sent_at 0..19) are the ones trimmed.
	assert.Equal(t, float64(20), entries[0].SentAt)
	assert.Equal(t, float64(MaxEntries+20-1), entries[len(entries)-1].SentAt)
}

func TestMemoryWindowRangeIsIsolatedPerConversation(t *testing.T) {
	w := NewMemoryWindow()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, w.Append(ctx, models.Message{ID: uuid.New(), ConversationID: a, SentAt: 1}))

	entries, err := w.Range(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryWindowCloseClearsStore(t *testing.T) {
	w := NewMemoryWindow()
	ctx := context.Background()
	conversationID := uuid.New()

	require.NoError(t, w.Append(ctx, models.Message{ID: uuid.New(), ConversationID: conversationID, SentAt: 1}))
	require.NoError(t, w.Close())

	entries, err := w.Range(ctx, conversationID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
