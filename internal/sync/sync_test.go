package sync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmesh/internal/errors"
	"chatmesh/internal/models"
)

// fakeWindow is an in-memory hotwindow.Window stub so Sync's merge logic
// can be exercised without a real Redis instance.
type fakeWindow struct {
	entries map[uuid.UUID][]models.Message
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{entries: make(map[uuid.UUID][]models.Message)}
}

func (f *fakeWindow) Append(ctx context.Context, msg models.Message) error {
	f.entries[msg.ConversationID] = append(f.entries[msg.ConversationID], msg)
	return nil
}

func (f *fakeWindow) Range(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return f.entries[conversationID], nil
}

func (f *fakeWindow) Close() error { return nil }

func TestGetPageRejectsPageBelowOne(t *testing.T) {
	reader := NewReader(nil, newFakeWindow())
	_, err := reader.GetPage(context.Background(), uuid.New(), 0, 20)
	require.Error(t, err)
	appErr, ok := errors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
}

func TestGetPageRejectsOversizedPage(t *testing.T) {
	reader := NewReader(nil, newFakeWindow())
	_, err := reader.GetPage(context.Background(), uuid.New(), 1, maxPageSize+1)
	require.Error(t, err)
}

func TestSyncOneReturnsHotWindowOnlyWhenItFillsThePage(t *testing.T) {
	window := newFakeWindow()
	conversationID := uuid.New()
	for i := 0; i < maxPageSize; i++ {
		window.entries[conversationID] = append(window.entries[conversationID], models.Message{
			ID:             uuid.New(),
			ConversationID: conversationID,
			SentAt:         float64(i + 1),
		})
	}

	reader := NewReader(nil, window)
	messages, err := reader.syncOne(context.Background(), conversationID, 0)
	require.NoError(t, err)
	require.Len(t, messages, maxPageSize)
	assert.Equal(t, float64(1), messages[0].SentAt)
	assert.Equal(t, float64(maxPageSize), messages[len(messages)-1].SentAt)
}

func TestSyncOneFiltersHotWindowEntriesAtOrBeforeSince(t *testing.T) {
	window := newFakeWindow()
	conversationID := uuid.New()
	window.entries[conversationID] = []models.Message{
		{ID: uuid.New(), ConversationID: conversationID, SentAt: 5},
		{ID: uuid.New(), ConversationID: conversationID, SentAt: 10},
	}

	// since=5 excludes the entry at exactly 5 (strictly-greater semantics);
	// remaining=99 forces a store query this test can't satisfy with a nil
	// db, so instead verify via the filtered hot-window slice directly by
	// capping the window at maxPageSize to skip the store path.
	for i := 0; i < maxPageSize-1; i++ {
		window.entries[conversationID] = append(window.entries[conversationID], models.Message{
			ID:             uuid.New(),
			ConversationID: conversationID,
			SentAt:         float64(100 + i),
		})
	}

	reader := NewReader(nil, window)
	messages, err := reader.syncOne(context.Background(), conversationID, 5)
	require.NoError(t, err)
	require.Len(t, messages, maxPageSize)
	for _, m := range messages {
		assert.Greater(t, m.SentAt, float64(5))
	}
}
