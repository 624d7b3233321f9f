// Package sync implements the Sync/History Reader (C6): paginated
// history reads from the durable store, and the no-overlap union
// algorithm that merges the hot window with the store for catch-up sync.
package sync

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"chatmesh/internal/database"
	"chatmesh/internal/errors"
	"chatmesh/internal/hotwindow"
	"chatmesh/internal/models"
)

const maxPageSize = 100

// Reader backs GET /conversations/:id/messages and GET /sync.
type Reader struct {
	db     *database.DB
	window hotwindow.Window
}

func NewReader(db *database.DB, window hotwindow.Window) *Reader {
	return &Reader{db: db, window: window}
}

// GetPage returns the most recent messages in a conversation, newest
// first, offset/limit paginated, reading only the durable store.
func (r *Reader) GetPage(ctx context.Context, conversationID uuid.UUID, page, size int) ([]models.Message, error) {
	if page < 1 {
		return nil, errors.New(errors.ErrBadRequest, "page must be >= 1")
	}
	if size < 1 || size > maxPageSize {
		return nil, errors.New(errors.ErrBadRequest, "size must be between 1 and 100")
	}

	messages, err := r.db.GetMessagesPage(ctx, conversationID, size*page)
	if err != nil {
		return nil, err
	}

	offset := size * (page - 1)
	if offset >= len(messages) {
		return []models.Message{}, nil
	}
	end := offset + size
	if end > len(messages) {
		end = len(messages)
	}
	return messages[offset:end], nil
}

// ConversationSync is one conversation's catch-up result.
type ConversationSync struct {
	ConversationID uuid.UUID        `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

// Sync returns, for each of the given conversations, every message with
// sent_at strictly greater than sinceTS, using the no-overlap union
// algorithm: hot window first, pivot on its last entry, store queried
// strictly after that pivot, concatenated and sorted, capped at 100. When
// conversationIDs is empty, every conversation userID belongs to is synced.
func (r *Reader) Sync(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID, sinceTS float64) ([]ConversationSync, error) {
	if len(conversationIDs) == 0 {
		memberships, err := r.db.GetUserConversations(ctx, userID)
		if err != nil {
			return nil, err
		}
		conversationIDs = make([]uuid.UUID, len(memberships))
		for i, m := range memberships {
			conversationIDs[i] = m.ID
		}
	}

	results := make([]ConversationSync, 0, len(conversationIDs))
	for _, conversationID := range conversationIDs {
		messages, err := r.syncOne(ctx, conversationID, sinceTS)
		if err != nil {
			return nil, err
		}
		results = append(results, ConversationSync{ConversationID: conversationID, Messages: messages})
	}
	return results, nil
}

func (r *Reader) syncOne(ctx context.Context, conversationID uuid.UUID, sinceTS float64) ([]models.Message, error) {
	hot, err := r.window.Range(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var fresh []models.Message
	for _, m := range hot {
		if m.SentAt > sinceTS {
			fresh = append(fresh, m)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].SentAt < fresh[j].SentAt })

	pivot := sinceTS
	if len(fresh) > 0 {
		pivot = fresh[len(fresh)-1].SentAt
	}

	remaining := maxPageSize - len(fresh)
	if remaining <= 0 {
		return fresh[:maxPageSize], nil
	}

	stored, err := r.db.GetMessagesAfter(ctx, conversationID, pivot, remaining)
	if err != nil {
		return nil, err
	}

	combined := append(fresh, stored...)
	sort.Slice(combined, func(i, j int) bool { return combined[i].SentAt < combined[j].SentAt })
	if len(combined) > maxPageSize {
		combined = combined[:maxPageSize]
	}
	return combined, nil
}
