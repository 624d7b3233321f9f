package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"chatmesh/internal/errors"
	"chatmesh/internal/models"
)

// sentAtToTime converts the wire/cache fractional-epoch-seconds
// representation of a message timestamp into the timestamptz the store
// column holds.
func sentAtToTime(sentAt float64) time.Time {
	seconds := int64(sentAt)
	nanos := int64((sentAt - float64(seconds)) * float64(time.Second))
	return time.Unix(seconds, nanos).UTC()
}

// timeToSentAt converts a timestamptz column value back into the
// fractional UTC epoch seconds carried on the wire and in the hot window.
func timeToSentAt(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// CreateMessage persists a message under the ID and sent_at the caller
// supplies; this call does not generate new IDs. The Persistence Worker
// passes a freshly generated ID on each consumption.
func (db *DB) CreateMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, conversation_id, sender_id, content, type, sent_at
	`

	var out models.Message
	var sentAt time.Time
	err := db.QueryRowContext(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, sentAtToTime(msg.SentAt),
	).Scan(&out.ID, &out.ConversationID, &out.SenderID, &out.Content, &out.Type, &sentAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	out.SentAt = timeToSentAt(sentAt)
	return &out, nil
}

// GetMessage retrieves a single message by ID.
func (db *DB) GetMessage(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, content, type, sent_at FROM messages WHERE id = $1`

	var out models.Message
	var sentAt time.Time
	err := db.QueryRowContext(ctx, query, messageID).Scan(
		&out.ID, &out.ConversationID, &out.SenderID, &out.Content, &out.Type, &sentAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrMessageNotFound, "message not found")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	out.SentAt = timeToSentAt(sentAt)
	return &out, nil
}

// GetMessagesPage retrieves a conversation's messages newest-first, capped
// at limit, for GET /conversations/:id/messages.
func (db *DB) GetMessagesPage(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, type, sent_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`
	return db.scanMessages(ctx, query, conversationID, limit)
}

// GetMessagesAfter retrieves every message in a conversation with
// sent_at strictly greater than pivot, used by the Sync/History Reader's
// no-overlap union algorithm once the hot window has been exhausted.
func (db *DB) GetMessagesAfter(ctx context.Context, conversationID uuid.UUID, pivot float64, limit int) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, type, sent_at
		FROM messages
		WHERE conversation_id = $1 AND sent_at > $2
		ORDER BY sent_at ASC
		LIMIT $3
	`
	return db.scanMessages(ctx, query, conversationID, sentAtToTime(pivot), limit)
}

func (db *DB) scanMessages(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var sentAt time.Time
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &sentAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		m.SentAt = timeToSentAt(sentAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return messages, nil
}

// GetMessageCount returns the total number of messages in a conversation.
func (db *DB) GetMessageCount(ctx context.Context, conversationID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`

	var count int
	err := db.QueryRowContext(ctx, query, conversationID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return count, nil
}
