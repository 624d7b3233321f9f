package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"chatmesh/internal/errors"
	"chatmesh/internal/models"
)

// CreateDirectConversation creates (or returns the existing) direct
// conversation between exactly two members. Direct conversations are
// unique per unordered member pair, enforced here by looking the pair up
// before inserting rather than relying on a composite unique index that
// cannot express "unordered".
func (db *DB) CreateDirectConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	if existing, err := db.findDirectConversation(ctx, a, b); err == nil {
		return existing, nil
	} else if appErr, ok := errors.IsAppError(err); !ok || appErr.Code != errors.ErrConversationNotFound {
		return nil, err
	}

	var conv *models.Conversation
	err := db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (kind, name)
			VALUES ('direct', NULL)
			RETURNING id, kind, name, created_at
		`)

		var c models.Conversation
		var name sql.NullString
		if err := row.Scan(&c.ID, &c.Kind, &name, &c.CreatedAt); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseError)
		}
		if name.Valid {
			c.Name = &name.String
		}

		for _, member := range []uuid.UUID{a, b} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO memberships (conversation_id, user_id, role, joined_at)
				VALUES ($1, $2, 'member', NOW())
			`, c.ID, member); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseError)
			}
		}

		conv = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (db *DB) findDirectConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT c.id, c.kind, c.name, c.created_at
		FROM conversations c
		WHERE c.kind = 'direct'
		  AND EXISTS (SELECT 1 FROM memberships m WHERE m.conversation_id = c.id AND m.user_id = $1)
		  AND EXISTS (SELECT 1 FROM memberships m WHERE m.conversation_id = c.id AND m.user_id = $2)
		  AND (SELECT COUNT(*) FROM memberships m WHERE m.conversation_id = c.id) = 2
	`

	var c models.Conversation
	var name sql.NullString
	err := db.QueryRowContext(ctx, query, a, b).Scan(&c.ID, &c.Kind, &name, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrConversationNotFound, "no direct conversation between these users")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	if name.Valid {
		c.Name = &name.String
	}
	return &c, nil
}

// CreateGroupConversation creates a group or channel conversation with the
// given members.
func (db *DB) CreateGroupConversation(ctx context.Context, kind models.ConversationKind, name string, members []uuid.UUID) (*models.Conversation, error) {
	var conv *models.Conversation
	err := db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (kind, name)
			VALUES ($1, $2)
			RETURNING id, kind, name, created_at
		`, kind, name)

		var c models.Conversation
		var n sql.NullString
		if err := row.Scan(&c.ID, &c.Kind, &n, &c.CreatedAt); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseError)
		}
		if n.Valid {
			c.Name = &n.String
		}

		for _, member := range members {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO memberships (conversation_id, user_id, role, joined_at)
				VALUES ($1, $2, 'member', NOW())
			`, c.ID, member); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseError)
			}
		}

		conv = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (db *DB) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	query := `SELECT id, kind, name, created_at FROM conversations WHERE id = $1`

	var c models.Conversation
	var name sql.NullString
	err := db.QueryRowContext(ctx, query, conversationID).Scan(&c.ID, &c.Kind, &name, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrConversationNotFound, "conversation not found")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	if name.Valid {
		c.Name = &name.String
	}
	return &c, nil
}

// GetMembers returns every member of a conversation.
func (db *DB) GetMembers(ctx context.Context, conversationID uuid.UUID) ([]models.Membership, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, user_id, role, joined_at
		FROM memberships
		WHERE conversation_id = $1
	`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return members, nil
}

// CheckMembership verifies a user belongs to a conversation.
func (db *DB) CheckMembership(ctx context.Context, conversationID, userID uuid.UUID) error {
	var id uuid.UUID
	err := db.QueryRowContext(ctx, `
		SELECT conversation_id FROM memberships WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.New(errors.ErrUnauthorized, "not a member of this conversation")
		}
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// GetUserConversations lists every conversation a user belongs to.
func (db *DB) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.kind, c.name, c.created_at
		FROM conversations c
		JOIN memberships m ON m.conversation_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var name sql.NullString
		if err := rows.Scan(&c.ID, &c.Kind, &name, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		if name.Valid {
			c.Name = &name.String
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return conversations, nil
}
