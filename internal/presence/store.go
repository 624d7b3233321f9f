// Package presence implements the Presence Registry (C1): the durable
// record of which node each (user, device) pair is connected to, exposed
// both as a direct Go interface for in-process callers (the Publisher)
// and as a small Fiber HTTP service for out-of-process callers and tests.
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatmesh/internal/database"
	"chatmesh/internal/errors"
	"chatmesh/internal/models"
)

// Registry is the interface the Node Publisher depends on. Store is its
// sole production implementation; tests may substitute a fake.
type Registry interface {
	MarkOnline(ctx context.Context, userID, deviceID uuid.UUID, nodeID string) error
	MarkOffline(ctx context.Context, userID, deviceID uuid.UUID, nodeID string) error
	Heartbeat(ctx context.Context, userID, deviceID uuid.UUID, nodeID string) error
	GetUser(ctx context.Context, userID uuid.UUID) ([]models.PresenceRecord, error)
	// GetNodeMap resolves every online device of userIDs to its serving
	// node in one round trip. When sender and originDevice are both
	// non-nil, the single entry (sender, originDevice) is omitted — the
	// "don't echo back to the originating device" rule — without
	// excluding the sender's other devices (self-sync still reaches them).
	GetNodeMap(ctx context.Context, userIDs []uuid.UUID, sender, originDevice *uuid.UUID) (map[string][]models.DeviceRef, error)
}

// Store backs the registry with Postgres: one row per (user_id,
// device_id), upserted on every online/offline/heartbeat call so there is
// exactly one presence record per device at all times.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) MarkOnline(ctx context.Context, userID, deviceID uuid.UUID, nodeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence_records (user_id, device_id, node_id, status, last_online)
		VALUES ($1, $2, $3, 'online', NOW())
		ON CONFLICT (user_id, device_id) DO UPDATE
		SET node_id = EXCLUDED.node_id, status = 'online', last_online = NOW()
	`, userID, deviceID, nodeID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// MarkOffline upserts with status=offline; the record is retained (not
// deleted) so history can distinguish "unknown device" from "known
// device currently offline".
func (s *Store) MarkOffline(ctx context.Context, userID, deviceID uuid.UUID, nodeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence_records (user_id, device_id, node_id, status, last_online)
		VALUES ($1, $2, $3, 'offline', NOW())
		ON CONFLICT (user_id, device_id) DO UPDATE
		SET node_id = EXCLUDED.node_id, status = 'offline', last_online = NOW()
	`, userID, deviceID, nodeID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// Heartbeat is equivalent to MarkOnline per spec.
func (s *Store) Heartbeat(ctx context.Context, userID, deviceID uuid.UUID, nodeID string) error {
	return s.MarkOnline(ctx, userID, deviceID, nodeID)
}

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) ([]models.PresenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, device_id, node_id, status, last_online
		FROM presence_records
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	var records []models.PresenceRecord
	for rows.Next() {
		var r models.PresenceRecord
		if err := rows.Scan(&r.UserID, &r.DeviceID, &r.NodeID, &r.Status, &r.LastOnline); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return records, nil
}

// GetNodeMap resolves every online device of the given users to the node
// currently serving it, in a single round trip regardless of fan-out
// degree — the invariant the Publisher relies on to avoid one query per
// recipient.
func (s *Store) GetNodeMap(ctx context.Context, userIDs []uuid.UUID, sender, originDevice *uuid.UUID) (map[string][]models.DeviceRef, error) {
	if len(userIDs) == 0 {
		return map[string][]models.DeviceRef{}, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, user_id, device_id
		FROM presence_records
		WHERE user_id = ANY($1) AND status = 'online'
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	defer rows.Close()

	nodeMap := make(map[string][]models.DeviceRef)
	for rows.Next() {
		var nodeID string
		var ref models.DeviceRef
		if err := rows.Scan(&nodeID, &ref.UserID, &ref.DeviceID); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseError)
		}
		if sender != nil && originDevice != nil && ref.UserID == *sender && ref.DeviceID == *originDevice {
			continue
		}
		nodeMap[nodeID] = append(nodeMap[nodeID], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nodeMap, nil
}

// sweepStale marks every online record whose last_online predates
// cutoff as offline, returning how many rows were changed. Used by the
// StalenessSweeper.
func (s *Store) sweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE presence_records SET status = 'offline'
		WHERE status = 'online' AND last_online < $1
	`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseError)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return rows, nil
}
