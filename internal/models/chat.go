package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationKind distinguishes the three conversation shapes. Direct
// conversations are exactly two members; group and channel conversations
// have no upper bound.
type ConversationKind string

const (
	ConversationDirect  ConversationKind = "direct"
	ConversationGroup   ConversationKind = "group"
	ConversationChannel ConversationKind = "channel"
)

// Conversation is a durable chat room. Direct conversations are unique per
// unordered pair of members; the database layer enforces this by looking
// the pair up before inserting, not through a unique key.
type Conversation struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	Kind      ConversationKind `json:"kind" db:"kind"`
	Name      *string          `json:"name,omitempty" db:"name"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Membership links a user to a conversation they belong to.
type Membership struct {
	ConversationID uuid.UUID `json:"conversation_id" db:"conversation_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Role           string    `json:"role" db:"role"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
}

// Message is a single chat message. SentAt is carried as fractional UTC
// epoch seconds rather than time.Time so that hot-window sorted-set scores
// and wire comparisons stay bit-exact across the cache/store boundary;
// conversion to time.Time happens only in the database layer.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	SentAt         float64   `json:"sent_at"`
}

// DeviceRef names one connected device of a user, the unit a NodeMessage
// fans out to.
type DeviceRef struct {
	UserID   uuid.UUID `json:"user_id"`
	DeviceID uuid.UUID `json:"device_id"`
}

// NodeMessage is the envelope a Publisher puts on chat-direct-exchange and
// a Consumer reads off its node queue.
type NodeMessage struct {
	EventType     string      `json:"event_type"`
	Payload       Message     `json:"payload"`
	TargetDevices []DeviceRef `json:"target_devices"`
}

// PresenceStatus is either online or offline; there is no third state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRecord is the registry's sole record per (user_id, device_id),
// upserted on every online/offline/heartbeat call.
type PresenceRecord struct {
	UserID     uuid.UUID      `json:"user_id" db:"user_id"`
	DeviceID   uuid.UUID      `json:"device_id" db:"device_id"`
	NodeID     string         `json:"node_id" db:"node_id"`
	Status     PresenceStatus `json:"status" db:"status"`
	LastOnline time.Time      `json:"last_online" db:"last_online"`
}

// PushEvent is the opaque payload handed to a push.Notifier for a
// recipient user with no device in any node map. The Publisher emits one
// per user and leaves DeviceID as the zero UUID.
type PushEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	DeviceID  uuid.UUID `json:"device_id"`
	MessageID uuid.UUID `json:"message_id"`
	Preview   string    `json:"preview"`
}

// ConversationCreate is the request body for creating a conversation.
type ConversationCreate struct {
	Kind    ConversationKind `json:"kind" validate:"required"`
	Name    string           `json:"name,omitempty"`
	Members []uuid.UUID      `json:"members" validate:"required,min=1"`
}

// ConversationWithMessages bundles a conversation with a page of its
// messages.
type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}
