// Package hotwindow holds the last 100 messages of each conversation in a
// Redis sorted set, scored by sent_at, so recent history can be served
// without a database round trip. It offers a Redis implementation and an
// in-memory fallback behind one interface, as an ordered, trimmed set.
package hotwindow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chatmesh/internal/errors"
	"chatmesh/internal/models"
)

// MaxEntries is the hot window size invariant: never more than 100
// messages per conversation, oldest trimmed first.
const MaxEntries = 100

// Window is the append/range interface the Publisher, Persistence Worker,
// and Sync/History Reader depend on. RedisWindow is the production
// implementation; MemoryWindow is the fallback used when Redis is
// unreachable at startup.
type Window interface {
	Append(ctx context.Context, msg models.Message) error
	Range(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	Close() error
}

func key(conversationID uuid.UUID) string {
	return fmt.Sprintf("chat:%s:messages", conversationID)
}

// RedisWindow implements Window on top of a Redis sorted set per
// conversation, ZADD on append and ZREMRANGEBYRANK trimming to
// MaxEntries, ZRANGE for reads.
type RedisWindow struct {
	client *redis.Client
}

func NewRedisWindow(client *redis.Client) *RedisWindow {
	return &RedisWindow{client: client}
}

func (w *RedisWindow) Append(ctx context.Context, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidDataType)
	}

	k := key(msg.ConversationID)
	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: msg.SentAt, Member: data})
	// Keep only the newest MaxEntries members; ZREMRANGEBYRANK with a
	// negative stop trims everything below the top MaxEntries by score.
	pipe.ZRemRangeByRank(ctx, k, 0, -int64(MaxEntries)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCacheError)
	}
	return nil
}

func (w *RedisWindow) Range(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	raw, err := w.client.ZRange(ctx, key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCacheError)
	}

	messages := make([]models.Message, 0, len(raw))
	for _, member := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(member), &m); err != nil {
			return nil, errors.Wrap(err, errors.ErrCacheError)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (w *RedisWindow) Close() error {
	return w.client.Close()
}

// MemoryWindow is an in-process fallback, guarded by a mutex since the
// node is genuinely multithreaded (unlike the teacher's single-request
// MemoryCache, which assumed no concurrent access).
type MemoryWindow struct {
	mu    sync.RWMutex
	store map[uuid.UUID][]models.Message
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{store: make(map[uuid.UUID][]models.Message)}
}

func (w *MemoryWindow) Append(ctx context.Context, msg models.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := append(w.store[msg.ConversationID], msg)
	sort.Slice(entries, func(i, j int) bool { return entries[i].SentAt < entries[j].SentAt })
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}
	w.store[msg.ConversationID] = entries
	return nil
}

func (w *MemoryWindow) Range(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	entries := w.store[conversationID]
	out := make([]models.Message, len(entries))
	copy(out, entries)
	return out, nil
}

func (w *MemoryWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.store = make(map[uuid.UUID][]models.Message)
	return nil
}
