package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/offload"
)

// popDue removes up to ARGV[2] members of KEYS[1] scored at or below
// ARGV[1] and returns their bodies from KEYS[2].
var popDue = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local body = redis.call('HGET', KEYS[2], id)
  redis.call('HDEL', KEYS[2], id)
  if body then
    table.insert(out, body)
  end
end
return out
`)

// Queue is a delayed queue backed by a Redis sorted set.
type Queue struct {
	client      *goredis.Client
	scheduleKey string
	messagesKey string
	logger      *slog.Logger
}

var _ offload.Queue = (*Queue)(nil)

// NewQueue creates a queue under prefix.
func NewQueue(client *goredis.Client, prefix string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client:      client,
		scheduleKey: key(prefix, "queue"),
		messagesKey: key(prefix, "messages"),
		logger:      logger.With("component", "redis_queue"),
	}
}

// Enqueue implements offload.Queue.
func (q *Queue) Enqueue(ctx context.Context, msg offload.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, q.messagesKey, msg.ID, string(body))
		pipe.ZAdd(ctx, q.scheduleKey, &goredis.Z{
			Score:  float64(msg.DueAt.UnixMilli()),
			Member: msg.ID,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.logger.DebugContext(ctx, "message enqueued",
		"message_id", msg.ID,
		"task_id", msg.TaskID.String(),
		"due_at", msg.DueAt)
	return msg.ID, nil
}

// Cancel implements offload.Queue.
func (q *Queue) Cancel(ctx context.Context, messageID string) error {
	var removed *goredis.IntCmd
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		removed = pipe.ZRem(ctx, q.scheduleKey, messageID)
		pipe.HDel(ctx, q.messagesKey, messageID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel message: %w", err)
	}
	if removed.Val() == 0 {
		return offload.ErrMessageNotFound
	}
	return nil
}

// Dequeue implements offload.Queue.
func (q *Queue) Dequeue(ctx context.Context, now time.Time, max int) ([]offload.Message, error) {
	if max <= 0 {
		max = 1
	}

	bodies, err := popDue.Run(ctx, q.client,
		[]string{q.scheduleKey, q.messagesKey},
		strconv.FormatInt(now.UnixMilli(), 10), max,
	).StringSlice()
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("failed to dequeue messages: %w", err)
	}

	messages := make([]offload.Message, 0, len(bodies))
	for _, body := range bodies {
		var msg offload.Message
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			q.logger.WarnContext(ctx, "discarding undecodable message", "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Len reports how many messages are queued.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.scheduleKey).Result()
}
