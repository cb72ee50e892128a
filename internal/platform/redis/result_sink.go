package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/sink"
)

// takeResults returns and deletes each KEYS[i] whose generation_id field
// equals ARGV[1]. Entries for other generations are left in place.
var takeResults = goredis.NewScript(`
local out = {}
for i, k in ipairs(KEYS) do
  local gen = redis.call('HGET', k, 'generation_id')
  if gen == ARGV[1] then
    out[i] = redis.call('HGET', k, 'payload')
    redis.call('DEL', k)
  else
    out[i] = false
  end
end
return out
`)

// ResultSink stores task results in Redis.
type ResultSink struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ sink.ResultSink = (*ResultSink)(nil)

// NewResultSink creates a sink under prefix. Results expire after ttl; a
// non-positive ttl keeps them until taken.
func NewResultSink(client *goredis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *ResultSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultSink{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "redis_result_sink"),
	}
}

func (s *ResultSink) resultKey(taskID uuid.UUID) string {
	return key(s.prefix, "result", taskID.String())
}

// Put implements sink.ResultSink.
func (s *ResultSink) Put(ctx context.Context, r sink.Result) error {
	if err := r.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	k := s.resultKey(r.TaskID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, "generation_id", r.GenerationID.String(), "payload", string(payload))
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	s.logger.DebugContext(ctx, "stored task result",
		"task_id", r.TaskID.String(),
		"status", r.Status)
	return nil
}

// Take implements sink.ResultSink.
func (s *ResultSink) Take(ctx context.Context, generationID uuid.UUID, taskIDs []uuid.UUID) (map[uuid.UUID]sink.Result, error) {
	results := make(map[uuid.UUID]sink.Result)
	if len(taskIDs) == 0 {
		return results, nil
	}

	keys := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		keys[i] = s.resultKey(id)
	}

	values, err := takeResults.Run(ctx, s.client, keys, generationID.String()).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to take results: %w", err)
	}

	for _, v := range values {
		payload, ok := v.(string)
		if !ok {
			continue
		}
		var r sink.Result
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			s.logger.WarnContext(ctx, "discarding undecodable result", "error", err)
			continue
		}
		results[r.TaskID] = r
	}
	return results, nil
}
