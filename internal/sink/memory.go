package sink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// MemorySink is a ResultSink backed by an expiring in-process cache.
type MemorySink struct {
	// mu makes Take's read-then-delete atomic
	mu    sync.Mutex
	cache *cache.Cache
}

var _ ResultSink = (*MemorySink)(nil)

// NewMemorySink creates a sink whose results expire after ttl.
// A non-positive ttl keeps results until they are taken.
func NewMemorySink(ttl time.Duration) *MemorySink {
	expiration := ttl
	cleanup := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}
	return &MemorySink{cache: cache.New(expiration, cleanup)}
}

// Put implements ResultSink.
func (s *MemorySink) Put(_ context.Context, r Result) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(r.TaskID.String(), r, cache.DefaultExpiration)
	return nil
}

// Take implements ResultSink.
func (s *MemorySink) Take(_ context.Context, generationID uuid.UUID, taskIDs []uuid.UUID) (map[uuid.UUID]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[uuid.UUID]Result)
	for _, id := range taskIDs {
		key := id.String()
		v, ok := s.cache.Get(key)
		if !ok {
			continue
		}
		r, ok := v.(Result)
		if !ok || r.GenerationID != generationID {
			continue
		}
		results[id] = r
		s.cache.Delete(key)
	}
	return results, nil
}

// Len reports how many results are stored.
func (s *MemorySink) Len() int {
	return s.cache.ItemCount()
}
