package session

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// Store persists sessions in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a session store. Every save extends the session by ttl.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// TTL returns the session lifetime.
func (st *Store) TTL() time.Duration {
	return st.ttl
}

// New returns a fresh, unsaved session.
func (st *Store) New() *Session {
	return newSession()
}

// Load returns the session stored under id. Unknown or unreadable ids yield a
// fresh session; only Redis failures are returned as errors, together with a
// fresh session the caller may keep using.
func (st *Store) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return newSession(), nil
	}
	data, err := st.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return newSession(), nil
		}
		return newSession(), err
	}
	var s Session
	if err := sonic.Unmarshal(data, &s); err != nil {
		_ = st.client.Del(ctx, keyPrefix+id).Err()
		return newSession(), nil
	}
	s.ID = id
	s.persisted = true
	return &s, nil
}

// Save writes s, deleting the key of a rotated id. Empty sessions are removed
// instead of being written.
func (st *Store) Save(ctx context.Context, s *Session) error {
	if s.stale != "" {
		if err := st.client.Del(ctx, keyPrefix+s.stale).Err(); err != nil {
			return err
		}
		s.stale = ""
	}
	if s.Empty() {
		if s.persisted {
			if err := st.client.Del(ctx, keyPrefix+s.ID).Err(); err != nil {
				return err
			}
			s.persisted = false
		}
		s.dirty = false
		return nil
	}
	data, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	if err := st.client.Set(ctx, keyPrefix+s.ID, data, st.ttl).Err(); err != nil {
		return err
	}
	s.persisted = true
	s.dirty = false
	return nil
}
