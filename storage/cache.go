package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskweb/domain"
)

// Cache wraps a record store with Redis-backed caching of the per-owner
// lists. Any write for an owner bumps the owner's cache version and evicts
// the cached lists; a list read from the store is only cached if the version
// did not move while it was being read.
type Cache struct {
	base  domain.Storage
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A zero TTL disables caching.
func NewCache(base domain.Storage, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	var tasks []domain.Task
	if c.load(ctx, tasksCacheKey(owner), &tasks) {
		return tasks, nil
	}
	ver, ok := c.version(ctx, owner)
	tasks, err := c.base.ListTasks(ctx, owner)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, owner, ver, tasksCacheKey(owner), tasks)
	}
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, owner, id string) (*domain.Task, error) {
	return c.base.GetTask(ctx, owner, id)
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	created, err := c.base.InsertTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, t.UserEmail)
	return created, nil
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.UserEmail)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, owner, id string) error {
	if err := c.base.DeleteTask(ctx, owner, id); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) ListNotes(ctx context.Context, owner string) ([]domain.Note, error) {
	var notes []domain.Note
	if c.load(ctx, notesCacheKey(owner), &notes) {
		return notes, nil
	}
	ver, ok := c.version(ctx, owner)
	notes, err := c.base.ListNotes(ctx, owner)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, owner, ver, notesCacheKey(owner), notes)
	}
	return notes, nil
}

func (c *Cache) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	created, err := c.base.InsertNote(ctx, n)
	if err != nil {
		return domain.Note{}, err
	}
	c.evict(ctx, n.UserEmail)
	return created, nil
}

func (c *Cache) DeleteNote(ctx context.Context, owner, id string) error {
	if err := c.base.DeleteNote(ctx, owner, id); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil || c.ttl == 0 {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

var errListChanged = errors.New("cached list changed while reading")

// version reports the owner's current cache version. ok is false when the
// version cannot be read and nothing should be cached.
func (c *Cache) version(ctx context.Context, owner string) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	ver, err := c.redis.Get(ctx, versionCacheKey(owner)).Result()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return ver, true
}

// store caches v under key unless a write for owner bumped the version past ver.
func (c *Cache) store(ctx context.Context, owner, ver, key string, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	verKey := versionCacheKey(owner)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != ver {
			return errListChanged
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, verKey)
}

func (c *Cache) evict(ctx context.Context, owner string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionCacheKey(owner))
		p.Del(ctx, tasksCacheKey(owner), notesCacheKey(owner))
		return nil
	})
}

func tasksCacheKey(owner string) string {
	return "tasks:" + owner
}

func notesCacheKey(owner string) string {
	return "notes:" + owner
}

func versionCacheKey(owner string) string {
	return "cachever:" + owner
}
