package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskweb/domain"
)

type stubBackend struct {
	listTasksFn  func(ctx context.Context, owner string) ([]domain.Task, error)
	listNotesFn  func(ctx context.Context, owner string) ([]domain.Note, error)
	insertTaskFn func(ctx context.Context, t domain.Task) (domain.Task, error)
	deleteTaskFn func(ctx context.Context, owner, id string) error
	updateTaskFn func(ctx context.Context, t domain.Task) error
}

func (s *stubBackend) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasks call")
	}
	return s.listTasksFn(ctx, owner)
}

func (s *stubBackend) GetTask(context.Context, string, string) (*domain.Task, error) {
	return nil, errors.New("unexpected GetTask call")
}

func (s *stubBackend) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if s.insertTaskFn == nil {
		return domain.Task{}, errors.New("unexpected InsertTask call")
	}
	return s.insertTaskFn(ctx, t)
}

func (s *stubBackend) UpdateTask(ctx context.Context, t domain.Task) error {
	if s.updateTaskFn == nil {
		return errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, t)
}

func (s *stubBackend) DeleteTask(ctx context.Context, owner, id string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, owner, id)
}

func (s *stubBackend) ListNotes(ctx context.Context, owner string) ([]domain.Note, error) {
	if s.listNotesFn == nil {
		return nil, errors.New("unexpected ListNotes call")
	}
	return s.listNotesFn(ctx, owner)
}

func (s *stubBackend) InsertNote(context.Context, domain.Note) (domain.Note, error) {
	return domain.Note{}, errors.New("unexpected InsertNote call")
}

func (s *stubBackend) DeleteNote(context.Context, string, string) error {
	return errors.New("unexpected DeleteNote call")
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	owner := "a@x.com"
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expected := []domain.Task{{ID: "t1", UserEmail: owner, Title: "Write code", Priority: domain.PriorityHigh, CreatedAt: created, UpdatedAt: created}}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, o string) ([]domain.Task, error) {
			calls++
			if o != owner {
				t.Fatalf("unexpected owner: %s", o)
			}
			return append([]domain.Task(nil), expected...), nil
		},
	}, client, time.Minute)

	tasks, err := cache.ListTasks(ctx, owner)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(tasksCacheKey(owner)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListTasks(ctx, owner)
	if err != nil {
		t.Fatalf("list cached tasks: %v", err)
	}
	if len(cached) != 1 || cached[0].Title != "Write code" || cached[0].Priority != domain.PriorityHigh || !cached[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheKeysAreScopedByOwner(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	cache := NewCache(&stubBackend{
		listNotesFn: func(ctx context.Context, owner string) ([]domain.Note, error) {
			return []domain.Note{{ID: owner, UserEmail: owner}}, nil
		},
	}, client, time.Minute)

	if _, err := cache.ListNotes(ctx, "a@x.com"); err != nil {
		t.Fatalf("list notes: %v", err)
	}
	notes, err := cache.ListNotes(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 1 || notes[0].UserEmail != "b@x.com" {
		t.Fatalf("expected b's notes, got %#v", notes)
	}
}

func TestCacheZeroTTLDisablesCaching(t *testing.T) {
	mr, client := newTestRedis(t)
	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context, string) ([]domain.Task, error) {
			calls++
			return []domain.Task{}, nil
		},
	}, client, 0)

	for i := 0; i < 2; i++ {
		if _, err := cache.ListTasks(context.Background(), "a@x.com"); err != nil {
			t.Fatalf("list tasks: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every call to hit the backend, got %d", calls)
	}
	if mr.Exists(tasksCacheKey("a@x.com")) {
		t.Fatalf("expected nothing cached")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	owner := "corrupt@x.com"
	if err := mr.Set(tasksCacheKey(owner), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context, string) ([]domain.Task, error) {
			calls++
			return []domain.Task{{ID: "fresh"}}, nil
		},
	}, client, time.Minute)

	tasks, err := cache.ListTasks(ctx, owner)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if calls != 1 || len(tasks) != 1 || tasks[0].ID != "fresh" {
		t.Fatalf("expected backend fallback, calls=%d tasks=%#v", calls, tasks)
	}
}

func TestCacheWritesEvictOwnerKeys(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	owner := "evict@x.com"
	other := "keep@x.com"
	for _, key := range []string{tasksCacheKey(owner), notesCacheKey(owner), tasksCacheKey(other)} {
		if err := client.Set(ctx, key, []byte("[]"), time.Hour).Err(); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	cache := NewCache(&stubBackend{
		insertTaskFn: func(ctx context.Context, t domain.Task) (domain.Task, error) {
			t.ID = "new"
			return t, nil
		},
	}, client, time.Minute)

	created, err := cache.InsertTask(ctx, domain.Task{UserEmail: owner, Title: "x"})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if created.ID != "new" {
		t.Fatalf("expected backend result, got %#v", created)
	}
	if mr.Exists(tasksCacheKey(owner)) || mr.Exists(notesCacheKey(owner)) {
		t.Fatalf("owner cache keys should be evicted")
	}
	if !mr.Exists(tasksCacheKey(other)) {
		t.Fatalf("other owner's cache should remain")
	}
}

func TestCacheWriteErrorPreservesCache(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	owner := "evict-error@x.com"
	if err := client.Set(ctx, tasksCacheKey(owner), []byte("[]"), time.Hour).Err(); err != nil {
		t.Fatalf("seed tasks cache: %v", err)
	}

	cache := NewCache(&stubBackend{
		deleteTaskFn: func(context.Context, string, string) error {
			return domain.ErrNotFound
		},
		updateTaskFn: func(context.Context, domain.Task) error {
			return errors.New("boom")
		},
	}, client, time.Minute)

	if err := cache.DeleteTask(ctx, owner, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := cache.UpdateTask(ctx, domain.Task{ID: "1", UserEmail: owner}); err == nil {
		t.Fatalf("expected update error")
	}
	if !mr.Exists(tasksCacheKey(owner)) {
		t.Fatalf("tasks cache should remain on error")
	}
}

func TestCacheSkipsListReadAcrossWrite(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	owner := "race@x.com"

	var cache *Cache
	var calls int
	backend := &stubBackend{
		insertTaskFn: func(ctx context.Context, t domain.Task) (domain.Task, error) {
			t.ID = "fresh"
			return t, nil
		},
	}
	backend.listTasksFn = func(ctx context.Context, o string) ([]domain.Task, error) {
		calls++
		if calls == 1 {
			// Another request writes after this list was read.
			if _, err := cache.InsertTask(ctx, domain.Task{UserEmail: o, Title: "new"}); err != nil {
				return nil, err
			}
			return []domain.Task{}, nil
		}
		return []domain.Task{{ID: "fresh", UserEmail: o}}, nil
	}
	cache = NewCache(backend, client, time.Minute)

	stale, err := cache.ListTasks(ctx, owner)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected the in-flight read result, got %#v", stale)
	}
	if mr.Exists(tasksCacheKey(owner)) {
		t.Fatalf("list read before the write must not be cached")
	}

	tasks, err := cache.ListTasks(ctx, owner)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if calls != 2 || len(tasks) != 1 || tasks[0].ID != "fresh" {
		t.Fatalf("expected fresh list from backend, calls=%d tasks=%#v", calls, tasks)
	}
	if !mr.Exists(tasksCacheKey(owner)) {
		t.Fatalf("expected fresh list to be cached")
	}
}
