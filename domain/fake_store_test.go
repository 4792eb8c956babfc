package domain

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
)

type fakeStore struct {
	mu     sync.Mutex
	seq    int
	tasks  map[string]Task
	notes  map[string]Note
	reads  int
	failOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]Task{}, notes: map[string]Note{}}
}

var errBoom = errors.New("boom")

func (f *fakeStore) fail(op string) error {
	if f.failOn == op {
		return errBoom
	}
	return nil
}

func (f *fakeStore) ListTasks(_ context.Context, owner string) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	out := []Task{}
	for _, t := range f.tasks {
		if t.UserEmail == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetTask(_ context.Context, owner, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	t, ok := f.tasks[id]
	if !ok || t.UserEmail != owner {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) InsertTask(_ context.Context, t Task) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("insert"); err != nil {
		return Task{}, err
	}
	f.seq++
	t.ID = strconv.Itoa(f.seq)
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.tasks[t.ID]
	if !ok || cur.UserEmail != t.UserEmail {
		return ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTask(_ context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.UserEmail != owner {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) ListNotes(_ context.Context, owner string) ([]Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	out := []Note{}
	for _, n := range f.notes {
		if n.UserEmail == owner {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) InsertNote(_ context.Context, n Note) (Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n.ID = strconv.Itoa(f.seq)
	f.notes[n.ID] = n
	return n, nil
}

func (f *fakeStore) DeleteNote(_ context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok || n.UserEmail != owner {
		return ErrNotFound
	}
	delete(f.notes, id)
	return nil
}
