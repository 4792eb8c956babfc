package storage

import (
	"context"
	"strconv"
	"sync"

	"taskweb/domain"
)

// Memory is a process local store, used for development and tests.
// Records are kept per owner in insertion order.
type Memory struct {
	mu    sync.RWMutex
	seq   int64
	tasks map[string][]domain.Task
	notes map[string][]domain.Note
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tasks: map[string][]domain.Task{}, notes: map[string][]domain.Note{}}
}

func (m *Memory) nextID() string {
	m.seq++
	return strconv.FormatInt(m.seq, 10)
}

func (m *Memory) ListTasks(_ context.Context, owner string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.tasks[owner]
	out := make([]domain.Task, 0, len(owned))
	for i := len(owned) - 1; i >= 0; i-- {
		out = append(out, owned[i])
	}
	return out, nil
}

func (m *Memory) GetTask(_ context.Context, owner, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks[owner] {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertTask(_ context.Context, t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID()
	m.tasks[t.UserEmail] = append(m.tasks[t.UserEmail], t)
	return t, nil
}

func (m *Memory) UpdateTask(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.tasks[t.UserEmail]
	for i := range owned {
		if owned[i].ID == t.ID {
			owned[i] = t
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Memory) DeleteTask(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.tasks[owner]
	for i := range owned {
		if owned[i].ID == id {
			m.tasks[owner] = append(owned[:i:i], owned[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Memory) ListNotes(_ context.Context, owner string) ([]domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.notes[owner]
	out := make([]domain.Note, 0, len(owned))
	for i := len(owned) - 1; i >= 0; i-- {
		out = append(out, owned[i])
	}
	return out, nil
}

func (m *Memory) InsertNote(_ context.Context, n domain.Note) (domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.nextID()
	m.notes[n.UserEmail] = append(m.notes[n.UserEmail], n)
	return n, nil
}

func (m *Memory) DeleteNote(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.notes[owner]
	for i := range owned {
		if owned[i].ID == id {
			m.notes[owner] = append(owned[:i:i], owned[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}
