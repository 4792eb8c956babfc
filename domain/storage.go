package domain

import "context"

// TaskStorage persists tasks. Every method is keyed by owner; implementations
// must apply the owner as a query filter and never return records of another owner.
type TaskStorage interface {
	ListTasks(ctx context.Context, owner string) ([]Task, error)
	// GetTask returns nil without error when no task matches owner and id.
	GetTask(ctx context.Context, owner, id string) (*Task, error)
	// InsertTask assigns the task id and returns the stored task.
	InsertTask(ctx context.Context, task Task) (Task, error)
	UpdateTask(ctx context.Context, task Task) error
	// DeleteTask returns ErrNotFound when no task matches owner and id.
	DeleteTask(ctx context.Context, owner, id string) error
}

// NoteStorage persists notes under the same scoping rules as TaskStorage.
type NoteStorage interface {
	ListNotes(ctx context.Context, owner string) ([]Note, error)
	InsertNote(ctx context.Context, note Note) (Note, error)
	DeleteNote(ctx context.Context, owner, id string) error
}

// Storage is the record store used by Service.
type Storage interface {
	TaskStorage
	NoteStorage
}
