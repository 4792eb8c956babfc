package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskweb/domain"
)

// Storage keeps tasks and notes in Azure Tables. The owner email is the
// PartitionKey, so every query is confined to a single owner's partition.
type Storage struct {
	taskTable *aztables.Client
	noteTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, notesTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: svc.NewClient(tasksTable), noteTable: svc.NewClient(notesTable)}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// ListTasks retrieves all tasks for the provided owner, newest first.
func (s *Storage) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	filter := partitionFilter(owner)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *Storage) GetTask(ctx context.Context, owner, id string) (*domain.Task, error) {
	if id == "" {
		return nil, nil
	}
	resp, err := s.taskTable.GetEntity(ctx, partitionKey(owner), id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	t, err := decodeTask(resp.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Storage) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.ID = nextRowKey()
	payload, err := encodeTask(t)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateTask replaces an existing task. The entity must already exist in the
// owner's partition.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Storage) DeleteTask(ctx context.Context, owner, id string) error {
	return deleteEntity(ctx, s.taskTable, owner, id)
}

// ListNotes retrieves all notes for the provided owner, newest first.
func (s *Storage) ListNotes(ctx context.Context, owner string) ([]domain.Note, error) {
	filter := partitionFilter(owner)
	pager := s.noteTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	notes := []domain.Note{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			n, err := decodeNote(e)
			if err != nil {
				return nil, err
			}
			notes = append(notes, n)
		}
	}
	return notes, nil
}

func (s *Storage) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	n.ID = nextRowKey()
	payload, err := encodeNote(n)
	if err != nil {
		return domain.Note{}, err
	}
	if _, err := s.noteTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

func (s *Storage) DeleteNote(ctx context.Context, owner, id string) error {
	return deleteEntity(ctx, s.noteTable, owner, id)
}

func deleteEntity(ctx context.Context, table *aztables.Client, owner, id string) error {
	if id == "" {
		return domain.ErrNotFound
	}
	_, err := table.DeleteEntity(ctx, partitionKey(owner), id, nil)
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}
