package domain

import (
	"context"
	"strings"
)

// ListTasks returns the principal's tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, p Principal) ([]Task, error) {
	owner, err := s.owner(p)
	if err != nil {
		return nil, err
	}
	tasks, err := s.st.ListTasks(ctx, owner)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// CreateTask validates in and stores a new task owned by the principal.
func (s *Service) CreateTask(ctx context.Context, p Principal, in NewTask) (Task, error) {
	owner, err := s.owner(p)
	if err != nil {
		return Task{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return Task{}, err
	}
	priority := ParsePriority(string(in.Priority))

	now := s.touch(zeroTime)
	task, err := s.st.InsertTask(ctx, Task{
		UserEmail:   owner,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Task{}, storeErr("create task", err)
	}
	return task, nil
}

// ToggleTask flips the completion flag of one of the principal's tasks.
func (s *Service) ToggleTask(ctx context.Context, p Principal, id string) (Task, error) {
	owner, err := s.owner(p)
	if err != nil {
		return Task{}, err
	}
	task, err := s.st.GetTask(ctx, owner, id)
	if err != nil {
		return Task{}, storeErr("get task", err)
	}
	if task == nil {
		return Task{}, ErrNotFound
	}
	task.Completed = !task.Completed
	task.UpdatedAt = s.touch(task.UpdatedAt)
	if err := s.st.UpdateTask(ctx, *task); err != nil {
		return Task{}, storeErr("update task", err)
	}
	return *task, nil
}

// DeleteTask removes one of the principal's tasks.
func (s *Service) DeleteTask(ctx context.Context, p Principal, id string) error {
	owner, err := s.owner(p)
	if err != nil {
		return err
	}
	return storeErr("delete task", s.st.DeleteTask(ctx, owner, id))
}
