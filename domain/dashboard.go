package domain

import (
	"context"
	"time"
)

// RecentLimit is the number of tasks and notes shown on the dashboard.
const RecentLimit = 5

var zeroTime time.Time

// Dashboard aggregates the principal's records for the overview page.
type Dashboard struct {
	Stats       TaskStats
	RecentTasks []Task
	RecentNotes []Note
}

// Dashboard loads the principal's statistics and most recent records.
func (s *Service) Dashboard(ctx context.Context, p Principal) (Dashboard, error) {
	tasks, err := s.ListTasks(ctx, p)
	if err != nil {
		return Dashboard{}, err
	}
	notes, err := s.ListNotes(ctx, p)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Stats:       CountTasks(tasks),
		RecentTasks: latest(tasks, RecentLimit),
		RecentNotes: latest(notes, RecentLimit),
	}, nil
}

func latest[T any](records []T, n int) []T {
	if len(records) > n {
		return records[:n]
	}
	return records
}
