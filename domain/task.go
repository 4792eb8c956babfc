package domain

import (
	"strings"
	"time"
)

// Priority ranks a task. The zero value is not a valid priority; use ParsePriority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the accepted priorities in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority maps user input to a Priority. Unknown or empty input falls
// back to PriorityMedium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// Label returns the capitalised form used in views.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	default:
		return "Medium"
	}
}

// DateLayout is the wire and storage format of Task.DueDate.
const DateLayout = "2006-01-02"

// Task is a unit of work owned by a single identity.
type Task struct {
	ID          string     `json:"id"`
	UserEmail   string     `json:"userEmail"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask carries the user supplied fields of a task to create.
type NewTask struct {
	Title       string `validate:"required,max=200"`
	Description string
	Priority    Priority
	DueDate     *time.Time
}

// TaskStats summarises the owned tasks.
type TaskStats struct {
	Total     int
	Completed int
	Pending   int
}

// CountTasks computes the task statistics shown on the dashboard.
func CountTasks(tasks []Task) TaskStats {
	stats := TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats
}
