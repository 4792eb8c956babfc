package storage

import (
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"taskweb/domain"
)

type taskEntity struct {
	aztables.Entity
	UserEmail   string `json:"UserEmail"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Priority    string `json:"Priority"`
	Completed   bool   `json:"Completed"`
	DueDate     string `json:"DueDate"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

type noteEntity struct {
	aztables.Entity
	UserEmail string `json:"UserEmail"`
	Title     string `json:"Title"`
	Content   string `json:"Content"`
	Category  string `json:"Category"`
	CreatedAt string `json:"CreatedAt"`
	UpdatedAt string `json:"UpdatedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: partitionKey(t.UserEmail), RowKey: t.ID},
		UserEmail:   t.UserEmail,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Completed:   t.Completed,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.DueDate != nil {
		ent.DueDate = t.DueDate.Format(domain.DateLayout)
	}
	return sonic.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	created, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	updated, err := parseTime(ent.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		UserEmail:   ent.UserEmail,
		Title:       ent.Title,
		Description: ent.Description,
		Priority:    domain.ParsePriority(ent.Priority),
		Completed:   ent.Completed,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if ent.DueDate != "" {
		due, err := time.Parse(domain.DateLayout, ent.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueDate = &due
	}
	return t, nil
}

func encodeNote(n domain.Note) ([]byte, error) {
	return sonic.Marshal(noteEntity{
		Entity:    aztables.Entity{PartitionKey: partitionKey(n.UserEmail), RowKey: n.ID},
		UserEmail: n.UserEmail,
		Title:     n.Title,
		Content:   n.Content,
		Category:  n.Category,
		CreatedAt: formatTime(n.CreatedAt),
		UpdatedAt: formatTime(n.UpdatedAt),
	})
}

func decodeNote(data []byte) (domain.Note, error) {
	var ent noteEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Note{}, err
	}
	created, err := parseTime(ent.CreatedAt)
	if err != nil {
		return domain.Note{}, err
	}
	updated, err := parseTime(ent.UpdatedAt)
	if err != nil {
		return domain.Note{}, err
	}
	return domain.Note{
		ID:        ent.RowKey,
		UserEmail: ent.UserEmail,
		Title:     ent.Title,
		Content:   ent.Content,
		Category:  ent.Category,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
