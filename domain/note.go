package domain

import "time"

// Note is a free form text record owned by a single identity.
type Note struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"userEmail"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewNote carries the user supplied fields of a note to create.
type NewNote struct {
	Title    string `validate:"required,max=200"`
	Content  string `validate:"required"`
	Category string `validate:"max=50"`
}
