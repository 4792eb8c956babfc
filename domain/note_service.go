package domain

import (
	"context"
	"strings"
)

// ListNotes returns the principal's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, p Principal) ([]Note, error) {
	owner, err := s.owner(p)
	if err != nil {
		return nil, err
	}
	notes, err := s.st.ListNotes(ctx, owner)
	if err != nil {
		return nil, storeErr("list notes", err)
	}
	return notes, nil
}

// CreateNote validates in and stores a new note owned by the principal.
func (s *Service) CreateNote(ctx context.Context, p Principal, in NewNote) (Note, error) {
	owner, err := s.owner(p)
	if err != nil {
		return Note{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if strings.TrimSpace(in.Content) == "" {
		in.Content = ""
	}
	if err := s.check(in); err != nil {
		return Note{}, err
	}

	now := s.touch(zeroTime)
	note, err := s.st.InsertNote(ctx, Note{
		UserEmail: owner,
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Note{}, storeErr("create note", err)
	}
	return note, nil
}

// DeleteNote removes one of the principal's notes.
func (s *Service) DeleteNote(ctx context.Context, p Principal, id string) error {
	owner, err := s.owner(p)
	if err != nil {
		return err
	}
	return storeErr("delete note", s.st.DeleteNote(ctx, owner, id))
}
