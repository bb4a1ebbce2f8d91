package models

import (
	"context"
	"errors"
)

// Purpose tells a prompt why a password is being requested.
type Purpose string

const (
	PurposeCreate  Purpose = "create"
	PurposeDecrypt Purpose = "decrypt"
	PurposeUpdate  Purpose = "update"
	PurposeDelete  Purpose = "delete"
)

// PasswordRequest describes the note a password is wanted for.
type PasswordRequest struct {
	ID      NoteID
	Title   string
	Purpose Purpose
}

// PasswordPrompt asks the caller for a password. Returning ErrCanceled or a
// context error cancels the operation. Prompts are only invoked for
// encrypted notes, and at most once per operation; retrying after a wrong
// password is the caller's decision.
type PasswordPrompt func(ctx context.Context, req PasswordRequest) (string, error)

func (s *Store) ask(ctx context.Context, id NoteID, purpose Purpose, prompt PasswordPrompt) (string, bool, error) {
	n, err := s.lookup(id)
	if err != nil {
		return "", false, err
	}
	enc, ok := n.(EncryptedNote)
	if !ok {
		return "", false, nil
	}

	pw, err := prompt(ctx, PasswordRequest{ID: id, Title: enc.Title, Purpose: purpose})
	if err != nil {
		if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", true, newError(KindCanceled, id, err)
		}
		return "", true, err
	}
	if pw == "" {
		return "", true, newError(KindPasswordRequired, id, nil)
	}
	return pw, true, nil
}

// DecryptWith is Decrypt with the password obtained from prompt.
func (s *Store) DecryptWith(ctx context.Context, id NoteID, prompt PasswordPrompt) (string, error) {
	pw, _, err := s.ask(ctx, id, PurposeDecrypt, prompt)
	if err != nil {
		return "", err
	}
	return s.Decrypt(ctx, id, pw)
}

// DeleteWith is Delete with the password obtained from prompt.
func (s *Store) DeleteWith(ctx context.Context, id NoteID, prompt PasswordPrompt) error {
	pw, _, err := s.ask(ctx, id, PurposeDelete, prompt)
	if err != nil {
		return err
	}
	return s.Delete(ctx, id, pw)
}

// UpdateWith is Update that prompts only when an encrypted note's content
// changes.
func (s *Store) UpdateWith(ctx context.Context, id NoteID, upd NoteUpdate, prompt PasswordPrompt) error {
	if upd.Content == nil {
		return s.Update(ctx, id, upd, "")
	}
	pw, _, err := s.ask(ctx, id, PurposeUpdate, prompt)
	if err != nil {
		return err
	}
	return s.Update(ctx, id, upd, pw)
}
