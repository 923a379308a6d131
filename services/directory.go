package services

import (
	"context"
	"errors"

	"tablebot/store"
)

// directoryKey hash holding participant id -> table label
const directoryKey = "tables"

// Directory persistent participant -> table mapping. No caching and no
// retries; store failures are returned as they are.
type Directory struct {
	store store.Store
}

// NewDirectory creates the directory over s.
func NewDirectory(s store.Store) *Directory {
	return &Directory{store: s}
}

// Get returns the participant's label; ok is false when none is recorded.
func (d *Directory) Get(ctx context.Context, participantID string) (label string, ok bool, err error) {
	label, err = d.store.HashGet(ctx, directoryKey, participantID)
	if errors.Is(err, store.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return label, true, nil
}

// Set records label for the participant, replacing any previous label.
func (d *Directory) Set(ctx context.Context, participantID, label string) error {
	return d.store.HashSet(ctx, directoryKey, participantID, label)
}

// Clear removes the participant's record. Absent records are fine.
func (d *Directory) Clear(ctx context.Context, participantID string) error {
	return d.store.HashDelete(ctx, directoryKey, participantID)
}
