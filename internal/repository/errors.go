package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert or update violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional update matched no document
	// because the record is not in the expected state.
	ErrConflict = errors.New("record state changed")
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}
