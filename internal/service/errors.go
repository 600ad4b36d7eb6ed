package service

import (
	"github.com/listenupapp/listenup-ingest/internal/errors"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// storeErr maps persistence errors onto coded domain errors so handlers
// only deal with one taxonomy.
func storeErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errors.NotFound(msg + ": not found").WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return errors.AlreadyExists(msg + ": already exists").WithCause(err)
	case errors.Is(err, store.ErrInvalidInput):
		return errors.Validation(msg + ": invalid input").WithCause(err)
	case errors.Is(err, store.ErrStatusChanged):
		return errors.State(msg + ": status changed concurrently").WithCause(err)
	default:
		return errors.Wrap(err, errors.CodeStorage, msg)
	}
}
