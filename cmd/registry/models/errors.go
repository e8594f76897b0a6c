package models

import "errors"

// Registry errors. Callers classify with errors.Is; wrapped causes are
// for logs only.
var (
	ErrUploaderMismatch = errors.New("Owner and Caller does not match")
	ErrNotFound         = errors.New("Collection doesn't exist")
	ErrUnauthorized     = errors.New("User not authorized")
	ErrUnableToDelete   = errors.New("Unable to delete asset")
	ErrUnableToUpdate   = errors.New("Unable to update settings")

	// Counter failures under the counter id strategy
	ErrCounterMissing = errors.New("last id counter is not initialized")
	ErrCounterInvalid = errors.New("last id counter is not a valid unsigned integer")

	// Init with an owner different from the persisted one
	ErrOwnerImmutable = errors.New("service owner is already set")

	// Allocated id already present; the store is left unchanged
	ErrIDConflict = errors.New("asset id already issued")

	ErrInvalidFilter = errors.New("invalid filter expression")
)
