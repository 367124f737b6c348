package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique index rejected the write.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrPreconditionFailed indicates a conditional write matched no record in the expected state.
	ErrPreconditionFailed = errors.New("repository: precondition failed")
	// ErrInvalidID indicates an identifier that cannot address any record.
	ErrInvalidID = errors.New("repository: invalid id")
)
