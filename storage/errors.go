package storage

import "errors"

// Sentinel errors for store facts. Backends return these (optionally wrapped)
// and services pass them through untouched.
var (
	ErrRecordNotFound        = errors.New("record not found")
	ErrAlreadyExists         = errors.New("record already exists")
	ErrConflictingMutation   = errors.New("conflicting mutation")
	ErrInsufficientResources = errors.New("insufficient resources")
)
