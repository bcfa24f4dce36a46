package store

import "errors"

var (
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrInvalidStatus     = errors.New("invalid queue status")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateCheckIn  = errors.New("customer already checked in")
)
