package queueentries

import "errors"

var (
	ErrNotFound = errors.New("queue entry not found")
	ErrInvalid  = errors.New("invalid queue entry")
)
