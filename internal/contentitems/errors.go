package contentitems

import "errors"

var (
	ErrNotFound         = errors.New("content item not found")
	ErrAlreadyProcessed = errors.New("content item already processed")
	ErrInvalid          = errors.New("invalid content item")
)
