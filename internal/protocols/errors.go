package protocols

import "errors"

var (
	ErrNotFound      = errors.New("protocol not found")
	ErrAlreadyExists = errors.New("protocol already exists for day")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInProgress    = errors.New("protocol generation in progress")
)
