package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrBucketNotFound  = errors.New("bucket not found")
	ErrTransient       = errors.New("transient failure")
	ErrProviderFailure = errors.New("provider failure")
)
