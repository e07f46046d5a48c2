package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConflict              = errors.New("write conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrQueue                 = errors.New("player queue enqueue failed")
	ErrJobCancelled          = errors.New("scraper job cancelled")
)
