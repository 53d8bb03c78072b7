package services

import "errors"

// Sentinel errors the handler layer maps onto HTTP statuses.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrValidation   = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
)
