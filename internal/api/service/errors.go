package service

import "errors"

// Sentinel errors mapped to HTTP status codes by the delivery layer.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("invalid request")
	ErrForbidden  = errors.New("forbidden")
)
