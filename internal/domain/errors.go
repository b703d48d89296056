package domain

import "errors"

// Domain errors (no external dependencies).
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("access denied")
	ErrConflict            = errors.New("conflict with current state")
	ErrEmailAlreadyExists  = errors.New("email already registered")
	ErrInvalidLineItem     = errors.New("invalid line item")
	ErrMissingJurisdiction = errors.New("missing jurisdiction on party")
	ErrDraftSubmitted      = errors.New("draft already submitted")
)
