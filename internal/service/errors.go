package service

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found or access denied")
	ErrDocumentNotFound = errors.New("document not found or access denied")
	ErrTaskNotFound     = errors.New("task not found")
	ErrEmailExists      = errors.New("email already registered")
	ErrInvalidLogin     = errors.New("invalid email or password")
)
