package service

import "errors"

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrOwnerCannotLeave   = errors.New("team owner cannot leave or be removed")
)
