package domain

import "errors"

var (
	ErrInvalidCredentials   = errors.New("incorrect email or password")
	ErrUnauthenticated      = errors.New("could not validate credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("email already registered")
	ErrEmailPending         = errors.New("email already pending approval")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidName          = errors.New("first and last name are required")
	ErrWeakPassword         = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong      = errors.New("password must be at most 72 bytes")
	ErrPasswordUnchanged    = errors.New("new password must differ from the current one")
	ErrCurrentPassword      = errors.New("current password is incorrect")
	ErrInvalidRole          = errors.New("invalid role")
	ErrOrganizationRequired = errors.New("organization is required")
)
