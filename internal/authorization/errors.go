package authorization

import "errors"

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid actor")
	ErrInvalidObject = errors.New("invalid authorization object")
	ErrInvalidAction = errors.New("invalid authorization action")
	// ErrNoOrganization means a tenant-scoped operation was attempted by a
	// caller that is not a member of any organization.
	ErrNoOrganization = errors.New("caller has no organization")
)
