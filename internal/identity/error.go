package identity

import "errors"

var (
	ErrFailedGetRoles = errors.New("failed to get user roles")
)
