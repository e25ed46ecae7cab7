package rbac

import "errors"

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrForbidden   = errors.New("forbidden")
)
