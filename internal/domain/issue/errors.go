package issue

import "errors"

var (
	ErrUnknownStatus     = errors.New("unknown issue status")
	ErrUnknownSeverity   = errors.New("unknown issue severity")
	ErrInvalidTransition = errors.New("invalid status transition")
)
