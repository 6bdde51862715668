package contract

import "errors"

var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("validation failed")
	ErrRemote     = errors.New("crm api error")
	ErrAuth       = errors.New("crm authentication failed")
	ErrNetwork    = errors.New("crm unreachable")
	ErrConfig     = errors.New("invalid crm configuration")
)
