package domain

import "errors"

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidTransition     = errors.New("invalid offer transition")
	ErrAlreadyReserved       = errors.New("offer already reserved")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)
