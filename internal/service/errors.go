package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateAccount   = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")

	// ErrTokenInvalid agrupa todos los fallos de validacion de token.
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenTampered  = fmt.Errorf("%w: signature mismatch", ErrTokenInvalid)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	ErrUnknownSubject = fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
)
