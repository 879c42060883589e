package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType int

const (
	ErrBind ErrorType = iota
	ErrAccept
	ErrConnect
	ErrNotify
	ErrRead
	ErrWrite
	ErrMetadata
	ErrBusy
	ErrCancelled
)

func (t ErrorType) String() string {
	switch t {
	case ErrBind:
		return "bind"
	case ErrAccept:
		return "accept"
	case ErrConnect:
		return "connect"
	case ErrNotify:
		return "notify"
	case ErrRead:
		return "read"
	case ErrWrite:
		return "write"
	case ErrMetadata:
		return "metadata"
	case ErrBusy:
		return "busy"
	case ErrCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AppError is a terminal failure of one transfer session. Op names the step
// that failed and Addr, when set, the address involved.
type AppError struct {
	Type ErrorType
	Op   string
	Addr string
	Err  error
}

func (e *AppError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(errtype ErrorType, op string, addr string, uerror error) *AppError {
	return &AppError{
		Type: errtype,
		Op:   op,
		Addr: addr,
		Err:  uerror,
	}
}

// TypeOf returns the type of the first AppError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var apperr *AppError
	if stderrors.As(err, &apperr) {
		return apperr.Type, true
	}
	return 0, false
}

func Is(err error, errtype ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errtype
}

// Cause strips AppError wrappers and returns the underlying system error.
func Cause(err error) error {
	var apperr *AppError
	for stderrors.As(err, &apperr) {
		if apperr.Err == nil {
			return err
		}
		err = apperr.Err
	}
	return err
}
