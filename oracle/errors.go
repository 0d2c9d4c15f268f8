package oracle

import (
	"errors"
	"fmt"
)

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrUnreadable      = errors.New("unreadable")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrExprInvalid     = errors.New("expression invalid")
	ErrNotSupported    = errors.New("not supported by oracle")
)

type ReadError struct {
	Addr uint64
	Size uint64
	Err  error
}

func (e *ReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[Unreadable] addr: %016X, size: %d", e.Addr, e.Size)
	}
	return fmt.Sprintf("[Unreadable] addr: %016X, size: %d, %v", e.Addr, e.Size, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func (e *ReadError) Is(target error) bool {
	return target == ErrUnreadable
}

type EvalError struct {
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("[Unreadable] expr: %q, %v", e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func (e *EvalError) Is(target error) bool {
	return target == ErrUnreadable
}
