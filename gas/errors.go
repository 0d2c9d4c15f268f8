package gas

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedAddress = errors.New("unresolved address")
	ErrUnsupportedType   = errors.New("unsupported type")
	ErrTransferFailed    = errors.New("transfer failed")
)

type AddressError struct {
	GVA uint64
	Err error
}

func (e *AddressError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[UnresolvedAddress] gva: %016X", e.GVA)
	}
	return fmt.Sprintf("[UnresolvedAddress] gva: %016X, %v", e.GVA, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

func (e *AddressError) Is(target error) bool {
	return target == ErrUnresolvedAddress
}

type TypeError struct {
	Descriptor string
	Name       string
}

func (e *TypeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("[UnsupportedType] descriptor: %q names no type", e.Descriptor)
	}
	return fmt.Sprintf("[UnsupportedType] type: %q", e.Name)
}

func (e *TypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

type TransferError struct {
	GVA  uint64
	Size int
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("[TransferFailed] gva: %016X, size: %d, %v", e.GVA, e.Size, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func (e *TransferError) Is(target error) bool {
	return target == ErrTransferFailed
}
