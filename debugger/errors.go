package debugger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrInvalidName      = errors.New("invalid address or name")
	ErrUnknownCommand   = errors.New("unknown command")
)

type ArgumentError struct {
	Command string
	Want    int
	Got     int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("[InvalidArguments] command: %s %s, want %d, got %d", Prefix, e.Command, e.Want, e.Got)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArguments
}

type NameError struct {
	Name string
	Err  error
}

func (e *NameError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[InvalidName] name: %q", e.Name)
	}
	return fmt.Sprintf("[InvalidName] name: %q, %v", e.Name, e.Err)
}

func (e *NameError) Unwrap() error {
	return e.Err
}

func (e *NameError) Is(target error) bool {
	return target == ErrInvalidName
}
