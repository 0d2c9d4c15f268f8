package sched

import (
	"errors"
	"fmt"
)

var (
	ErrIndeterminateQueue = errors.New("indeterminate queue")
	ErrNotFound           = errors.New("not found")
)

type QueueError struct {
	Addr     uint64
	Top      int64
	Bottom   int64
	Capacity uint64
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("[IndeterminateQueue] addr: %016X, top: %d, bottom: %d, capacity: %d", e.Addr, e.Top, e.Bottom, e.Capacity)
}

func (e *QueueError) Is(target error) bool {
	return target == ErrIndeterminateQueue
}

type ActionError struct {
	ID    int64
	Count int64
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("[NotFound] action: %d, count: %d", e.ID, e.Count)
}

func (e *ActionError) Is(target error) bool {
	return target == ErrNotFound
}

type WorkerError struct {
	Index int
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("[Worker] index: %d, %v", e.Index, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
