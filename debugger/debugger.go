// Package debugger is the operator command surface. Commands are registered
// in a process-wide table and dispatched against an Operator, the session
// that owns the attached target.
package debugger

import (
	"context"
	"io"
)

const Prefix = "hpx"

// Operator runs commands whose arguments have already been validated.
type Operator interface {
	io.Closer
	Workers(ctx context.Context, w io.Writer) error
	LCO(ctx context.Context, w io.Writer, name string) error
	Finish(ctx context.Context, w io.Writer) error
	Backtrace(ctx context.Context, w io.Writer) error
}
