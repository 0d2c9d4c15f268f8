package debugger

import (
	"context"
	"fmt"
	"io"

	"github.com/wnxd/schedscope/debugger"
	"github.com/wnxd/schedscope/frames"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
	"github.com/wnxd/schedscope/sched"
)

type schedManager struct {
	s       *Session
	checked *layout.Layout
}

func (sm *schedManager) ctor(s *Session) {
	sm.s = s
}

// checkRuntime warns once per layout when the target's runtime version is
// outside the layout's constraint.
func (sm *schedManager) checkRuntime(l *layout.Layout) {
	if sm.checked == l || l.Runtime == nil || l.Runtime.Version == "" {
		return
	}
	sm.checked = l
	logger := sm.s.logger
	v, err := sm.s.o.Evaluate(l.Runtime.Version)
	var version string
	if err == nil {
		version, err = oracle.ToPointer(sm.s.o, v.Addr).MemReadString()
	}
	if err != nil {
		logger.Warn("Runtime version unreadable.", "expr", l.Runtime.Version, "error", err)
	} else if err = l.Runtime.Check(version); err != nil {
		logger.Warn("Layout may not match the target runtime.", "version", version, "constraint", l.Runtime.Constraint, "error", err)
	}
}

func (s *Session) Workers(ctx context.Context, w io.Writer) error {
	l := s.layout.Load()
	s.checkRuntime(l)
	r := sched.NewReader(s.o, l, s.logger)
	root, err := r.Root()
	if err != nil {
		return err
	}
	workers, err := r.ListWorkers(root)
	if err != nil {
		return err
	}
	table, err := r.Actions(root)
	if err != nil {
		s.logger.Warn("Action table unreadable, names will show as unknown.", "error", err)
	}
	for i := range workers {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = writeWorker(w, r, table, &workers[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeWorker(w io.Writer, r *sched.Reader, table *sched.ActionTable, rec *sched.WorkerRecord) error {
	ew := &errWriter{w: w}
	switch {
	case rec.Err != nil:
		ew.printf("worker %d: <%v>\n", rec.Index, rec.Err)
		return ew.err
	case rec.Current.IsNil():
		ew.printf("worker %d: idle\n", rec.Index)
	case rec.TaskErr != nil:
		ew.printf("worker %d: 0x%016x <%v>\n", rec.Index, uint64(rec.Current), rec.TaskErr)
	default:
		ew.printf("worker %d: %s\n", rec.Index, sched.FormatTask(*rec.Task, table.ActionName(rec.Task.ActionID)))
	}
	for i, q := range rec.Queues {
		name := q.Name
		if rec.WorkID != nil && *rec.WorkID == int64(i) {
			name += " (active)"
		}
		entries, err := r.DecodeQueue(q)
		switch {
		case err != nil:
			ew.printf("  %s: <%v>\n", name, err)
		case len(entries) == 0:
			ew.printf("  %s: empty\n", name)
		default:
			ew.printf("  %s: %d queued\n", name, len(entries))
		}
		for _, e := range entries {
			if e.Err != nil {
				ew.printf("    [%d] 0x%016x <%v>\n", e.Index, uint64(e.Ref), e.Err)
			} else {
				ew.printf("    [%d] %s\n", e.Index, sched.FormatTask(*e.Task, table.ActionName(e.Task.ActionID)))
			}
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, args...)
	}
}

func (s *Session) Finish(ctx context.Context, w io.Writer) error {
	resumer, ok := s.o.(oracle.Resumer)
	if !ok {
		return fmt.Errorf("finish: %w", oracle.ErrNotSupported)
	}
	l := s.layout.Load()
	if l.Scheduler.Finish == "" {
		return fmt.Errorf("finish: scheduler.finish is not set in the layout")
	}
	sym, err := s.o.LookupSymbol(l.Scheduler.Finish)
	if err != nil {
		return &debugger.NameError{Name: l.Scheduler.Finish, Err: err}
	}
	fmt.Fprintf(w, "Run till exit from the current task (%s at 0x%x)...\n", sym.Name, sym.Addr)
	if err = resumer.ContinueUntil(ctx, sym.Addr); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	_, err = fmt.Fprintln(w, "Task finished.")
	return err
}

func (s *Session) Backtrace(_ context.Context, w io.Writer) error {
	unwinder, ok := s.o.(oracle.Unwinder)
	if !ok {
		return fmt.Errorf("bt: %w", oracle.ErrNotSupported)
	}
	src, err := unwinder.Frames()
	if err != nil {
		return fmt.Errorf("bt: %w", err)
	}
	for frame := range frames.Seq(frames.Filter(src, s.layout.Load().FrameExcludes()...)) {
		if _, err = fmt.Fprintln(w, frame); err != nil {
			return err
		}
	}
	return nil
}
