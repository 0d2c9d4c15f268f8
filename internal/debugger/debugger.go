// Package debugger implements the operator commands against an attached
// target. All per-target state lives in a Session; nothing is global.
package debugger

import (
	"io"
	"log/slog"

	"github.com/wnxd/schedscope/debugger"
	"github.com/wnxd/schedscope/gas"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

type Options struct {
	Layout *layout.Current
	// Remote transfer agents by locality rank.
	Remote map[uint64]gas.Transport
	Logger *slog.Logger
}

type Session struct {
	o      oracle.Oracle
	layout *layout.Current
	logger *slog.Logger
	schedManager
	gasManager
}

var _ debugger.Operator = (*Session)(nil)

func New(o oracle.Oracle, opts Options) *Session {
	s := &Session{o: o, layout: opts.Layout, logger: opts.Logger}
	if s.layout == nil {
		s.layout = layout.NewCurrent(layout.Default())
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.schedManager.ctor(s)
	s.gasManager.ctor(s, opts.Remote)
	return s
}

func (s *Session) Close() error {
	s.gasManager.dtor()
	if c, ok := s.o.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Session) Oracle() oracle.Oracle {
	return s.o
}
