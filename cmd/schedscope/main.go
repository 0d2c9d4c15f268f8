package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/wnxd/schedscope/debugger"
	"github.com/wnxd/schedscope/gas"
	"github.com/wnxd/schedscope/internal/cli"
	"github.com/wnxd/schedscope/internal/ctxlog"
	idebugger "github.com/wnxd/schedscope/internal/debugger"
	"github.com/wnxd/schedscope/internal/gasnet"
	"github.com/wnxd/schedscope/internal/procmem"
	"github.com/wnxd/schedscope/internal/rsp"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/loader"
	"github.com/wnxd/schedscope/oracle"
)

const (
	prompt            = "(schedscope) "
	errCommandsFailed = "one or more commands failed"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := run(context.Background(), os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, outW, errW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	} else if shouldExit {
		return nil
	}
	logger := cli.NewLogger(cfg.LogLevel, cfg.LogFormat, errW)
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(ctx, logger))
	defer cancel()

	l := layout.Default()
	if cfg.Layout != "" {
		if l, err = layout.Load(cfg.Layout); err != nil {
			return err
		}
	}
	current := layout.NewCurrent(l)
	if cfg.Watch {
		go func() {
			if err := layout.Watch(ctx, cfg.Layout, current, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Layout watch stopped.", "path", cfg.Layout, "error", err)
			}
		}()
	}

	o, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	remote, err := dialAgents(cfg, l)
	if err != nil {
		if c, ok := o.(io.Closer); ok {
			c.Close()
		}
		return err
	}
	sess := idebugger.New(o, idebugger.Options{Layout: current, Remote: remote, Logger: logger})
	defer sess.Close()
	logger.Info("Attached.", "target", cfg.Target, "arch", o.Arch(), "agents", len(remote))

	if len(cfg.Commands) > 0 {
		var failed bool
		for _, line := range cfg.Commands {
			if err := execute(ctx, sess, outW, line); err != nil {
				fmt.Fprintln(errW, err)
				failed = true
			}
		}
		if failed {
			return &cli.ExitError{Code: 1, Message: errCommandsFailed}
		}
		return nil
	}
	return repl(ctx, sess, in, outW, errW)
}

// execute runs one command; an interrupt cancels the command, not the
// session.
func execute(ctx context.Context, op debugger.Operator, w io.Writer, line string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return debugger.Dispatch(ctx, op, w, line)
}

func repl(ctx context.Context, op debugger.Operator, in io.Reader, outW, errW io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(outW, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(outW)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "quit", "exit", "q":
			return nil
		}
		if err := execute(ctx, op, outW, line); err != nil {
			fmt.Fprintln(errW, err)
		}
	}
}

func openTarget(ctx context.Context, cfg *cli.Config) (oracle.Oracle, error) {
	logger := ctxlog.FromContext(ctx)
	if addr, ok := strings.CutPrefix(cfg.Target, "rsp://"); ok {
		if cfg.Symbols == "" {
			return nil, &cli.ExitError{Code: 2, Message: "rsp targets need -symbols"}
		}
		mod, err := loader.OpenELF(cfg.Symbols, 0)
		if err != nil {
			return nil, fmt.Errorf("symbols: %w", err)
		}
		c, err := rsp.Dial(ctx, addr, mod, logger)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return c, nil
	} else if s, ok := strings.CutPrefix(cfg.Target, "pid://"); ok {
		pid, err := strconv.Atoi(s)
		if err != nil || pid <= 0 {
			return nil, &cli.ExitError{Code: 2, Message: fmt.Sprintf("invalid pid %q", s)}
		}
		p, err := procmem.Open(pid, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, &cli.ExitError{Code: 2, Message: fmt.Sprintf("unsupported target %q: want rsp://HOST:PORT or pid://PID", cfg.Target)}
}

// dialAgents merges the agents named by the layout with those given on the
// command line; the command line wins.
func dialAgents(cfg *cli.Config, l *layout.Layout) (map[uint64]gas.Transport, error) {
	addrs := make(map[uint64]string)
	if l.GAS != nil {
		for rank, addr := range l.GAS.Agents {
			n, err := strconv.ParseUint(rank, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("layout agent %q: %w", rank, err)
			}
			addrs[n] = addr
		}
	}
	for rank, addr := range cfg.Agents {
		addrs[rank] = addr
	}
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.Insecure, MinVersion: tls.VersionTLS13}
	if cfg.AgentCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.AgentCert, cfg.AgentKey)
		if err != nil {
			return nil, fmt.Errorf("agent certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	remote := make(map[uint64]gas.Transport, len(addrs))
	for rank, addr := range addrs {
		remote[rank] = gasnet.Dial(addr, tlsCfg)
	}
	return remote, nil
}
