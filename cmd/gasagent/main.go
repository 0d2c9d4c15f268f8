package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wnxd/schedscope/gas"
	"github.com/wnxd/schedscope/internal/cli"
	"github.com/wnxd/schedscope/internal/gasnet"
	"github.com/wnxd/schedscope/internal/procmem"
	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:], nil); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run serves until ctx is done. ready, if set, receives the bound address.
func run(ctx context.Context, outW, errW io.Writer, args []string, ready chan<- string) error {
	cfg, shouldExit, err := cli.ParseAgent(args, outW)
	if err != nil {
		return err
	} else if shouldExit {
		return nil
	}
	logger := cli.NewLogger(cfg.LogLevel, cfg.LogFormat, errW)

	l := layout.Default()
	if cfg.Layout != "" {
		if l, err = layout.Load(cfg.Layout); err != nil {
			return err
		}
	}
	proc, err := procmem.Open(cfg.PID, logger)
	if err != nil {
		return err
	}
	defer proc.Close()
	return serve(ctx, proc, l, cfg, logger, ready)
}

func serve(ctx context.Context, o oracle.Oracle, l *layout.Layout, cfg *cli.AgentConfig, logger *slog.Logger, ready chan<- string) error {
	local, err := gas.LayoutTransport(o, l.GAS)
	if err != nil {
		return err
	}
	tlsCfg, err := serverTLS(cfg)
	if err != nil {
		return err
	}
	if cfg.ClientCA == "" {
		logger.Warn("Client certificates are not required; bind only to a trusted interconnect.")
	}
	srv := gasnet.NewServer(tlsCfg, gasnet.Handler(local, logger))
	addr, err := srv.Listen(cfg.Listen)
	if err != nil {
		return err
	}
	defer srv.Close()
	logger.Info("Serving transfers.", "addr", addr, "pid", cfg.PID, "translate_mask", fmt.Sprintf("%#x", local.Mask))
	if ready != nil {
		ready <- addr
	}
	select {
	case <-ctx.Done():
		logger.Info("Shutting down.")
		return nil
	case <-srv.Done():
		return errors.New("server stopped")
	}
}

// serverTLS builds the agent's TLS config. Without -client-ca any peer that
// reaches the port can read process memory.
func serverTLS(cfg *cli.AgentConfig) (*tls.Config, error) {
	var tlsCfg *tls.Config
	var err error
	if cfg.CertFile != "" {
		tlsCfg, err = gasnet.LoadTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		hosts := []string{"localhost", "127.0.0.1"}
		if name, herr := os.Hostname(); herr == nil {
			hosts = append(hosts, name)
		}
		tlsCfg, err = gasnet.SelfSignedTLS(hosts, 30*24*time.Hour)
	}
	if err != nil || cfg.ClientCA == "" {
		return tlsCfg, err
	}
	pool, err := gasnet.LoadCertPool(cfg.ClientCA)
	if err != nil {
		return nil, err
	}
	return tlsCfg, gasnet.RequireClientCerts(tlsCfg, pool)
}
