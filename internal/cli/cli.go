package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

type Config struct {
	Target    string
	Symbols   string
	Layout    string
	Watch     bool
	Commands  []string
	Agents    map[uint64]string
	Insecure  bool
	AgentCert string
	AgentKey  string
	LogLevel  string
	LogFormat string
}

type AgentConfig struct {
	Listen    string
	PID       int
	Layout    string
	CertFile  string
	KeyFile   string
	ClientCA  string
	LogLevel  string
	LogFormat string
}

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, "; ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Parse processes the schedscope command line. It returns the config, whether
// the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("schedscope", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
schedscope - inspect the scheduler of a running HPX-5 process.

Usage:
  schedscope [options] TARGET

Arguments:
  TARGET
    rsp://HOST:PORT  a gdbserver-compatible stub (needs -symbols)
    pid://PID        a local process, read with process_vm_readv

Options:
`)
		flagSet.PrintDefaults()
	}

	var commands, agents listFlag
	symbols := flagSet.String("symbols", "", "ELF file with the target's symbols (rsp targets).")
	layoutPath := flagSet.String("layout", "", "Scheduler layout file. Empty uses the built-in HPX-5 layout.")
	watch := flagSet.Bool("watch", false, "Reload the layout file when it changes.")
	flagSet.Var(&commands, "c", "Run a command and exit. May be repeated.")
	flagSet.Var(&agents, "agent", "Transfer agent of a locality, as RANK=HOST:PORT. May be repeated.")
	insecure := flagSet.Bool("insecure", false, "Skip TLS verification of transfer agents.")
	agentCert := flagSet.String("agent-cert", "", "Client certificate presented to transfer agents.")
	agentKey := flagSet.String("agent-key", "", "Key for -agent-cert.")
	logFormat := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevel := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return nil, true, nil
	}

	cfg := &Config{
		Target:    flagSet.Arg(0),
		Symbols:   *symbols,
		Layout:    *layoutPath,
		Watch:     *watch,
		Commands:  commands,
		Agents:    make(map[uint64]string, len(agents)),
		Insecure:  *insecure,
		AgentCert: *agentCert,
		AgentKey:  *agentKey,
	}
	if cfg.Watch && cfg.Layout == "" {
		return nil, false, &ExitError{Code: 2, Message: "-watch needs -layout"}
	}
	if (cfg.AgentCert == "") != (cfg.AgentKey == "") {
		return nil, false, &ExitError{Code: 2, Message: "-agent-cert and -agent-key go together"}
	}
	for _, a := range agents {
		rank, addr, ok := strings.Cut(a, "=")
		n, err := strconv.ParseUint(rank, 10, 64)
		if !ok || err != nil || addr == "" {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid agent %q: want RANK=HOST:PORT", a)}
		}
		cfg.Agents[n] = addr
	}
	var err error
	if cfg.LogLevel, cfg.LogFormat, err = checkLog(*logLevel, *logFormat); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// ParseAgent processes the gasagent command line.
func ParseAgent(args []string, output io.Writer) (*AgentConfig, bool, error) {
	flagSet := flag.NewFlagSet("gasagent", flag.ContinueOnError)
	flagSet.SetOutput(output)
	listen := flagSet.String("listen", ":7070", "UDP address to serve HTTP/3 on.")
	pid := flagSet.Int("pid", 0, "Process whose memory is served.")
	layoutPath := flagSet.String("layout", "", "Scheduler layout file. Empty uses the built-in HPX-5 layout.")
	certFile := flagSet.String("cert", "", "TLS certificate. Empty generates a self-signed one.")
	keyFile := flagSet.String("key", "", "TLS key for -cert.")
	clientCA := flagSet.String("client-ca", "", "PEM CA bundle; clients must present a certificate it signed.")
	logFormat := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevel := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if *pid <= 0 {
		return nil, false, &ExitError{Code: 2, Message: "-pid is required"}
	}
	if (*certFile == "") != (*keyFile == "") {
		return nil, false, &ExitError{Code: 2, Message: "-cert and -key go together"}
	}
	cfg := &AgentConfig{Listen: *listen, PID: *pid, Layout: *layoutPath, CertFile: *certFile, KeyFile: *keyFile, ClientCA: *clientCA}
	var err error
	if cfg.LogLevel, cfg.LogFormat, err = checkLog(*logLevel, *logFormat); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func checkLog(level, format string) (string, string, error) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return "", "", &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return "", "", &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return level, format, nil
}

// NewLogger builds an isolated logger; it does not touch the global one.
func NewLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
