package debugger

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

type CommandFunc func(ctx context.Context, op Operator, w io.Writer, args []string) error

type Command struct {
	Name    string
	Args    []string
	Summary string
	Run     CommandFunc
}

func (cmd *Command) Usage() string {
	usage := Prefix + " " + cmd.Name
	for _, arg := range cmd.Args {
		usage += " <" + arg + ">"
	}
	return usage
}

var cmdMap = make(map[string]*Command)

func Register(cmd *Command) bool {
	if _, ok := cmdMap[cmd.Name]; ok {
		return false
	}
	cmdMap[cmd.Name] = cmd
	return true
}

func Lookup(name string) (*Command, bool) {
	cmd, ok := cmdMap[name]
	return cmd, ok
}

func Commands() []*Command {
	names := slices.Sorted(maps.Keys(cmdMap))
	cmds := make([]*Command, len(names))
	for i, name := range names {
		cmds[i] = cmdMap[name]
	}
	return cmds
}

// Dispatch runs one command line. The Prefix is optional; a line holding
// only the prefix prints help. Argument counts are checked before the
// operator sees the command.
func Dispatch(ctx context.Context, op Operator, w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) > 0 && fields[0] == Prefix {
		fields = fields[1:]
		if len(fields) == 0 {
			fields = []string{"help"}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	cmd, ok := Lookup(fields[0])
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	args := fields[1:]
	if len(args) != len(cmd.Args) {
		return &ArgumentError{Command: cmd.Name, Want: len(cmd.Args), Got: len(args)}
	}
	return cmd.Run(ctx, op, w, args)
}

func init() {
	Register(&Command{
		Name:    "workers",
		Summary: "list each worker's current task and queued tasks",
		Run: func(ctx context.Context, op Operator, w io.Writer, _ []string) error {
			return op.Workers(ctx, w)
		},
	})
	Register(&Command{
		Name:    "lco",
		Args:    []string{"name"},
		Summary: "display the synchronization object at a global address",
		Run: func(ctx context.Context, op Operator, w io.Writer, args []string) error {
			return op.LCO(ctx, w, args[0])
		},
	})
	Register(&Command{
		Name:    "finish",
		Summary: "resume the target until the current task completes",
		Run: func(ctx context.Context, op Operator, w io.Writer, _ []string) error {
			return op.Finish(ctx, w)
		},
	})
	Register(&Command{
		Name:    "bt",
		Summary: "backtrace without scheduler frames",
		Run: func(ctx context.Context, op Operator, w io.Writer, _ []string) error {
			return op.Backtrace(ctx, w)
		},
	})
	Register(&Command{
		Name:    "help",
		Summary: "list commands",
		Run: func(_ context.Context, _ Operator, w io.Writer, _ []string) error {
			return Help(w)
		},
	})
}

func Help(w io.Writer) error {
	for _, cmd := range Commands() {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", cmd.Usage(), cmd.Summary); err != nil {
			return err
		}
	}
	return nil
}
