package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "llmap" in help.
	// Includes the command name and arguments/flags.
	// Examples: "get <file> <key>", "new <file> [flags]"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error

	// NumericArgs treats arguments like "-5" as positional values instead of
	// shorthand flags.
	NumericArgs bool
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-30s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "llmap <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	c.writeHelp(o.Out())
}

func (c *Command) writeHelp(w io.Writer) {
	fprintln(w, "Usage: llmap", c.Usage)
	fprintln(w)

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	fprintln(w, desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		fprintln(w)
		fprintln(w, "Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		_, _ = io.WriteString(w, buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
// Handles error printing internally for consistent output ordering.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	if c.NumericArgs {
		args = escapeNegativeNumbers(args)
	}

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.writeHelp(o.errOut)
		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)
		o.printWarnings()
		return 1
	}

	return o.Finish()
}

// escapeNegativeNumbers inserts "--" before the first negative number so
// that it and everything after it parse as positional arguments.
func escapeNegativeNumbers(args []string) []string {
	for i, arg := range args {
		if arg == "--" {
			return args
		}

		if len(arg) > 1 && arg[0] == '-' && arg[1] >= '0' && arg[1] <= '9' {
			escaped := make([]string, 0, len(args)+1)
			escaped = append(escaped, args[:i]...)
			escaped = append(escaped, "--")

			return append(escaped, args[i:]...)
		}
	}

	return args
}
