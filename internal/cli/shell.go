package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// shellCmd returns the shell command.
func shellCmd(g *globals) *Command {
	flags := flag.NewFlagSet("shell", flag.ContinueOnError)
	flags.Bool("no-history", false, "Neither read nor write the history file")

	return &Command{
		Flags: flags,
		Usage: "shell <file> [flags]",
		Short: "Interactive prompt on an open map",
		Long: `Open the map once and read commands from the terminal, or one per line
from stdin when it is not a terminal. Type 'help' at the prompt for commands.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 1, "shell <file>"); err != nil {
				return err
			}

			noHistory, _ := flags.GetBool("no-history")

			return g.withMap(ctx, args[0], func(m *shmap.Map) error {
				r := &repl{m: m, o: o, file: args[0]}

				if f, ok := g.in.(*os.File); ok && isTerminal(f) {
					historyPath := ""
					if !noHistory {
						historyPath = g.cfg.HistoryPath(g.env)
					}

					return r.runInteractive(ctx, g, historyPath)
				}

				return r.run(ctx, &scanPrompter{sc: bufio.NewScanner(g.in)})
			})
		},
	}
}

// prompter reads one command line at a time. *liner.State satisfies it.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// scanPrompter reads lines from a non-terminal input without echoing a prompt.
type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if p.sc.Scan() {
		return p.sc.Text(), nil
	}

	if err := p.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanPrompter) AppendHistory(string) {}

func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)

	return err == nil
}

// repl is the interactive command loop.
type repl struct {
	m    *shmap.Map
	o    *IO
	file string
}

var shellCommands = []string{
	"put", "get", "size", "len",
	"stats", "info", "dump", "entries",
	"check", "sync", "clear", "cls",
	"help", "exit", "quit", "q",
}

func (r *repl) runInteractive(ctx context.Context, g *globals, historyPath string) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completer)

	if historyPath != "" {
		if f, err := g.fs.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
	}

	geo := r.m.Geometry()
	r.o.Printf("llmap - %s (%d bytes, %d indexed + %d overflow records)\n",
		r.file, geo.Size, geo.IndexedCapacity, geo.OverflowCapacity)
	r.o.Println("Type 'help' for available commands.")
	r.o.Println()

	err := r.run(ctx, line)

	if historyPath != "" {
		var buf bytes.Buffer

		if _, histErr := line.WriteHistory(&buf); histErr == nil {
			if writeErr := g.fs.WriteFileAtomic(historyPath, &buf); writeErr != nil {
				g.log.WarnContext(ctx, "saving shell history failed", "path", historyPath, "error", writeErr)
			}
		}
	}

	return err
}

// run executes lines until exit, end of input or ctx is done. Errors from
// individual commands are printed and do not stop the loop.
func (r *repl) run(ctx context.Context, p prompter) error {
	for {
		if ctx.Err() != nil {
			r.o.Println("Bye!")

			return context.Cause(ctx)
		}

		line, err := p.Prompt("llmap> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.o.Println("Bye!")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			r.o.Println("Bye!")

			return nil
		}

		if err := r.exec(ctx, cmd, args); err != nil {
			r.o.ErrPrintln("error:", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		r.printHelp()

		return nil

	case "put":
		return r.cmdPut(ctx, args)

	case "get":
		return r.cmdGet(ctx, args)

	case "size", "len":
		n, err := r.m.Size(ctx)
		if err != nil {
			return err
		}

		r.o.Println(n)

		return nil

	case "stats", "info":
		s, err := r.m.Stats(ctx)
		if err != nil {
			return err
		}

		r.o.Printf("%s", s.String())

		return nil

	case "dump":
		verbose := len(args) > 0 && (args[0] == "-v" || args[0] == "--verbose")

		return r.m.Dump(ctx, r.o.Out(), verbose)

	case "entries":
		s, err := r.m.String(ctx)
		if err != nil {
			return err
		}

		r.o.Println(s)

		return nil

	case "check":
		if err := r.m.Check(ctx); err != nil {
			return err
		}

		r.o.Println("ok")

		return nil

	case "sync":
		return r.m.Sync(ctx)

	case "clear", "cls":
		r.o.Printf("\033[H\033[2J")

		return nil

	default:
		r.o.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)

		return nil
	}
}

func (r *repl) cmdPut(ctx context.Context, args []string) error {
	if err := wantArgs(args, 2, "put <key> <value>"); err != nil {
		return err
	}

	key, err := parseInt64("key", args[0])
	if err != nil {
		return err
	}

	value, err := parseInt64("value", args[1])
	if err != nil {
		return err
	}

	prev, err := r.m.Put(ctx, key, value)
	if err != nil {
		return err
	}

	r.o.Printf("OK (previous: %d)\n", prev)

	return nil
}

func (r *repl) cmdGet(ctx context.Context, args []string) error {
	if err := wantArgs(args, 1, "get <key>"); err != nil {
		return err
	}

	key, err := parseInt64("key", args[0])
	if err != nil {
		return err
	}

	v, err := r.m.Get(ctx, key)
	if err != nil {
		return err
	}

	r.o.Println(v)

	return nil
}

// completer provides tab completion for commands.
func completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *repl) printHelp() {
	r.o.Println("Commands:")
	r.o.Println("  put <key> <value>      Store a value, print the previous one")
	r.o.Println("  get <key>              Print the value for a key (0 if absent)")
	r.o.Println("  size                   Count stored keys")
	r.o.Println("  stats                  Show occupancy statistics")
	r.o.Println("  dump [-v]              Show region layout (and chains)")
	r.o.Println("  entries                Print all pairs")
	r.o.Println("  check                  Verify chains")
	r.o.Println("  sync                   Flush the region to disk")
	r.o.Println("  help                   Show this help")
	r.o.Println("  exit / quit / q        Exit")
	r.o.Println()
	r.o.Println("Keys and values: signed 64-bit integers, decimal or 0x hex.")
}
