package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/internal/config"
	"github.com/dkrasilov/vk-test/internal/fs"
	"github.com/dkrasilov/vk-test/internal/logging"
)

// ErrInterrupted is the context cause when a signal stops a command.
var ErrInterrupted = errors.New("interrupted")

// globals carries resolved process-wide settings into commands.
// Commands are built before config is loaded and read it at Exec time.
type globals struct {
	cfg     config.Config
	sources config.Sources
	workDir string
	env     map[string]string
	in      io.Reader
	log     *logging.Logger
	fs      fs.FS
	noWait  bool
}

func commands(g *globals) []*Command {
	return []*Command{
		newCmd(g),
		putCmd(g),
		getCmd(g),
		sizeCmd(g),
		statsCmd(g),
		dumpCmd(g),
		checkCmd(g),
		snapshotCmd(g),
		restoreCmd(g),
		shellCmd(g),
		printConfigCmd(g),
	}
}

// Run is the main entry point. Returns exit code.
//
// A signal on sigCh cancels the running command's context. sigCh may be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	g := &globals{env: env, in: in, fs: fs.NewReal()}
	cmds := commands(g)

	globalFlags := newGlobalFlags()

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	if err := globalFlags.set.Parse(rest); err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printGlobalFlags(errOut, globalFlags.set)

		return 1
	}

	remaining := globalFlags.set.Args()

	if *globalFlags.help || len(remaining) == 0 {
		printUsage(out, globalFlags.set, cmds)

		return 0
	}

	workDir := *globalFlags.cwd
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	overrides := config.Config{
		LockTimeout: *globalFlags.lockTimeout,
		LogLevel:    *globalFlags.logLevel,
		LogFormat:   *globalFlags.logFormat,
	}

	cfg, sources, err := config.Load(workDir, *globalFlags.configPath, overrides, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)

	log, err := logging.New(errOut, cfg.LogFormat, level)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	g.cfg = cfg
	g.sources = sources
	g.workDir = workDir
	g.log = log
	g.noWait = *globalFlags.noWait

	name := remaining[0]

	var cmd *Command

	for _, c := range cmds {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, globalFlags.set, cmds)

		return 1
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				cancel(fmt.Errorf("%w: %s", ErrInterrupted, sig))
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(out, errOut), remaining[1:])
}

type globalFlagSet struct {
	set         *flag.FlagSet
	help        *bool
	cwd         *string
	configPath  *string
	logLevel    *string
	logFormat   *string
	lockTimeout *string
	noWait      *bool
}

func newGlobalFlags() globalFlagSet {
	set := flag.NewFlagSet("llmap", flag.ContinueOnError)
	set.SetInterspersed(false)
	set.SetOutput(&strings.Builder{}) // discard pflag output

	return globalFlagSet{
		set:         set,
		help:        set.BoolP("help", "h", false, "Show help"),
		cwd:         set.StringP("cwd", "C", "", "Run as if started in `dir`"),
		configPath:  set.StringP("config", "c", "", "Use specified config `file`"),
		logLevel:    set.String("log-level", "", "Log `level`: debug, info, warn, error"),
		logFormat:   set.String("log-format", "", "Log `format`: text or json"),
		lockTimeout: set.String("lock-timeout", "", "Wait at most `duration` for the map lock"),
		noWait:      set.Bool("no-wait", false, "Fail at once if another process holds the map lock"),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printGlobalFlags(w io.Writer, set *flag.FlagSet) {
	fprintln(w, "Global flags:")

	var buf strings.Builder
	set.SetOutput(&buf)
	set.PrintDefaults()
	set.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())
}

func printUsage(w io.Writer, set *flag.FlagSet, cmds []*Command) {
	fprintln(w, `llmap - fixed-capacity int64 map in a shared file

Usage: llmap [global flags] <command> [args]`)
	fprintln(w)
	printGlobalFlags(w, set)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range cmds {
		fprintln(w, c.HelpLine())
	}
}
