package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/internal/config"
)

// printConfigCmd returns the print-config command.
func printConfigCmd(g *globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, g)
		},
	}
}

func execPrintConfig(o *IO, g *globals) error {
	formatted, err := config.Format(g.cfg)
	if err != nil {
		return err
	}

	o.Println(formatted)

	o.Println("")
	o.Println("# Sources:")

	if g.sources.Global != "" {
		o.Println("#   global:", g.sources.Global)
	}

	if g.sources.Project != "" {
		o.Println("#   project:", g.sources.Project)
	}

	if g.sources.Global == "" && g.sources.Project == "" {
		o.Println("#   (using defaults only)")
	}

	return nil
}
