package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// statsCmd returns the stats command.
func statsCmd(g *globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats <file>",
		Short: "Show occupancy statistics",
		Long: `Show slot and overflow usage, load factor and chain lengths.

Warns when the overflow zone is exhausted, since every further put fails.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 1, "stats <file>"); err != nil {
				return err
			}

			return g.withMap(ctx, args[0], func(m *shmap.Map) error {
				s, err := m.Stats(ctx)
				if err != nil {
					return err
				}

				if s.Exhausted {
					o.Warn("overflow zone exhausted", "puts will fail until the map is reset or restored")
				}

				o.Printf("%s", s.String())

				return nil
			})
		},
	}
}
