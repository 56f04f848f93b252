package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// snapshotCmd returns the snapshot command.
func snapshotCmd(g *globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("snapshot", flag.ContinueOnError),
		Usage: "snapshot <file> <out>",
		Short: "Write a compressed snapshot of a map",
		Long: `Write a zstd-compressed image of the map region to out.

Other processes may keep reading while the snapshot is taken; writers wait.
out is replaced atomically.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 2, "snapshot <file> <out>"); err != nil {
				return err
			}

			return g.withMap(ctx, args[0], func(m *shmap.Map) error {
				n, err := m.Snapshot(ctx, g.resolve(args[1]))
				if err != nil {
					return err
				}

				o.Printf("Wrote %s (%d entries)\n", args[1], n)

				return nil
			})
		},
	}
}
