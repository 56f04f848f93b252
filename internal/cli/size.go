package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// sizeCmd returns the size command.
func sizeCmd(g *globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("size", flag.ContinueOnError),
		Usage: "size <file>",
		Short: "Print the number of stored keys",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 1, "size <file>"); err != nil {
				return err
			}

			return g.withMap(ctx, args[0], func(m *shmap.Map) error {
				n, err := m.Size(ctx)
				if err != nil {
					return err
				}

				o.Println(n)

				return nil
			})
		},
	}
}
