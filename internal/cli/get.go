package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// getCmd returns the get command.
func getCmd(g *globals) *Command {
	return &Command{
		Flags:       flag.NewFlagSet("get", flag.ContinueOnError),
		Usage:       "get <file> <key>",
		Short:       "Print the value stored for a key",
		Long:        "Print the value stored for key, or 0 if the key is absent.",
		NumericArgs: true,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 2, "get <file> <key>"); err != nil {
				return err
			}

			key, err := parseInt64("key", args[1])
			if err != nil {
				return err
			}

			return g.withMap(ctx, args[0], func(m *shmap.Map) error {
				v, err := m.Get(ctx, key)
				if err != nil {
					return err
				}

				o.Println(v)

				return nil
			})
		},
	}
}
