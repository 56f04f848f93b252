package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// checkCmd returns the check command.
func checkCmd(g *globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("check", flag.ContinueOnError),
		Usage: "check <file>",
		Short: "Verify every chain and print a content digest",
		Long: `Walk every chain and verify links, slot placement and key uniqueness.

On success prints "ok", the entry count and a digest that is equal for two
maps holding the same pairs.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 1, "check <file>"); err != nil {
				return err
			}

			return g.withMap(ctx, args[0], func(m *shmap.Map) error {
				if err := m.Check(ctx); err != nil {
					return err
				}

				n, err := m.Size(ctx)
				if err != nil {
					return err
				}

				digest, err := m.Digest(ctx)
				if err != nil {
					return err
				}

				o.Println("ok")
				o.Printf("entries: %d\n", n)
				o.Printf("digest:  %016x\n", digest)

				return nil
			})
		},
	}
}
