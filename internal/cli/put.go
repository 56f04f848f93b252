package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/longmap"
	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// putCmd returns the put command.
func putCmd(g *globals) *Command {
	flags := flag.NewFlagSet("put", flag.ContinueOnError)
	flags.Bool("sync", false, "Flush the region to disk before returning")

	return &Command{
		Flags: flags,
		Usage: "put <file> <key> <value>",
		Short: "Store a value and print the previous one",
		Long: `Store value under key and print the value it replaces (0 if the key was absent).

Keys and values are signed 64-bit integers in decimal, or hex with 0x.
Once the overflow zone is used up, inserts that need a new chain record
fail. Overwrites of stored keys still succeed.`,
		NumericArgs: true,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execPut(ctx, o, g, flags, args)
		},
	}
}

func execPut(ctx context.Context, o *IO, g *globals, flags *flag.FlagSet, args []string) error {
	if err := wantArgs(args, 3, "put <file> <key> <value>"); err != nil {
		return err
	}

	key, err := parseInt64("key", args[1])
	if err != nil {
		return err
	}

	value, err := parseInt64("value", args[2])
	if err != nil {
		return err
	}

	syncAfter, _ := flags.GetBool("sync")

	return g.withMap(ctx, args[0], func(m *shmap.Map) error {
		prev, err := m.Put(ctx, key, value)
		if err != nil {
			if errors.Is(err, longmap.ErrFull) {
				o.Warn("map is full", "create a larger map and restore into it, or snapshot and reset")
			}

			return err
		}

		if syncAfter {
			if err := m.Sync(ctx); err != nil {
				return err
			}
		}

		o.Println(prev)

		return nil
	})
}
