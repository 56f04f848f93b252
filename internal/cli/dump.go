package cli

import (
	"bytes"
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// dumpCmd returns the dump command.
func dumpCmd(g *globals) *Command {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
	flags.BoolP("verbose", "v", false, "List every chain with its records")
	flags.StringP("out", "o", "", "Write the dump to `path` instead of stdout (atomic replace)")
	flags.Bool("entries", false, "Print the stored pairs as LongMap(k -> v, ...) instead")

	return &Command{
		Flags: flags,
		Usage: "dump <file> [flags]",
		Short: "Print the region layout and chains",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execDump(ctx, o, g, flags, args)
		},
	}
}

func execDump(ctx context.Context, o *IO, g *globals, flags *flag.FlagSet, args []string) error {
	if err := wantArgs(args, 1, "dump <file>"); err != nil {
		return err
	}

	verbose, _ := flags.GetBool("verbose")
	out, _ := flags.GetString("out")
	entries, _ := flags.GetBool("entries")

	var buf bytes.Buffer

	err := g.withMap(ctx, args[0], func(m *shmap.Map) error {
		if entries {
			s, err := m.String(ctx)
			if err != nil {
				return err
			}

			buf.WriteString(s)
			buf.WriteByte('\n')

			return nil
		}

		return m.Dump(ctx, &buf, verbose)
	})
	if err != nil {
		return err
	}

	if out == "" {
		o.Printf("%s", buf.String())

		return nil
	}

	if err := g.fs.WriteFileAtomic(g.resolve(out), &buf); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	o.Println("Wrote", out)

	return nil
}
