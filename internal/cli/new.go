package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/longmap"
	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// newCmd returns the new command.
func newCmd(g *globals) *Command {
	flags := flag.NewFlagSet("new", flag.ContinueOnError)
	flags.Int64P("size", "s", 0, "Region size in `bytes` (default: region_size from config)")
	flags.Int64("capacity", 0, "Size the region for `n` indexed slots instead of --size")
	flags.Bool("reset", false, "Replace an existing map file")

	return &Command{
		Flags: flags,
		Usage: "new <file> [flags]",
		Short: "Create an empty map file",
		Long: `Create a map file and format an empty map in it.

The region holds a 24-byte header, then indexed slots and twice as many
overflow records, 24 bytes each. Fails if the file exists, unless --reset.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execNew(ctx, o, g, flags, args)
		},
	}
}

func execNew(ctx context.Context, o *IO, g *globals, flags *flag.FlagSet, args []string) error {
	if err := wantArgs(args, 1, "new <file>"); err != nil {
		return err
	}

	size, _ := flags.GetInt64("size")
	capacity, _ := flags.GetInt64("capacity")
	reset, _ := flags.GetBool("reset")

	if flags.Changed("size") && flags.Changed("capacity") {
		return fmt.Errorf("%w: --size and --capacity are mutually exclusive", ErrInvalidValue)
	}

	switch {
	case flags.Changed("capacity"):
		if capacity <= 0 {
			return fmt.Errorf("%w for --capacity: %d", ErrInvalidValue, capacity)
		}

		size = longmap.RequiredSize(capacity)
		if size == 0 {
			return fmt.Errorf("%w for --capacity: %d exceeds the maximum region size", ErrInvalidValue, capacity)
		}
	case !flags.Changed("size"):
		size = g.cfg.RegionSize
	}

	if _, err := longmap.Layout(size); err != nil {
		return fmt.Errorf("size %d: %w", size, err)
	}

	opts := g.options(args[0])
	opts.Size = size
	opts.Reset = reset

	exists, err := g.fs.Exists(opts.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", args[0], err)
	}

	if exists && !reset {
		return fmt.Errorf("%w: %s (use --reset to replace it)", ErrMapExists, args[0])
	}

	m, err := shmap.Open(ctx, opts)
	if err != nil {
		return err
	}

	geo := m.Geometry()

	if err := m.Close(); err != nil {
		return err
	}

	o.Printf("Created %s: %d bytes, %d indexed + %d overflow records\n",
		args[0], geo.Size, geo.IndexedCapacity, geo.OverflowCapacity)

	return nil
}
