package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

// restoreCmd returns the restore command.
func restoreCmd(g *globals) *Command {
	return &Command{
		Flags: flag.NewFlagSet("restore", flag.ContinueOnError),
		Usage: "restore <snapshot> <file>",
		Short: "Replace a map with a snapshot",
		Long: `Replace the contents of file with the snapshot.

The snapshot is verified before anything is written. If file does not exist
it is created with the snapshot's region size; otherwise sizes must match.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 2, "restore <snapshot> <file>"); err != nil {
				return err
			}

			return execRestore(ctx, o, g, args[0], args[1])
		},
	}
}

func execRestore(ctx context.Context, o *IO, g *globals, snapshot, file string) (err error) {
	snapPath := g.resolve(snapshot)

	info, err := shmap.ReadSnapshotInfo(g.fs, snapPath)
	if err != nil {
		return err
	}

	opts := g.options(file)

	exists, err := g.fs.Exists(opts.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	if !exists {
		opts.Size = info.Length
	}

	m, err := shmap.Open(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, m.Close())
	}()

	n, err := m.Restore(ctx, snapPath)
	if err != nil {
		if !exists {
			// Don't leave the empty map created above behind.
			_ = m.Close()
			_ = g.fs.Remove(opts.Path)
		}

		return err
	}

	if err := m.Sync(ctx); err != nil {
		return err
	}

	o.Printf("Restored %s (%d entries)\n", file, n)

	return nil
}
