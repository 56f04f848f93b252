package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dkrasilov/vk-test/pkg/shmap"
)

var (
	ErrMapNotFound  = errors.New("map file not found")
	ErrMapExists    = errors.New("map file already exists")
	ErrArgCount     = errors.New("wrong number of arguments")
	ErrInvalidValue = errors.New("invalid integer")
)

func (g *globals) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(g.workDir, path)
}

func (g *globals) options(path string) shmap.Options {
	return shmap.Options{
		Path:        g.resolve(path),
		LockTimeout: g.cfg.LockTimeoutDuration(),
		NoWait:      g.noWait,
		Logger:      g.log,
		FS:          g.fs,
	}
}

// open attaches to an existing map file. Unlike shmap.Open it never creates
// one, so a mistyped path fails instead of leaving an empty file behind.
func (g *globals) open(ctx context.Context, path string) (*shmap.Map, error) {
	opts := g.options(path)

	exists, err := g.fs.Exists(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, path)
	}

	return shmap.Open(ctx, opts)
}

// withMap opens path, runs fn and closes the map.
func (g *globals) withMap(ctx context.Context, path string, fn func(m *shmap.Map) error) (err error) {
	m, err := g.open(ctx, path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, m.Close())
	}()

	return fn(m)
}

func parseInt64(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %q", ErrInvalidValue, name, s)
	}

	return v, nil
}

func wantArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("%w: want %s", ErrArgCount, usage)
	}

	return nil
}
