package shmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dkrasilov/vk-test/internal/fs"
	"github.com/dkrasilov/vk-test/internal/logging"
	"github.com/dkrasilov/vk-test/pkg/longmap"
	"github.com/dkrasilov/vk-test/pkg/shm"
)

// lockSuffix is appended to the map path to name its lock file.
const lockSuffix = ".lock"

// Options configures [Open].
type Options struct {
	// Path is the map file. Required.
	Path string

	// Size is the region size in bytes used when the file is created or
	// reset. 0 maps an existing file at its current length.
	Size int64

	// Reset discards any existing file and formats an empty map.
	Reset bool

	// LockTimeout bounds how long each operation waits for the region lock.
	// 0 waits until the context is done.
	LockTimeout time.Duration

	// NoWait makes every operation try the region lock once and fail with
	// [ErrBusy] when another handle holds it. LockTimeout is ignored.
	NoWait bool

	// Logger receives structured logs. nil discards them.
	Logger *logging.Logger

	// FS is used for lock files and snapshots. nil uses the real filesystem.
	FS fs.FS
}

// Map is a longmap living in a shared, file-backed region.
//
// Map is safe for concurrent use by multiple goroutines, and cooperates with
// other processes that open the same path through this package.
type Map struct {
	mu sync.RWMutex

	path        string
	lockPath    string
	lockTimeout time.Duration
	noWait      bool

	fs     fs.FS
	locker *fs.Locker
	log    *logging.Logger

	region *shm.Region
	m      *longmap.Map
	closed bool
}

// Open maps the file at opts.Path and attaches to the map inside it,
// formatting a new map if the file is new or opts.Reset is set.
//
// Open holds the exclusive region lock while it creates, resets or validates
// the file. Returns [ErrBusy] if the lock is not acquired in time,
// [longmap.ErrCorrupt] for a file that does not hold a valid map, and
// [longmap.ErrRegionTooSmall] for a size that cannot hold a map.
func Open(ctx context.Context, opts Options) (*Map, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is empty: %w", ErrInvalidInput)
	}

	if opts.Size < 0 {
		return nil, fmt.Errorf("size %d is negative: %w", opts.Size, ErrInvalidInput)
	}

	if opts.LockTimeout < 0 {
		return nil, fmt.Errorf("lock timeout %s is negative: %w", opts.LockTimeout, ErrInvalidInput)
	}

	if opts.Reset && opts.Size == 0 {
		return nil, fmt.Errorf("reset needs a size: %w", ErrInvalidInput)
	}

	filesystem := opts.FS
	if filesystem == nil {
		filesystem = fs.NewReal()
	}

	log := opts.Logger
	if log == nil {
		log = logging.NoopLogger()
	}

	sm := &Map{
		path:        opts.Path,
		lockPath:    opts.Path + lockSuffix,
		lockTimeout: opts.LockTimeout,
		noWait:      opts.NoWait,
		fs:          filesystem,
		locker:      fs.NewLocker(filesystem),
		log:         log.WithPath(opts.Path),
	}

	err := sm.withLock(ctx, false, func() error {
		return sm.open(ctx, opts)
	})
	if err != nil {
		return nil, err
	}

	return sm, nil
}

func (sm *Map) open(ctx context.Context, opts Options) error {
	if opts.Reset {
		if err := sm.fs.Remove(sm.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reset %s: %w", sm.path, err)
		}
	}

	region, err := shm.OpenFile(sm.path, opts.Size)
	if err != nil {
		return fmt.Errorf("map region: %w", err)
	}

	var m *longmap.Map

	arena := longmap.NewArena(region.Bytes())

	if region.Created() {
		m, err = longmap.New(arena, region.Len())
	} else {
		m, err = longmap.Attach(arena)
	}

	if err != nil {
		_ = region.Close()

		if region.Created() {
			// Leave no unformatted file behind for the next Open to trip on.
			_ = sm.fs.Remove(sm.path)
		}

		return fmt.Errorf("%s: %w", sm.path, err)
	}

	if err := region.Advise(shm.AccessRandom); err != nil {
		sm.log.WarnContext(ctx, "madvise failed", "error", err)
	}

	sm.region = region
	sm.m = m

	geo := m.Geometry()
	sm.log.LogOpen(ctx, region.Created(), geo.IndexedCapacity, geo.Size)

	return nil
}

// Put associates value with key and returns the previous value, or 0 if the
// key was absent. See [longmap.Map.Put].
func (sm *Map) Put(ctx context.Context, key, value int64) (int64, error) {
	var prev int64

	err := sm.write(ctx, func(m *longmap.Map) error {
		var putErr error

		prev, putErr = m.Put(key, value)

		return putErr
	})

	sm.log.LogPut(ctx, key, prev, err)

	return prev, err
}

// Get returns the value stored for key, or 0 if key is absent.
func (sm *Map) Get(ctx context.Context, key int64) (int64, error) {
	var v int64

	err := sm.read(ctx, func(m *longmap.Map) error {
		v = m.Get(key)

		return nil
	})

	return v, err
}

// Size returns the number of distinct keys stored.
func (sm *Map) Size(ctx context.Context) (int64, error) {
	var n int64

	err := sm.read(ctx, func(m *longmap.Map) error {
		n = m.Size()

		return nil
	})

	return n, err
}

// Stats returns an occupancy summary.
func (sm *Map) Stats(ctx context.Context) (longmap.Stats, error) {
	var s longmap.Stats

	err := sm.read(ctx, func(m *longmap.Map) error {
		var statsErr error

		s, statsErr = m.Stats()

		return statsErr
	})

	return s, err
}

// Check verifies every chain in the region.
func (sm *Map) Check(ctx context.Context) error {
	return sm.read(ctx, func(m *longmap.Map) error {
		return m.Check()
	})
}

// Digest returns an order-independent checksum of the stored pairs.
func (sm *Map) Digest(ctx context.Context) (uint64, error) {
	var d uint64

	err := sm.read(ctx, func(m *longmap.Map) error {
		var digestErr error

		d, digestErr = m.Digest()

		return digestErr
	})

	return d, err
}

// String renders the stored pairs as "LongMap(k -> v, ...)".
func (sm *Map) String(ctx context.Context) (string, error) {
	var s string

	err := sm.read(ctx, func(m *longmap.Map) error {
		s = m.String()

		return nil
	})

	return s, err
}

// Dump writes the region layout, and with verbose every chain, to w.
func (sm *Map) Dump(ctx context.Context, w io.Writer, verbose bool) error {
	return sm.read(ctx, func(m *longmap.Map) error {
		return m.Dump(w, verbose)
	})
}

// Geometry returns the region layout. It never changes while the Map is open.
func (sm *Map) Geometry() longmap.Geometry {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.m == nil {
		return longmap.Geometry{}
	}

	return sm.m.Geometry()
}

// Path returns the map file path.
func (sm *Map) Path() string {
	return sm.path
}

// Sync flushes the region to disk.
func (sm *Map) Sync(ctx context.Context) error {
	return sm.read(ctx, func(*longmap.Map) error {
		return sm.region.Sync()
	})
}

// Close unmaps the region. It does not sync; call [Map.Sync] first if the
// file must be durable. Close is idempotent.
func (sm *Map) Close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil
	}

	sm.closed = true
	sm.m = nil

	if err := sm.region.Close(); err != nil {
		return fmt.Errorf("close %s: %w", sm.path, err)
	}

	return nil
}

// read runs fn under the handle's read lock and the shared region lock.
func (sm *Map) read(ctx context.Context, fn func(m *longmap.Map) error) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.closed {
		return ErrClosed
	}

	return sm.withLock(ctx, true, func() error { return fn(sm.m) })
}

// write runs fn under the handle's write lock and the exclusive region lock.
func (sm *Map) write(ctx context.Context, fn func(m *longmap.Map) error) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return ErrClosed
	}

	return sm.withLock(ctx, false, func() error { return fn(sm.m) })
}

// withLock holds the region flock around fn.
func (sm *Map) withLock(ctx context.Context, shared bool, fn func() error) (err error) {
	if sm.lockTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, sm.lockTimeout)
		defer cancel()
	}

	start := time.Now()

	var lock *fs.Lock

	switch {
	case sm.noWait && shared:
		lock, err = sm.locker.TryRLock(sm.lockPath)
	case sm.noWait:
		lock, err = sm.locker.TryLock(sm.lockPath)
	case shared:
		lock, err = sm.locker.RLock(ctx, sm.lockPath)
	default:
		lock, err = sm.locker.Lock(ctx, sm.lockPath)
	}

	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}

		return fmt.Errorf("lock %s: %w", sm.lockPath, err)
	}

	sm.log.LogLockWait(ctx, lock.Shared(), time.Since(start))

	defer func() {
		if closeErr := lock.Close(); closeErr != nil {
			sm.log.WarnContext(ctx, "unlock failed", "error", closeErr)
		}
	}()

	return fn()
}
