package shmap

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/dkrasilov/vk-test/internal/fs"
	"github.com/dkrasilov/vk-test/pkg/longmap"
)

// Snapshot file layout: a fixed little-endian header followed by one zstd
// frame holding the raw region bytes.
const (
	snapMagic      = "LLSN"
	snapVersion    = 1
	snapHeaderSize = 40

	snapOffMagic    = 0x00 // [4]byte
	snapOffVersion  = 0x04 // uint32
	snapOffLength   = 0x08 // int64, region length
	snapOffEntries  = 0x10 // int64, Size() at snapshot time
	snapOffDigest   = 0x18 // uint64, Digest() at snapshot time
	snapOffReserved = 0x20 // uint64, must be zero
)

type snapshotHeader struct {
	length  int64
	entries int64
	digest  uint64
}

func (h snapshotHeader) encode() []byte {
	buf := make([]byte, snapHeaderSize)

	copy(buf[snapOffMagic:], snapMagic)
	binary.LittleEndian.PutUint32(buf[snapOffVersion:], snapVersion)
	binary.LittleEndian.PutUint64(buf[snapOffLength:], uint64(h.length))
	binary.LittleEndian.PutUint64(buf[snapOffEntries:], uint64(h.entries))
	binary.LittleEndian.PutUint64(buf[snapOffDigest:], h.digest)

	return buf
}

func decodeSnapshotHeader(buf []byte) (snapshotHeader, error) {
	if len(buf) < snapHeaderSize {
		return snapshotHeader{}, fmt.Errorf("header is %d bytes: %w", len(buf), ErrSnapshotInvalid)
	}

	if string(buf[snapOffMagic:snapOffMagic+4]) != snapMagic {
		return snapshotHeader{}, fmt.Errorf("bad magic %q: %w", buf[snapOffMagic:snapOffMagic+4], ErrSnapshotInvalid)
	}

	if v := binary.LittleEndian.Uint32(buf[snapOffVersion:]); v != snapVersion {
		return snapshotHeader{}, fmt.Errorf("version %d, want %d: %w", v, snapVersion, ErrSnapshotInvalid)
	}

	if binary.LittleEndian.Uint64(buf[snapOffReserved:]) != 0 {
		return snapshotHeader{}, fmt.Errorf("reserved bytes set: %w", ErrSnapshotInvalid)
	}

	h := snapshotHeader{
		length:  int64(binary.LittleEndian.Uint64(buf[snapOffLength:])),
		entries: int64(binary.LittleEndian.Uint64(buf[snapOffEntries:])),
		digest:  binary.LittleEndian.Uint64(buf[snapOffDigest:]),
	}

	if h.length <= 0 || h.entries < 0 {
		return snapshotHeader{}, fmt.Errorf("length %d entries %d: %w", h.length, h.entries, ErrSnapshotInvalid)
	}

	return h, nil
}

// SnapshotInfo describes a snapshot file as recorded in its header.
type SnapshotInfo struct {
	Length  int64  // region length in bytes
	Entries int64  // Size at snapshot time
	Digest  uint64 // Digest at snapshot time
}

// ReadSnapshotInfo reads only the header of the snapshot at path. It does not
// verify the image; use [Map.Restore] for that. nil filesystem uses the real
// one.
func ReadSnapshotInfo(filesystem fs.FS, path string) (SnapshotInfo, error) {
	if filesystem == nil {
		filesystem = fs.NewReal()
	}

	f, err := filesystem.Open(path)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	buf := make([]byte, snapHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return SnapshotInfo{}, fmt.Errorf("read header: %w: %w", ErrSnapshotInvalid, err)
	}

	h, err := decodeSnapshotHeader(buf)
	if err != nil {
		return SnapshotInfo{}, err
	}

	return SnapshotInfo{Length: h.length, Entries: h.entries, Digest: h.digest}, nil
}

// Snapshot writes a compressed image of the region to path and returns the
// number of entries it holds.
//
// The shared region lock is held while the image is written, so writers
// wait but readers proceed. The file is replaced atomically.
func (sm *Map) Snapshot(ctx context.Context, path string) (int64, error) {
	var entries int64

	err := sm.read(ctx, func(m *longmap.Map) error {
		digest, err := m.Digest()
		if err != nil {
			return fmt.Errorf("digest: %w", err)
		}

		entries = m.Size()
		header := snapshotHeader{length: sm.region.Len(), entries: entries, digest: digest}

		return sm.writeSnapshot(ctx, path, header, sm.region.Bytes())
	})

	sm.log.LogSnapshot(ctx, path, entries, err)

	return entries, err
}

// writeSnapshot streams header and compressed region into an atomic file
// write.
func (sm *Map) writeSnapshot(ctx context.Context, path string, header snapshotHeader, region []byte) error {
	pr, pw := io.Pipe()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := encodeSnapshot(ctx, pw, header, region)
		_ = pw.CloseWithError(err)

		return err
	})

	g.Go(func() error {
		err := sm.fs.WriteFileAtomic(path, pr)
		_ = pr.CloseWithError(err)

		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		return nil
	})

	return g.Wait()
}

// encodeChunk bounds how much region is compressed between context checks.
const encodeChunk = 1 << 20

func encodeSnapshot(ctx context.Context, w io.Writer, header snapshotHeader, region []byte) error {
	if _, err := w.Write(header.encode()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	for off := 0; off < len(region); off += encodeChunk {
		if err := ctx.Err(); err != nil {
			_ = enc.Close()

			return err
		}

		end := min(off+encodeChunk, len(region))

		if _, err := enc.Write(region[off:end]); err != nil {
			_ = enc.Close()

			return fmt.Errorf("compress: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	return nil
}

// Restore replaces the region with the image in the snapshot at path and
// returns the number of entries restored.
//
// The snapshot must come from a region of the same length. It is fully
// decoded and verified (header, map layout, chains, digest) before the
// exclusive region lock is taken, so a bad snapshot leaves the map untouched.
func (sm *Map) Restore(ctx context.Context, path string) (int64, error) {
	image, header, err := sm.readSnapshot(path)
	if err != nil {
		sm.log.LogRestore(ctx, path, 0, err)

		return 0, err
	}

	err = sm.write(ctx, func(*longmap.Map) error {
		copy(sm.region.Bytes(), image)

		m, attachErr := longmap.Attach(longmap.NewArena(sm.region.Bytes()))
		if attachErr != nil {
			return fmt.Errorf("attach restored region: %w", attachErr)
		}

		sm.m = m

		return nil
	})

	if err != nil {
		sm.log.LogRestore(ctx, path, 0, err)

		return 0, err
	}

	sm.log.LogRestore(ctx, path, header.entries, nil)

	return header.entries, nil
}

// readSnapshot decodes and verifies the snapshot at path.
func (sm *Map) readSnapshot(path string) ([]byte, snapshotHeader, error) {
	f, err := sm.fs.Open(path)
	if err != nil {
		return nil, snapshotHeader{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	headerBuf := make([]byte, snapHeaderSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		return nil, snapshotHeader{}, fmt.Errorf("read header: %w: %w", ErrSnapshotInvalid, err)
	}

	header, err := decodeSnapshotHeader(headerBuf)
	if err != nil {
		return nil, snapshotHeader{}, err
	}

	regionLen, err := sm.regionLen()
	if err != nil {
		return nil, snapshotHeader{}, err
	}

	if header.length != regionLen {
		return nil, snapshotHeader{}, fmt.Errorf("snapshot of %d bytes, region is %d: %w",
			header.length, regionLen, ErrSnapshotInvalid)
	}

	dec, err := zstd.NewReader(f, zstd.WithDecoderMaxMemory(uint64(header.length)+1<<20))
	if err != nil {
		return nil, snapshotHeader{}, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	image := make([]byte, header.length)
	if _, err := io.ReadFull(dec, image); err != nil {
		return nil, snapshotHeader{}, fmt.Errorf("decompress: %w: %w", ErrSnapshotInvalid, err)
	}

	// Trailing data means the header lied about the length.
	var extra [1]byte
	if n, _ := dec.Read(extra[:]); n != 0 {
		return nil, snapshotHeader{}, fmt.Errorf("image longer than %d bytes: %w", header.length, ErrSnapshotInvalid)
	}

	if err := verifyImage(image, header); err != nil {
		return nil, snapshotHeader{}, err
	}

	return image, header, nil
}

func verifyImage(image []byte, header snapshotHeader) error {
	m, err := longmap.Attach(longmap.NewArena(image))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
	}

	// Other handles on the region keep their geometry; the image must match it.
	want, err := longmap.Layout(int64(len(image)))
	if err != nil || m.Geometry().IndexedCapacity != want.IndexedCapacity {
		return fmt.Errorf("image capacity %d does not match region layout: %w",
			m.Geometry().IndexedCapacity, ErrSnapshotInvalid)
	}

	if err := m.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
	}

	if got := m.Size(); got != header.entries {
		return fmt.Errorf("image holds %d entries, header says %d: %w", got, header.entries, ErrSnapshotInvalid)
	}

	digest, err := m.Digest()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
	}

	if digest != header.digest {
		return fmt.Errorf("digest %#x, header says %#x: %w", digest, header.digest, ErrSnapshotInvalid)
	}

	return nil
}

func (sm *Map) regionLen() (int64, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.closed {
		return 0, ErrClosed
	}

	return sm.region.Len(), nil
}
