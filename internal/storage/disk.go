package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/golib/memfile"
)

// ───────────────────────────────────────────────────────────────────────────
// Disk manager
// ───────────────────────────────────────────────────────────────────────────
//
// The disk manager owns one backing file and does page-granular I/O against
// it. Allocation is append-only: a new page's id is file_size / PageSize.
// There is no free list; pages abandoned by VACUUM are leaked by design.

// MemoryPath opens an in-memory database instead of a file on disk. Page
// semantics are identical; nothing survives Close.
const MemoryPath = ":memory:"

// BackingFile is the I/O surface the disk manager needs. *os.File satisfies
// it for durable databases, *memfile.File for in-memory ones.
type BackingFile interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
}

// ErrPageOutOfRange is returned when reading a page id at or beyond the
// current end of the file.
var ErrPageOutOfRange = errors.New("page id beyond end of file")

// DiskManager reads, writes, and allocates fixed-size pages on a backing file.
type DiskManager struct {
	f    BackingFile
	path string
}

// OpenDisk opens or creates the database file at path. The MemoryPath
// sentinel yields a purely in-memory backing file.
func OpenDisk(path string) (*DiskManager, error) {
	if path == MemoryPath {
		return &DiskManager{f: memfile.New(nil), path: path}, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	return &DiskManager{f: f, path: path}, nil
}

// NewDiskManager wraps an already-open backing file. Used by tests that run
// the full stack against a memfile.
func NewDiskManager(f BackingFile) *DiskManager {
	return &DiskManager{f: f}
}

// Path returns the database file path ("" for a wrapped backing file).
func (dm *DiskManager) Path() string { return dm.path }

// Size returns the current backing file size in bytes. It is always a
// multiple of PageSize after any successful operation.
func (dm *DiskManager) Size() (int64, error) {
	n, err := dm.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek end: %w", err)
	}
	return n, nil
}

// PageCount returns the number of pages currently in the file.
func (dm *DiskManager) PageCount() (uint32, error) {
	n, err := dm.Size()
	if err != nil {
		return 0, err
	}
	return uint32(n / PageSize), nil
}

// ReadPage reads page pid into out. A short read inside the file is
// zero-filled; a pid at or beyond the end of the file is rejected so that a
// corrupted page pointer cannot silently read zeroes.
func (dm *DiskManager) ReadPage(pid PageID, out *Page) error {
	count, err := dm.PageCount()
	if err != nil {
		return err
	}
	if uint32(pid) >= count {
		return fmt.Errorf("read page %d of %d: %w", pid, count, ErrPageOutOfRange)
	}

	out.buf = [PageSize]byte{}
	// A short read leaves the tail zeroed, matching a fresh page image.
	if _, err := dm.f.ReadAt(out.buf[:], int64(pid)*PageSize); err != nil &&
		!errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read page %d: %w", pid, err)
	}
	return nil
}

// WritePage writes page pid from in. WriteAt is unbuffered, so a returned
// nil means the page has reached the OS, which is the durability boundary.
func (dm *DiskManager) WritePage(pid PageID, in *Page) error {
	if _, err := dm.f.WriteAt(in.buf[:], int64(pid)*PageSize); err != nil {
		return fmt.Errorf("write page %d: %w", pid, err)
	}
	return nil
}

// AllocPage appends a fresh, initialized page to the file and returns its id.
func (dm *DiskManager) AllocPage() (PageID, error) {
	size, err := dm.Size()
	if err != nil {
		return InvalidPageID, err
	}
	pid := PageID(size / PageSize)

	var p Page
	p.Init(pid)
	if err := dm.WritePage(pid, &p); err != nil {
		return InvalidPageID, err
	}
	return pid, nil
}

// Sync flushes the backing file to stable storage when it supports that.
func (dm *DiskManager) Sync() error {
	if s, ok := dm.f.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Close syncs and closes the backing file.
func (dm *DiskManager) Close() error {
	if err := dm.Sync(); err != nil {
		return err
	}
	if c, ok := dm.f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
