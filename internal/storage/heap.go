package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Heap file
// ───────────────────────────────────────────────────────────────────────────
//
// A heap file is a header page plus a singly-linked chain of data pages. The
// header's data region records the first and last data page ids (two uint32s
// at offsets 0 and 4); the chain is terminated by NextPageID == InvalidPageID.
// Inserts start at the last page and extend the chain when the chain is full,
// keeping the tail pointer current. All page access goes through the buffer
// pool.

const (
	heapFirstOff = 0
	heapLastOff  = 4
)

// ErrRecordTooLarge is returned for records that cannot fit on any page.
var ErrRecordTooLarge = errors.New("record larger than page data region")

// ErrHeapHeaderUninitialized is returned by OpenHeap when the header page
// was never bootstrapped. Page 0 is always the catalog, so a real heap can
// never have data page 0; an all-zero header is therefore unambiguous.
var ErrHeapHeaderUninitialized = errors.New("heap header not bootstrapped")

// ErrNotFound is returned by point lookups that hit a tombstone or an
// out-of-range slot.
var ErrNotFound = errors.New("record not found")

// HeapFile stores variable-length records across a chain of slotted pages.
type HeapFile struct {
	pool      *BufferPool
	headerPID PageID
	firstData PageID
	lastData  PageID
}

// BootstrapHeap initializes a heap over freshly allocated pages: the header
// records firstDataPID as both head and tail of the chain. Both pages must
// already exist on disk (via AllocPage, which writes initialized pages).
func BootstrapHeap(pool *BufferPool, headerPID, firstDataPID PageID) (*HeapFile, error) {
	hf := &HeapFile{
		pool:      pool,
		headerPID: headerPID,
		firstData: firstDataPID,
		lastData:  firstDataPID,
	}
	if err := hf.writeHeader(); err != nil {
		return nil, err
	}
	return hf, nil
}

// OpenHeap recovers a heap file from its header page.
func OpenHeap(pool *BufferPool, headerPID PageID) (*HeapFile, error) {
	g, err := pool.Fetch(headerPID)
	if err != nil {
		return nil, fmt.Errorf("open heap %d: %w", headerPID, err)
	}
	defer g.Release()

	d := g.Page().Data()
	hf := &HeapFile{
		pool:      pool,
		headerPID: headerPID,
		firstData: PageID(binary.LittleEndian.Uint32(d[heapFirstOff:])),
		lastData:  PageID(binary.LittleEndian.Uint32(d[heapLastOff:])),
	}
	if hf.firstData == 0 && hf.lastData == 0 {
		return nil, fmt.Errorf("open heap %d: %w", headerPID, ErrHeapHeaderUninitialized)
	}
	return hf, nil
}

// HeaderPID returns the heap's header page id.
func (hf *HeapFile) HeaderPID() PageID { return hf.headerPID }

// FirstDataPID returns the head of the data page chain.
func (hf *HeapFile) FirstDataPID() PageID { return hf.firstData }

// LastDataPID returns the tail of the data page chain.
func (hf *HeapFile) LastDataPID() PageID { return hf.lastData }

// writeHeader persists first/last into the header page's data region.
func (hf *HeapFile) writeHeader() error {
	g, err := hf.pool.Fetch(hf.headerPID)
	if err != nil {
		return fmt.Errorf("heap header %d: %w", hf.headerPID, err)
	}
	defer g.Release()

	d := g.Page().Data()
	binary.LittleEndian.PutUint32(d[heapFirstOff:], uint32(hf.firstData))
	binary.LittleEndian.PutUint32(d[heapLastOff:], uint32(hf.lastData))
	g.MarkDirty()
	return nil
}

// Insert stores rec in the heap and returns its RID. The search starts at
// the tail page; a full chain is extended by allocating a new page and
// linking it behind the current tail.
func (hf *HeapFile) Insert(rec []byte) (RID, error) {
	if len(rec) > MaxRecordSize {
		return RID{}, fmt.Errorf("insert %d bytes: %w", len(rec), ErrRecordTooLarge)
	}

	pid := hf.lastData
	for {
		g, err := hf.pool.Fetch(pid)
		if err != nil {
			return RID{}, err
		}

		if slot, err := g.Page().Insert(rec); err == nil {
			g.MarkDirty()
			g.Release()
			return RID{PageID: pid, SlotID: slot}, nil
		}

		if next := g.Page().Next(); next != InvalidPageID {
			g.Release()
			pid = next
			continue
		}

		// Chain exhausted: extend it.
		newPID, err := hf.pool.Disk().AllocPage()
		if err != nil {
			g.Release()
			return RID{}, err
		}
		g.Page().SetNext(newPID)
		g.MarkDirty()
		g.Release()

		hf.lastData = newPID
		if err := hf.writeHeader(); err != nil {
			return RID{}, err
		}
		pid = newPID
	}
}

// Get returns a copy of the record at rid, or ErrNotFound for tombstones and
// out-of-range slots. Copying decouples the caller from the pin lifetime.
func (hf *HeapFile) Get(rid RID) ([]byte, error) {
	g, err := hf.pool.Fetch(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer g.Release()

	rec, ok := g.Page().Get(rid.SlotID)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}

// Overwrite replaces the record at rid in place. The replacement must be no
// longer than the slot's current length; otherwise the caller has to
// delete-and-reinsert.
func (hf *HeapFile) Overwrite(rid RID, rec []byte) error {
	g, err := hf.pool.Fetch(rid.PageID)
	if err != nil {
		return err
	}
	defer g.Release()

	if !g.Page().Overwrite(rid.SlotID, rec) {
		return fmt.Errorf("overwrite %v: %w", rid, ErrNotFound)
	}
	g.MarkDirty()
	return nil
}

// Delete tombstones the record at rid.
func (hf *HeapFile) Delete(rid RID) error {
	g, err := hf.pool.Fetch(rid.PageID)
	if err != nil {
		return err
	}
	defer g.Release()

	if !g.Page().Delete(rid.SlotID) {
		return fmt.Errorf("delete %v: %w", rid, ErrNotFound)
	}
	g.MarkDirty()
	return nil
}

// ───────────────────────────────────────────────────────────────────────────
// Heap scanner
// ───────────────────────────────────────────────────────────────────────────

// Scanner iterates every live record of a heap in (page, slot) order. The
// scanner holds at most one page pinned at a time; Record's slice borrows
// that pin and is valid only until the next call to Next or Close.
//
//	sc := hf.Scan()
//	defer sc.Close()
//	for sc.Next() {
//		use(sc.RID(), sc.Record())
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	hf   *HeapFile
	g    *FrameGuard
	pid  PageID
	slot uint16
	rec  []byte
	rid  RID
	err  error
	done bool
}

// Scan starts a forward scan at the first data page, slot 0.
func (hf *HeapFile) Scan() *Scanner {
	return &Scanner{hf: hf, pid: hf.firstData, slot: 0}
}

// Next advances to the next live record. It returns false at the end of the
// chain or on error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.pid != InvalidPageID {
		if s.g == nil {
			g, err := s.hf.pool.Fetch(s.pid)
			if err != nil {
				s.err = err
				s.done = true
				return false
			}
			s.g = g
		}

		p := s.g.Page()
		for ; s.slot < p.SlotCount(); s.slot++ {
			if rec, ok := p.Get(s.slot); ok {
				s.rec = rec
				s.rid = RID{PageID: s.pid, SlotID: s.slot}
				s.slot++
				return true
			}
		}

		next := p.Next()
		s.g.Release()
		s.g = nil
		s.pid = next
		s.slot = 0
	}
	s.done = true
	return false
}

// Record returns the current record. The slice aliases the pinned page and
// is invalidated by Next and Close.
func (s *Scanner) Record() []byte { return s.rec }

// RID returns the current record's identifier.
func (s *Scanner) RID() RID { return s.rid }

// Err returns the first error the scan hit, if any.
func (s *Scanner) Err() error { return s.err }

// Close releases the scanner's pin. Safe to call at any point and more than
// once.
func (s *Scanner) Close() {
	if s.g != nil {
		s.g.Release()
		s.g = nil
	}
	s.done = true
}
