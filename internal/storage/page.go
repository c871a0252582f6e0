// Package storage implements the paged storage core of marqdb: a slotted
// page format, a page-granular disk manager, a Clock buffer pool, heap files
// chained over data pages, a binary row codec, and the system catalog.
//
// The on-disk unit is a fixed 8 KiB page. All multi-byte integers are
// little-endian. Page 0 holds the catalog; pages are allocated densely by
// appending to the backing file.
package storage

import (
	"encoding/binary"
	"errors"
)

// ───────────────────────────────────────────────────────────────────────────
// Slotted Page
// ───────────────────────────────────────────────────────────────────────────
//
// A page stores variable-length records in a two-sided arena:
//
//   [0..24]              Page header
//   [24..24+FreeStart]   Record data, growing forward from data offset 0
//   ... free space ...
//   [24+FreeEnd..8192]   Slot directory, growing backward from the data end
//
// Header layout (24 bytes):
//   [0:4]    PageID       uint32
//   [4:8]    LSN          uint32 (reserved)
//   [8:10]   FreeStart    uint16 (low-water mark of the record heap)
//   [10:12]  FreeEnd      uint16 (high-water mark of the slot directory)
//   [12:14]  SlotCount    uint16
//   [14:16]  Flags        uint16 (reserved)
//   [16:20]  NextPageID   uint32 (0xFFFFFFFF = none)
//   [20:24]  Reserved
//
// Each slot entry is 6 bytes: Offset uint16 | Length uint16 | Deleted u8 | Pad u8.
// Slot i lives at a fixed address, data[PageDataSize-(i+1)*SlotSize], so a
// slot id stays valid for the lifetime of the page; FreeEnd is the derived
// value PageDataSize - SlotCount*SlotSize. Deletion sets the tombstone byte
// and never renumbers.

const (
	// PageSize is the fixed on-disk page size in bytes.
	PageSize = 8192

	// PageHeaderSize is the size of the page header in bytes.
	PageHeaderSize = 24

	// PageDataSize is the usable data region per page.
	PageDataSize = PageSize - PageHeaderSize

	// SlotSize is bytes per slot directory entry.
	SlotSize = 6

	// MaxRecordSize is the largest record a single page can hold.
	MaxRecordSize = PageDataSize - SlotSize
)

// InvalidPageID is the null page pointer, used to terminate page chains and
// to mark empty buffer frames.
const InvalidPageID PageID = 0xFFFFFFFF

// PageID is a zero-based page index within the backing file.
type PageID uint32

// RID names one record: the page it lives on and its slot within that page.
// It stays valid as long as the slot has not been tombstoned.
type RID struct {
	PageID PageID
	SlotID uint16
}

// Header field offsets.
const (
	pageIDOff    = 0
	pageLSNOff   = 4
	freeStartOff = 8
	freeEndOff   = 10
	slotCountOff = 12
	flagsOff     = 14
	nextPageOff  = 16
)

// ErrPageFull is returned by Insert when the record plus one slot entry does
// not fit between FreeStart and FreeEnd.
var ErrPageFull = errors.New("page full")

// Page is one fixed-size page, header and data region, exactly as stored on
// disk. Field access goes through accessor methods that decode the header in
// place, so a Page never needs a separate marshal step.
type Page struct {
	buf [PageSize]byte
}

// Init zeroes the page and resets the header for a fresh, empty page.
func (p *Page) Init(id PageID) {
	p.buf = [PageSize]byte{}
	p.SetID(id)
	p.setFreeStart(0)
	p.setFreeEnd(PageDataSize)
	p.setSlotCount(0)
	p.SetNext(InvalidPageID)
}

// ID returns the page id recorded in the header.
func (p *Page) ID() PageID {
	return PageID(binary.LittleEndian.Uint32(p.buf[pageIDOff:]))
}

// SetID records the page id in the header.
func (p *Page) SetID(id PageID) {
	binary.LittleEndian.PutUint32(p.buf[pageIDOff:], uint32(id))
}

// FreeStart is the number of record bytes used at the front of the data region.
func (p *Page) FreeStart() uint16 {
	return binary.LittleEndian.Uint16(p.buf[freeStartOff:])
}

func (p *Page) setFreeStart(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[freeStartOff:], v)
}

// FreeEnd is the data-region offset where the slot directory begins.
func (p *Page) FreeEnd() uint16 {
	return binary.LittleEndian.Uint16(p.buf[freeEndOff:])
}

func (p *Page) setFreeEnd(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[freeEndOff:], v)
}

// SlotCount returns the number of slots, tombstones included.
func (p *Page) SlotCount() uint16 {
	return binary.LittleEndian.Uint16(p.buf[slotCountOff:])
}

func (p *Page) setSlotCount(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[slotCountOff:], v)
}

// Next returns the successor page in a heap chain, or InvalidPageID.
func (p *Page) Next() PageID {
	return PageID(binary.LittleEndian.Uint32(p.buf[nextPageOff:]))
}

// SetNext links the page to its successor in a heap chain.
func (p *Page) SetNext(id PageID) {
	binary.LittleEndian.PutUint32(p.buf[nextPageOff:], uint32(id))
}

// Data returns the full data region of the page.
func (p *Page) Data() []byte {
	return p.buf[PageHeaderSize:]
}

// Bytes returns the raw page, header included, for disk I/O.
func (p *Page) Bytes() []byte {
	return p.buf[:]
}

// slotOff returns the data-region offset of slot i. The directory is anchored
// at the tail of the data region, so the address does not move as later slots
// are pushed.
func slotOff(i uint16) int {
	return PageDataSize - int(i+1)*SlotSize
}

type slot struct {
	offset  uint16
	length  uint16
	deleted bool
}

func (p *Page) getSlot(i uint16) slot {
	d := p.Data()
	off := slotOff(i)
	return slot{
		offset:  binary.LittleEndian.Uint16(d[off:]),
		length:  binary.LittleEndian.Uint16(d[off+2:]),
		deleted: d[off+4] != 0,
	}
}

func (p *Page) putSlot(i uint16, s slot) {
	d := p.Data()
	off := slotOff(i)
	binary.LittleEndian.PutUint16(d[off:], s.offset)
	binary.LittleEndian.PutUint16(d[off+2:], s.length)
	if s.deleted {
		d[off+4] = 1
	} else {
		d[off+4] = 0
	}
	d[off+5] = 0
}

// HasSpace reports whether a record of n bytes plus its slot entry fits.
func (p *Page) HasSpace(n int) bool {
	return int(p.FreeStart())+n+SlotSize <= int(p.FreeEnd())
}

// Insert appends a record and pushes a new slot entry for it. It returns the
// new slot id, which remains stable until the page is rebuilt. ErrPageFull is
// returned when the record does not fit.
func (p *Page) Insert(rec []byte) (uint16, error) {
	if len(rec) > MaxRecordSize || !p.HasSpace(len(rec)) {
		return 0, ErrPageFull
	}

	off := p.FreeStart()
	copy(p.Data()[off:], rec)
	p.setFreeStart(off + uint16(len(rec)))

	id := p.SlotCount()
	p.setFreeEnd(p.FreeEnd() - SlotSize)
	p.putSlot(id, slot{offset: off, length: uint16(len(rec))})
	p.setSlotCount(id + 1)
	return id, nil
}

// Get returns the record bytes at slotID, or ok=false if the slot is out of
// range or tombstoned. The returned slice aliases the page buffer; it is only
// valid while the caller holds the page pinned.
func (p *Page) Get(slotID uint16) ([]byte, bool) {
	if slotID >= p.SlotCount() {
		return nil, false
	}
	s := p.getSlot(slotID)
	if s.deleted {
		return nil, false
	}
	return p.Data()[s.offset : s.offset+s.length], true
}

// Delete tombstones the slot. The record bytes stay in place until a VACUUM
// rebuilds the heap.
func (p *Page) Delete(slotID uint16) bool {
	if slotID >= p.SlotCount() {
		return false
	}
	s := p.getSlot(slotID)
	s.deleted = true
	p.putSlot(slotID, s)
	return true
}

// Overwrite replaces the record at slotID in place. The new record must not
// be longer than the slot's current length; the freed tail, if any, is
// zeroed and the slot length updated.
func (p *Page) Overwrite(slotID uint16, rec []byte) bool {
	if slotID >= p.SlotCount() {
		return false
	}
	s := p.getSlot(slotID)
	if s.deleted || len(rec) > int(s.length) {
		return false
	}
	d := p.Data()
	copy(d[s.offset:], rec)
	for j := int(s.offset) + len(rec); j < int(s.offset+s.length); j++ {
		d[j] = 0
	}
	s.length = uint16(len(rec))
	p.putSlot(slotID, s)
	return true
}

// LiveRecords returns the count of non-tombstoned slots.
func (p *Page) LiveRecords() int {
	n := 0
	for i := uint16(0); i < p.SlotCount(); i++ {
		if !p.getSlot(i).deleted {
			n++
		}
	}
	return n
}

// FreeSpace returns the bytes available for one more record and its slot.
func (p *Page) FreeSpace() int {
	n := int(p.FreeEnd()) - int(p.FreeStart()) - SlotSize
	if n < 0 {
		return 0
	}
	return n
}
