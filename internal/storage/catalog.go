package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ───────────────────────────────────────────────────────────────────────────
// System catalog
// ───────────────────────────────────────────────────────────────────────────
//
// The catalog is two heap files storing fixed-size rows: one CatalogEntry per
// table and one ColumnEntry per column. Page 0 roots everything:
//
//   data[0:8]   magic "MARQDB1\x00"
//   data[8:12]  tables-heap header pid (uint32 LE)
//   data[12:16] columns-heap header pid (uint32 LE)
//
// Bootstrapping an empty file lays out pages 0..4 in order: catalog, tables
// header, tables first data page, columns header, columns first data page.

const (
	// CatalogPID is the fixed page id of the catalog root page.
	CatalogPID PageID = 0

	// TableNameMax and ColNameMax are the fixed name buffer sizes. Names
	// must leave room for a trailing NUL, so at most 31 bytes each.
	TableNameMax = 32
	ColNameMax   = 32

	// MaxColumns bounds the number of columns per table.
	MaxColumns = 32

	catalogMagic = "MARQDB1\x00"

	catMagicOff   = 0
	catTablesOff  = 8
	catColumnsOff = 12

	catalogEntrySize = TableNameMax + 4
	columnEntrySize  = TableNameMax + ColNameMax + 2
)

var (
	// ErrNotDatabase is returned when page 0 does not carry the magic.
	ErrNotDatabase = errors.New("not a marqdb database file")

	// ErrTableExists is returned by CreateTable for duplicate names.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound is returned when a name resolves to no table.
	ErrTableNotFound = errors.New("table not found")

	// ErrBadTableDef is returned for invalid names or column lists.
	ErrBadTableDef = errors.New("invalid table definition")
)

// CatalogEntry is one row of the tables heap.
type CatalogEntry struct {
	Name          string
	HeapHeaderPID PageID
}

// ColumnEntry is one row of the columns heap.
type ColumnEntry struct {
	Table   string
	Col     string
	Type    ColType
	Ordinal uint8
}

// Catalog resolves table names to heap roots and schemas. It owns the two
// system heaps rooted at page 0.
type Catalog struct {
	pool    *BufferPool
	tables  *HeapFile
	columns *HeapFile
}

// OpenCatalog opens the catalog of an existing database, or bootstraps a
// brand new one when the backing file is empty.
func OpenCatalog(pool *BufferPool) (*Catalog, error) {
	size, err := pool.Disk().Size()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return bootstrapCatalog(pool)
	}

	g, err := pool.Fetch(CatalogPID)
	if err != nil {
		return nil, fmt.Errorf("read catalog page: %w", err)
	}
	d := g.Page().Data()
	if string(d[catMagicOff:catMagicOff+len(catalogMagic)]) != catalogMagic {
		g.Release()
		return nil, ErrNotDatabase
	}
	tablesPID := PageID(binary.LittleEndian.Uint32(d[catTablesOff:]))
	columnsPID := PageID(binary.LittleEndian.Uint32(d[catColumnsOff:]))
	g.Release()

	tables, err := OpenHeap(pool, tablesPID)
	if err != nil {
		return nil, fmt.Errorf("open tables heap: %w", err)
	}
	columns, err := OpenHeap(pool, columnsPID)
	if err != nil {
		return nil, fmt.Errorf("open columns heap: %w", err)
	}
	return &Catalog{pool: pool, tables: tables, columns: columns}, nil
}

func bootstrapCatalog(pool *BufferPool) (*Catalog, error) {
	dm := pool.Disk()

	catPID, err := dm.AllocPage()
	if err != nil {
		return nil, err
	}
	if catPID != CatalogPID {
		return nil, fmt.Errorf("catalog bootstrap allocated page %d, want %d", catPID, CatalogPID)
	}

	tablesHdr, err := dm.AllocPage()
	if err != nil {
		return nil, err
	}
	tablesData, err := dm.AllocPage()
	if err != nil {
		return nil, err
	}
	tables, err := BootstrapHeap(pool, tablesHdr, tablesData)
	if err != nil {
		return nil, err
	}

	columnsHdr, err := dm.AllocPage()
	if err != nil {
		return nil, err
	}
	columnsData, err := dm.AllocPage()
	if err != nil {
		return nil, err
	}
	columns, err := BootstrapHeap(pool, columnsHdr, columnsData)
	if err != nil {
		return nil, err
	}

	g, err := pool.Fetch(CatalogPID)
	if err != nil {
		return nil, err
	}
	d := g.Page().Data()
	copy(d[catMagicOff:], catalogMagic)
	binary.LittleEndian.PutUint32(d[catTablesOff:], uint32(tablesHdr))
	binary.LittleEndian.PutUint32(d[catColumnsOff:], uint32(columnsHdr))
	g.MarkDirty()
	g.Release()

	return &Catalog{pool: pool, tables: tables, columns: columns}, nil
}

// ── Fixed-size row encoding ───────────────────────────────────────────────

func putName(dst []byte, name string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, name)
}

// getName reads a NUL-padded name buffer back into a string.
func getName(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}

func encodeCatalogEntry(e CatalogEntry) []byte {
	out := make([]byte, catalogEntrySize)
	putName(out[:TableNameMax], e.Name)
	binary.LittleEndian.PutUint32(out[TableNameMax:], uint32(e.HeapHeaderPID))
	return out
}

func decodeCatalogEntry(rec []byte) (CatalogEntry, error) {
	if len(rec) != catalogEntrySize {
		return CatalogEntry{}, fmt.Errorf("catalog entry of %d bytes: %w", len(rec), ErrRowCorrupt)
	}
	return CatalogEntry{
		Name:          getName(rec[:TableNameMax]),
		HeapHeaderPID: PageID(binary.LittleEndian.Uint32(rec[TableNameMax:])),
	}, nil
}

func encodeColumnEntry(e ColumnEntry) []byte {
	out := make([]byte, columnEntrySize)
	putName(out[:TableNameMax], e.Table)
	putName(out[TableNameMax:TableNameMax+ColNameMax], e.Col)
	out[TableNameMax+ColNameMax] = byte(e.Type)
	out[TableNameMax+ColNameMax+1] = e.Ordinal
	return out
}

func decodeColumnEntry(rec []byte) (ColumnEntry, error) {
	if len(rec) != columnEntrySize {
		return ColumnEntry{}, fmt.Errorf("column entry of %d bytes: %w", len(rec), ErrRowCorrupt)
	}
	return ColumnEntry{
		Table:   getName(rec[:TableNameMax]),
		Col:     getName(rec[TableNameMax : TableNameMax+ColNameMax]),
		Type:    ColType(rec[TableNameMax+ColNameMax]),
		Ordinal: rec[TableNameMax+ColNameMax+1],
	}, nil
}

// ── Lookups ───────────────────────────────────────────────────────────────

// findEntry scans the tables heap for name, returning the entry and its RID.
func (c *Catalog) findEntry(name string) (CatalogEntry, RID, bool, error) {
	sc := c.tables.Scan()
	defer sc.Close()
	for sc.Next() {
		e, err := decodeCatalogEntry(sc.Record())
		if err != nil {
			return CatalogEntry{}, RID{}, false, err
		}
		if e.Name == name {
			return e, sc.RID(), true, nil
		}
	}
	return CatalogEntry{}, RID{}, false, sc.Err()
}

// FindTable returns the heap header pid for name, or ok=false.
func (c *Catalog) FindTable(name string) (PageID, bool, error) {
	e, _, ok, err := c.findEntry(name)
	return e.HeapHeaderPID, ok, err
}

// ListTables returns all table names, sorted.
func (c *Catalog) ListTables() ([]string, error) {
	var names []string
	sc := c.tables.Scan()
	defer sc.Close()
	for sc.Next() {
		e, err := decodeCatalogEntry(sc.Record())
		if err != nil {
			return nil, err
		}
		names = append(names, e.Name)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// CreateTable allocates a heap for a new table and records its entry and
// column rows. The new heap's header pid is returned.
func (c *Catalog) CreateTable(name string, cols []Column) (PageID, error) {
	if name == "" || len(name) >= TableNameMax {
		return InvalidPageID, fmt.Errorf("table name %q: %w", name, ErrBadTableDef)
	}
	if len(cols) == 0 || len(cols) > MaxColumns {
		return InvalidPageID, fmt.Errorf("%d columns: %w", len(cols), ErrBadTableDef)
	}
	for _, col := range cols {
		if col.Name == "" || len(col.Name) >= ColNameMax {
			return InvalidPageID, fmt.Errorf("column name %q: %w", col.Name, ErrBadTableDef)
		}
	}
	if _, _, ok, err := c.findEntry(name); err != nil {
		return InvalidPageID, err
	} else if ok {
		return InvalidPageID, fmt.Errorf("table %q: %w", name, ErrTableExists)
	}

	dm := c.pool.Disk()
	hdr, err := dm.AllocPage()
	if err != nil {
		return InvalidPageID, err
	}
	data, err := dm.AllocPage()
	if err != nil {
		return InvalidPageID, err
	}
	if _, err := BootstrapHeap(c.pool, hdr, data); err != nil {
		return InvalidPageID, err
	}

	if _, err := c.tables.Insert(encodeCatalogEntry(CatalogEntry{Name: name, HeapHeaderPID: hdr})); err != nil {
		return InvalidPageID, err
	}
	for i, col := range cols {
		e := ColumnEntry{Table: name, Col: col.Name, Type: col.Type, Ordinal: uint8(i)}
		if _, err := c.columns.Insert(encodeColumnEntry(e)); err != nil {
			return InvalidPageID, err
		}
	}
	return hdr, nil
}

// LoadSchema collects the column definitions of table, ordered by ordinal.
func (c *Catalog) LoadSchema(table string) ([]Column, error) {
	out := make([]Column, MaxColumns)
	n := 0
	sc := c.columns.Scan()
	defer sc.Close()
	for sc.Next() {
		e, err := decodeColumnEntry(sc.Record())
		if err != nil {
			return nil, err
		}
		if e.Table != table || int(e.Ordinal) >= MaxColumns {
			continue
		}
		out[e.Ordinal] = Column{Name: e.Col, Type: e.Type}
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	// CreateTable writes contiguous ordinals, so the populated prefix is
	// exactly n entries long.
	return out[:n], nil
}

// OpenTable opens the heap file backing table.
func (c *Catalog) OpenTable(table string) (*HeapFile, error) {
	pid, ok, err := c.FindTable(table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrTableNotFound)
	}
	return OpenHeap(c.pool, pid)
}

// SetTableRoot repoints table's catalog entry at a new heap header. Entries
// are fixed-size, so the rewrite always fits in place. Used by VACUUM.
func (c *Catalog) SetTableRoot(table string, hdr PageID) error {
	e, rid, ok, err := c.findEntry(table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table %q: %w", table, ErrTableNotFound)
	}
	e.HeapHeaderPID = hdr
	return c.tables.Overwrite(rid, encodeCatalogEntry(e))
}

// Pool returns the buffer pool the catalog runs on.
func (c *Catalog) Pool() *BufferPool { return c.pool }
