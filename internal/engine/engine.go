package engine

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/markmorcos/marqdb/internal/storage"
)

// ───────────────────────────────────────────────────────────────────────────
// Engine
// ───────────────────────────────────────────────────────────────────────────

// Engine executes statements against one open database. It owns the disk
// manager, the buffer pool, and the catalog; row output and per-row
// diagnostics go to Out.
type Engine struct {
	disk *storage.DiskManager
	pool *storage.BufferPool
	cat  *storage.Catalog
	out  io.Writer
}

// Options configures an Engine.
type Options struct {
	// Path of the database file; storage.MemoryPath for an in-memory DB.
	Path string
	// CachePages is the buffer pool capacity; 0 = storage.DefaultPoolSize.
	CachePages int
	// Out receives result rows and diagnostics. Required.
	Out io.Writer
}

// Open opens (or creates and bootstraps) a database.
func Open(opts Options) (*Engine, error) {
	dm, err := storage.OpenDisk(opts.Path)
	if err != nil {
		return nil, err
	}
	pool := storage.NewBufferPool(dm, opts.CachePages)
	cat, err := storage.OpenCatalog(pool)
	if err != nil {
		_ = dm.Close()
		return nil, err
	}
	return &Engine{disk: dm, pool: pool, cat: cat, out: opts.Out}, nil
}

// Close flushes the pool and closes the backing file.
func (e *Engine) Close() error {
	if err := e.pool.Close(); err != nil {
		_ = e.disk.Close()
		return err
	}
	return e.disk.Close()
}

// Flush writes back all dirty pages.
func (e *Engine) Flush() error {
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	return e.disk.Sync()
}

// Stats returns the buffer pool traffic counters.
func (e *Engine) Stats() storage.PoolStats { return e.pool.Stats() }

// Tables lists the catalog's table names.
func (e *Engine) Tables() ([]string, error) { return e.cat.ListTables() }

// Execute parses and runs one statement line. Parse and execution errors are
// returned; per-row decode diagnostics are printed to Out and the statement
// continues.
func (e *Engine) Execute(line string) error {
	line = normalizeLine(line)
	if line == "" {
		return nil
	}
	stmt, err := Parse(line)
	if err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *CreateTableStmt:
		return e.execCreateTable(s)
	case *InsertStmt:
		return e.execInsert(s)
	case *SelectStmt:
		return e.execSelect(s)
	case *UpdateStmt:
		return e.execUpdate(s)
	case *DeleteStmt:
		return e.execDelete(s)
	case *VacuumStmt:
		return e.execVacuum(s)
	default:
		return fmt.Errorf("unhandled statement %T", stmt)
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Filter evaluation
// ───────────────────────────────────────────────────────────────────────────
//
// Filters evaluate against typed decoded values. NULL never matches. Text
// equality is case-exact; ordering against a TEXT column compares the
// leading integer of both sides, matching the historical atoi-of-the-tail
// behavior on well-typed inputs.

func colIndex(schema []storage.Column, name string) int {
	for i, c := range schema {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// leadingInt parses an optional sign and leading digit run; anything else
// yields 0.
func leadingInt(s string) int32 {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0
	}
	// Digit overflow truncates to 32 bits, like the encoder.
	n, _ := strconv.ParseInt(s[:j], 10, 64)
	return int32(n)
}

// match reports whether the decoded row satisfies f under schema. An unknown
// filter column is an error; a NULL value in the filtered column never
// matches.
func match(schema []storage.Column, vals []storage.Value, f *Filter) (bool, error) {
	if f == nil {
		return true, nil
	}
	idx := colIndex(schema, f.Col)
	if idx < 0 {
		return false, fmt.Errorf("unknown column %q in WHERE", f.Col)
	}
	v := vals[idx]
	if v.Null {
		return false, nil
	}

	switch f.Op {
	case OpEq:
		if v.Type == storage.ColText {
			return v.Text == f.Value, nil
		}
		n, err := strconv.ParseInt(f.Value, 10, 32)
		if err != nil {
			return false, nil
		}
		return v.Int == int32(n), nil
	case OpLt, OpGt:
		var lhs, rhs int32
		if v.Type == storage.ColInt {
			lhs = v.Int
			rhs = leadingInt(f.Value)
		} else {
			lhs = leadingInt(v.Text)
			rhs = leadingInt(f.Value)
		}
		if f.Op == OpLt {
			return lhs < rhs, nil
		}
		return lhs > rhs, nil
	}
	return false, fmt.Errorf("unsupported operator %v", f.Op)
}

// renderRow formats a decoded row as "col=value | col=value | ...".
func renderRow(schema []storage.Column, vals []storage.Value) string {
	var b strings.Builder
	for i, col := range schema {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(col.Name)
		b.WriteByte('=')
		b.WriteString(vals[i].Render())
	}
	return b.String()
}

// tableContext resolves a table to its heap and schema in one step.
func (e *Engine) tableContext(name string) (*storage.HeapFile, []storage.Column, error) {
	hf, err := e.cat.OpenTable(name)
	if err != nil {
		return nil, nil, err
	}
	schema, err := e.cat.LoadSchema(name)
	if err != nil {
		return nil, nil, err
	}
	if len(schema) == 0 {
		return nil, nil, fmt.Errorf("table %q has no schema", name)
	}
	return hf, schema, nil
}
