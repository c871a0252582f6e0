package engine

import (
	"fmt"

	"github.com/markmorcos/marqdb/internal/storage"
)

// execInsert encodes the values against the table's schema and appends the
// row. Arity and encode errors abort before any write.
func (e *Engine) execInsert(s *InsertStmt) error {
	hf, schema, err := e.tableContext(s.Table)
	if err != nil {
		return err
	}
	if len(s.Values) != len(schema) {
		return fmt.Errorf("table %s has %d columns, got %d values", s.Table, len(schema), len(s.Values))
	}
	rec, err := storage.EncodeRow(schema, s.Values)
	if err != nil {
		return err
	}
	if _, err := hf.Insert(rec); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "OK")
	return nil
}
