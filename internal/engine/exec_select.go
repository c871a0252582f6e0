package engine

import (
	"fmt"

	"github.com/markmorcos/marqdb/internal/storage"
)

// execSelect scans the table, filters on typed decoded values, and prints
// each matching row in its canonical textual form. A row that fails to
// decode is reported and skipped; the scan continues.
func (e *Engine) execSelect(s *SelectStmt) error {
	hf, schema, err := e.tableContext(s.Table)
	if err != nil {
		return err
	}

	n := 0
	sc := hf.Scan()
	defer sc.Close()
	for sc.Next() {
		vals, err := storage.DecodeRow(schema, sc.Record())
		if err != nil {
			fmt.Fprintf(e.out, "skipping bad row at %v: %v\n", sc.RID(), err)
			continue
		}
		ok, err := match(schema, vals, s.Where)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Fprintln(e.out, renderRow(schema, vals))
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "(%d rows)\n", n)
	return nil
}
