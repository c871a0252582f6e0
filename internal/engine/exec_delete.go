package engine

import (
	"fmt"

	"github.com/markmorcos/marqdb/internal/storage"
)

// execDelete runs in two phases: collect matching RIDs under the scan, then
// tombstone them, so the mutation never disturbs the scan position.
func (e *Engine) execDelete(s *DeleteStmt) error {
	hf, schema, err := e.tableContext(s.Table)
	if err != nil {
		return err
	}

	var rids []storage.RID
	sc := hf.Scan()
	for sc.Next() {
		vals, err := storage.DecodeRow(schema, sc.Record())
		if err != nil {
			fmt.Fprintf(e.out, "skipping bad row at %v: %v\n", sc.RID(), err)
			continue
		}
		ok, err := match(schema, vals, s.Where)
		if err != nil {
			sc.Close()
			return err
		}
		if ok {
			rids = append(rids, sc.RID())
		}
	}
	if err := sc.Err(); err != nil {
		sc.Close()
		return err
	}
	sc.Close()

	for _, rid := range rids {
		if err := hf.Delete(rid); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.out, "deleted %d rows\n", len(rids))
	return nil
}
