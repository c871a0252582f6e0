package engine

import (
	"fmt"

	"github.com/markmorcos/marqdb/internal/storage"
)

// execUpdate runs in two phases. Phase one scans and collects the RIDs of
// matching rows; phase two rewrites each one. If the re-encoded row fits in
// the slot it is overwritten in place; otherwise the new version is inserted
// and the old slot tombstoned, which changes the row's RID.
func (e *Engine) execUpdate(s *UpdateStmt) error {
	hf, schema, err := e.tableContext(s.Table)
	if err != nil {
		return err
	}
	setIdx := colIndex(schema, s.SetCol)
	if setIdx < 0 {
		return fmt.Errorf("unknown column %q in SET", s.SetCol)
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

	updated := 0
	for _, rid := range rids {
		old, err := hf.Get(rid)
		if err != nil {
			return err
		}
		vals, err := storage.DecodeRow(schema, old)
		if err != nil {
			fmt.Fprintf(e.out, "skipping bad row at %v: %v\n", rid, err)
			continue
		}

		literals := make([]string, len(schema))
		for i, v := range vals {
			if v.Null {
				literals[i] = "null"
			} else {
				literals[i] = v.Render()
			}
		}
		literals[setIdx] = s.SetVal

		rec, err := storage.EncodeRow(schema, literals)
		if err != nil {
			return err
		}

		if len(rec) <= len(old) {
			if err := hf.Overwrite(rid, rec); err != nil {
				return err
			}
		} else {
			if _, err := hf.Insert(rec); err != nil {
				return err
			}
			if err := hf.Delete(rid); err != nil {
				return err
			}
		}
		updated++
	}
	fmt.Fprintf(e.out, "updated %d rows\n", updated)
	return nil
}
