package engine

import (
	"fmt"

	"github.com/markmorcos/marqdb/internal/storage"
)

// execVacuum rebuilds the table's heap without its tombstones: allocate a
// fresh heap, copy every live record across, then repoint the catalog entry.
// The old heap's pages are leaked; there is no free list.
func (e *Engine) execVacuum(s *VacuumStmt) error {
	hf, _, err := e.tableContext(s.Table)
	if err != nil {
		return err
	}

	dm := e.cat.Pool().Disk()
	hdr, err := dm.AllocPage()
	if err != nil {
		return err
	}
	data, err := dm.AllocPage()
	if err != nil {
		return err
	}
	fresh, err := storage.BootstrapHeap(e.cat.Pool(), hdr, data)
	if err != nil {
		return err
	}

	copied := 0
	sc := hf.Scan()
	defer sc.Close()
	for sc.Next() {
		if _, err := fresh.Insert(sc.Record()); err != nil {
			return err
		}
		copied++
	}
	if err := sc.Err(); err != nil {
		return err
	}

	if err := e.cat.SetTableRoot(s.Table, hdr); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "vacuumed %s: %d live rows\n", s.Table, copied)
	return nil
}
