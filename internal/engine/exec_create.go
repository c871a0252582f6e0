package engine

import "fmt"

// execCreateTable allocates the table's heap and records its schema.
func (e *Engine) execCreateTable(s *CreateTableStmt) error {
	if _, err := e.cat.CreateTable(s.Name, s.Cols); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "created table %s\n", s.Name)
	return nil
}
