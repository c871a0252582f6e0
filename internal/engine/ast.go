package engine

import "github.com/markmorcos/marqdb/internal/storage"

// Statement is the parsed form of one SQL line.
type Statement interface {
	stmt()
}

// FilterOp is a WHERE comparison operator.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpLt
	OpGt
)

func (op FilterOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	default:
		return "?"
	}
}

// Filter is a single-column WHERE condition. Value holds the raw literal
// text; typing happens at evaluation against the decoded row.
type Filter struct {
	Col   string
	Op    FilterOp
	Value string
}

// CreateTableStmt is CREATE TABLE name (col TYPE, ...).
type CreateTableStmt struct {
	Name string
	Cols []storage.Column
}

// InsertStmt is INSERT INTO name VALUES (v, ...).
type InsertStmt struct {
	Table  string
	Values []string
}

// SelectStmt is SELECT * FROM name [WHERE col OP val].
type SelectStmt struct {
	Table string
	Where *Filter
}

// UpdateStmt is UPDATE name SET col = val [WHERE col OP val].
type UpdateStmt struct {
	Table  string
	SetCol string
	SetVal string
	Where  *Filter
}

// DeleteStmt is DELETE FROM name WHERE col OP val. The WHERE clause is
// mandatory; an unqualified DELETE is rejected at parse time.
type DeleteStmt struct {
	Table string
	Where *Filter
}

// VacuumStmt is VACUUM name.
type VacuumStmt struct {
	Table string
}

func (*CreateTableStmt) stmt() {}
func (*InsertStmt) stmt()      {}
func (*SelectStmt) stmt()      {}
func (*UpdateStmt) stmt()      {}
func (*DeleteStmt) stmt()      {}
func (*VacuumStmt) stmt()      {}
