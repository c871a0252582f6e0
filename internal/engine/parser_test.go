package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/markmorcos/marqdb/internal/storage"
)

func TestParse_CreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE t (id INT, name TEXT)")
	require.NoError(t, err)
	create := stmt.(*CreateTableStmt)
	require.Equal(t, "t", create.Name)
	require.Equal(t, []storage.Column{
		{Name: "id", Type: storage.ColInt},
		{Name: "name", Type: storage.ColText},
	}, create.Cols)
}

func TestParse_KeywordsAreCaseInsensitive(t *testing.T) {
	stmt, err := Parse("create table t (id int)")
	require.NoError(t, err)
	require.IsType(t, &CreateTableStmt{}, stmt)
}

func TestParse_Insert(t *testing.T) {
	stmt, err := Parse(`INSERT INTO t VALUES (1, 'Mark', "quoted", NULL)`)
	require.NoError(t, err)
	ins := stmt.(*InsertStmt)
	require.Equal(t, "t", ins.Table)
	require.Equal(t, []string{"1", "Mark", "quoted", "null"}, ins.Values)
}

func TestParse_InsertNegativeNumber(t *testing.T) {
	stmt, err := Parse("INSERT INTO t VALUES (-5)")
	require.NoError(t, err)
	require.Equal(t, []string{"-5"}, stmt.(*InsertStmt).Values)
}

func TestParse_SelectBare(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t")
	require.NoError(t, err)
	sel := stmt.(*SelectStmt)
	require.Equal(t, "t", sel.Table)
	require.Nil(t, sel.Where)
}

func TestParse_SelectWhere(t *testing.T) {
	for _, tc := range []struct {
		line string
		op   FilterOp
	}{
		{"SELECT * FROM t WHERE id = 5", OpEq},
		{"SELECT * FROM t WHERE id < 5", OpLt},
		{"SELECT * FROM t WHERE id > 5", OpGt},
	} {
		stmt, err := Parse(tc.line)
		require.NoError(t, err, tc.line)
		sel := stmt.(*SelectStmt)
		require.NotNil(t, sel.Where)
		require.Equal(t, "id", sel.Where.Col)
		require.Equal(t, tc.op, sel.Where.Op)
		require.Equal(t, "5", sel.Where.Value)
	}
}

func TestParse_Update(t *testing.T) {
	stmt, err := Parse("UPDATE t SET name = 'Ada' WHERE id = 1")
	require.NoError(t, err)
	up := stmt.(*UpdateStmt)
	require.Equal(t, "t", up.Table)
	require.Equal(t, "name", up.SetCol)
	require.Equal(t, "Ada", up.SetVal)
	require.NotNil(t, up.Where)
}

func TestParse_UpdateWithoutWhere(t *testing.T) {
	stmt, err := Parse("UPDATE t SET name = 'Ada'")
	require.NoError(t, err)
	require.Nil(t, stmt.(*UpdateStmt).Where)
}

func TestParse_DeleteRequiresWhere(t *testing.T) {
	_, err := Parse("DELETE FROM t")
	require.ErrorIs(t, err, ErrParse)

	stmt, err := Parse("DELETE FROM t WHERE id = 3")
	require.NoError(t, err)
	require.NotNil(t, stmt.(*DeleteStmt).Where)
}

func TestParse_Vacuum(t *testing.T) {
	stmt, err := Parse("VACUUM t")
	require.NoError(t, err)
	require.Equal(t, "t", stmt.(*VacuumStmt).Table)
}

func TestParse_Errors(t *testing.T) {
	for _, line := range []string{
		"",
		"FROBNICATE",
		"CREATE TABLE",
		"CREATE TABLE t",
		"CREATE TABLE t ()",
		"CREATE TABLE t (id BLOB)",
		"INSERT INTO t",
		"INSERT INTO t VALUES",
		"INSERT INTO t VALUES (1",
		"SELECT id FROM t",
		"SELECT * FROM",
		"SELECT * FROM t WHERE",
		"SELECT * FROM t WHERE id ~ 3",
		"UPDATE t",
		"UPDATE t SET",
		"DELETE FROM",
		"VACUUM",
		"SELECT * FROM t trailing garbage (",
		"INSERT INTO t VALUES ('unterminated)",
	} {
		_, err := Parse(line)
		require.Error(t, err, "line %q", line)
	}
}

func TestNormalizeLine(t *testing.T) {
	require.Equal(t, "SELECT * FROM t", normalizeLine("  SELECT * FROM t ;  "))
	require.Equal(t, "", normalizeLine(" ; "))
}
