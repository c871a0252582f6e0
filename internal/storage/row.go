package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ───────────────────────────────────────────────────────────────────────────
// Binary row codec
// ───────────────────────────────────────────────────────────────────────────
//
// Wire format per row:
//   [0:2]  ncols (uint16 LE), must match the schema on decode
//   [2:]   NULL bitmap, ceil(ncols/8) bytes; bit i set = column i is NULL
//   then per non-NULL column:
//     INT  -> int32 LE (4 bytes)
//     TEXT -> uint16 LE length + raw bytes
//
// Encoding then decoding is lossless for integers and for texts up to 65535
// bytes. Values arrive as SQL literal strings; the literal "null" (any case)
// encodes as NULL with no payload.

// ColType is the type of a table column.
type ColType uint8

const (
	ColInt  ColType = 1
	ColText ColType = 2
)

// String returns the SQL keyword for the column type.
func (t ColType) String() string {
	switch t {
	case ColInt:
		return "INT"
	case ColText:
		return "TEXT"
	default:
		return fmt.Sprintf("ColType(%d)", uint8(t))
	}
}

// Column is one column of a table schema.
type Column struct {
	Name string
	Type ColType
}

// Value is one decoded column value.
type Value struct {
	Type ColType
	Null bool
	Int  int32
	Text string
}

// ErrRowCorrupt is returned when row bytes are shorter than the schema
// demands or the stored column count disagrees with the schema.
var ErrRowCorrupt = errors.New("row bytes do not match schema")

// MaxTextLen is the longest encodable TEXT value.
const MaxTextLen = 65535

// EncodeRow encodes one row of SQL literal values against schema.
func EncodeRow(schema []Column, values []string) ([]byte, error) {
	if len(values) != len(schema) {
		return nil, fmt.Errorf("expected %d values, got %d", len(schema), len(values))
	}

	nullBytes := (len(schema) + 7) / 8
	out := make([]byte, 2+nullBytes, 2+nullBytes+8*len(schema))
	binary.LittleEndian.PutUint16(out, uint16(len(schema)))
	nullmap := out[2 : 2+nullBytes]

	for i, col := range schema {
		v := values[i]
		if strings.EqualFold(v, "null") {
			nullmap[i/8] |= 1 << (i % 8)
			continue
		}

		switch col.Type {
		case ColInt:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return nil, fmt.Errorf("column %s: %q is not an integer", col.Name, v)
			}
			// Out-of-range literals truncate to 32 bits.
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(int32(n)))
			out = append(out, b[:]...)
		case ColText:
			if len(v) > MaxTextLen {
				return nil, fmt.Errorf("column %s: text of %d bytes exceeds %d", col.Name, len(v), MaxTextLen)
			}
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(len(v)))
			out = append(out, b[:]...)
			out = append(out, v...)
		default:
			return nil, fmt.Errorf("column %s: unknown type %d", col.Name, col.Type)
		}
	}
	return out, nil
}

// DecodeRow decodes rec into typed values. TEXT payloads are copied out, so
// the result does not alias rec.
func DecodeRow(schema []Column, rec []byte) ([]Value, error) {
	if len(rec) < 2 {
		return nil, ErrRowCorrupt
	}
	if int(binary.LittleEndian.Uint16(rec)) != len(schema) {
		return nil, ErrRowCorrupt
	}

	nullBytes := (len(schema) + 7) / 8
	pos := 2 + nullBytes
	if pos > len(rec) {
		return nil, ErrRowCorrupt
	}
	nullmap := rec[2 : 2+nullBytes]

	vals := make([]Value, len(schema))
	for i, col := range schema {
		vals[i].Type = col.Type
		if nullmap[i/8]>>(i%8)&1 == 1 {
			vals[i].Null = true
			continue
		}

		switch col.Type {
		case ColInt:
			if pos+4 > len(rec) {
				return nil, ErrRowCorrupt
			}
			vals[i].Int = int32(binary.LittleEndian.Uint32(rec[pos:]))
			pos += 4
		case ColText:
			if pos+2 > len(rec) {
				return nil, ErrRowCorrupt
			}
			n := int(binary.LittleEndian.Uint16(rec[pos:]))
			pos += 2
			if pos+n > len(rec) {
				return nil, ErrRowCorrupt
			}
			vals[i].Text = string(rec[pos : pos+n])
			pos += n
		default:
			return nil, fmt.Errorf("column %s: unknown type %d", col.Name, col.Type)
		}
	}
	return vals, nil
}

// DecodeRowText renders rec as "col=value | col=value | ...", the canonical
// display form. NULLs render as col=NULL.
func DecodeRowText(schema []Column, rec []byte) (string, error) {
	vals, err := DecodeRow(schema, rec)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, col := range schema {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(col.Name)
		b.WriteByte('=')
		b.WriteString(vals[i].Render())
	}
	return b.String(), nil
}

// Render returns the canonical textual form of a value: base-10 for INT, the
// raw bytes for TEXT, "NULL" for NULL.
func (v Value) Render() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case ColInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case ColText:
		return v.Text
	default:
		return "?"
	}
}
