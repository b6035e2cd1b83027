package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Kind is the normalized type of a result column
type Kind string

const (
	KindNull   Kind = "null"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// ResultTable is a small in-memory result set. Values are normalized to
// int64, float64, string, bool, time.Time or nil so both backends produce
// identical tables.
type ResultTable struct {
	Columns []string `json:"columns"`
	Kinds   []Kind   `json:"kinds"`
	Rows    [][]any  `json:"rows"`
}

// EmptyTable returns a table with columns and no rows
func EmptyTable(columns ...string) *ResultTable {
	kinds := make([]Kind, len(columns))
	for i := range kinds {
		kinds[i] = KindNull
	}
	return &ResultTable{Columns: columns, Kinds: kinds, Rows: [][]any{}}
}

// Empty reports whether the table has no rows. A nil table is empty.
func (t *ResultTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Len returns the number of rows
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column or -1
func (t *ResultTable) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the raw normalized value at row i, nil when absent
func (t *ResultTable) Value(i int, column string) any {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) || idx >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][idx]
}

// Int returns an integer cell, 0 for NULL or non-numeric
func (t *ResultTable) Int(i int, column string) int64 {
	switch v := t.Value(i, column).(type) {
	case int64:
		return v
	case float64:
		return int64(math.Round(v))
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Float returns a numeric cell, 0 for NULL or non-numeric
func (t *ResultTable) Float(i int, column string) float64 {
	switch v := t.Value(i, column).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// String returns a cell formatted as text, "" for NULL
func (t *ResultTable) String(i int, column string) string {
	switch v := t.Value(i, column).(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns a column as text
func (t *ResultTable) Strings(column string) []string {
	out := make([]string, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		out = append(out, t.String(i, column))
	}
	return out
}

// Ints returns a column as integers
func (t *ResultTable) Ints(column string) []int64 {
	out := make([]int64, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		out = append(out, t.Int(i, column))
	}
	return out
}

// Records returns rows as column-keyed maps, for JSON consumers
func (t *ResultTable) Records() []map[string]any {
	out := make([]map[string]any, 0, t.Len())
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			if j < len(row) {
				rec[c] = row[j]
			}
		}
		out = append(out, rec)
	}
	return out
}

// normalize maps driver values onto the small set of kinds
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case *big.Int:
		return x.Int64()
	case []byte:
		return string(x)
	case string, bool, time.Time:
		return x
	case sql.NullString:
		if !x.Valid {
			return nil
		}
		return x.String
	case interface{ Float64() float64 }:
		// decimals from either driver
		return x.Float64()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func kindOf(v any) Kind {
	switch v.(type) {
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	}
	return KindNull
}

// scanTable reads every row of rows into a ResultTable
func scanTable(rows *sql.Rows) (*ResultTable, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	t := EmptyTable(cols...)
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]any, len(cols))
		for i, v := range dest {
			row[i] = normalize(v)
			if t.Kinds[i] == KindNull {
				t.Kinds[i] = kindOf(row[i])
			} else if t.Kinds[i] == KindInt && kindOf(row[i]) == KindFloat {
				t.Kinds[i] = KindFloat
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	// mixed int and float columns settle on float
	for j, k := range t.Kinds {
		if k != KindFloat {
			continue
		}
		for _, row := range t.Rows {
			if v, ok := row[j].(int64); ok {
				row[j] = float64(v)
			}
		}
	}
	return t, nil
}

// UnmarshalJSON restores typed cells using Kinds, so a table read back from
// the cache matches the one scanned from the database.
func (t *ResultTable) UnmarshalJSON(data []byte) error {
	var raw struct {
		Columns []string            `json:"columns"`
		Kinds   []Kind              `json:"kinds"`
		Rows    [][]json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Columns = raw.Columns
	t.Kinds = raw.Kinds
	t.Rows = make([][]any, 0, len(raw.Rows))
	for _, r := range raw.Rows {
		row := make([]any, len(r))
		for j, cell := range r {
			kind := KindNull
			if j < len(raw.Kinds) {
				kind = raw.Kinds[j]
			}
			v, err := decodeCell(cell, kind)
			if err != nil {
				return fmt.Errorf("column %d: %w", j, err)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}

func decodeCell(cell json.RawMessage, kind Kind) (any, error) {
	if bytes.Equal(bytes.TrimSpace(cell), []byte("null")) {
		return nil, nil
	}
	switch kind {
	case KindInt:
		var v int64
		err := json.Unmarshal(cell, &v)
		return v, err
	case KindFloat:
		var v float64
		err := json.Unmarshal(cell, &v)
		return v, err
	case KindString:
		var v string
		err := json.Unmarshal(cell, &v)
		return v, err
	case KindBool:
		var v bool
		err := json.Unmarshal(cell, &v)
		return v, err
	case KindTime:
		var v time.Time
		err := json.Unmarshal(cell, &v)
		return v, err
	}
	var v any
	err := json.Unmarshal(cell, &v)
	return v, err
}
