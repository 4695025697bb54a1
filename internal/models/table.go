package models

import "strconv"

// Table is a header row plus data rows as extracted from a document.
type Table struct {
	Columns []string
	Rows    [][]string
	Source  string
	Page    int
}

// ToDict renders the column -> row index -> value mapping. Row keys are ints,
// the way dataframe exports produce them, so callers must stringify keys
// before serializing.
func (t Table) ToDict() map[string]any {
	out := make(map[string]any, len(t.Columns))
	for ci, col := range t.Columns {
		name := col
		if name == "" {
			name = columnName(ci)
		}
		column := make(map[int]any, len(t.Rows))
		for ri, row := range t.Rows {
			if ci < len(row) {
				column[ri] = row[ci]
			} else {
				column[ri] = nil
			}
		}
		out[name] = column
	}
	return out
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

func columnName(i int) string {
	return "Unnamed: " + strconv.Itoa(i)
}
