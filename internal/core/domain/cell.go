package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Sheet bounds, the same as a spreadsheet grid: columns A..XFD, rows 1..1048576.
const (
	MaxColumns = 16384
	MaxRows    = 1 << 20
)

// CellRef is a zero-based cell position parsed from A1 notation.
type CellRef struct {
	Col int
	Row int
}

// ParseCellRef parses references such as "B3" or "AA10".
func ParseCellRef(s string) (CellRef, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	i := 0
	col := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		if col > MaxColumns {
			return CellRef{}, fmt.Errorf("cell reference %q is beyond column XFD", s)
		}
		i++
	}
	if i == 0 || i == len(s) {
		return CellRef{}, fmt.Errorf("invalid cell reference %q", s)
	}
	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return CellRef{}, fmt.Errorf("invalid cell reference %q", s)
	}
	if row > MaxRows {
		return CellRef{}, fmt.Errorf("cell reference %q is beyond row %d", s, MaxRows)
	}
	return CellRef{Col: col - 1, Row: row - 1}, nil
}

// InBounds reports whether the reference lies inside the sheet grid.
func (c CellRef) InBounds() bool {
	return c.Col >= 0 && c.Col < MaxColumns && c.Row >= 0 && c.Row < MaxRows
}

// String formats the reference back to A1 notation.
func (c CellRef) String() string {
	var col []byte
	for n := c.Col + 1; n > 0; n = (n - 1) / 26 {
		col = append([]byte{byte('A' + (n-1)%26)}, col...)
	}
	return fmt.Sprintf("%s%d", col, c.Row+1)
}
