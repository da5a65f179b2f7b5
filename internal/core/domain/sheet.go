package domain

import "strings"

// SheetTab identifies one tab of a spreadsheet.
type SheetTab struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// SheetMeta lists the tabs of a spreadsheet.
type SheetMeta struct {
	Sheets []SheetTab `json:"sheets"`
	Title  string     `json:"title,omitempty"`
}

// SheetData is the content of one tab. The first raw row is the header row;
// Data holds the remaining rows keyed by header.
type SheetData struct {
	Headers []string         `json:"headers"`
	Data    []map[string]any `json:"data"`
	RawRows [][]any          `json:"rawRows"`
}

// Valid reports whether the meta payload has the expected shape.
func (m *SheetMeta) Valid() bool {
	return m != nil && m.Sheets != nil
}

// Valid reports whether the sheet payload has the expected shape.
func (d *SheetData) Valid() bool {
	return d != nil && d.Headers != nil && d.Data != nil && d.RawRows != nil
}

// NewSheetData builds the keyed view of raw sheet values.
// Short rows are padded with empty strings, blank headers are skipped.
func NewSheetData(raw [][]string) *SheetData {
	d := &SheetData{
		Headers: []string{},
		Data:    []map[string]any{},
		RawRows: make([][]any, 0, len(raw)),
	}
	for _, row := range raw {
		r := make([]any, len(row))
		for i, v := range row {
			r[i] = v
		}
		d.RawRows = append(d.RawRows, r)
	}
	if len(raw) == 0 {
		return d
	}

	d.Headers = append(d.Headers, raw[0]...)
	for _, row := range raw[1:] {
		obj := make(map[string]any, len(d.Headers))
		for i, h := range d.Headers {
			if strings.TrimSpace(h) == "" {
				continue
			}
			if i < len(row) {
				obj[h] = row[i]
			} else {
				obj[h] = ""
			}
		}
		d.Data = append(d.Data, obj)
	}
	return d
}
