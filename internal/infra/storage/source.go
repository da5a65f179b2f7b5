package storage

import (
	"context"
	"errors"

	"github.com/vietddude/partners/internal/core/domain"
)

var (
	// ErrSpreadsheetNotFound is returned when a spreadsheet doesn't exist
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

	// ErrSheetNotFound is returned when a tab doesn't exist
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrRowOutOfRange is returned when a row index addresses no data row
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrCellOutOfRange is returned when a cell lies outside the sheet grid
	ErrCellOutOfRange = errors.New("cell out of range")
)

// SheetSource is the backing store of the sheets gateway. Row indexes are
// raw: row 0 is the header row and cannot be deleted.
type SheetSource interface {
	// ListSheets returns the tabs of a spreadsheet
	ListSheets(ctx context.Context, spreadsheetID string) (*domain.SheetMeta, error)

	// ReadValues returns every raw row of a tab, header row first
	ReadValues(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error)

	// UpdateCell sets one cell, growing the tab when ref lies outside it
	UpdateCell(ctx context.Context, spreadsheetID, sheetName string, ref domain.CellRef, value string) error

	// AppendRow adds a row after the last one
	AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error

	// DeleteRow removes a data row and shifts the following rows up
	DeleteRow(ctx context.Context, spreadsheetID, sheetName string, rowIndex int) error

	// Ping checks that the source is reachable
	Ping(ctx context.Context) error

	// Name identifies the source in health reports
	Name() string
}

// SpreadsheetSeed describes initial content for a source.
type SpreadsheetSeed struct {
	ID     string      `yaml:"id"`
	Title  string      `yaml:"title"`
	Sheets []SheetSeed `yaml:"sheets"`
}

// SheetSeed is one tab of a SpreadsheetSeed.
type SheetSeed struct {
	Title string     `yaml:"title"`
	Rows  [][]string `yaml:"rows"`
}

// Seeder is implemented by sources that can be populated from seeds.
type Seeder interface {
	Seed(ctx context.Context, seeds []SpreadsheetSeed) error
}
