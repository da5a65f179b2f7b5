package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/infra/storage"
)

type spreadsheet struct {
	title  string
	sheets []*sheet
}

type sheet struct {
	id    int64
	title string
	rows  [][]string
}

// MemoryStorage is a process-lifetime SheetSource for development and tests.
type MemoryStorage struct {
	spreadsheets map[string]*spreadsheet
	nextSheetID  int64
	mu           sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		spreadsheets: make(map[string]*spreadsheet),
	}
}

var _ storage.SheetSource = (*MemoryStorage)(nil)

func (s *MemoryStorage) Name() string { return "memory" }

func (s *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Seed replaces the content of every seeded spreadsheet.
func (s *MemoryStorage) Seed(ctx context.Context, seeds []storage.SpreadsheetSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seed := range seeds {
		ss := &spreadsheet{title: seed.Title}
		for _, tab := range seed.Sheets {
			ss.sheets = append(ss.sheets, &sheet{
				id:    s.nextSheetID,
				title: tab.Title,
				rows:  copyRows(tab.Rows),
			})
			s.nextSheetID++
		}
		s.spreadsheets[seed.ID] = ss
	}
	return nil
}

func (s *MemoryStorage) ListSheets(ctx context.Context, spreadsheetID string) (*domain.SheetMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok := s.spreadsheets[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrSpreadsheetNotFound, spreadsheetID)
	}
	meta := &domain.SheetMeta{Sheets: []domain.SheetTab{}, Title: ss.title}
	for _, sh := range ss.sheets {
		meta.Sheets = append(meta.Sheets, domain.SheetTab{ID: sh.id, Title: sh.title})
	}
	return meta, nil
}

func (s *MemoryStorage) ReadValues(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, err := s.sheet(spreadsheetID, sheetName)
	if err != nil {
		return nil, err
	}
	return copyRows(sh.rows), nil
}

func (s *MemoryStorage) UpdateCell(
	ctx context.Context,
	spreadsheetID, sheetName string,
	ref domain.CellRef,
	value string,
) error {
	if !ref.InBounds() {
		return fmt.Errorf("%w: %s", storage.ErrCellOutOfRange, ref)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(spreadsheetID, sheetName)
	if err != nil {
		return err
	}
	for len(sh.rows) <= ref.Row {
		sh.rows = append(sh.rows, []string{})
	}
	row := sh.rows[ref.Row]
	for len(row) <= ref.Col {
		row = append(row, "")
	}
	row[ref.Col] = value
	sh.rows[ref.Row] = row
	return nil
}

func (s *MemoryStorage) AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(spreadsheetID, sheetName)
	if err != nil {
		return err
	}
	sh.rows = append(sh.rows, append([]string{}, values...))
	return nil
}

func (s *MemoryStorage) DeleteRow(ctx context.Context, spreadsheetID, sheetName string, rowIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(spreadsheetID, sheetName)
	if err != nil {
		return err
	}
	if rowIndex < 1 || rowIndex >= len(sh.rows) {
		return fmt.Errorf("%w: %d", storage.ErrRowOutOfRange, rowIndex)
	}
	sh.rows = append(sh.rows[:rowIndex], sh.rows[rowIndex+1:]...)
	return nil
}

// sheet looks up a tab. s.mu must be held.
func (s *MemoryStorage) sheet(spreadsheetID, sheetName string) (*sheet, error) {
	ss, ok := s.spreadsheets[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrSpreadsheetNotFound, spreadsheetID)
	}
	for _, sh := range ss.sheets {
		if sh.title == sheetName {
			return sh, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrSheetNotFound, sheetName)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string{}, r...)
	}
	return out
}
