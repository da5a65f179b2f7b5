package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vietddude/partners/internal/core/domain"
	"github.com/vietddude/partners/internal/infra/storage"
)

// SheetSource implements storage.SheetSource using PostgreSQL. Each raw row
// is one sheet_rows record ordered by position.
type SheetSource struct {
	db *DB
}

// NewSheetSource creates a new PostgreSQL sheet source.
func NewSheetSource(db *DB) *SheetSource {
	return &SheetSource{db: db}
}

var _ storage.SheetSource = (*SheetSource)(nil)

type tabRecord struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// rowRecord is scanned from cells::text so pq.StringArray parses the
// array literal regardless of the wire format the driver picks.
type rowRecord struct {
	Position int            `db:"position"`
	Cells    pq.StringArray `db:"cells"`
}

func (s *SheetSource) Name() string { return "postgres" }

func (s *SheetSource) Ping(ctx context.Context) error {
	return s.db.Health(ctx)
}

// ListSheets returns the tabs of a spreadsheet.
func (s *SheetSource) ListSheets(ctx context.Context, spreadsheetID string) (*domain.SheetMeta, error) {
	var title string
	err := s.db.GetContext(ctx, &title, `SELECT title FROM spreadsheets WHERE id = $1`, spreadsheetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSpreadsheetNotFound, spreadsheetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	var tabs []tabRecord
	if err := s.db.SelectContext(ctx, &tabs,
		`SELECT id, title FROM sheets WHERE spreadsheet_id = $1 ORDER BY position, id`,
		spreadsheetID); err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	meta := &domain.SheetMeta{Sheets: make([]domain.SheetTab, 0, len(tabs)), Title: title}
	for _, t := range tabs {
		meta.Sheets = append(meta.Sheets, domain.SheetTab{ID: t.ID, Title: t.Title})
	}
	return meta, nil
}

// ReadValues returns every raw row of a tab. Gaps left by writes past the
// last row read back as empty rows.
func (s *SheetSource) ReadValues(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error) {
	id, err := s.sheetID(ctx, s.db, spreadsheetID, sheetName, false)
	if err != nil {
		return nil, err
	}

	var records []rowRecord
	if err := s.db.SelectContext(ctx, &records,
		`SELECT position, cells::text AS cells FROM sheet_rows WHERE sheet_id = $1 ORDER BY position`,
		id); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var rows [][]string
	for _, rec := range records {
		for len(rows) < rec.Position {
			rows = append(rows, []string{})
		}
		rows = append(rows, append([]string{}, rec.Cells...))
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

// UpdateCell sets one cell inside a transaction.
func (s *SheetSource) UpdateCell(
	ctx context.Context,
	spreadsheetID, sheetName string,
	ref domain.CellRef,
	value string,
) error {
	if !ref.InBounds() {
		return fmt.Errorf("%w: %s", storage.ErrCellOutOfRange, ref)
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.sheetID(ctx, tx, spreadsheetID, sheetName, true)
		if err != nil {
			return err
		}

		var rec rowRecord
		err = tx.GetContext(ctx, &rec,
			`SELECT position, cells::text AS cells FROM sheet_rows
			 WHERE sheet_id = $1 AND position = $2 FOR UPDATE`,
			id, ref.Row)
		found := true
		if errors.Is(err, sql.ErrNoRows) {
			found = false
		} else if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}

		cells := []string(rec.Cells)
		for len(cells) <= ref.Col {
			cells = append(cells, "")
		}
		cells[ref.Col] = value

		if found {
			_, err = tx.ExecContext(ctx,
				`UPDATE sheet_rows SET cells = $3, updated_at = now() WHERE sheet_id = $1 AND position = $2`,
				id, ref.Row, cells)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO sheet_rows (id, sheet_id, position, cells) VALUES ($1, $2, $3, $4)`,
				uuid.New(), id, ref.Row, cells)
		}
		if err != nil {
			return fmt.Errorf("failed to write cell: %w", err)
		}
		return nil
	})
}

// AppendRow adds a row after the highest position.
func (s *SheetSource) AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error {
	if values == nil {
		values = []string{}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.sheetID(ctx, tx, spreadsheetID, sheetName, true)
		if err != nil {
			return err
		}
		var next int
		if err := tx.GetContext(ctx, &next,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM sheet_rows WHERE sheet_id = $1`, id); err != nil {
			return fmt.Errorf("failed to find last row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_rows (id, sheet_id, position, cells) VALUES ($1, $2, $3, $4)`,
			uuid.New(), id, next, values); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
		return nil
	})
}

// DeleteRow removes a data row and shifts the following rows up.
func (s *SheetSource) DeleteRow(ctx context.Context, spreadsheetID, sheetName string, rowIndex int) error {
	if rowIndex < 1 {
		return fmt.Errorf("%w: %d", storage.ErrRowOutOfRange, rowIndex)
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.sheetID(ctx, tx, spreadsheetID, sheetName, true)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM sheet_rows WHERE sheet_id = $1 AND position = $2`, id, rowIndex)
		if err != nil {
			return fmt.Errorf("failed to delete row: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", storage.ErrRowOutOfRange, rowIndex)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sheet_rows SET position = position - 1 WHERE sheet_id = $1 AND position > $2`,
			id, rowIndex); err != nil {
			return fmt.Errorf("failed to shift rows: %w", err)
		}
		return nil
	})
}

// Seed replaces the content of every seeded spreadsheet.
func (s *SheetSource) Seed(ctx context.Context, seeds []storage.SpreadsheetSeed) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, seed := range seeds {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO spreadsheets (id, title) VALUES ($1, $2)
				 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
				seed.ID, seed.Title); err != nil {
				return fmt.Errorf("failed to save spreadsheet %s: %w", seed.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM sheets WHERE spreadsheet_id = $1`, seed.ID); err != nil {
				return fmt.Errorf("failed to clear spreadsheet %s: %w", seed.ID, err)
			}
			for pos, tab := range seed.Sheets {
				var id int64
				if err := tx.GetContext(ctx, &id,
					`INSERT INTO sheets (spreadsheet_id, title, position) VALUES ($1, $2, $3) RETURNING id`,
					seed.ID, tab.Title, pos); err != nil {
					return fmt.Errorf("failed to save sheet %s: %w", tab.Title, err)
				}
				for i, row := range tab.Rows {
					if row == nil {
						row = []string{}
					}
					if _, err := tx.ExecContext(ctx,
						`INSERT INTO sheet_rows (id, sheet_id, position, cells) VALUES ($1, $2, $3, $4)`,
						uuid.New(), id, i, row); err != nil {
						return fmt.Errorf("failed to save row %d of %s: %w", i, tab.Title, err)
					}
				}
			}
		}
		return nil
	})
}

func (s *SheetSource) sheetID(
	ctx context.Context,
	q sqlx.QueryerContext,
	spreadsheetID, sheetName string,
	lock bool,
) (int64, error) {
	query := `SELECT id FROM sheets WHERE spreadsheet_id = $1 AND title = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var id int64
	err := sqlx.GetContext(ctx, q, &id, query, spreadsheetID, sheetName)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := sqlx.GetContext(ctx, q, &exists,
			`SELECT EXISTS (SELECT 1 FROM spreadsheets WHERE id = $1)`, spreadsheetID); err == nil && !exists {
			return 0, fmt.Errorf("%w: %s", storage.ErrSpreadsheetNotFound, spreadsheetID)
		}
		return 0, fmt.Errorf("%w: %s", storage.ErrSheetNotFound, sheetName)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet: %w", err)
	}
	return id, nil
}

// inTx runs fn in a transaction, rolling back on error.
func (s *SheetSource) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
