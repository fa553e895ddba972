package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/retro/pkg/model"
)

const boardColumns = `id, title, phase, max_votes, created_by, columns, modified_at`

func scanBoard(sc scanner) (model.Board, error) {
	var (
		b          model.Board
		phase      string
		createdBy  sql.NullString
		columns    string
		modifiedAt string
	)
	if err := sc.Scan(&b.ID, &b.Title, &phase, &b.MaxVotesPerUser, &createdBy, &columns, &modifiedAt); err != nil {
		return model.Board{}, err
	}
	b.Phase = model.Phase(phase)
	if err := json.Unmarshal([]byte(columns), &b.Columns); err != nil {
		return model.Board{}, fmt.Errorf("decoding columns of board %s: %w", b.ID, err)
	}
	if createdBy.Valid && createdBy.String != "" {
		var u model.User
		if err := json.Unmarshal([]byte(createdBy.String), &u); err == nil {
			b.CreatedBy = &u
		}
	}
	b.ModifiedAt = parseTime(modifiedAt)
	return b, nil
}

func getBoard(ctx context.Context, q queryer, id string) (model.Board, error) {
	row := q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = ?`, id)
	b, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Board{}, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Board{}, fmt.Errorf("loading board %s: %w", id, err)
	}
	return b, nil
}

// writeBoard stores def with a ModifiedAt strictly after the stored one,
// so every save is seen as a change by other participants.
func (s *Store) writeBoard(ctx context.Context, q queryer, def model.Board) (model.Board, error) {
	now := s.now().UTC()
	if prev, err := getBoard(ctx, q, def.ID); err == nil && !now.After(prev.ModifiedAt) {
		now = prev.ModifiedAt.Add(time.Millisecond)
	}
	def.ModifiedAt = now
	if def.Phase == "" {
		def.Phase = model.PhaseCollect
	}

	columns, err := json.Marshal(def.Columns)
	if err != nil {
		return model.Board{}, fmt.Errorf("encoding columns: %w", err)
	}
	var createdBy sql.NullString
	if def.CreatedBy != nil {
		raw, err := json.Marshal(def.CreatedBy)
		if err != nil {
			return model.Board{}, fmt.Errorf("encoding creator: %w", err)
		}
		createdBy = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = q.ExecContext(ctx, `INSERT OR REPLACE INTO boards (`+boardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.Title, string(def.Phase), def.MaxVotesPerUser, createdBy, string(columns), formatTime(def.ModifiedAt))
	if err != nil {
		return model.Board{}, fmt.Errorf("saving board %s: %w", def.ID, err)
	}
	return def, nil
}

// GetBoard returns a board definition.
func (s *Store) GetBoard(ctx context.Context, boardID string) (model.Board, error) {
	return getBoard(ctx, s.db, boardID)
}

// SaveBoard creates or replaces a board definition.
func (s *Store) SaveBoard(ctx context.Context, def model.Board) (model.Board, error) {
	if def.ID == "" {
		return model.Board{}, fmt.Errorf("board id is required")
	}
	var saved model.Board
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = s.writeBoard(ctx, tx, def)
		return err
	})
	return saved, err
}

// ListBoards returns every board, most recently modified first.
func (s *Store) ListBoards(ctx context.Context) ([]model.Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards ORDER BY modified_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	defer rows.Close()

	var out []model.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}
	return out, nil
}

// UpdateColumnNotes replaces the notes of one column.
func (s *Store) UpdateColumnNotes(ctx context.Context, boardID, columnID, notes string) (model.Board, error) {
	var saved model.Board
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		def, err := getBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}
		found := false
		for i := range def.Columns {
			if def.Columns[i].ID == columnID {
				def.Columns[i].Notes = notes
				found = true
			}
		}
		if !found {
			return fmt.Errorf("column %s of board %s: %w", columnID, boardID, ErrNotFound)
		}
		saved, err = s.writeBoard(ctx, tx, def)
		return err
	})
	return saved, err
}

// mergeLayout applies a definition file's layout (title, columns, vote cap)
// to the stored board. Phase and column notes belong to the stored board.
func mergeLayout(stored, file model.Board) model.Board {
	out := stored
	out.Title = file.Title
	if file.MaxVotesPerUser > 0 {
		out.MaxVotesPerUser = file.MaxVotesPerUser
	}
	notes := make(map[string]string, len(stored.Columns))
	for _, c := range stored.Columns {
		notes[c.ID] = c.Notes
	}
	out.Columns = make([]model.Column, len(file.Columns))
	for i, c := range file.Columns {
		if n, ok := notes[c.ID]; ok {
			c.Notes = n
		}
		out.Columns[i] = c
	}
	return out
}

// ImportLayout brings a board definition file into the database. A new board
// is stored as is; an existing one takes the file's layout but keeps its
// phase and notes. changed is false when the file adds nothing.
func (s *Store) ImportLayout(ctx context.Context, file model.Board) (saved model.Board, changed bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stored, err := getBoard(ctx, tx, file.ID)
		if errors.Is(err, ErrNotFound) {
			saved, err = s.writeBoard(ctx, tx, file)
			changed = err == nil
			return err
		}
		if err != nil {
			return err
		}
		merged := mergeLayout(stored, file)
		if merged.Title == stored.Title && merged.MaxVotesPerUser == stored.MaxVotesPerUser &&
			slices.Equal(merged.Columns, stored.Columns) {
			saved = stored
			return nil
		}
		saved, err = s.writeBoard(ctx, tx, merged)
		changed = err == nil
		return err
	})
	return saved, changed, err
}
