package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/retro/pkg/model"
)

// ErrInvalidBoard is returned for board definitions that cannot be used.
var ErrInvalidBoard = errors.New("invalid board definition")

const boardIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultColumns is the layout of a new board.
var DefaultColumns = []model.Column{
	{ID: "went-well", Title: "What went well", AccentColor: "#107c10", Icon: "+"},
	{ID: "to-improve", Title: "What could be improved", AccentColor: "#d13438", Icon: "-"},
	{ID: "actions", Title: "Action items", AccentColor: model.DefaultAccentColor, Icon: ">"},
}

// boardFile is the on-disk shape. Phase and notes live in the database once
// a board exists; the file only seeds them.
type boardFile struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	Phase           string         `yaml:"phase,omitempty"`
	MaxVotesPerUser int            `yaml:"max_votes_per_user,omitempty"`
	CreatedBy       *model.User    `yaml:"created_by,omitempty"`
	Columns         []model.Column `yaml:"columns"`
}

// NewBoardDefinition returns a board with a fresh id and the default
// columns.
func NewBoardDefinition(title string, creator *model.User) (model.Board, error) {
	id, err := gonanoid.Generate(boardIDAlphabet, 10)
	if err != nil {
		return model.Board{}, fmt.Errorf("generating board id: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Retrospective"
	}
	def := model.Board{
		ID:              id,
		Title:           title,
		Phase:           model.PhaseCollect,
		Columns:         append([]model.Column(nil), DefaultColumns...),
		MaxVotesPerUser: model.DefaultMaxVotesPerUser,
	}
	if creator != nil {
		u := *creator
		def.CreatedBy = &u
	}
	return def, nil
}

// BoardPath returns the definition file of board id inside dir.
func BoardPath(dir, id string) string {
	return filepath.Join(dir, id+".yaml")
}

// LoadBoard reads and validates a board definition file.
func LoadBoard(path string) (model.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Board{}, fmt.Errorf("reading board: %w", err)
	}
	return ParseBoard(data)
}

// ParseBoard decodes and validates a board definition.
func ParseBoard(data []byte) (model.Board, error) {
	var f boardFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Board{}, fmt.Errorf("parsing board: %w", err)
	}
	phase, err := model.ParsePhase(f.Phase)
	if err != nil {
		return model.Board{}, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}
	def := model.Board{
		ID:              strings.TrimSpace(f.ID),
		Title:           f.Title,
		Phase:           phase,
		MaxVotesPerUser: f.MaxVotesPerUser,
		CreatedBy:       f.CreatedBy,
		Columns:         f.Columns,
	}
	return ValidateBoard(def)
}

// ValidateBoard checks that a definition has an id and uniquely named
// columns. It returns a copy with missing column ids derived from titles.
func ValidateBoard(def model.Board) (model.Board, error) {
	if def.ID == "" {
		return model.Board{}, fmt.Errorf("%w: missing id", ErrInvalidBoard)
	}
	if len(def.Columns) == 0 {
		return model.Board{}, fmt.Errorf("%w: board %s has no columns", ErrInvalidBoard, def.ID)
	}
	def.Columns = slices.Clone(def.Columns)
	seen := make(map[string]bool, len(def.Columns))
	for i := range def.Columns {
		col := &def.Columns[i]
		if col.ID == "" {
			col.ID = slug(col.Title)
		}
		if col.ID == "" {
			return model.Board{}, fmt.Errorf("%w: column %d of %s has neither id nor title", ErrInvalidBoard, i+1, def.ID)
		}
		if seen[col.ID] {
			return model.Board{}, fmt.Errorf("%w: duplicate column %q in %s", ErrInvalidBoard, col.ID, def.ID)
		}
		seen[col.ID] = true
	}
	return def, nil
}

// SaveBoard writes a board definition file, creating dir if needed.
func SaveBoard(dir string, def model.Board) (string, error) {
	def, err := ValidateBoard(def)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating boards directory: %w", err)
	}
	data, err := yaml.Marshal(boardFile{
		ID:              def.ID,
		Title:           def.Title,
		Phase:           string(def.Phase),
		MaxVotesPerUser: def.MaxVotesPerUser,
		CreatedBy:       def.CreatedBy,
		Columns:         def.Columns,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling board: %w", err)
	}
	path := BoardPath(dir, def.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing board: %w", err)
	}
	return path, nil
}

// ListBoards returns the board definition files in dir, sorted by name.
// A missing directory yields no boards.
func ListBoards(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
