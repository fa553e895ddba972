package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/vanderheijden86/retro/internal/datasource"
	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/config"
	"github.com/vanderheijden86/retro/pkg/model"
)

// errNoBoard is returned when neither a flag nor the config names a board.
var errNoBoard = errors.New("no board selected: pass --board or create one with --new-board")

// openedBoard is the board a session runs on.
type openedBoard struct {
	Def  model.Board
	Path string // definition file, "" when the board only exists in the database
}

// createBoard writes a new definition file and stores the board.
func createBoard(ctx context.Context, store *datasource.Store, cfg *config.Config, title string, creator *model.User) (openedBoard, error) {
	def, err := config.NewBoardDefinition(title, creator)
	if err != nil {
		return openedBoard{}, err
	}
	path, err := config.SaveBoard(cfg.BoardsDir, def)
	if err != nil {
		return openedBoard{}, err
	}
	saved, _, err := store.ImportLayout(ctx, def)
	if err != nil {
		return openedBoard{}, fmt.Errorf("storing board %s: %w", def.ID, err)
	}
	cfg.RegisterBoard(def.Title, def.ID)
	return openedBoard{Def: saved, Path: path}, nil
}

// openBoard resolves arg (a registered name, an id, or "" for the last
// board) and brings its definition file, when there is one, into the
// database.
func openBoard(ctx context.Context, store *datasource.Store, cfg config.Config, arg string) (openedBoard, error) {
	id := cfg.ResolveBoard(arg)
	if id == "" {
		return openedBoard{}, errNoBoard
	}

	path := config.BoardPath(cfg.BoardsDir, id)
	if _, err := os.Stat(path); err == nil {
		file, err := config.LoadBoard(path)
		if err != nil {
			return openedBoard{}, fmt.Errorf("%s: %w", path, err)
		}
		if file.ID != id {
			return openedBoard{}, fmt.Errorf("%s describes board %s, not %s", path, file.ID, id)
		}
		saved, _, err := store.ImportLayout(ctx, file)
		if err != nil {
			return openedBoard{}, fmt.Errorf("importing %s: %w", path, err)
		}
		return openedBoard{Def: saved, Path: path}, nil
	}

	def, err := store.GetBoard(ctx, id)
	if errors.Is(err, datasource.ErrNotFound) {
		return openedBoard{}, fmt.Errorf("board %q not found (looked in %s and %s)", arg, cfg.BoardsDir, store.Path())
	}
	if err != nil {
		return openedBoard{}, err
	}
	return openedBoard{Def: def}, nil
}

// reloadLayout applies an edited definition file to the running board and
// tells the other participants when anything changed.
func reloadLayout(ctx context.Context, store *datasource.Store, b *board.Board, ann board.BoardAnnouncer, path string) (bool, error) {
	file, err := config.LoadBoard(path)
	if err != nil {
		return false, err
	}
	if file.ID != b.ID() {
		return false, fmt.Errorf("%s now describes board %s, not %s", path, file.ID, b.ID())
	}
	_, changed, err := store.ImportLayout(ctx, file)
	if err != nil || !changed {
		return false, err
	}
	if _, err := b.CheckBoard(ctx); err != nil {
		return true, err
	}
	if ann != nil {
		if err := ann.AnnounceBoardUpdated(ctx); err != nil {
			return true, fmt.Errorf("announcing layout change: %w", err)
		}
	}
	return true, nil
}
