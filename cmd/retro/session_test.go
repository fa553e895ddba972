package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/retro/internal/datasource"
	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/config"
	"github.com/vanderheijden86/retro/pkg/identity"
	"github.com/vanderheijden86/retro/pkg/model"
)

var ada = model.User{ID: "u1", DisplayName: "Ada"}

func testEnv(t *testing.T) (*datasource.Store, config.Config) {
	t.Helper()
	dir := t.TempDir()
	store, err := datasource.Open(filepath.Join(dir, "retro.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := config.DefaultConfig()
	cfg.Database = store.Path()
	cfg.BoardsDir = filepath.Join(dir, "boards")
	return store, cfg
}

type recordingAnnouncer struct{ calls int }

func (r *recordingAnnouncer) AnnounceBoardUpdated(context.Context) error {
	r.calls++
	return nil
}

func TestCreateAndOpenBoard(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)

	created, err := createBoard(ctx, store, &cfg, "Sprint 12", &ada)
	if err != nil {
		t.Fatalf("createBoard: %v", err)
	}
	if created.Path != config.BoardPath(cfg.BoardsDir, created.Def.ID) {
		t.Errorf("path = %s", created.Path)
	}
	if ref := cfg.FindBoard("sprint 12"); ref == nil || ref.ID != created.Def.ID {
		t.Fatalf("board not registered: %+v", cfg.Boards)
	}

	opened, err := openBoard(ctx, store, cfg, "Sprint 12")
	if err != nil {
		t.Fatalf("openBoard: %v", err)
	}
	if opened.Def.ID != created.Def.ID || opened.Path != created.Path {
		t.Errorf("opened %+v, want %+v", opened, created)
	}
	if len(opened.Def.Columns) != len(config.DefaultColumns) {
		t.Errorf("columns = %d", len(opened.Def.Columns))
	}
}

func TestOpenBoard_KeepsStoredPhase(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)
	created, err := createBoard(ctx, store, &cfg, "Sprint 12", &ada)
	if err != nil {
		t.Fatalf("createBoard: %v", err)
	}
	def := created.Def
	def.Phase = model.PhaseVote
	if _, err := store.SaveBoard(ctx, def); err != nil {
		t.Fatalf("SaveBoard: %v", err)
	}

	opened, err := openBoard(ctx, store, cfg, created.Def.ID)
	if err != nil {
		t.Fatalf("openBoard: %v", err)
	}
	if opened.Def.Phase != model.PhaseVote {
		t.Errorf("phase = %s, the file must not reset it", opened.Def.Phase)
	}
}

func TestOpenBoard_DatabaseOnly(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)
	if _, err := store.SaveBoard(ctx, model.Board{ID: "shared", Title: "Shared", Columns: config.DefaultColumns}); err != nil {
		t.Fatalf("SaveBoard: %v", err)
	}
	cfg.LastBoard = "shared"

	opened, err := openBoard(ctx, store, cfg, "")
	if err != nil {
		t.Fatalf("openBoard: %v", err)
	}
	if opened.Def.ID != "shared" || opened.Path != "" {
		t.Errorf("opened %+v", opened)
	}
}

func TestOpenBoard_Errors(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)

	if _, err := openBoard(ctx, store, cfg, ""); !errors.Is(err, errNoBoard) {
		t.Errorf("no board: err = %v", err)
	}
	if _, err := openBoard(ctx, store, cfg, "nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("unknown board: err = %v", err)
	}
}

func TestReloadLayout(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)
	created, err := createBoard(ctx, store, &cfg, "Sprint 12", &ada)
	if err != nil {
		t.Fatalf("createBoard: %v", err)
	}

	b, err := board.New(board.Options{
		Persistence: store,
		Identity:    identity.NewResolver(ada),
		TimerTick:   time.Hour,
	})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	t.Cleanup(b.Close)
	if err := b.Load(ctx, created.Def); err != nil {
		t.Fatalf("Load: %v", err)
	}

	edited := created.Def
	edited.Title = "Sprint 12 (rescheduled)"
	edited.Columns = append(edited.Columns, model.Column{ID: "kudos", Title: "Kudos"})
	if _, err := config.SaveBoard(cfg.BoardsDir, edited); err != nil {
		t.Fatalf("SaveBoard: %v", err)
	}

	ann := &recordingAnnouncer{}
	changed, err := reloadLayout(ctx, store, b, ann, created.Path)
	if err != nil || !changed {
		t.Fatalf("reloadLayout = %v, %v", changed, err)
	}
	if got := b.Definition().Title; got != edited.Title {
		t.Errorf("title = %q", got)
	}
	if ids := b.ColumnIDs(); len(ids) != 4 || ids[3] != "kudos" {
		t.Errorf("columns = %v", ids)
	}
	if ann.calls != 1 {
		t.Errorf("announcements = %d, want 1", ann.calls)
	}

	changed, err = reloadLayout(ctx, store, b, ann, created.Path)
	if err != nil || changed {
		t.Errorf("unchanged file: reloadLayout = %v, %v", changed, err)
	}
	if ann.calls != 1 {
		t.Errorf("unchanged file should not be announced, calls = %d", ann.calls)
	}

	if changed, err := reloadLayout(ctx, store, b, nil, created.Path); err != nil || changed {
		t.Errorf("nil announcer: %v, %v", changed, err)
	}
}

func TestReloadLayout_WrongBoard(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)
	first, err := createBoard(ctx, store, &cfg, "First", &ada)
	if err != nil {
		t.Fatalf("createBoard: %v", err)
	}
	second, err := createBoard(ctx, store, &cfg, "Second", &ada)
	if err != nil {
		t.Fatalf("createBoard: %v", err)
	}

	b, err := board.New(board.Options{Persistence: store, TimerTick: time.Hour})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	t.Cleanup(b.Close)
	if err := b.Load(ctx, first.Def); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := reloadLayout(ctx, store, b, nil, second.Path); err == nil {
		t.Error("a file for another board should be rejected")
	}
}

func TestExportBoard(t *testing.T) {
	ctx := context.Background()
	store, cfg := testEnv(t)

	created, err := createBoard(ctx, store, &cfg, "Sprint 12", &ada)
	if err != nil {
		t.Fatalf("createBoard: %v", err)
	}
	col := created.Def.Columns[0].ID
	if _, err := store.CreateItem(ctx, created.Def.ID, "Pairing helped", col, &ada, false); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.md")
	if err := exportBoard(ctx, store, cfg, "Sprint 12", path); err != nil {
		t.Fatalf("exportBoard: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	md := string(data)
	if !strings.Contains(md, "# Sprint 12") || !strings.Contains(md, "- Pairing helped · @Ada") {
		t.Errorf("unexpected export:\n%s", md)
	}

	if err := exportBoard(ctx, store, cfg, "nope", path); err == nil {
		t.Errorf("exporting an unknown board should fail")
	}
}
