package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/vanderheijden86/retro/internal/datasource"
	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/broadcast"
	"github.com/vanderheijden86/retro/pkg/config"
	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/export"
	"github.com/vanderheijden86/retro/pkg/identity"
	"github.com/vanderheijden86/retro/pkg/metrics"
	"github.com/vanderheijden86/retro/pkg/model"
	"github.com/vanderheijden86/retro/pkg/ui"
	"github.com/vanderheijden86/retro/pkg/version"
	"github.com/vanderheijden86/retro/pkg/watcher"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Config file (default: "+config.ConfigPath()+")")
	boardFlag := flag.String("board", "", "Board name or id to open (default: the last one)")
	newBoard := flag.String("new-board", "", "Create a board with this title and open it")
	listFlag := flag.Bool("list", false, "List known boards and exit")
	exportFile := flag.String("export", "", "Export the board to this file (.md, .svg or .png) and exit")
	dbFlag := flag.String("db", "", "SQLite database shared by all participants")
	redisFlag := flag.String("redis", "", "Redis address for live updates (empty: poll only)")
	nameFlag := flag.String("name", "", "Display name shown on your cards")
	debugLog := flag.String("debug-log", "", "Write debug log to file")
	metricsFlag := flag.Bool("metrics", false, "Print timing metrics on exit")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: retro [options]")
		fmt.Println("\nA shared retrospective board in your terminal.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("retro %s\n", version.Version)
		os.Exit(0)
	}

	if *debugLog != "" {
		f, err := os.OpenFile(*debugLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not open debug log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		debug.SetOutput(f)
		debug.SetEnabled(true)
	}
	metrics.SetEnabled(*metricsFlag)

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		// Non-fatal: continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if *dbFlag != "" {
		cfg.Database = *dbFlag
	}
	if *redisFlag != "" {
		cfg.Redis.Addr = *redisFlag
	}
	if *nameFlag != "" {
		cfg.User.DisplayName = *nameFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := datasource.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", cfg.Database, err)
		os.Exit(1)
	}
	defer store.Close()

	if *listFlag {
		if err := listBoards(ctx, store, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *exportFile != "" {
		if err := exportBoard(ctx, store, cfg, *boardFlag, *exportFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported to %s\n", *exportFile)
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "retro needs an interactive terminal")
		os.Exit(1)
	}

	if cfg.User.DisplayName == "" {
		name, err := promptName()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.User.DisplayName = name
	}

	resolver := identity.NewResolver(model.User{ID: cfg.User.ID, DisplayName: cfg.User.DisplayName})
	user, err := resolver.CurrentUser(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var opened openedBoard
	if *newBoard != "" {
		opened, err = createBoard(ctx, store, &cfg, *newBoard, &user)
	} else {
		opened, err = openBoard(ctx, store, cfg, *boardFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.LastBoard = opened.Def.ID
	if err := config.SaveTo(cfg, cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	err = runSession(ctx, cfg, store, resolver, opened)
	if *metricsFlag {
		fmt.Println(metrics.Summary())
	}
	if err != nil {
		fmt.Printf("Error running retro: %v\n", err)
		os.Exit(1)
	}
}

// runSession wires the board to the broadcast channel, the definition file
// watcher and the TUI, and runs until the user quits.
func runSession(ctx context.Context, cfg config.Config, store *datasource.Store, resolver *identity.Resolver, opened openedBoard) error {
	var (
		bcast     board.Broadcaster
		announcer board.BoardAnnouncer
		client    *broadcast.Client
	)
	if cfg.Redis.Addr != "" {
		c, err := connectBroadcast(ctx, cfg.Redis, opened.Def.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live updates disabled: %v\n", err)
		} else {
			client = c
			bcast, announcer = c, c
			defer client.Close()
		}
	}

	b, err := board.New(board.Options{
		Persistence: store,
		Broadcaster: bcast,
		Identity:    resolver,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Load(ctx, opened.Def); err != nil {
		return err
	}
	b.Poll(ctx, cfg.PollInterval)

	if client != nil {
		sub, err := client.Subscribe(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live updates disabled: %v\n", err)
		} else {
			defer sub.Close()
			go broadcast.Pump(ctx, sub, b)
		}
	}

	if opened.Path != "" {
		w, err := watcher.New(opened.Path,
			watcher.OnChange(func(c watcher.Change) {
				if changed, err := reloadLayout(ctx, store, b, announcer, c.Path); err != nil {
					debug.Warn("reloading %s: %v", c.Path, err)
				} else if changed {
					debug.Log("reloaded layout from %s", c.Path)
				}
			}),
			watcher.OnError(func(err error) {
				debug.Warn("watching %s: %v", opened.Path, err)
			}),
		)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			debug.Warn("not watching %s: %v", opened.Path, err)
		} else {
			defer w.Stop()
		}
	}

	m := ui.New(ctx, b, ui.Options{
		Anonymous: cfg.UI.AnonymousByDefault,
		ShowNotes: cfg.UI.ShowNotes,
	})
	defer m.Close()
	return runTUIProgram(m)
}

func connectBroadcast(ctx context.Context, rc config.RedisConfig, boardID string) (*broadcast.Client, error) {
	c, err := broadcast.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	}, boardID)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	return c, nil
}

// promptName asks for the display name on first run.
func promptName() (string, error) {
	var name string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("What should your teammates call you?").
				Description("Shown on the cards you add. Saved to your config.").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a name is required")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}

func listBoards(ctx context.Context, store *datasource.Store, cfg config.Config) error {
	boards, err := store.ListBoards(ctx)
	if err != nil {
		return err
	}
	files, err := config.ListBoards(cfg.BoardsDir)
	if err != nil {
		return err
	}
	stored := make(map[string]bool, len(boards))
	for _, b := range boards {
		stored[b.ID] = true
		name := ""
		for _, ref := range cfg.Boards {
			if ref.ID == b.ID {
				name = ref.Name
			}
		}
		marker := " "
		if b.ID == cfg.LastBoard {
			marker = "*"
		}
		fmt.Printf("%s %-12s %-8s %s %s\n", marker, b.ID, b.Phase, b.Title, name)
	}
	for _, path := range files {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if !stored[id] {
			fmt.Printf("  %-12s %-8s (not opened yet) %s\n", id, "-", path)
		}
	}
	if len(boards) == 0 && len(files) == 0 {
		fmt.Println("No boards yet. Create one with --new-board \"Sprint 1\".")
	}
	return nil
}

func exportBoard(ctx context.Context, store *datasource.Store, cfg config.Config, arg, path string) error {
	opened, err := openBoard(ctx, store, cfg, arg)
	if err != nil {
		return err
	}
	cards, err := store.GetAllItemsForBoard(ctx, opened.Def.ID)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg", ".png":
		return export.SaveSnapshot(export.SnapshotOptions{Path: path, Board: opened.Def, Cards: cards})
	default:
		return export.SaveMarkdownToFile(opened.Def, cards, path)
	}
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set RETRO_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("RETRO_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
