package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/vanderheijden86/retro/pkg/debug"
	"github.com/vanderheijden86/retro/pkg/metrics"
	"github.com/vanderheijden86/retro/pkg/model"
)

// DefaultTimerTick is how often a running card timer is incremented.
const DefaultTimerTick = time.Second

// TimerSlot owns the board-wide "one running timer" invariant. Every start,
// stop and stop notification goes through its mutex, which is held across
// the persistence calls so a running timer is stopped, and the stop
// persisted, strictly before another one starts.
type TimerSlot struct {
	board    *Board
	interval time.Duration

	mu       sync.Mutex
	active   string
	stopTick context.CancelFunc
}

func newTimerSlot(b *Board, interval time.Duration) *TimerSlot {
	if interval <= 0 {
		interval = DefaultTimerTick
	}
	return &TimerSlot{board: b, interval: interval}
}

// Active returns the id of the card whose timer this client is running.
func (t *TimerSlot) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Start starts cardID's timer, first stopping any other running timer.
func (t *TimerSlot) Start(ctx context.Context, cardID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if phase := t.board.Phase(); phase != model.PhaseAct {
		return fmt.Errorf("%w: timers run in the act phase, board is in %s", ErrWrongPhase, phase)
	}
	if cardID == model.EmptyCardID {
		return ErrPlaceholder
	}
	card, ok := t.board.Card(cardID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	if t.active == cardID && card.TimerRunning {
		return nil
	}

	for _, running := range t.board.runningTimers() {
		if running == cardID {
			continue
		}
		if err := t.stopLocked(ctx, running); err != nil {
			return fmt.Errorf("handing timer over from %s: %w", running, err)
		}
	}
	if t.active != "" && t.active != cardID {
		t.cancelTickLocked()
	}

	handle, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("allocating timer handle: %w", err)
	}
	updated, err := t.board.persist.FlipTimer(ctx, t.board.ID(), cardID, true, handle)
	if err != nil {
		metrics.MutationFailures.Inc()
		return fmt.Errorf("starting timer on %s: %w", cardID, err)
	}
	t.board.applyServerCards(ctx, []model.Card{updated}, true)

	t.active = cardID
	t.startTickLocked(cardID)
	debug.Log("timer: started %s (handle %s)", cardID, handle)
	return nil
}

// Stop stops cardID's timer if it is running.
func (t *TimerSlot) Stop(ctx context.Context, cardID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	card, ok := t.board.Card(cardID)
	if !ok {
		if t.active == cardID {
			t.cancelTickLocked()
			t.active = ""
		}
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	if !card.TimerRunning && t.active != cardID {
		return nil
	}
	return t.stopLocked(ctx, cardID)
}

// Reset zeroes cardID's elapsed time without changing whether it runs.
func (t *TimerSlot) Reset(ctx context.Context, cardID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	updated, err := t.board.persist.UpdateTimer(ctx, t.board.ID(), cardID, true)
	if err != nil {
		metrics.MutationFailures.Inc()
		return fmt.Errorf("resetting timer on %s: %w", cardID, err)
	}
	t.board.applyServerCards(ctx, []model.Card{updated}, true)
	return nil
}

// NotifyStopped records that cardID's timer was stopped elsewhere (remote
// update, card deleted). Nothing is persisted.
func (t *TimerSlot) NotifyStopped(cardID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == cardID {
		t.cancelTickLocked()
		t.active = ""
		debug.Log("timer: %s stopped elsewhere", cardID)
	}
}

// resync keeps the local ticker across a rebuild of the same board. It is
// dropped only when the fresh snapshot shows the card gone or stopped, or
// the board left the act phase.
func (t *TimerSlot) resync() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == "" || !t.board.Loaded() {
		return
	}
	card, ok := t.board.Card(t.active)
	if ok && card.TimerRunning && t.board.Phase() == model.PhaseAct {
		return
	}
	debug.Log("timer: %s no longer running after rebuild", t.active)
	t.cancelTickLocked()
	t.active = ""
}

// Close stops the local ticker without persisting anything.
func (t *TimerSlot) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTickLocked()
	t.active = ""
}

func (t *TimerSlot) stopLocked(ctx context.Context, cardID string) error {
	if t.active == cardID {
		t.cancelTickLocked()
	}
	updated, err := t.board.persist.FlipTimer(ctx, t.board.ID(), cardID, false, "")
	if err != nil {
		metrics.MutationFailures.Inc()
		return fmt.Errorf("stopping timer on %s: %w", cardID, err)
	}
	if t.active == cardID {
		t.active = ""
	}
	t.board.applyServerCards(ctx, []model.Card{updated}, true)
	debug.Log("timer: stopped %s", cardID)
	return nil
}

func (t *TimerSlot) cancelTickLocked() {
	if t.stopTick != nil {
		t.stopTick()
		t.stopTick = nil
	}
}

// startTickLocked launches the single ticker goroutine for cardID.
func (t *TimerSlot) startTickLocked(cardID string) {
	t.cancelTickLocked()
	ctx, cancel := context.WithCancel(context.Background())
	t.stopTick = cancel

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.tick(ctx, cardID)
			}
		}
	}()
}

func (t *TimerSlot) tick(ctx context.Context, cardID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil || t.active != cardID {
		return
	}
	updated, err := t.board.persist.UpdateTimer(ctx, t.board.ID(), cardID, false)
	if err != nil {
		debug.Warn("timer tick for %s: %v", cardID, err)
		return
	}
	if !updated.TimerRunning {
		// Stopped by another participant since the last tick.
		t.cancelTickLocked()
		t.active = ""
	}
	t.board.applyServerCards(ctx, []model.Card{updated}, false)
}
