package ui

import (
	"context"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// boardChangedMsg is sent whenever the board notified its subscribers.
type boardChangedMsg struct{}

// opDoneMsg carries the result of a board operation run off the Update loop.
type opDoneMsg struct {
	action string
	err    error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	what string
	err  error
}

// waitForChange blocks until the board signals a change. The channel holds
// at most one pending signal, so bursts collapse into a single redraw.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return boardChangedMsg{}
	}
}

// runOp runs fn in a command so persistence I/O never blocks rendering.
func runOp(ctx context.Context, action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{action: action, err: fn(ctx)}
	}
}

func copyCmd(what, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{what: what, err: clipboard.WriteAll(text)}
	}
}
