package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the board's key bindings. It implements help.KeyMap.
type keyMap struct {
	Left, Right, Up, Down key.Binding
	Column                key.Binding

	New, Edit, Delete  key.Binding
	Vote, Unvote       key.Binding
	Mark, Ungroup      key.Binding
	MoveNext, MovePrev key.Binding
	Timer, ResetTimer  key.Binding
	Phase              key.Binding
	EditNotes, Notes   key.Binding
	Carousel, Copy     key.Binding
	Anonymous, Refresh key.Binding
	Help, Quit         key.Binding
	Submit, Cancel     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Column: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "jump to column")),

		New:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new card")),
		Edit:       key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit title")),
		Delete:     key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Vote:       key.NewBinding(key.WithKeys("v", "+"), key.WithHelp("v", "vote")),
		Unvote:     key.NewBinding(key.WithKeys("V", "-"), key.WithHelp("V", "withdraw vote")),
		Mark:       key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "mark / group into")),
		Ungroup:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "ungroup")),
		MoveNext:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move to next column")),
		MovePrev:   key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "move to prev column")),
		Timer:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "start/stop timer")),
		ResetTimer: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "reset timer")),
		Phase:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "next phase")),
		EditNotes:  key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "edit column notes")),
		Notes:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "show notes")),
		Carousel:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "focus mode")),
		Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy card")),
		Anonymous:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle anonymous")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.New, k.Vote, k.Mark, k.Timer, k.Phase, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down, k.Column},
		{k.New, k.Edit, k.Delete, k.Copy, k.Anonymous},
		{k.Vote, k.Unvote, k.Mark, k.Ungroup, k.MoveNext, k.MovePrev},
		{k.Timer, k.ResetTimer, k.Phase, k.EditNotes, k.Notes},
		{k.Carousel, k.Refresh, k.Help, k.Quit},
	}
}
