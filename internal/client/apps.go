package client

import (
	"fmt"
	"io"
	"time"

	"github.com/charon-kb/charon/internal/domain"
)

// App ids.
const (
	AppCharonSay = "charonsay"
	AppMenu      = "menu"
	AppStats     = "stats"
)

// DefaultApps returns the built-in apps. snippet is the text the menu's
// send item types.
func DefaultApps(snippet string) map[string]App {
	return map[string]App{
		AppCharonSay: &CharonSay{},
		AppMenu:      NewMenu(snippet),
		AppStats:     &StatsView{},
	}
}

// CharonSay is the idle screen shown in pass-through mode.
type CharonSay struct {
	stats  *domain.Stats
	uptime time.Duration
}

func (c *CharonSay) Update(msg Msg) []Command {
	switch m := msg.(type) {
	case Backend:
		if cs, ok := m.Payload.(domain.CurrentStats); ok {
			c.stats = &cs.Stats
			return []Command{Render{}}
		}
	case Tick:
		c.uptime += m.Elapsed
	case Activate:
		return []Command{Render{}}
	}
	return nil
}

func (c *CharonSay) Render(w io.Writer) {
	fmt.Fprintln(w, " ____________________________")
	fmt.Fprintln(w, "< keys pass straight through >")
	fmt.Fprintln(w, " ----------------------------")
	fmt.Fprintln(w, "        \\   (o o)")
	fmt.Fprintln(w, "         \\  ( - )  charon")
	if c.stats != nil {
		fmt.Fprintf(w, "\n%d keys  %d wpm (max %d)\n", c.stats.KeyPresses, c.stats.Wpm, c.stats.MaxWpm)
	}
}

type menuItem struct {
	label  string
	action func() []Command
}

// Menu is the keyboard-driven list shown in in-app mode.
type Menu struct {
	items    []menuItem
	selected int
}

// NewMenu creates the main menu.
func NewMenu(snippet string) *Menu {
	return &Menu{items: []menuItem{
		{"Stats", func() []Command { return []Command{RunApp{ID: AppStats}} }},
		{"Type snippet", func() []Command {
			return []Command{SendEvent{Payload: domain.SendText{Text: snippet}}}
		}},
		{"Back to pass-through", func() []Command {
			return []Command{SendEvent{Payload: domain.ModeChange{Mode: domain.ModePassThrough}}}
		}},
		{"Quit client", func() []Command { return []Command{Exit{}} }},
	}}
}

// Selected returns the highlighted item index.
func (m *Menu) Selected() int { return m.selected }

func (m *Menu) Update(msg Msg) []Command {
	switch msg := msg.(type) {
	case Activate:
		m.selected = 0
		return []Command{Render{}}
	case Backend:
		press, ok := msg.Payload.(domain.KeyPress)
		if !ok {
			return nil
		}
		switch press.Key {
		case domain.KeyUp, keyK:
			m.selected = (m.selected + len(m.items) - 1) % len(m.items)
			return []Command{Render{}}
		case domain.KeyDown, keyJ:
			m.selected = (m.selected + 1) % len(m.items)
			return []Command{Render{}}
		case domain.KeyEnter:
			return m.items[m.selected].action()
		case domain.KeyEscape:
			return []Command{SendEvent{Payload: domain.ModeChange{Mode: domain.ModePassThrough}}}
		}
	}
	return nil
}

func (m *Menu) Render(w io.Writer) {
	fmt.Fprintln(w, "charon")
	fmt.Fprintln(w)
	for i, item := range m.items {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		fmt.Fprintf(w, "%s%s\n", cursor, item.label)
	}
}

// StatsView shows the latest typing statistics.
type StatsView struct {
	stats domain.Stats
	seen  bool
}

func (s *StatsView) Update(msg Msg) []Command {
	switch m := msg.(type) {
	case Activate:
		return []Command{Render{}}
	case Backend:
		switch p := m.Payload.(type) {
		case domain.CurrentStats:
			s.stats, s.seen = p.Stats, true
			return []Command{Render{}}
		case domain.KeyPress:
			if p.Key == domain.KeyEscape || p.Key == keyQ {
				return []Command{RunApp{ID: AppMenu}}
			}
		}
	}
	return nil
}

func (s *StatsView) Render(w io.Writer) {
	fmt.Fprintln(w, "typing stats")
	fmt.Fprintln(w)
	if !s.seen {
		fmt.Fprintln(w, "waiting for the daemon...")
		return
	}
	st := s.stats
	fmt.Fprintf(w, "key presses   %d\n", st.KeyPresses)
	fmt.Fprintf(w, "wpm           %d (max %d)\n", st.Wpm, st.MaxWpm)
	fmt.Fprintf(w, "reports sent  %d\n", st.ReportsSent)
	fmt.Fprintf(w, "texts sent    %d\n", st.TextsSent)
	if st.RSSBytes > 0 {
		fmt.Fprintf(w, "daemon        %.1f MiB, %.1f%% cpu\n", float64(st.RSSBytes)/(1<<20), st.CPUPercent)
	}
	if !st.Since.IsZero() {
		fmt.Fprintf(w, "since         %s\n", st.Since.Format(time.Kitchen))
	}
}

const (
	keyJ = domain.KeyA + 'j' - 'a'
	keyK = domain.KeyA + 'k' - 'a'
	keyQ = domain.KeyA + 'q' - 'a'
)
