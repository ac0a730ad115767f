package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

const maxEventLines = 500

// EventLog is a scrolling, capped feed of formatted pipeline events.
type EventLog struct {
	*tview.TextView
	lines []string
}

// NewEventLog creates a new event feed view.
func NewEventLog() *EventLog {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true).SetTitle(" Events ")

	return &EventLog{TextView: tv}
}

// Append adds one formatted line to the feed, evicting the oldest line
// once the cap is reached, and scrolls to the bottom.
func (e *EventLog) Append(line string) {
	e.lines = append(e.lines, sanitizeForTerminal(line))
	if len(e.lines) > maxEventLines {
		e.lines = e.lines[len(e.lines)-maxEventLines:]
	}
	e.Clear()
	_, _ = fmt.Fprint(e, strings.Join(e.lines, "\n"))
	e.ScrollToEnd()
}
