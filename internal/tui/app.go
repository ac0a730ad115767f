// Package tui implements the demo dashboard: a live feed of the events a
// wacore.Client emits, repurposed from the teacher's chat-browsing shell
// into an event viewer since this module has no chat store for a chat
// list or message thread view to read from.
package tui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	wacore "github.com/veltrix/wacore"
	"github.com/veltrix/wacore/internal/tui/ui"
	"github.com/veltrix/wacore/internal/tui/views"
)

// App is the dashboard's TUI shell.
type App struct {
	app         *tview.Application
	theme       *ui.Theme
	logo        *ui.Logo
	sessionInfo *ui.SessionInfo
	eventLog    *views.EventLog
	menu        *ui.Menu
	statusBar   *views.StatusBar
	flash       *ui.FlashModel

	instanceName string
	startedAt    time.Time
	chats        map[string]struct{}
	messageCount int32

	unsubscribe func()
}

// NewApp creates the dashboard shell for instanceName. It does not
// subscribe to anything itself, so App doesn't depend on the bus package:
// the caller feeds events in through OnEvent and hands the subscription's
// teardown to SetUnsubscribe.
func NewApp(instanceName string) *App {
	theme := ui.DefaultTheme()

	a := &App{
		app:          tview.NewApplication(),
		theme:        theme,
		logo:         ui.NewLogo(theme),
		sessionInfo:  ui.NewSessionInfo(theme),
		eventLog:     views.NewEventLog(),
		menu:         ui.NewMenu(theme),
		statusBar:    views.NewStatusBar(),
		flash:        ui.NewFlashModel(),
		instanceName: instanceName,
		startedAt:    time.Now(),
		chats:        make(map[string]struct{}),
	}

	a.menu.Update([]ui.MenuHint{{Key: "q", Description: "quit"}})
	a.statusBar.SetSession(instanceName)
	a.statusBar.SetStatus("LIVE")
	a.flash.Info("waiting for events...")
	a.setupLayout()
	return a
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.logo, 0, 1, false).
		AddItem(a.sessionInfo, 0, 1, false).
		AddItem(a.menu, 0, 1, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 5, 0, false).
		AddItem(a.eventLog, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'q' {
			a.app.Stop()
			return nil
		}
		return event
	})
}

// OnEvent feeds one pipeline event into the dashboard. It is safe to call
// concurrently; redraws are serialized through tview's own update queue.
func (a *App) OnEvent(kind string, payload any, ts time.Time) {
	a.recordCounts(kind, payload)
	line := formatEvent(kind, payload, ts)
	a.flash.Set("last event: "+kind, 10*time.Second)
	a.app.QueueUpdateDraw(func() {
		a.eventLog.Append(line)
		a.sessionInfo.Update(&ui.SessionData{
			Session:      a.instanceName,
			Phone:        "-",
			Status:       "LIVE",
			ChatCount:    int32(len(a.chats)),
			MessageCount: a.messageCount,
			Uptime:       time.Since(a.startedAt),
		})
		a.statusBar.SetFlash(a.flash.Get())
	})
}

func (a *App) recordCounts(kind string, payload any) {
	switch kind {
	case wacore.EventMessagesUpsert:
		if up, ok := payload.(wacore.MessagesUpsert); ok {
			a.messageCount += int32(len(up.Messages))
			for _, m := range up.Messages {
				a.chats[m.Key.RemoteJID] = struct{}{}
			}
		}
	case wacore.EventChatsUpsert:
		if cu, ok := payload.(wacore.ChatUpsert); ok {
			a.chats[cu.ID] = struct{}{}
		}
	}
}

// Run starts the dashboard's event loop. It blocks until the user quits.
func (a *App) Run() error {
	return a.app.Run()
}

// Stop shuts the dashboard down.
func (a *App) Stop() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.app.Stop()
}

// SetUnsubscribe records the subscription's teardown func so Stop can call
// it. Separated from NewApp so callers can subscribe after constructing
// the app (the app needs to exist before OnEvent has anywhere to draw to).
func (a *App) SetUnsubscribe(fn func()) {
	a.unsubscribe = fn
}

func formatEvent(kind string, payload any, ts time.Time) string {
	when := ts.Format("15:04:05")
	switch p := payload.(type) {
	case wacore.MessagesUpsert:
		if len(p.Messages) == 0 {
			return fmt.Sprintf("[gray]%s[-] [yellow]%s[-] (empty)", when, kind)
		}
		m := p.Messages[0]
		return fmt.Sprintf("[gray]%s[-] [yellow]%s[-] from=%s push=%q", when, kind, m.Key.RemoteJID, m.PushName)
	case wacore.ChatUpsert:
		return fmt.Sprintf("[gray]%s[-] [green]%s[-] id=%s name=%q", when, kind, p.ID, p.Name)
	case wacore.GroupMetadata:
		return fmt.Sprintf("[gray]%s[-] [green]%s[-] id=%s subject=%q participants=%d", when, kind, p.ID, p.Subject, len(p.Participants))
	case wacore.ContactUpdate:
		return fmt.Sprintf("[gray]%s[-] [aqua]%s[-] jid=%s name=%q", when, kind, p.JID, p.Name)
	case wacore.MediaUpdate:
		return fmt.Sprintf("[gray]%s[-] [aqua]%s[-] key=%s bytes=%d", when, kind, p.Key.String(), len(p.Data))
	case wacore.CallEvent:
		return fmt.Sprintf("[gray]%s[-] [red]%s[-] from=%s status=%s video=%v", when, kind, p.From, p.Status, p.IsVideo)
	default:
		return fmt.Sprintf("[gray]%s[-] [white]%s[-] %+v", when, kind, p)
	}
}
