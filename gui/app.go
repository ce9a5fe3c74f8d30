//go:build gui

// Package gui is the desktop front end: a floating answer overlay, a
// notification toast and a tray menu, all drawn with fyne.
package gui

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"

	"murmur/capture"
	"murmur/overlay"
	"murmur/pipeline"
)

const (
	overlayWidth  = 560
	overlayHeight = 420
	notifWidth    = 320
	notifHeight   = 80
	margin        = 24
)

// Menu holds what the tray items do. Record toggles a channel the way a
// tap of its hotkey would.
type Menu struct {
	Record      func(ch capture.Channel)
	CopyLast    func()
	Explanation func()
	Hide        func()
}

type App struct {
	fyneApp fyne.App
	onReady func()

	overlay *surface
	notif   *surface

	done     chan struct{}
	doneOnce sync.Once

	mu        sync.Mutex
	menu      Menu
	status    string
	recording map[capture.Channel]bool
	suspected bool
	explain   bool
	trayMenu  *fyne.Menu
}

func NewApp(onReady func()) *App {
	return &App{
		onReady:   onReady,
		overlay:   &surface{kind: kindOverlay},
		notif:     &surface{kind: kindNotification},
		done:      make(chan struct{}),
		status:    "Ready",
		recording: make(map[capture.Channel]bool),
	}
}

func (a *App) Overlay() overlay.Surface      { return a.overlay }
func (a *App) Notification() overlay.Surface { return a.notif }

// Done is closed when the user quits from the tray.
func (a *App) Done() <-chan struct{} { return a.done }

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.murmur.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	screenW, screenH := 1920, 1080
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, screenH = monitor.GetWorkarea()
	}

	a.overlay.attach(a.newWindow("murmur"), fyne.NewSize(overlayWidth, overlayHeight),
		screenW-overlayWidth-margin, margin)
	a.notif.attach(a.newWindow("murmur notification"), fyne.NewSize(notifWidth, notifHeight),
		screenW-notifWidth-margin, screenH-notifHeight-margin)

	if desk, ok := a.fyneApp.(desktop.App); ok {
		a.trayMenu = fyne.NewMenu("murmur")
		a.rebuildMenu()
		desk.SetSystemTrayMenu(a.trayMenu)
		desk.SetSystemTrayIcon(iconIdle)
	}

	go a.onReady()

	// windows stay hidden until the gate shows them
	a.fyneApp.Run()
	return nil
}

func (a *App) newWindow(title string) fyne.Window {
	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		return drv.CreateSplashWindow()
	}
	return a.fyneApp.NewWindow(title)
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) SetMenu(m Menu) {
	a.mu.Lock()
	a.menu = m
	a.mu.Unlock()
	fyne.Do(a.rebuildMenu)
}

// rebuildMenu runs on the fyne thread.
func (a *App) rebuildMenu() {
	if a.trayMenu == nil {
		return
	}
	a.mu.Lock()
	m := a.menu
	status := a.status
	explain := a.explain
	rec := map[capture.Channel]bool{}
	for ch, on := range a.recording {
		rec[ch] = on
	}
	a.mu.Unlock()

	statusItem := fyne.NewMenuItem(status, nil)
	statusItem.Disabled = true

	items := []*fyne.MenuItem{statusItem, fyne.NewMenuItemSeparator()}
	for _, ch := range capture.Channels {
		label := fmt.Sprintf("Record %s", ch)
		if rec[ch] {
			label = fmt.Sprintf("Stop %s", ch)
		}
		item := fyne.NewMenuItem(label, func() {
			if m.Record != nil {
				go m.Record(ch)
			}
		})
		items = append(items, item)
	}

	explainItem := fyne.NewMenuItem("Explanations", func() {
		a.mu.Lock()
		a.explain = !a.explain
		a.mu.Unlock()
		if m.Explanation != nil {
			go m.Explanation()
		}
		a.rebuildMenu()
	})
	explainItem.Checked = explain

	items = append(items,
		fyne.NewMenuItem("Copy last answer", func() {
			if m.CopyLast != nil {
				go m.CopyLast()
			}
		}),
		explainItem,
		fyne.NewMenuItem("Hide overlay", func() {
			if m.Hide != nil {
				go m.Hide()
			}
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			a.doneOnce.Do(func() { close(a.done) })
		}),
	)
	a.trayMenu.Items = items
	a.trayMenu.Refresh()
}

func (a *App) refreshTray() {
	fyne.Do(func() {
		a.rebuildMenu()
		desk, ok := a.fyneApp.(desktop.App)
		if !ok {
			return
		}
		a.mu.Lock()
		busy, warn := false, a.suspected
		for _, on := range a.recording {
			busy = busy || on
		}
		a.mu.Unlock()
		switch {
		case busy:
			desk.SetSystemTrayIcon(iconRec)
		case warn:
			desk.SetSystemTrayIcon(iconWarn)
		default:
			desk.SetSystemTrayIcon(iconIdle)
		}
	})
}

// Event sink methods.

func (a *App) Status(text string) {
	a.mu.Lock()
	a.status = text
	a.mu.Unlock()
	a.refreshTray()
}

func (a *App) Recording(ch capture.Channel, on bool) {
	a.mu.Lock()
	a.recording[ch] = on
	a.mu.Unlock()
	a.refreshTray()
}

func (a *App) Detection(suspected bool, _ string) {
	a.mu.Lock()
	a.suspected = suspected
	a.mu.Unlock()
	a.refreshTray()
}

func (a *App) Answered(pipeline.Record) {}

type surfaceKind int

const (
	kindOverlay surfaceKind = iota
	kindNotification
)

// surface is one frameless window seen as an overlay.Surface. The gate
// calls it from the UI loop goroutine, so window work goes through fyne.Do.
type surface struct {
	kind surfaceKind

	mu      sync.Mutex
	visible bool

	window     fyne.Window
	title      *widget.Label
	text       *widget.RichText
	code       *widget.Label
	posX, posY int
}

func (s *surface) attach(w fyne.Window, size fyne.Size, x, y int) {
	s.window = w
	s.posX, s.posY = x, y

	s.title = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	s.text = widget.NewRichTextFromMarkdown("")
	s.text.Wrapping = fyne.TextWrapWord
	s.code = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
	s.code.Wrapping = fyne.TextWrapOff

	var body fyne.CanvasObject
	if s.kind == kindOverlay {
		body = container.NewBorder(s.title, nil, nil, nil,
			container.NewVScroll(container.NewVBox(s.text, container.NewHScroll(s.code))))
	} else {
		body = container.NewVBox(s.title, s.text)
	}
	w.SetContent(container.NewPadded(body))
	w.SetFixedSize(true)
	w.SetPadded(false)
	w.Resize(size)
}

func (s *surface) Show(c overlay.Content) {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
	fyne.Do(func() {
		if s.window == nil {
			return
		}
		s.title.SetText(c.Title)
		s.text.ParseMarkdown(c.Text)
		s.code.SetText(c.Code)
		if c.Code == "" {
			s.code.Hide()
		} else {
			s.code.Show()
		}
		s.showWithoutFocus()
	})
}

// showWithoutFocus positions the window and keeps it floating over the
// editor without stealing keyboard focus.
func (s *surface) showWithoutFocus() {
	if win := glfw.GetCurrentContext(); win != nil {
		win.SetPos(s.posX, s.posY)
		win.SetAttrib(glfw.FocusOnShow, glfw.False)
		win.SetAttrib(glfw.Floating, glfw.True)
	}
	s.window.Show()
}

func (s *surface) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
	fyne.Do(func() {
		if s.window != nil {
			s.window.Hide()
		}
	})
}

func (s *surface) IsVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
