package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/capture"
	"murmur/dispatch"
	"murmur/overlay"
	"murmur/pipeline"
)

type statusMsg struct{ Text string }
type recordingMsg struct {
	Channel capture.Channel
	On      bool
}
type detectionMsg struct {
	Suspected bool
	Match     string
}
type answeredMsg struct{ Record pipeline.Record }
type paneMsg struct {
	Pane    pane
	Visible bool
	Content overlay.Content
}
type tickMsg time.Time

type pane int

const (
	paneOverlay pane = iota
	paneNotification
)

type tuiModel struct {
	width, height int
	status        string
	recording     map[capture.Channel]time.Time
	suspected     bool
	match         string
	answers       int
	overlay       paneMsg
	notification  paneMsg
	help          []string
	press         func(dispatch.Trigger)
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	codeStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
	notifStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
)

// NewTUIProgram builds the terminal UI. help lists "combo action" pairs;
// press receives the single-key shortcuts typed into the terminal; r and d
// start or stop a recording.
func NewTUIProgram(help []string, press func(dispatch.Trigger)) *tea.Program {
	m := tuiModel{
		status:    "Ready",
		recording: make(map[capture.Channel]time.Time),
		help:      help,
		press:     press,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.trigger(trigMicrophone)
		case "d":
			m.trigger(trigDesktop)
		case "x":
			m.trigger(trigHide)
		case "c":
			m.trigger(trigCopyLast)
		case "e":
			m.trigger(trigExplanation)
		}

	case tickMsg:
		return m, tuiTick()

	case statusMsg:
		m.status = msg.Text

	case recordingMsg:
		if msg.On {
			m.recording[msg.Channel] = time.Now()
		} else {
			delete(m.recording, msg.Channel)
		}

	case detectionMsg:
		m.suspected = msg.Suspected
		m.match = msg.Match

	case answeredMsg:
		m.answers++

	case paneMsg:
		if msg.Pane == paneOverlay {
			m.overlay = msg
		} else {
			m.notification = msg
		}
	}
	return m, nil
}

func (m tuiModel) trigger(t dispatch.Trigger) {
	if m.press != nil {
		go m.press(t)
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const sideWidth = 36
	var side []string
	for _, ch := range capture.Channels {
		if start, ok := m.recording[ch]; ok {
			side = append(side, recStyle.Render(fmt.Sprintf("● REC %s %.1fs", ch, time.Since(start).Seconds())))
		} else {
			side = append(side, dimStyle.Render("○ "+string(ch)))
		}
	}
	side = append(side, "")
	side = append(side, wrapText(m.status, sideWidth-2)...)
	if m.suspected {
		side = append(side, warnStyle.Render("⚠ screen capture: "+m.match))
	}
	side = append(side, dimStyle.Render(fmt.Sprintf("answers: %d", m.answers)), "")
	for _, h := range m.help {
		combo, action, _ := strings.Cut(h, " ")
		side = append(side, boldHelp.Render(combo)+helpStyle.Render(" "+action))
	}
	side = append(side, helpStyle.Render("r mic  d desktop  x hide  c copy  e explain  q quit"))
	side = append(side, helpStyle.Render("murmur "+version))

	mainWidth := m.width - sideWidth - 1
	if mainWidth < 20 {
		mainWidth = 20
	}
	wrapWidth := mainWidth - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var body strings.Builder
	if m.overlay.Visible {
		c := m.overlay.Content
		if c.Title != "" {
			body.WriteString(titleStyle.Render(c.Title) + "\n\n")
		}
		for _, line := range wrapText(c.Text, wrapWidth) {
			body.WriteString(textStyle.Render(line) + "\n")
		}
		if c.Code != "" {
			body.WriteString("\n" + codeStyle.Width(wrapWidth).Render(c.Code) + "\n")
		}
	} else {
		body.WriteString(dimStyle.Render("No answer on screen"))
	}
	if m.notification.Visible {
		c := m.notification.Content
		body.WriteString("\n\n" + notifStyle.Width(wrapWidth).Render(c.Title+"\n"+c.Text))
	}

	sidePanel := lipgloss.NewStyle().
		Width(sideWidth).
		Height(m.height).
		Render(strings.Join(side, "\n"))
	mainPanel := lipgloss.NewStyle().
		Width(mainWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(body.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, sidePanel, mainPanel)
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSurface is one pane of the terminal UI seen as an overlay.Surface.
// visible is only touched from the UI executor.
type tuiSurface struct {
	pane    pane
	visible bool
}

func (s *tuiSurface) Show(c overlay.Content) {
	s.visible = true
	tuiSend(paneMsg{Pane: s.pane, Visible: true, Content: c})
}

func (s *tuiSurface) Hide() {
	s.visible = false
	tuiSend(paneMsg{Pane: s.pane})
}

func (s *tuiSurface) IsVisible() bool { return s.visible }

type tuiSink struct{}

func (tuiSink) Status(text string) { tuiSend(statusMsg{Text: text}) }

func (tuiSink) Recording(ch capture.Channel, on bool) {
	tuiSend(recordingMsg{Channel: ch, On: on})
}

func (tuiSink) Detection(suspected bool, match string) {
	tuiSend(detectionMsg{Suspected: suspected, Match: match})
}

func (tuiSink) Answered(r pipeline.Record) { tuiSend(answeredMsg{Record: r}) }

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		for len(para) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if para[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, para[:splitAt])
			para = strings.TrimLeft(para[splitAt:], " ")
		}
		lines = append(lines, para)
	}
	return lines
}
