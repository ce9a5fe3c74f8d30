package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"murmur/capture"
	"murmur/dispatch"
	"murmur/overlay"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"one two three", 7, []string{"one two", "three"}},
		{"a\nb", 10, []string{"a", "b"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func update(m tuiModel, msg tea.Msg) tuiModel {
	next, _ := m.Update(msg)
	return next.(tuiModel)
}

func TestTUIModelPanes(t *testing.T) {
	m := tuiModel{recording: make(map[capture.Channel]time.Time)}
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(m, recordingMsg{Channel: capture.ChannelMicrophone, On: true})
	m = update(m, paneMsg{Pane: paneOverlay, Visible: true, Content: overlay.Content{Title: "Algorithmic Problem", Code: "sorted(xs)"}})
	m = update(m, detectionMsg{Suspected: true, Match: "obs"})

	view := m.View()
	for _, want := range []string{"REC microphone", "Algorithmic Problem", "sorted(xs)", "screen capture: obs"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = update(m, recordingMsg{Channel: capture.ChannelMicrophone})
	m = update(m, paneMsg{Pane: paneOverlay})
	view = m.View()
	if strings.Contains(view, "REC microphone") || !strings.Contains(view, "No answer on screen") {
		t.Errorf("view after hide:\n%s", view)
	}
}

func TestTUIKeysPress(t *testing.T) {
	got := make(chan dispatch.Trigger, 1)
	m := tuiModel{recording: make(map[capture.Channel]time.Time), press: func(tr dispatch.Trigger) { got <- tr }}
	update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	select {
	case tr := <-got:
		if tr != trigCopyLast {
			t.Errorf("pressed %q, want %q", tr, trigCopyLast)
		}
	case <-time.After(time.Second):
		t.Fatal("key did not reach the dispatcher")
	}
}
