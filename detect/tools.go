package detect

import "strings"

// KnownTools are lowercase fragments of process names belonging to screen
// recorders, streaming software, conferencing and remote-desktop apps.
var KnownTools = []string{
	// recorders and streaming
	"obs64", "obs", "obs-studio", "streamlabs obs", "slobs",
	"xsplit", "fraps", "bandicam", "action", "camtasia", "dxtory",
	"screencastomatic",
	// gpu vendor overlays
	"nvidia shadowplay", "nvcontainer", "nvsphelper64", "radeon-si", "amdow",
	// windows media capture
	"wmcap", "wmenc",
	// conferencing
	"msteams", "teams", "zoom", "discord", "skype", "slack", "webexmta", "googlemeet",
	// remote desktop
	"teamviewer", "anydesk",
}

// Table matches names against a set of tool fragments, case-insensitively.
type Table struct {
	tools []string
}

func NewTable(extra ...string) *Table {
	tools := make([]string, 0, len(KnownTools)+len(extra))
	seen := make(map[string]bool)
	for _, t := range append(append([]string(nil), KnownTools...), extra...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tools = append(tools, t)
	}
	return &Table{tools: tools}
}

// Match returns the first tool fragment contained in name.
func (t *Table) Match(name string) (string, bool) {
	lower := strings.ToLower(name)
	if lower == "" {
		return "", false
	}
	for _, tool := range t.tools {
		if strings.Contains(lower, tool) {
			return tool, true
		}
	}
	return "", false
}

func (t *Table) Tools() []string { return append([]string(nil), t.tools...) }
