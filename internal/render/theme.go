package render

import (
	"log/slog"
	"strings"

	darkmode "github.com/thiagokokada/dark-mode-go"
)

type Preference int

const (
	ThemeAuto Preference = iota
	ThemeLight
	ThemeDark
)

func (p Preference) String() string {
	switch p {
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return "auto"
	}
}

// ThemeFromString maps a config or query value to a Preference. Anything
// unknown means auto.
func ThemeFromString(raw string) Preference {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ThemeDark.String():
		return ThemeDark
	case ThemeLight.String():
		return ThemeLight
	default:
		return ThemeAuto
	}
}

type labelStyle struct {
	Fill   string
	Stroke string
	Text   string
}

// Theme holds every colour the renderers use apart from the lane palette.
type Theme struct {
	Name        string
	Dark        bool
	Background  string
	Foreground  string
	Muted       string
	NodeFill    string
	HeadFill    string
	SelectedRow string

	head   labelStyle
	remote labelStyle
	local  labelStyle
}

var (
	LightTheme = Theme{
		Name:        "light",
		Background:  "#ffffff",
		Foreground:  "#111111",
		Muted:       "#6b7280",
		NodeFill:    "#ffffff",
		HeadFill:    "#ffd75e",
		SelectedRow: "#cfe7ff",
		head:        labelStyle{Fill: "#ffd75e", Stroke: "#c9a300", Text: "#111111"},
		remote:      labelStyle{Fill: "#dbeafe", Stroke: "#2563eb", Text: "#111111"},
		local:       labelStyle{Fill: "#dff5de", Text: "#111111"},
	}
	DarkTheme = Theme{
		Name:        "dark",
		Dark:        true,
		Background:  "#1e1e1e",
		Foreground:  "#eaeaea",
		Muted:       "#9ca3af",
		NodeFill:    "#1e1e1e",
		HeadFill:    "#b58900",
		SelectedRow: "#253446",
		head:        labelStyle{Fill: "#b58900", Stroke: "#8a6a00", Text: "#111111"},
		remote:      labelStyle{Fill: "#253446", Stroke: "#4fa3ff", Text: "#eaeaea"},
		local:       labelStyle{Fill: "#1f3b2a", Text: "#eaeaea"},
	}
	detectDarkMode = darkmode.IsDarkMode
)

// ResolveTheme picks the theme for pref, asking the desktop for auto.
// Detection failures fall back to light.
func ResolveTheme(pref Preference) Theme {
	switch pref {
	case ThemeDark:
		return DarkTheme
	case ThemeLight:
		return LightTheme
	}
	if detectDarkMode == nil {
		return LightTheme
	}
	dark, err := detectDarkMode()
	if err != nil {
		slog.Debug("dark mode detection failed", slog.Any("error", err))
		return LightTheme
	}
	if dark {
		return DarkTheme
	}
	return LightTheme
}

// labelStyleFor styles a branch pill. Local branches take their lane colour
// as the outline.
func (t Theme) labelStyleFor(current, remote bool, laneColor string) labelStyle {
	switch {
	case current:
		return t.head
	case remote:
		return t.remote
	default:
		st := t.local
		st.Stroke = laneColor
		return st
	}
}
