package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Gruvbox tones, shared with the console delivery cards.
var (
	ColorOn     = lipgloss.Color("#8ec07c")
	ColorFailed = lipgloss.Color("#fb4934")
	ColorAccent = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorText   = lipgloss.Color("#ebdbb2")
	ColorTitle  = lipgloss.Color("#fe8019")
)

var (
	StyleOn     = lipgloss.NewStyle().Foreground(ColorOn)
	StyleFailed = lipgloss.NewStyle().Foreground(ColorFailed)
	StyleAccent = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleTitle  = lipgloss.NewStyle().Foreground(ColorTitle).Bold(true)
	StyleStrong = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
)

// Switch renders an on/off setting as a pill.
func Switch(on bool) string {
	if on {
		return StyleOn.Render("● on")
	}
	return StyleDim.Render("○ off")
}

// Header upper-cases text and underlines it to its own width.
func Header(text string) string {
	upper := strings.ToUpper(text)
	return fmt.Sprintf("%s\n%s", StyleTitle.Render(upper), StyleDim.Render(strings.Repeat("─", len([]rune(upper)))))
}

func Dim(text string) string { return StyleDim.Render(text) }

func Bold(text string) string { return StyleStrong.Render(text) }
