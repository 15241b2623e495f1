// Package cli renders tachyon's terminal output with lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Icons used outside the renderers.
const (
	TachyonIcon = "⚡"
	BellIcon    = "🔔"
	SpeakIcon   = "🔊"
)

const (
	chartIcon   = "📊"
	receiptIcon = "🧾"
	robotIcon   = "🤖"
)

var (
	accent = lipgloss.Color("#7B61FF")
	green  = lipgloss.Color("#4ECDC4")
	amber  = lipgloss.Color("#FFE66D")
	red    = lipgloss.Color("#FF6B6B")
	cyan   = lipgloss.Color("#95E1D3")
	muted  = lipgloss.Color("#666666")
	rule   = lipgloss.Color("#333")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(rule).
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(rule)

	cellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// tone pairs a status icon with its colour.
type tone struct {
	style lipgloss.Style
	icon  string
}

var (
	toneOK   = tone{icon: "✓", style: lipgloss.NewStyle().Foreground(green)}
	toneFail = tone{icon: "✗", style: lipgloss.NewStyle().Foreground(red)}
	toneWarn = tone{icon: "⚠️", style: lipgloss.NewStyle().Foreground(amber)}
	toneInfo = tone{icon: "ℹ️", style: lipgloss.NewStyle().Foreground(cyan)}
)

func (t tone) line(message string) string {
	return t.style.Render(t.icon + " " + message)
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string { return toneOK.line(message) }

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string { return toneWarn.line(message) }

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string { return toneInfo.line(message) }

// FormatTitle formats a title with the tachyon icon.
func FormatTitle(title string) string {
	return titleStyle.MarginBottom(1).Render(TachyonIcon + " " + title)
}

func formatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// box frames content under an icon title.
func box(icon, title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(icon+" "+title),
		content,
	))
}
