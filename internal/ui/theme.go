package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/bucketctl/internal/config"
)

// Catppuccin Mocha palette, overridable from the config file.
var (
	ColorDir    = lipgloss.Color("#89b4fa")
	ColorFile   = lipgloss.Color("#cdd6f4")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorYellow = lipgloss.Color("#f9e2af")
)

var (
	styleDir     lipgloss.Style
	styleFile    lipgloss.Style
	styleMuted   lipgloss.Style
	styleSize    lipgloss.Style
	styleHeader  lipgloss.Style
	styleOK      lipgloss.Style
	styleFailed  lipgloss.Style
	styleUnsure  lipgloss.Style
	styleSummary lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleDir = lipgloss.NewStyle().Bold(true).Foreground(ColorDir)
	styleFile = lipgloss.NewStyle().Foreground(ColorFile)
	styleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	styleSize = lipgloss.NewStyle().Foreground(ColorMuted).Width(sizeColumn).Align(lipgloss.Right)
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorFile)
	styleOK = lipgloss.NewStyle().Foreground(ColorGreen)
	styleFailed = lipgloss.NewStyle().Foreground(ColorRed)
	styleUnsure = lipgloss.NewStyle().Foreground(ColorYellow).Italic(true)
	styleSummary = lipgloss.NewStyle().Foreground(ColorMuted)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Dir != nil {
		ColorDir = lipgloss.Color(*tc.Dir)
	}
	if tc.File != nil {
		ColorFile = lipgloss.Color(*tc.File)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	rebuildStyles()
}
