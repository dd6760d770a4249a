package ui

import "github.com/charmbracelet/lipgloss"

// Palette, loosely modelled on a console's meter bridge.
var (
	ColorMeterGreen = lipgloss.Color("#5FD75F")
	ColorMeterAmber = lipgloss.Color("#FFAF00")
	ColorMeterRed   = lipgloss.Color("#FF5F5F")
	ColorTeal       = lipgloss.Color("#5FD7D7")
	ColorViolet     = lipgloss.Color("#AF87FF")
	ColorText       = lipgloss.Color("#E4E4E4")
	ColorMuted      = lipgloss.Color("#808080")
	ColorRule       = lipgloss.Color("#3A3A3A")
)

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterAmber)
	HeaderStyle = lipgloss.NewStyle().Foreground(ColorTeal)
	StatusStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	PhaseStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText)

	OnlineDotStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterGreen)
	OfflineDotStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterRed)

	ErrorStyle       = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterRed)
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(ColorMeterRed)
	PendingTextStyle = lipgloss.NewStyle().Italic(true).Foreground(ColorMeterAmber)

	// Transcript speaker labels.
	UserLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorTeal)
	ModelLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorViolet)

	PanelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	DimStyle        = lipgloss.NewStyle().Foreground(ColorMuted)
	DividerStyle    = lipgloss.NewStyle().Foreground(ColorRule)

	FooterKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterAmber)
	FooterDescStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	// Waveform cells inside and outside the selected region.
	RegionStyle = lipgloss.NewStyle().Foreground(ColorMeterAmber)
	WaveStyle   = lipgloss.NewStyle().Foreground(ColorRule)

	PlayingBadgeStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterGreen)
	ScrollBadgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorMeterAmber)
	SpinnerStyle      = lipgloss.NewStyle().Foreground(ColorViolet)
)
