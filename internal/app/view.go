package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/mixdesk/internal/session"
	"github.com/jwulff/mixdesk/internal/ui"
	"github.com/jwulff/mixdesk/internal/waveform"
)

// Reserve: header(1) + status(1) + divider(1) + waveform + divider(1) +
// divider(1) + input(1) + error(1) + footer(1)
const reservedLines = 8 + waveform.Rows + 2

func (m Model) mainHeight() int {
	if m.height == 0 {
		return 12
	}
	return max(5, m.height-reservedLines)
}

func (m Model) spectrogramWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(20, m.width*40/100)
}

func (m Model) transcriptWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.spectrogramWidth()-1)
}

// layout resizes child components after a window change.
func (m *Model) layout() {
	m.wave.SetWidth(m.width)
	w := m.transcriptWidth()
	m.transcript.Width = w
	m.transcript.Height = m.mainHeight() - 1

	m.promptInput.Width = max(10, m.width-lipgloss.Width(m.promptInput.Prompt)-2)
	m.replyInput.Width = max(10, m.width-lipgloss.Width(m.replyInput.Prompt)-2)
	m.pathInput.Width = max(10, m.width-lipgloss.Width(m.pathInput.Prompt)-2)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.glamourStyle),
		glamour.WithWordWrap(max(20, w-4)),
	)
	if err != nil {
		m.log.Warn("markdown renderer unavailable", "err", err)
		r = nil
	}
	m.renderer = r
	m.specKey = ""
	m.refreshTranscript()
	m.refreshSpectrogram()
}

// refreshTranscript rebuilds the transcript viewport content.
func (m *Model) refreshTranscript() {
	turns := m.state.Transcript().Turns()
	width := max(10, m.transcript.Width-2)

	var lines []string
	for _, t := range turns {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		switch t.Role {
		case session.RoleUser:
			label := ui.UserLabelStyle.Render("You")
			if t.Status == session.StatusPending {
				label += ui.PendingTextStyle.Render(" (sending…)")
			}
			lines = append(lines, label)
			for _, wl := range wrapText(t.Text, width) {
				if t.Status == session.StatusPending {
					wl = ui.PendingTextStyle.Render(wl)
				}
				lines = append(lines, wl)
			}
		case session.RoleModel:
			lines = append(lines, ui.ModelLabelStyle.Render("Model"))
			lines = append(lines, m.renderMarkdown(t.Text, width)...)
		}
	}
	m.transcript.SetContent(strings.Join(lines, "\n"))
	if m.transcriptFollow {
		m.transcript.GotoBottom()
	}
}

func (m Model) renderMarkdown(text string, width int) []string {
	if m.renderer != nil {
		out, err := m.renderer.Render(text)
		if err == nil {
			return strings.Split(strings.Trim(out, "\n"), "\n")
		}
		m.log.Debug("markdown render failed", "err", err)
	}
	return wrapText(text, width)
}

// refreshSpectrogram re-renders the artifact when it or the panel size
// changed.
func (m *Model) refreshSpectrogram() {
	art := m.state.Artifact()
	w, h := m.spectrogramWidth()-2, m.mainHeight()-1
	if art.Encoded == m.specKey && w == m.specW && h == m.specH && m.specRendered != "" {
		return
	}
	m.specKey, m.specW, m.specH = art.Encoded, w, h

	if art.Empty() {
		m.specRendered = ui.DimStyle.Render("No spectrogram yet. Press v to preview.")
		return
	}
	data, err := art.PNG()
	if err == nil {
		var out string
		out, err = ui.RenderImage(data, w, h)
		if err == nil {
			m.specRendered = out
			return
		}
	}
	m.specRendered = ui.ErrorTextStyle.Render("Spectrogram unavailable: " + err.Error())
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.wave.View(),
		divider,
		m.renderMainContent(),
		divider,
		m.renderInputLine(),
	}
	if msg := m.state.Err(); msg != "" {
		sections = append(sections, m.renderErrorBar(msg))
	} else if m.notice != "" {
		sections = append(sections, ui.DimStyle.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("MIXDESK")
	var file string
	if a, ok := m.state.Audio(); ok {
		file = ui.DimStyle.Render(" · " + filepath.Base(a.Path))
	}
	if m.loadingFile != "" {
		file += ui.DimStyle.Render("  loading " + filepath.Base(m.loadingFile) + " " + m.spinner.View())
	}
	return truncateToWidth(title+file, m.width)
}

func (m Model) renderStatusBar() string {
	var conn string
	switch {
	case m.backendOK:
		conn = ui.OnlineDotStyle.Render("● backend")
	case m.reconnecting:
		conn = ui.OfflineDotStyle.Render("○ backend offline") + ui.DimStyle.Render(" (reconnecting)")
	default:
		conn = ui.DimStyle.Render("○ backend …")
	}

	phase := ui.PhaseStyle.Render(strings.ToUpper(m.state.Phase().String()))

	var inflight []string
	for _, c := range []session.ActionClass{session.ActionPreview, session.ActionStartAnalysis, session.ActionReply} {
		if m.state.InFlight(c) {
			inflight = append(inflight, m.spinner.View()+" "+c.String())
		}
	}

	cfg := m.state.Config()
	thinking := "off"
	if cfg.ThinkingBudget > 0 {
		thinking = fmt.Sprint(cfg.ThinkingBudget)
	}
	config := ui.StatusStyle.Render(fmt.Sprintf("%s · temp %.1f · thinking %s", cfg.ModelID, cfg.Temperature, thinking))

	parts := []string{conn, phase}
	if len(inflight) > 0 {
		parts = append(parts, strings.Join(inflight, " "))
	}
	parts = append(parts, config)
	return truncateToWidth(strings.Join(parts, "  "), m.width)
}

func (m Model) renderMainContent() string {
	transcriptW := m.transcriptWidth()
	specW := m.spectrogramWidth()
	contentH := m.mainHeight()

	left := m.renderTranscriptPanel(transcriptW, contentH)
	right := m.renderSpectrogramPanel(specW, contentH)
	divider := ui.DividerStyle.Render("│")

	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")

	rows := make([]string, contentH)
	for i := range rows {
		l, r := "", ""
		if i < len(leftLines) {
			l = leftLines[i]
		}
		if i < len(rightLines) {
			r = rightLines[i]
		}
		rows[i] = padRight(l, transcriptW) + divider + r
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderTranscriptPanel(width, height int) string {
	var badge string
	if !m.transcriptFollow {
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}
	header := ui.PanelTitleStyle.Render("CONVERSATION") + badge
	if id := m.state.SessionID(); id != "" {
		header += ui.DimStyle.Render(" " + id)
	}

	lines := []string{truncateToWidth(header, width)}
	if m.state.Transcript().Len() == 0 {
		lines = append(lines, "")
		_, loaded := m.state.Audio()
		switch {
		case m.loadingFile != "":
			lines = append(lines, ui.DimStyle.Render("  Decoding audio..."))
		case !loaded:
			lines = append(lines, ui.DimStyle.Render("  Press o to open an audio file"))
		case m.state.CanStartAnalysis():
			lines = append(lines, ui.DimStyle.Render("  Press Enter to analyse the selected region"))
		default:
			lines = append(lines, ui.DimStyle.Render("  Select a region and set a prompt (e)"))
		}
	} else {
		lines = append(lines, strings.Split(m.transcript.View(), "\n")...)
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSpectrogramPanel(width, height int) string {
	title := "SPECTROGRAM"
	if art := m.state.Artifact(); !art.Empty() {
		switch art.Producer {
		case session.ActionPreview:
			title += ui.DimStyle.Render(" preview")
		case session.ActionStartAnalysis:
			title += ui.DimStyle.Render(" analysis")
		}
	}
	lines := []string{" " + ui.PanelTitleStyle.Render(title)}
	for _, l := range strings.Split(m.specRendered, "\n") {
		lines = append(lines, " "+truncateToWidth(l, width-1))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderInputLine() string {
	switch m.focus {
	case FocusPrompt:
		return m.promptInput.View()
	case FocusReply:
		return m.replyInput.View()
	case FocusOpen:
		return m.pathInput.View()
	}

	sel := m.state.Selection()
	region := ui.DimStyle.Render("Region " + sel.String())
	prompt := m.state.Prompt()
	if prompt == "" {
		prompt = ui.DimStyle.Render("(no prompt)")
	}
	label := "Prompt: "
	if !m.state.CanEditPrompt() {
		label = "Prompt (locked): "
	}
	return truncateToWidth(region+"  "+ui.HeaderStyle.Render(label)+prompt, m.width)
}

func (m Model) renderErrorBar(msg string) string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(msg)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	if m.focus != FocusNone {
		return strings.Join([]string{key("Enter", "Submit"), key("Esc", "Cancel")}, "  ")
	}

	parts := []string{key("o", "Open")}
	if _, ok := m.state.Audio(); ok {
		parts = append(parts, key("h/l H/L [/]", "Region"))
		if m.wave.Playing() {
			parts = append(parts, key("Space", "Stop"))
		} else {
			parts = append(parts, key("Space", "Play"), key("p", "Play region"))
		}
		parts = append(parts, key("v", "Preview"))
	}
	switch m.state.Phase() {
	case session.PhaseNoSession:
		parts = append(parts, key("e", "Prompt"), key("Enter", "Analyse"))
	case session.PhaseActive:
		parts = append(parts, key("r", "Reply"), key("n", "New"))
	}
	parts = append(parts, key("m/+/-/t", "Model"))
	if !m.state.Artifact().Empty() {
		parts = append(parts, key("w", "Export"))
	}
	parts = append(parts, key("↑↓", "Scroll"), key("q", "Quit"))
	return truncateToWidth(strings.Join(parts, "  "), m.width)
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	// Styled strings are truncated by the renderer so ANSI codes stay balanced.
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
