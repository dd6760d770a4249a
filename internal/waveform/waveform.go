// Package waveform is a bubbletea component that draws an audio envelope with
// a movable region and reports region changes to its parent.
package waveform

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwulff/mixdesk/internal/audio"
	"github.com/jwulff/mixdesk/internal/session"
	"github.com/jwulff/mixdesk/internal/ui"
)

// DefaultRegionSec is the length of the region placed on load.
const DefaultRegionSec = 30.0

// Rows is the height of the drawn envelope.
const Rows = 4

// Player plays ranges of a file. Run blocks until playback ends.
type Player interface {
	Run(path string, fromSec, durSec float64) error
	Stop()
}

// SelectionChangedMsg reports the region after load and after every move or
// resize.
type SelectionChangedMsg struct {
	StartSec    float64
	EndSec      float64
	DurationSec float64
}

// PlaybackEndedMsg is sent when a playback started by the widget finishes.
type PlaybackEndedMsg struct {
	ID  int
	Err error
}

// Model is the widget state.
type Model struct {
	player Player

	path     string
	duration float64
	peaks    []float32
	loaded   bool

	start, end float64

	playing bool
	playID  int
	playErr error

	width int
}

// New returns an empty widget. player may be nil, in which case playback
// commands do nothing.
func New(player Player) Model {
	return Model{player: player, width: 80}
}

// SetWidth sets the drawn width in columns.
func (m *Model) SetWidth(w int) {
	m.width = max(10, w)
}

// Loaded reports whether a source has been loaded.
func (m Model) Loaded() bool { return m.loaded }

// Playing reports whether playback is running.
func (m Model) Playing() bool { return m.playing }

// Region returns the current region.
func (m Model) Region() (start, end float64) { return m.start, m.end }

// PlayErr is the error from the last finished playback.
func (m Model) PlayErr() error { return m.playErr }

// Load replaces the source, stops playback and places the default region.
func (m Model) Load(src audio.Source) (Model, tea.Cmd) {
	if m.playing && m.player != nil {
		m.player.Stop()
	}
	m.playing = false
	m.playErr = nil
	m.playID++

	m.path = src.Path
	m.duration = max(0, src.DurationSec)
	m.peaks = src.Peaks
	m.loaded = true
	m.start = 0
	m.end = math.Min(DefaultRegionSec, m.duration)
	return m, m.changed()
}

// step is the move/resize increment: a hundredth of the track clamped to
// [100ms, 5s], and never more than the track itself.
func (m Model) step() float64 {
	return math.Min(m.duration, math.Min(5, math.Max(0.1, m.duration/100)))
}

// Update handles region keys and playback completions.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PlaybackEndedMsg:
		if msg.ID == m.playID {
			m.playing = false
			m.playErr = msg.Err
		}
		return m, nil

	case tea.KeyMsg:
		if !m.loaded || m.duration == 0 {
			return m, nil
		}
		step := m.step()
		start, end := m.start, m.end
		switch msg.String() {
		case "h", "left":
			shift := math.Min(step, start)
			start -= shift
			end -= shift
		case "l", "right":
			shift := math.Min(step, m.duration-end)
			start += shift
			end += shift
		case "H":
			end = math.Max(start+step, end-step)
		case "L":
			end = math.Min(m.duration, end+step)
		case "[":
			start = math.Max(0, start-step)
		case "]":
			start = math.Min(end-step, start+step)
		default:
			return m, nil
		}
		// round to the millisecond, then clamp so the region never leaves
		// the track; rounding may cost at most 1ms of length
		start = math.Max(0, round(start))
		end = math.Min(m.duration, round(end))
		if end <= start || end-start < step-0.0011 {
			return m, nil
		}
		if start == m.start && end == m.end {
			return m, nil
		}
		m.start, m.end = start, end
		return m, m.changed()
	}
	return m, nil
}

// TogglePlayback stops playback if running, otherwise plays from the region
// start to the end of the file.
func (m Model) TogglePlayback() (Model, tea.Cmd) {
	if m.playing {
		m.playing = false
		m.playID++
		if m.player != nil {
			m.player.Stop()
		}
		return m, nil
	}
	return m.play(m.start, 0)
}

// PlaySelection plays the region once.
func (m Model) PlaySelection() (Model, tea.Cmd) {
	if m.end <= m.start {
		return m, nil
	}
	return m.play(m.start, m.end-m.start)
}

// Stop halts playback.
func (m Model) Stop() Model {
	if m.playing && m.player != nil {
		m.player.Stop()
	}
	m.playing = false
	m.playID++
	return m
}

func (m Model) play(from, dur float64) (Model, tea.Cmd) {
	if !m.loaded || m.player == nil {
		return m, nil
	}
	m.playID++
	m.playing = true
	m.playErr = nil
	id, player, path := m.playID, m.player, m.path
	return m, func() tea.Msg {
		return PlaybackEndedMsg{ID: id, Err: player.Run(path, from, dur)}
	}
}

func (m Model) changed() tea.Cmd {
	msg := SelectionChangedMsg{StartSec: m.start, EndSec: m.end, DurationSec: m.duration}
	return func() tea.Msg { return msg }
}

// View draws the envelope, a region marker line and the time labels.
func (m Model) View() string {
	if !m.loaded {
		return ui.DimStyle.Render("  No audio loaded. Press o to open a file.")
	}

	cols := m.width
	levels := m.columnLevels(cols)
	inRegion := make([]bool, cols)
	for c := range inRegion {
		if m.duration > 0 {
			t0 := float64(c) * m.duration / float64(cols)
			t1 := float64(c+1) * m.duration / float64(cols)
			inRegion[c] = t1 > m.start && t0 < m.end
		}
	}

	const blocks = " ▁▂▃▄▅▆▇█"
	glyphs := []rune(blocks)
	var lines []string
	for row := Rows - 1; row >= 0; row-- {
		var sb strings.Builder
		for c, lvl := range levels {
			// eighths of a cell filled in this row
			fill := int(math.Round(float64(lvl)*Rows*8)) - row*8
			fill = min(8, max(0, fill))
			g := string(glyphs[fill])
			if inRegion[c] {
				sb.WriteString(ui.RegionStyle.Render(g))
			} else {
				sb.WriteString(ui.WaveStyle.Render(g))
			}
		}
		lines = append(lines, sb.String())
	}

	var marker strings.Builder
	for _, in := range inRegion {
		if in {
			marker.WriteString(ui.RegionStyle.Render("▔"))
		} else {
			marker.WriteByte(' ')
		}
	}
	lines = append(lines, marker.String())

	label := fmt.Sprintf("%s – %s of %s",
		session.FormatSeconds(m.start), session.FormatSeconds(m.end), session.FormatSeconds(m.duration))
	if m.playing {
		label += "  " + ui.PlayingBadgeStyle.Render("▶ PLAYING")
	}
	if m.playErr != nil {
		label += "  " + ui.ErrorTextStyle.Render("playback: "+m.playErr.Error())
	}
	lines = append(lines, ui.DimStyle.Render(label))
	return strings.Join(lines, "\n")
}

// columnLevels resamples the peaks to cols values.
func (m Model) columnLevels(cols int) []float32 {
	levels := make([]float32, cols)
	n := len(m.peaks)
	if n == 0 {
		return levels
	}
	for c := 0; c < cols; c++ {
		lo := c * n / cols
		hi := max(lo+1, (c+1)*n/cols)
		for _, p := range m.peaks[lo:min(hi, n)] {
			levels[c] = max(levels[c], p)
		}
	}
	return levels
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
