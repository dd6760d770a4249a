package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/jwulff/mixdesk/internal/audio"
	"github.com/jwulff/mixdesk/internal/backend"
	"github.com/jwulff/mixdesk/internal/db"
	"github.com/jwulff/mixdesk/internal/session"
	"github.com/jwulff/mixdesk/internal/ui"
	"github.com/jwulff/mixdesk/internal/waveform"

	tea "github.com/charmbracelet/bubbletea"
)

// Backend is the analysis service.
type Backend interface {
	Health(ctx context.Context) error
	Spectrogram(ctx context.Context, r backend.SpectrogramRequest) (backend.SpectrogramResponse, error)
	Analyze(ctx context.Context, r backend.AnalyzeRequest) (backend.AnalyzeResponse, error)
	Reply(ctx context.Context, r backend.ReplyRequest) (backend.ReplyResponse, error)
}

// Archive is the write side of the conversation store.
type Archive interface {
	SaveConversation(c db.Conversation) error
	SaveTurns(conversationID string, turns []db.Turn) error
}

// LoadFunc decodes an audio file.
type LoadFunc func(ctx context.Context, path string) (audio.Source, error)

// Focus tracks which text input, if any, owns the keyboard.
type Focus int

const (
	FocusNone Focus = iota
	FocusPrompt
	FocusReply
	FocusOpen
)

// Options configures a Model. Backend and Load are required; the rest may be
// left zero.
type Options struct {
	Backend     Backend
	Archive     Archive
	Player      waveform.Player
	Load        LoadFunc
	Config      session.ModelConfig
	Prompt      string
	ExportDir   string
	InitialFile string
	// GlamourStyle names a glamour standard style; empty means "dark".
	GlamourStyle string
	Logger       *slog.Logger
}

// Model is the root bubbletea model for mixdesk.
type Model struct {
	backend     Backend
	archive     Archive
	load        LoadFunc
	exportDir   string
	initialFile string
	log         *slog.Logger

	state session.State
	wave  waveform.Model

	// Inputs
	focus       Focus
	promptInput textinput.Model
	replyInput  textinput.Model
	pathInput   textinput.Model

	// Transcript
	transcript       viewport.Model
	transcriptFollow bool
	renderer         *glamour.TermRenderer
	glamourStyle     string

	// Spectrogram panel cache
	specKey      string
	specW, specH int
	specRendered string

	spinner spinner.Model

	// Backend health
	backendOK        bool
	healthErr        string
	reconnecting     bool
	reconnectAttempt int

	loadingFile string

	notice    string
	noticeSeq int

	// Archive bookkeeping
	lastAnalyze    session.AnalyzeRequest
	archivedFor    string
	conversationID string
	archivedTurns  int
	archiving      bool
	archiveQueue   []archiveJob

	width  int
	height int
}

// New creates a Model in the initial state.
func New(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := opts.Config
	if cfg.Validate() != nil {
		cfg = session.DefaultModelConfig()
	}
	style := opts.GlamourStyle
	if style == "" {
		style = "dark"
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	prompt := textinput.New()
	prompt.Prompt = "Prompt › "
	prompt.Placeholder = "what should the engineer listen for?"
	prompt.CharLimit = 2000

	reply := textinput.New()
	reply.Prompt = "Reply › "
	reply.Placeholder = "ask a follow-up"
	reply.CharLimit = 2000

	path := textinput.New()
	path.Prompt = "Open › "
	path.Placeholder = "/path/to/track.wav"

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(ui.SpinnerStyle))

	return Model{
		backend:          opts.Backend,
		archive:          opts.Archive,
		load:             opts.Load,
		exportDir:        exportDir,
		initialFile:      opts.InitialFile,
		log:              log,
		state:            session.New(cfg, opts.Prompt),
		wave:             waveform.New(opts.Player),
		promptInput:      prompt,
		replyInput:       reply,
		pathInput:        path,
		transcript:       viewport.New(60, 10),
		transcriptFollow: true,
		glamourStyle:     style,
		spinner:          sp,
	}
}

// State returns the orchestration snapshot.
func (m Model) State() session.State { return m.state }

// Init probes the backend and opens the initial file, if any.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{healthCmd(m.backend)}
	if m.initialFile != "" {
		cmds = append(cmds, m.startLoad(m.initialFile))
	}
	return tea.Batch(cmds...)
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case HealthMsg:
		if msg.Err != nil {
			m.backendOK = false
			m.healthErr = msg.Err.Error()
			m.reconnecting = true
			m.log.Warn("backend health probe failed", "attempt", m.reconnectAttempt, "err", msg.Err)
			return m, reconnectCmd(m.reconnectAttempt)
		}
		if !m.backendOK {
			m.log.Info("backend reachable")
		}
		m.backendOK = true
		m.healthErr = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		return m, nil

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, healthCmd(m.backend)

	case FileDecodedMsg:
		return m.fileDecoded(msg)

	case waveform.SelectionChangedMsg:
		return m.apply(session.SelectionChanged{
			StartSec:    msg.StartSec,
			EndSec:      msg.EndSec,
			DurationSec: msg.DurationSec,
		})

	case waveform.PlaybackEndedMsg:
		var cmd tea.Cmd
		m.wave, cmd = m.wave.Update(msg)
		if msg.Err != nil {
			m.log.Warn("playback failed", "err", msg.Err)
		}
		return m, cmd

	case session.PreviewCompleted, session.AnalysisCompleted, session.ReplyCompleted:
		return m.apply(msg.(session.Event))

	case ArchivedMsg:
		m.archiving = false
		next := m.nextArchive()
		if msg.Err != nil {
			var cmd tea.Cmd
			m, cmd = m.setNotice("Archive write failed: " + msg.Err.Error())
			return m, tea.Batch(cmd, next)
		}
		return m, next

	case ExportedMsg:
		if msg.Err != nil {
			return m.setNotice("Export failed: " + msg.Err.Error())
		}
		m.log.Info("spectrogram exported", "path", msg.Path)
		return m.setNotice("Spectrogram saved to " + msg.Path)

	case ClearNoticeMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	return m, nil
}

// apply runs ev through the reducer, turns its effects into commands and
// keeps the derived views in sync.
func (m Model) apply(ev session.Event) (Model, tea.Cmd) {
	next, effects := m.state.Apply(ev)
	m.state = next

	var cmds []tea.Cmd
	for _, eff := range effects {
		if a, ok := eff.(session.AnalyzeRequest); ok {
			m.lastAnalyze = a
		}
		cmds = append(cmds, effectCmd(m.backend, m.log, eff))
	}
	if len(effects) > 0 {
		cmds = append(cmds, m.spinner.Tick)
	}

	if err := completionErr(ev); err != nil {
		var te *backend.TransportError
		if errors.As(err, &te) && !m.reconnecting {
			m.backendOK = false
			m.healthErr = te.Err.Error()
			m.reconnecting = true
			cmds = append(cmds, reconnectCmd(m.reconnectAttempt))
		}
	}

	if cmd := m.syncArchive(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	m.refreshTranscript()
	m.refreshSpectrogram()
	return m, tea.Batch(cmds...)
}

func completionErr(ev session.Event) error {
	switch ev := ev.(type) {
	case session.PreviewCompleted:
		return ev.Err
	case session.AnalysisCompleted:
		return ev.Err
	case session.ReplyCompleted:
		return ev.Err
	}
	return nil
}

// syncArchive writes newly committed turns of the current session.
func (m *Model) syncArchive() tea.Cmd {
	if m.archive == nil || !m.state.HasSession() {
		return nil
	}
	sid := m.state.SessionID()

	var conv *db.Conversation
	if sid != m.archivedFor {
		m.archivedFor = sid
		m.conversationID = uuid.NewString()
		m.archivedTurns = 0
		a := m.lastAnalyze
		conv = &db.Conversation{
			ID:             m.conversationID,
			SessionID:      sid,
			AudioPath:      a.Path,
			StartSec:       a.StartSec,
			EndSec:         a.EndSec,
			ModelID:        string(a.Config.ModelID),
			Temperature:    a.Config.Temperature,
			ThinkingBudget: a.Config.ThinkingBudget,
			Prompt:         a.Prompt,
		}
	}

	var turns []db.Turn
	for i, t := range m.state.Transcript().Turns() {
		if t.Status != session.StatusCommitted {
			continue
		}
		turns = append(turns, db.Turn{ID: t.ID, Seq: i, Role: string(t.Role), Text: t.Text})
	}
	if conv == nil && len(turns) == m.archivedTurns {
		return nil
	}
	m.archivedTurns = len(turns)
	return m.enqueueArchive(archiveJob{conv: conv, convID: m.conversationID, turns: turns})
}

// archiveJob is one pending write to the archive.
type archiveJob struct {
	conv   *db.Conversation
	convID string
	turns  []db.Turn
}

// enqueueArchive runs job now if no write is outstanding, otherwise queues
// it. Writes run one at a time so a conversation row always lands before
// the turns that reference it. Queued jobs for the same conversation are
// merged, keeping the newest turns.
func (m *Model) enqueueArchive(job archiveJob) tea.Cmd {
	if n := len(m.archiveQueue); n > 0 && m.archiveQueue[n-1].convID == job.convID {
		last := &m.archiveQueue[n-1]
		if job.conv != nil {
			last.conv = job.conv
		}
		last.turns = job.turns
		return nil
	}
	if m.archiving {
		m.archiveQueue = append(m.archiveQueue, job)
		return nil
	}
	m.archiving = true
	return archiveCmd(m.archive, m.log, job.conv, job.convID, job.turns)
}

// nextArchive starts the oldest queued write, if any.
func (m *Model) nextArchive() tea.Cmd {
	if len(m.archiveQueue) == 0 {
		return nil
	}
	job := m.archiveQueue[0]
	m.archiveQueue = m.archiveQueue[1:]
	m.archiving = true
	return archiveCmd(m.archive, m.log, job.conv, job.convID, job.turns)
}

func (m Model) busy() bool {
	return m.loadingFile != "" || m.state.Busy()
}

// startLoad begins decoding path.
func (m *Model) startLoad(path string) tea.Cmd {
	m.loadingFile = path
	m.log.Info("loading audio", "path", path)
	return tea.Batch(loadFileCmd(m.load, path), m.spinner.Tick)
}

func (m Model) fileDecoded(msg FileDecodedMsg) (tea.Model, tea.Cmd) {
	if msg.Path != m.loadingFile {
		return m, nil
	}
	m.loadingFile = ""
	if msg.Err != nil {
		m.log.Warn("audio decode failed", "path", msg.Path, "err", msg.Err)
		return m.apply(session.FileLoadFailed{Err: msg.Err})
	}
	if !m.state.CanLoadFile() {
		return m.setNotice("File not loaded: a request is still outstanding")
	}

	m.log.Info("audio loaded", "path", msg.Path, "duration", msg.Source.DurationSec)
	m, cmd := m.apply(session.FileLoaded{Path: msg.Path, DurationSec: msg.Source.DurationSec})
	var waveCmd tea.Cmd
	m.wave, waveCmd = m.wave.Load(msg.Source)
	m.archivedFor = ""
	return m, tea.Batch(cmd, waveCmd)
}

// setNotice shows a transient message.
func (m Model) setNotice(text string) (Model, tea.Cmd) {
	m.notice = text
	m.noticeSeq++
	return m, clearNoticeCmd(m.noticeSeq)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		m.wave = m.wave.Stop()
		return m, tea.Quit
	}
	if m.focus != FocusNone {
		return m.handleInputKey(msg)
	}

	key := msg.String()
	if regionKeys[key] {
		var cmd tea.Cmd
		m.wave, cmd = m.wave.Update(msg)
		return m, cmd
	}

	switch key {
	case KeyQuit:
		m.wave = m.wave.Stop()
		return m, tea.Quit

	case KeyOpen:
		if !m.state.CanLoadFile() {
			return m.setNotice("Wait for the outstanding request before opening another file")
		}
		m.focus = FocusOpen
		if a, ok := m.state.Audio(); ok {
			m.pathInput.SetValue(a.Path)
		}
		m.pathInput.CursorEnd()
		return m, m.pathInput.Focus()

	case KeyTogglePlay:
		var cmd tea.Cmd
		m.wave, cmd = m.wave.TogglePlayback()
		return m, cmd

	case KeyPlaySelection:
		var cmd tea.Cmd
		m.wave, cmd = m.wave.PlaySelection()
		return m, cmd

	case KeyPreview:
		return m.apply(session.PreviewRequested{})

	case KeyEditPrompt:
		if !m.state.CanEditPrompt() {
			return m, nil
		}
		m.focus = FocusPrompt
		m.promptInput.SetValue(m.state.Prompt())
		m.promptInput.CursorEnd()
		return m, m.promptInput.Focus()

	case KeyEnter:
		return m.apply(session.AnalysisRequested{})

	case KeyReply:
		if m.state.Phase() != session.PhaseActive {
			return m, nil
		}
		m.focus = FocusReply
		return m, m.replyInput.Focus()

	case KeyNewAnalysis:
		return m.apply(session.SessionReset{})

	case KeyCycleModel:
		return m.apply(session.ConfigChanged{Config: m.state.Config().NextModel()})

	case KeyTempUp, KeyTempUpAlt:
		return m.apply(session.ConfigChanged{Config: m.state.Config().AdjustTemperature(0.1)})

	case KeyTempDown:
		return m.apply(session.ConfigChanged{Config: m.state.Config().AdjustTemperature(-0.1)})

	case KeyThinking:
		return m.apply(session.ConfigChanged{Config: m.state.Config().NextThinkingBudget()})

	case KeyExport:
		art := m.state.Artifact()
		if art.Empty() {
			return m.setNotice("No spectrogram to export")
		}
		a, _ := m.state.Audio()
		return m, exportCmd(art, m.exportDir, a.Path, m.state.Selection())

	case KeyUp, KeyDown, KeyPgUp, KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		m.transcriptFollow = m.transcript.AtBottom()
		return m, cmd
	}

	return m, nil
}

// handleInputKey routes keys to the focused text input.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		m.blur()
		return m, nil

	case KeyEnter:
		switch m.focus {
		case FocusPrompt:
			text := m.promptInput.Value()
			m.blur()
			return m.apply(session.PromptChanged{Text: text})

		case FocusReply:
			text := m.replyInput.Value()
			if !m.state.CanReply(text) {
				return m, nil
			}
			m.replyInput.Reset()
			m.blur()
			return m.apply(session.ReplyRequested{Text: text})

		case FocusOpen:
			path := strings.TrimSpace(m.pathInput.Value())
			m.blur()
			if path == "" {
				return m, nil
			}
			return m, m.startLoad(expandHome(path))
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case FocusPrompt:
		m.promptInput, cmd = m.promptInput.Update(msg)
	case FocusReply:
		m.replyInput, cmd = m.replyInput.Update(msg)
	case FocusOpen:
		m.pathInput, cmd = m.pathInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) blur() {
	m.focus = FocusNone
	m.promptInput.Blur()
	m.replyInput.Blur()
	m.pathInput.Blur()
}
