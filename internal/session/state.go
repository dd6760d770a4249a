// Package session holds the client-side orchestration of an analysis
// conversation: which actions are legal at any moment, how optimistic
// transcript entries are committed or rolled back, and how the selection,
// the remote session and spectrogram previews interleave.
//
// State is an immutable snapshot. [State.Apply] is a pure reducer that
// returns the next snapshot plus the network requests to issue; the host
// runs those requests and feeds their outcomes back as completion events.
package session

import (
	"strings"
)

// Phase is the lifecycle state of the analysis session.
type Phase int

const (
	PhaseNoSession Phase = iota
	PhaseStarting
	PhaseActive
	PhaseAwaitingReply
)

func (p Phase) String() string {
	switch p {
	case PhaseNoSession:
		return "no session"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseAwaitingReply:
		return "awaiting reply"
	default:
		return "unknown"
	}
}

// AudioSource is the loaded file plus its decoded duration. Generation
// increases with every load so late responses for an earlier file can be
// recognised.
type AudioSource struct {
	Path        string
	DurationSec float64
	Generation  uint64
}

// State is a snapshot of everything the orchestration owns.
type State struct {
	audio     AudioSource
	loaded    bool
	selection Selection
	config    ModelConfig
	prompt    string

	phase      Phase
	sessionID  string
	transcript Transcript
	artifact   Artifact
	err        string

	guard   Guard
	pending [numActionClasses]pendingEffect
}

// New returns the initial state with the given model config and prompt.
func New(cfg ModelConfig, prompt string) State {
	return State{config: cfg, prompt: prompt}
}

// Audio returns the loaded source and whether one is loaded.
func (s State) Audio() (AudioSource, bool) { return s.audio, s.loaded }
func (s State) Selection() Selection       { return s.selection }
func (s State) Config() ModelConfig        { return s.config }
func (s State) Prompt() string             { return s.prompt }
func (s State) Phase() Phase               { return s.phase }
func (s State) SessionID() string          { return s.sessionID }
func (s State) Transcript() Transcript     { return s.transcript }
func (s State) Artifact() Artifact         { return s.artifact }
func (s State) Err() string                { return s.err }

// InFlight reports whether a request of class c is outstanding.
func (s State) InFlight(c ActionClass) bool { return s.guard.Busy(c) }

// Busy reports whether any request class is outstanding.
func (s State) Busy() bool { return s.guard.Any() }

// HasSession reports whether a session id has been assigned.
func (s State) HasSession() bool { return s.sessionID != "" }

// CanLoadFile reports whether a new file may replace the current one. Loads
// are refused while a session-changing request is outstanding.
func (s State) CanLoadFile() bool {
	return s.phase != PhaseStarting && s.phase != PhaseAwaitingReply
}

// CanEditPrompt reports whether the initial prompt is still mutable.
func (s State) CanEditPrompt() bool { return s.phase == PhaseNoSession }

// CanPreview reports whether a preview request may be submitted.
func (s State) CanPreview() bool {
	return s.loaded && s.selection.Valid() && !s.guard.Busy(ActionPreview)
}

// CanStartAnalysis reports whether an analysis may be started.
func (s State) CanStartAnalysis() bool {
	return s.phase == PhaseNoSession &&
		s.loaded &&
		s.selection.Valid() &&
		!s.guard.Busy(ActionStartAnalysis) &&
		strings.TrimSpace(s.prompt) != ""
}

// CanReply reports whether text may be sent on the active session.
func (s State) CanReply(text string) bool {
	return s.phase == PhaseActive &&
		s.sessionID != "" &&
		!s.guard.Busy(ActionReply) &&
		strings.TrimSpace(text) != ""
}

// Apply transitions the state for ev. Events whose preconditions do not hold
// are ignored: the same state and no effects are returned.
func (s State) Apply(ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case FileLoaded:
		return s.loadFile(ev), nil
	case FileLoadFailed:
		if ev.Err != nil {
			s.err = ev.Err.Error()
		}
		return s, nil
	case SelectionChanged:
		s.selection = Selection(ev)
		return s, nil
	case PromptChanged:
		if s.CanEditPrompt() {
			s.prompt = ev.Text
		}
		return s, nil
	case ConfigChanged:
		if ev.Config.Validate() == nil {
			s.config = ev.Config
		}
		return s, nil
	case PreviewRequested:
		return s.requestPreview()
	case PreviewCompleted:
		return s.completePreview(ev), nil
	case AnalysisRequested:
		return s.requestAnalysis()
	case AnalysisCompleted:
		return s.completeAnalysis(ev), nil
	case ReplyRequested:
		return s.requestReply(ev.Text)
	case ReplyCompleted:
		return s.completeReply(ev), nil
	case SessionReset:
		return s.reset(), nil
	}
	return s, nil
}

func (s State) loadFile(ev FileLoaded) State {
	if !s.CanLoadFile() {
		return s
	}
	s.audio = AudioSource{
		Path:        ev.Path,
		DurationSec: max(0, ev.DurationSec),
		Generation:  s.audio.Generation + 1,
	}
	s.loaded = true
	s.selection = Selection{DurationSec: s.audio.DurationSec}
	s.phase = PhaseNoSession
	s.sessionID = ""
	s.transcript = s.transcript.Clear()
	s.artifact = Artifact{}
	s.err = ""
	return s
}

func (s State) requestPreview() (State, []Effect) {
	if !s.CanPreview() {
		return s, nil
	}
	s.guard, _ = s.guard.Acquire(ActionPreview)
	s.pending[ActionPreview] = pendingEffect{class: ActionPreview, compensate: keepTurns}
	s.err = ""
	return s, []Effect{PreviewRequest{
		Generation: s.audio.Generation,
		Path:       s.audio.Path,
		StartSec:   s.selection.StartSec,
		EndSec:     s.selection.EndSec,
	}}
}

func (s State) completePreview(ev PreviewCompleted) State {
	if !s.guard.Busy(ActionPreview) {
		return s
	}
	s = s.settle(ActionPreview)
	if ev.Generation != s.audio.Generation {
		return s
	}
	if ev.Err != nil {
		s.err = ev.Err.Error()
		return s
	}
	s.artifact = Artifact{Encoded: ev.SpectrogramPNGBase64, Producer: ActionPreview}
	return s
}

func (s State) requestAnalysis() (State, []Effect) {
	if !s.CanStartAnalysis() {
		return s, nil
	}
	prompt := s.prompt
	s.guard, _ = s.guard.Acquire(ActionStartAnalysis)
	s.pending[ActionStartAnalysis] = pendingEffect{
		class:      ActionStartAnalysis,
		compensate: removeOptimisticTurn(prompt),
	}
	s.err = ""
	s.transcript = s.transcript.Clear().Append(NewTurn(RoleUser, prompt, StatusPending))
	s.sessionID = ""
	s.artifact = Artifact{}
	s.phase = PhaseStarting
	return s, []Effect{AnalyzeRequest{
		Generation: s.audio.Generation,
		Path:       s.audio.Path,
		StartSec:   s.selection.StartSec,
		EndSec:     s.selection.EndSec,
		Prompt:     prompt,
		Config:     s.config,
	}}
}

func (s State) completeAnalysis(ev AnalysisCompleted) State {
	if s.phase != PhaseStarting || !s.guard.Busy(ActionStartAnalysis) {
		return s
	}
	if ev.Err != nil {
		s = s.fail(ActionStartAnalysis, ev.Err)
		s.phase = PhaseNoSession
		return s
	}
	s = s.settle(ActionStartAnalysis)
	s.sessionID = ev.SessionID
	s.artifact = Artifact{Encoded: ev.SpectrogramPNGBase64, Producer: ActionStartAnalysis}
	s.transcript, _ = s.transcript.CommitLast(pendingTurn(RoleUser, s.prompt))
	s.transcript = s.transcript.Append(NewTurn(RoleModel, ev.Advice, StatusCommitted))
	s.phase = PhaseActive
	return s
}

func (s State) requestReply(text string) (State, []Effect) {
	if !s.CanReply(text) {
		return s, nil
	}
	msg := strings.TrimSpace(text)
	s.guard, _ = s.guard.Acquire(ActionReply)
	s.pending[ActionReply] = pendingEffect{class: ActionReply, compensate: keepTurns}
	s.err = ""
	s.transcript = s.transcript.Append(NewTurn(RoleUser, msg, StatusCommitted))
	s.phase = PhaseAwaitingReply
	return s, []Effect{ReplyRequest{
		Generation: s.audio.Generation,
		SessionID:  s.sessionID,
		Message:    msg,
	}}
}

func (s State) completeReply(ev ReplyCompleted) State {
	if s.phase != PhaseAwaitingReply || !s.guard.Busy(ActionReply) {
		return s
	}
	s.phase = PhaseActive
	if ev.Err != nil {
		return s.fail(ActionReply, ev.Err)
	}
	s = s.settle(ActionReply)
	s.transcript = s.transcript.Append(NewTurn(RoleModel, ev.Reply, StatusCommitted))
	return s
}

func (s State) reset() State {
	if s.phase != PhaseActive {
		return s
	}
	s.phase = PhaseNoSession
	s.sessionID = ""
	s.transcript = s.transcript.Clear()
	s.err = ""
	return s
}

// settle clears the guard flag and pending record for c.
func (s State) settle(c ActionClass) State {
	s.guard = s.guard.Release(c)
	s.pending[c] = pendingEffect{}
	return s
}

// fail surfaces err, runs the compensating action recorded for c and
// settles c.
func (s State) fail(c ActionClass, err error) State {
	s.err = err.Error()
	if p := s.pending[c]; p.compensate != nil {
		s.transcript = p.compensate(s.transcript)
	}
	return s.settle(c)
}
