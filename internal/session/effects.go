package session

// Effect is a network request the host must issue on behalf of the reducer.
// Its outcome is fed back as the matching completion event.
type Effect interface {
	Class() ActionClass
}

// PreviewRequest asks the backend for a spectrogram of a region.
type PreviewRequest struct {
	Generation uint64
	Path       string
	StartSec   float64
	EndSec     float64
}

// AnalyzeRequest starts a backend analysis session for a region.
type AnalyzeRequest struct {
	Generation uint64
	Path       string
	StartSec   float64
	EndSec     float64
	Prompt     string
	Config     ModelConfig
}

// ReplyRequest sends a follow-up message on an existing session.
type ReplyRequest struct {
	Generation uint64
	SessionID  string
	Message    string
}

func (PreviewRequest) Class() ActionClass { return ActionPreview }
func (AnalyzeRequest) Class() ActionClass { return ActionStartAnalysis }
func (ReplyRequest) Class() ActionClass   { return ActionReply }

// compensation undoes the optimistic part of an action whose request failed.
type compensation func(Transcript) Transcript

// pendingEffect records an in-flight action and how to undo it.
type pendingEffect struct {
	class      ActionClass
	compensate compensation
}

// removeOptimisticTurn undoes the pending user turn of a start-analysis.
func removeOptimisticTurn(prompt string) compensation {
	return func(t Transcript) Transcript {
		t, _, _ = t.RemoveLast(pendingTurn(RoleUser, prompt))
		return t
	}
}

// keepTurns is the reply compensation: what the user said stays.
func keepTurns(t Transcript) Transcript { return t }
