package session

// Event is an input to [State.Apply]. Events come from the user, from the
// waveform widget, or from the completion of an [Effect].
type Event interface {
	isEvent()
}

// FileLoaded replaces the audio source and resets every dependent entity.
type FileLoaded struct {
	Path        string
	DurationSec float64
}

// FileLoadFailed reports that a picked file could not be decoded.
type FileLoadFailed struct {
	Err error
}

// SelectionChanged is emitted by the waveform widget when it becomes ready
// and after every drag or resize.
type SelectionChanged struct {
	StartSec    float64
	EndSec      float64
	DurationSec float64
}

// PromptChanged edits the initial analysis prompt.
type PromptChanged struct {
	Text string
}

// ConfigChanged replaces the model configuration.
type ConfigChanged struct {
	Config ModelConfig
}

// PreviewRequested asks for a spectrogram of the current selection.
type PreviewRequested struct{}

// AnalysisRequested starts a new analysis session for the current selection.
type AnalysisRequested struct{}

// ReplyRequested sends a follow-up message on the active session.
type ReplyRequested struct {
	Text string
}

// SessionReset drops the active session so a new analysis can be started.
type SessionReset struct{}

// PreviewCompleted carries the outcome of a [PreviewRequest].
type PreviewCompleted struct {
	Generation           uint64
	SpectrogramPNGBase64 string
	Err                  error
}

// AnalysisCompleted carries the outcome of an [AnalyzeRequest].
type AnalysisCompleted struct {
	Generation           uint64
	SessionID            string
	Advice               string
	SpectrogramPNGBase64 string
	Err                  error
}

// ReplyCompleted carries the outcome of a [ReplyRequest].
type ReplyCompleted struct {
	Generation uint64
	Reply      string
	Err        error
}

func (FileLoaded) isEvent()        {}
func (FileLoadFailed) isEvent()    {}
func (SelectionChanged) isEvent()  {}
func (PromptChanged) isEvent()     {}
func (ConfigChanged) isEvent()     {}
func (PreviewRequested) isEvent()  {}
func (AnalysisRequested) isEvent() {}
func (ReplyRequested) isEvent()    {}
func (SessionReset) isEvent()      {}
func (PreviewCompleted) isEvent()  {}
func (AnalysisCompleted) isEvent() {}
func (ReplyCompleted) isEvent()    {}
