package app

import "github.com/jwulff/mixdesk/internal/audio"

// Backend completions are delivered as the session completion events
// themselves (session.PreviewCompleted and friends).

// HealthMsg reports the outcome of a backend health probe.
type HealthMsg struct {
	Err error
}

// ReconnectTickMsg triggers another health probe.
type ReconnectTickMsg struct{}

// FileDecodedMsg carries a decoded audio file, or the reason decoding failed.
type FileDecodedMsg struct {
	Path   string
	Source audio.Source
	Err    error
}

// ArchivedMsg reports the outcome of an archive write.
type ArchivedMsg struct {
	ConversationID string
	Err            error
}

// ExportedMsg reports the outcome of a spectrogram export.
type ExportedMsg struct {
	Path string
	Err  error
}

// ClearNoticeMsg clears a transient notice after a timeout.
type ClearNoticeMsg struct {
	Seq int
}
