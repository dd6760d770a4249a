package session

import (
	"errors"
	"testing"
)

// turnView is the comparable part of a ChatTurn.
type turnView struct {
	Role   Role
	Text   string
	Status TurnStatus
}

func viewTurns(t Transcript) []turnView {
	var out []turnView
	for _, c := range t.Turns() {
		out = append(out, turnView{c.Role, c.Text, c.Status})
	}
	return out
}

func assertTurns(t *testing.T, got Transcript, want []turnView) {
	t.Helper()
	g := viewTurns(got)
	if len(g) != len(want) {
		t.Fatalf("transcript = %+v, want %+v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("turn[%d] = %+v, want %+v", i, g[i], want[i])
		}
	}
}

// apply runs ev and fails the test if the effect count differs from wantEffects.
func apply(t *testing.T, s State, ev Event, wantEffects int) (State, []Effect) {
	t.Helper()
	next, effects := s.Apply(ev)
	if len(effects) != wantEffects {
		t.Fatalf("Apply(%T) effects = %d, want %d", ev, len(effects), wantEffects)
	}
	return next, effects
}

// loaded returns a state with a 120s file and the widget's default region.
func loaded(t *testing.T) State {
	t.Helper()
	s := New(DefaultModelConfig(), "make the kick punchier")
	s, _ = apply(t, s, FileLoaded{Path: "/tmp/track.wav", DurationSec: 120}, 0)
	s, _ = apply(t, s, SelectionChanged{StartSec: 0, EndSec: 30, DurationSec: 120}, 0)
	return s
}

// active returns a state with session "s1" established.
func active(t *testing.T) State {
	t.Helper()
	s := loaded(t)
	s, effects := apply(t, s, AnalysisRequested{}, 1)
	gen := effects[0].(AnalyzeRequest).Generation
	s, _ = apply(t, s, AnalysisCompleted{Generation: gen, SessionID: "s1", Advice: "ok", SpectrogramPNGBase64: "AAA"}, 0)
	return s
}

func TestNewState(t *testing.T) {
	s := New(DefaultModelConfig(), "prompt")
	if s.Phase() != PhaseNoSession {
		t.Errorf("phase = %v, want no session", s.Phase())
	}
	if _, ok := s.Audio(); ok {
		t.Error("new state should have no audio")
	}
	if s.CanPreview() || s.CanStartAnalysis() || s.CanReply("hi") {
		t.Error("no action should be legal before a file is loaded")
	}
}

func TestScenarioStartAnalysisSucceeds(t *testing.T) {
	s := loaded(t)

	s, effects := apply(t, s, AnalysisRequested{}, 1)
	req, ok := effects[0].(AnalyzeRequest)
	if !ok {
		t.Fatalf("effect = %T, want AnalyzeRequest", effects[0])
	}
	if req.StartSec != 0 || req.EndSec != 30 || req.Prompt != "make the kick punchier" {
		t.Errorf("request = %+v", req)
	}
	if req.Config != DefaultModelConfig() {
		t.Errorf("request config = %+v", req.Config)
	}
	if s.Phase() != PhaseStarting {
		t.Errorf("phase = %v, want starting", s.Phase())
	}
	assertTurns(t, s.Transcript(), []turnView{{RoleUser, "make the kick punchier", StatusPending}})

	s, _ = apply(t, s, AnalysisCompleted{Generation: req.Generation, SessionID: "s1", Advice: "ok", SpectrogramPNGBase64: "AAA"}, 0)

	if s.SessionID() != "s1" {
		t.Errorf("sessionID = %q, want s1", s.SessionID())
	}
	if s.Phase() != PhaseActive {
		t.Errorf("phase = %v, want active", s.Phase())
	}
	if s.Artifact().Encoded != "AAA" || s.Artifact().Producer != ActionStartAnalysis {
		t.Errorf("artifact = %+v", s.Artifact())
	}
	assertTurns(t, s.Transcript(), []turnView{
		{RoleUser, "make the kick punchier", StatusCommitted},
		{RoleModel, "ok", StatusCommitted},
	})
	if s.InFlight(ActionStartAnalysis) {
		t.Error("start-analysis flag should be cleared")
	}
}

func TestScenarioStartAnalysisFails(t *testing.T) {
	s := loaded(t)
	before := viewTurns(s.Transcript())

	s, effects := apply(t, s, AnalysisRequested{}, 1)
	gen := effects[0].(AnalyzeRequest).Generation
	s, _ = apply(t, s, AnalysisCompleted{Generation: gen, Err: errors.New("model unavailable")}, 0)

	if got := viewTurns(s.Transcript()); len(got) != len(before) {
		t.Errorf("transcript after rollback = %+v, want %+v", got, before)
	}
	if s.Err() != "model unavailable" {
		t.Errorf("err = %q", s.Err())
	}
	if s.HasSession() {
		t.Error("session should remain absent")
	}
	if s.Phase() != PhaseNoSession {
		t.Errorf("phase = %v, want no session", s.Phase())
	}
	if s.InFlight(ActionStartAnalysis) {
		t.Error("flag should be cleared after failure")
	}
	if !s.CanStartAnalysis() {
		t.Error("retry should be possible after failure")
	}
}

func TestScenarioReplySucceeds(t *testing.T) {
	s := active(t)

	s, effects := apply(t, s, ReplyRequested{Text: "more detail"}, 1)
	req := effects[0].(ReplyRequest)
	if req.SessionID != "s1" || req.Message != "more detail" {
		t.Errorf("request = %+v", req)
	}
	if s.Phase() != PhaseAwaitingReply {
		t.Errorf("phase = %v, want awaiting reply", s.Phase())
	}

	s, _ = apply(t, s, ReplyCompleted{Generation: req.Generation, Reply: "sure, ..."}, 0)

	assertTurns(t, s.Transcript(), []turnView{
		{RoleUser, "make the kick punchier", StatusCommitted},
		{RoleModel, "ok", StatusCommitted},
		{RoleUser, "more detail", StatusCommitted},
		{RoleModel, "sure, ...", StatusCommitted},
	})
	if s.Phase() != PhaseActive {
		t.Errorf("phase = %v, want active", s.Phase())
	}
}

func TestScenarioReplyFailsThenRetry(t *testing.T) {
	s := active(t)

	s, effects := apply(t, s, ReplyRequested{Text: "x"}, 1)
	gen := effects[0].(ReplyRequest).Generation
	s, _ = apply(t, s, ReplyCompleted{Generation: gen, Err: errors.New("Failed to send reply.")}, 0)

	assertTurns(t, s.Transcript(), []turnView{
		{RoleUser, "make the kick punchier", StatusCommitted},
		{RoleModel, "ok", StatusCommitted},
		{RoleUser, "x", StatusCommitted},
	})
	if s.Err() == "" {
		t.Error("error should be set after reply failure")
	}
	if s.Phase() != PhaseActive {
		t.Errorf("phase = %v, want active", s.Phase())
	}

	s, effects = apply(t, s, ReplyRequested{Text: "y"}, 1)
	if s.Err() != "" {
		t.Errorf("new attempt should clear the error, got %q", s.Err())
	}
	s, _ = apply(t, s, ReplyCompleted{Generation: effects[0].(ReplyRequest).Generation, Reply: "answer"}, 0)

	assertTurns(t, s.Transcript(), []turnView{
		{RoleUser, "make the kick punchier", StatusCommitted},
		{RoleModel, "ok", StatusCommitted},
		{RoleUser, "x", StatusCommitted},
		{RoleUser, "y", StatusCommitted},
		{RoleModel, "answer", StatusCommitted},
	})
}

func TestStartAnalysisTwiceIssuesOneRequest(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, AnalysisRequested{}, 1)
	s, _ = apply(t, s, AnalysisRequested{}, 0)
	if s.Transcript().Len() != 1 {
		t.Errorf("second attempt must not touch the transcript, len = %d", s.Transcript().Len())
	}
}

func TestPreviewTwiceIssuesOneRequest(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, PreviewRequested{}, 1)
	apply(t, s, PreviewRequested{}, 0)
}

func TestReplyWhileAwaitingIsIgnored(t *testing.T) {
	s := active(t)
	s, _ = apply(t, s, ReplyRequested{Text: "first"}, 1)
	s, _ = apply(t, s, ReplyRequested{Text: "second"}, 0)
	if last, _ := s.Transcript().Last(); last.Text != "first" {
		t.Errorf("last turn = %q, want first", last.Text)
	}
}

func TestReplyPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		state func(*testing.T) State
		text  string
	}{
		{"no session", loaded, "hello"},
		{"blank text", active, "   "},
		{"empty text", active, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state(t)
			next, effects := s.Apply(ReplyRequested{Text: tt.text})
			if len(effects) != 0 {
				t.Errorf("effects = %d, want 0", len(effects))
			}
			if next.Transcript().Len() != s.Transcript().Len() {
				t.Error("rejected reply must not change the transcript")
			}
		})
	}
}

func TestReplyTrimsText(t *testing.T) {
	s := active(t)
	s, effects := apply(t, s, ReplyRequested{Text: "  louder vocals \n"}, 1)
	if msg := effects[0].(ReplyRequest).Message; msg != "louder vocals" {
		t.Errorf("message = %q", msg)
	}
	if last, _ := s.Transcript().Last(); last.Text != "louder vocals" {
		t.Errorf("turn text = %q", last.Text)
	}
}

func TestSelectionGuards(t *testing.T) {
	tests := []struct {
		name string
		sel  SelectionChanged
		ok   bool
	}{
		{"default region", SelectionChanged{0, 30, 120}, true},
		{"whole track", SelectionChanged{0, 120, 120}, true},
		{"empty range", SelectionChanged{10, 10, 120}, false},
		{"reversed", SelectionChanged{40, 20, 120}, false},
		{"past end", SelectionChanged{100, 130, 120}, false},
		{"negative start", SelectionChanged{-1, 20, 120}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loaded(t)
			s, _ = s.Apply(tt.sel)
			want := 0
			if tt.ok {
				want = 1
			}
			apply(t, s, PreviewRequested{}, want)
			apply(t, s, AnalysisRequested{}, want)
		})
	}
}

func TestSelectionChangedStoresUnvalidated(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, SelectionChanged{StartSec: 50, EndSec: 20, DurationSec: 120}, 0)
	want := Selection{StartSec: 50, EndSec: 20, DurationSec: 120}
	if s.Selection() != want {
		t.Errorf("selection = %+v, want %+v", s.Selection(), want)
	}
	if s.Selection().Actionable() {
		t.Error("reversed selection should not be actionable")
	}
}

func TestFileLoadInvalidatesSession(t *testing.T) {
	s := active(t)
	s, _ = apply(t, s, FileLoaded{Path: "/tmp/other.mp3", DurationSec: 45}, 0)

	if s.HasSession() {
		t.Error("session should be cleared")
	}
	if s.Transcript().Len() != 0 {
		t.Errorf("transcript len = %d, want 0", s.Transcript().Len())
	}
	if s.Selection() != (Selection{DurationSec: 45}) {
		t.Errorf("selection = %+v", s.Selection())
	}
	if !s.Artifact().Empty() {
		t.Error("artifact should be cleared")
	}
	if s.Phase() != PhaseNoSession {
		t.Errorf("phase = %v", s.Phase())
	}
	src, _ := s.Audio()
	if src.Generation != 2 || src.Path != "/tmp/other.mp3" {
		t.Errorf("audio = %+v", src)
	}
}

func TestFileLoadRefusedWhileStarting(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, AnalysisRequested{}, 1)
	next, _ := apply(t, s, FileLoaded{Path: "/tmp/other.wav", DurationSec: 10}, 0)
	if src, _ := next.Audio(); src.Path != "/tmp/track.wav" {
		t.Errorf("file load during start-analysis should be refused, audio = %+v", src)
	}
}

func TestStartAnalysisRequiresNoSession(t *testing.T) {
	s := active(t)
	apply(t, s, AnalysisRequested{}, 0)

	s, _ = apply(t, s, SessionReset{}, 0)
	if s.HasSession() || s.Transcript().Len() != 0 {
		t.Fatal("reset should drop the session and transcript")
	}
	apply(t, s, AnalysisRequested{}, 1)
}

func TestPromptImmutableOnceSessionExists(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, PromptChanged{Text: "more air"}, 0)
	if s.Prompt() != "more air" {
		t.Fatalf("prompt = %q", s.Prompt())
	}

	s, effects := apply(t, s, AnalysisRequested{}, 1)
	s, _ = apply(t, s, PromptChanged{Text: "changed"}, 0)
	if s.Prompt() != "more air" {
		t.Errorf("prompt changed while starting: %q", s.Prompt())
	}

	s, _ = apply(t, s, AnalysisCompleted{Generation: effects[0].(AnalyzeRequest).Generation, SessionID: "s1", Advice: "ok"}, 0)
	s, _ = apply(t, s, PromptChanged{Text: "changed"}, 0)
	if s.Prompt() != "more air" {
		t.Errorf("prompt changed on active session: %q", s.Prompt())
	}
}

func TestBlankPromptCannotStart(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, PromptChanged{Text: "  "}, 0)
	apply(t, s, AnalysisRequested{}, 0)
}

func TestConfigEditableDuringSession(t *testing.T) {
	s := active(t)
	cfg := ModelConfig{ModelID: ModelGeminiPro, Temperature: 0.7, ThinkingBudget: 1024}
	s, _ = apply(t, s, ConfigChanged{Config: cfg}, 0)
	if s.Config() != cfg {
		t.Errorf("config = %+v", s.Config())
	}
	if s.SessionID() != "s1" {
		t.Error("config change must not affect the running session")
	}

	s, _ = apply(t, s, ConfigChanged{Config: ModelConfig{ModelID: "nope"}}, 0)
	if s.Config() != cfg {
		t.Error("invalid config should be ignored")
	}
}

func TestPreviewOverwritesArtifactLastWriteWins(t *testing.T) {
	s := loaded(t)

	s, analyze := apply(t, s, AnalysisRequested{}, 1)
	s, preview := apply(t, s, PreviewRequested{}, 1)
	if !s.InFlight(ActionPreview) || !s.InFlight(ActionStartAnalysis) {
		t.Fatal("preview and start-analysis should be in flight together")
	}

	s, _ = apply(t, s, AnalysisCompleted{Generation: analyze[0].(AnalyzeRequest).Generation, SessionID: "s1", Advice: "ok", SpectrogramPNGBase64: "ANALYSIS"}, 0)
	s, _ = apply(t, s, PreviewCompleted{Generation: preview[0].(PreviewRequest).Generation, SpectrogramPNGBase64: "PREVIEW"}, 0)

	if s.Artifact().Encoded != "PREVIEW" || s.Artifact().Producer != ActionPreview {
		t.Errorf("artifact = %+v, want the later preview", s.Artifact())
	}
	if s.SessionID() != "s1" {
		t.Error("preview must not affect the session")
	}
}

func TestPreviewFailureKeepsArtifact(t *testing.T) {
	s := active(t)
	s, effects := apply(t, s, PreviewRequested{}, 1)
	s, _ = apply(t, s, PreviewCompleted{Generation: effects[0].(PreviewRequest).Generation, Err: errors.New("Failed to generate spectrogram.")}, 0)

	if s.Artifact().Encoded != "AAA" {
		t.Errorf("artifact = %+v, want unchanged", s.Artifact())
	}
	if s.Err() != "Failed to generate spectrogram." {
		t.Errorf("err = %q", s.Err())
	}
	if s.InFlight(ActionPreview) {
		t.Error("preview flag should be cleared")
	}
}

func TestStalePreviewIsDiscarded(t *testing.T) {
	s := loaded(t)
	s, effects := apply(t, s, PreviewRequested{}, 1)
	s, _ = apply(t, s, FileLoaded{Path: "/tmp/next.wav", DurationSec: 60}, 0)
	s, _ = apply(t, s, PreviewCompleted{Generation: effects[0].(PreviewRequest).Generation, SpectrogramPNGBase64: "OLD"}, 0)

	if !s.Artifact().Empty() {
		t.Errorf("stale preview should be dropped, artifact = %+v", s.Artifact())
	}
	if s.InFlight(ActionPreview) {
		t.Error("stale completion must still release the flag")
	}
}

func TestUnexpectedCompletionsIgnored(t *testing.T) {
	s := loaded(t)
	next, _ := apply(t, s, AnalysisCompleted{SessionID: "ghost"}, 0)
	if next.HasSession() {
		t.Error("completion without a request must be ignored")
	}
	next, _ = apply(t, s, ReplyCompleted{Reply: "ghost"}, 0)
	if next.Transcript().Len() != 0 {
		t.Error("reply completion without a request must be ignored")
	}
	next, _ = apply(t, s, PreviewCompleted{SpectrogramPNGBase64: "ghost"}, 0)
	if !next.Artifact().Empty() {
		t.Error("preview completion without a request must be ignored")
	}
}

func TestErrorClearedOnNewAttempt(t *testing.T) {
	s := loaded(t)
	s, effects := apply(t, s, AnalysisRequested{}, 1)
	s, _ = apply(t, s, AnalysisCompleted{Generation: effects[0].(AnalyzeRequest).Generation, Err: errors.New("boom")}, 0)
	if s.Err() != "boom" {
		t.Fatalf("err = %q", s.Err())
	}
	s, _ = apply(t, s, PreviewRequested{}, 1)
	if s.Err() != "" {
		t.Errorf("err = %q, want cleared at attempt start", s.Err())
	}
}

func TestFileLoadFailedSurfacesError(t *testing.T) {
	s := loaded(t)
	s, _ = apply(t, s, FileLoadFailed{Err: errors.New("unsupported format")}, 0)
	if s.Err() != "unsupported format" {
		t.Errorf("err = %q", s.Err())
	}
	if src, _ := s.Audio(); src.Path != "/tmp/track.wav" {
		t.Error("failed load must keep the current file")
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	s := active(t)
	before := s
	s, _ = apply(t, s, ReplyRequested{Text: "again"}, 1)
	if before.Transcript().Len() != 2 {
		t.Errorf("earlier snapshot changed, len = %d", before.Transcript().Len())
	}
	if before.Phase() != PhaseActive {
		t.Errorf("earlier snapshot phase = %v", before.Phase())
	}
}

func TestBusyTracksAnyClass(t *testing.T) {
	s := loaded(t)
	if s.Busy() {
		t.Fatal("fresh state should not be busy")
	}
	s, effects := apply(t, s, PreviewRequested{}, 1)
	if !s.Busy() {
		t.Error("preview in flight should make the state busy")
	}
	gen := effects[0].(PreviewRequest).Generation
	s, _ = apply(t, s, PreviewCompleted{Generation: gen, SpectrogramPNGBase64: "AAA"}, 0)
	if s.Busy() {
		t.Error("completed preview should leave the state idle")
	}
}
