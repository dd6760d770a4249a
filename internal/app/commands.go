package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwulff/mixdesk/internal/backend"
	"github.com/jwulff/mixdesk/internal/db"
	"github.com/jwulff/mixdesk/internal/session"
)

// healthTimeout bounds a single probe; it is not a request timeout.
const healthTimeout = 5 * time.Second

// healthCmd probes the backend.
func healthCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		return HealthMsg{Err: b.Health(ctx)}
	}
}

// reconnectCmd schedules a health probe with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// clearNoticeCmd fires after a delay to clear the notice numbered seq.
func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{Seq: seq}
	})
}

// loadFileCmd decodes path off the update loop.
func loadFileCmd(load LoadFunc, path string) tea.Cmd {
	return func() tea.Msg {
		src, err := load(context.Background(), path)
		return FileDecodedMsg{Path: path, Source: src, Err: err}
	}
}

// effectCmd runs a reducer effect against the backend and returns the
// matching completion event.
func effectCmd(b Backend, log *slog.Logger, eff session.Effect) tea.Cmd {
	switch e := eff.(type) {
	case session.PreviewRequest:
		return func() tea.Msg {
			log.Info("preview request", "start", e.StartSec, "end", e.EndSec)
			resp, err := b.Spectrogram(context.Background(), backend.SpectrogramRequest{
				FilePath: e.Path,
				StartSec: e.StartSec,
				EndSec:   e.EndSec,
			})
			logCompletion(log, "preview", err)
			return session.PreviewCompleted{
				Generation:           e.Generation,
				SpectrogramPNGBase64: resp.SpectrogramPNGBase64,
				Err:                  err,
			}
		}

	case session.AnalyzeRequest:
		return func() tea.Msg {
			log.Info("analyze request",
				"start", e.StartSec, "end", e.EndSec,
				"model", e.Config.ModelID, "temperature", e.Config.Temperature,
				"thinking_budget", e.Config.ThinkingBudget)
			resp, err := b.Analyze(context.Background(), backend.AnalyzeRequest{
				FilePath:       e.Path,
				StartSec:       e.StartSec,
				EndSec:         e.EndSec,
				Prompt:         e.Prompt,
				ModelID:        string(e.Config.ModelID),
				Temperature:    e.Config.Temperature,
				ThinkingBudget: e.Config.ThinkingBudget,
			})
			logCompletion(log, "analyze", err)
			return session.AnalysisCompleted{
				Generation:           e.Generation,
				SessionID:            resp.SessionID,
				Advice:               resp.Advice,
				SpectrogramPNGBase64: resp.SpectrogramPNGBase64,
				Err:                  err,
			}
		}

	case session.ReplyRequest:
		return func() tea.Msg {
			log.Info("reply request", "session", e.SessionID, "chars", len(e.Message))
			resp, err := b.Reply(context.Background(), backend.ReplyRequest{
				SessionID: e.SessionID,
				Message:   e.Message,
			})
			logCompletion(log, "reply", err)
			return session.ReplyCompleted{
				Generation: e.Generation,
				Reply:      resp.Reply,
				Err:        err,
			}
		}
	}
	return nil
}

func logCompletion(log *slog.Logger, op string, err error) {
	if err != nil {
		log.Warn(op+" failed", "err", err)
		return
	}
	log.Info(op + " completed")
}

// archiveCmd writes the conversation record (when conv is non-nil) and its
// committed turns.
func archiveCmd(a Archive, log *slog.Logger, conv *db.Conversation, convID string, turns []db.Turn) tea.Cmd {
	return func() tea.Msg {
		if conv != nil {
			if err := a.SaveConversation(*conv); err != nil {
				log.Error("archive conversation", "id", convID, "err", err)
				return ArchivedMsg{ConversationID: convID, Err: err}
			}
		}
		if err := a.SaveTurns(convID, turns); err != nil {
			log.Error("archive turns", "id", convID, "err", err)
			return ArchivedMsg{ConversationID: convID, Err: err}
		}
		log.Debug("archived", "id", convID, "turns", len(turns))
		return ArchivedMsg{ConversationID: convID}
	}
}

// exportCmd writes the artifact PNG into dir, named after the audio file and
// the region.
func exportCmd(art session.Artifact, dir, audioPath string, sel session.Selection) tea.Cmd {
	return func() tea.Msg {
		data, err := art.PNG()
		if err != nil {
			return ExportedMsg{Err: err}
		}
		base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
		name := fmt.Sprintf("%s_%.1f-%.1f_spectrogram.png", base, sel.StartSec, sel.EndSec)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ExportedMsg{Err: fmt.Errorf("create export dir: %w", err)}
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return ExportedMsg{Err: fmt.Errorf("write spectrogram: %w", err)}
		}
		return ExportedMsg{Path: path}
	}
}
