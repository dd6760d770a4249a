// Package backend provides the client and wire types for the audio analysis
// service. Requests are multipart/form-data, responses are JSON.
package backend

import (
	"fmt"
	"strings"
)

// Op names a backend operation. It selects the route and the fallback error
// message.
type Op string

const (
	OpHealth      Op = "health"
	OpSpectrogram Op = "spectrogram"
	OpAnalyze     Op = "analyze"
	OpReply       Op = "reply"
)

// fallbackMessages are surfaced when a failed response carries no body.
var fallbackMessages = map[Op]string{
	OpHealth:      "Backend unavailable.",
	OpSpectrogram: "Failed to generate spectrogram.",
	OpAnalyze:     "Analysis failed.",
	OpReply:       "Failed to send reply.",
}

// FallbackMessage returns the fixed message for a failed op.
func FallbackMessage(op Op) string {
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "Request failed."
}

// SpectrogramRequest asks for a preview of [StartSec, EndSec] of the file.
type SpectrogramRequest struct {
	FilePath string
	StartSec float64
	EndSec   float64
}

// SpectrogramResponse is returned by /api/spectrogram.
type SpectrogramResponse struct {
	SpectrogramPNGBase64 string `json:"spectrogramPngBase64"`
}

// AnalyzeRequest starts a chat session about [StartSec, EndSec] of the file.
// ThinkingBudget is omitted from the form when zero.
type AnalyzeRequest struct {
	FilePath       string
	StartSec       float64
	EndSec         float64
	Prompt         string
	ModelID        string
	Temperature    float64
	ThinkingBudget int
}

// AnalyzeResponse is returned by /api/analyze.
type AnalyzeResponse struct {
	SessionID            string `json:"sessionId"`
	SpectrogramPNGBase64 string `json:"spectrogramPngBase64"`
	Advice               string `json:"advice"`
}

// ReplyRequest sends a follow-up message on a session.
type ReplyRequest struct {
	SessionID string
	Message   string
}

// ReplyResponse is returned by /api/chat.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// StatusError is returned when the backend answers with a non-success status.
// Its message is the response body when present, else the op's fallback.
type StatusError struct {
	Op         Op
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return FallbackMessage(e.Op)
}

// TransportError wraps a failure to reach the backend or decode its answer.
type TransportError struct {
	Op  Op
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (%v)", FallbackMessage(e.Op), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RequestError wraps a local failure while building a request, such as an
// unreadable upload file. The backend was never contacted.
type RequestError struct {
	Op  Op
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (%v)", FallbackMessage(e.Op), e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
