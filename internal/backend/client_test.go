package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeAudio creates a throwaway upload file.
func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loop.wav")
	if err := os.WriteFile(path, []byte("RIFF-fake-audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

// startMockBackend serves handler and returns a client pointed at it.
func startMockBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty URL")
	}
	c, err := New("http://localhost:8000/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "http://localhost:8000" {
		t.Errorf("base URL = %q", c.BaseURL())
	}
}

func TestSpectrogram(t *testing.T) {
	path := writeAudio(t)
	c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/spectrogram" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if got := r.FormValue("startSec"); got != "1.5" {
			t.Errorf("startSec = %q", got)
		}
		if got := r.FormValue("endSec"); got != "30" {
			t.Errorf("endSec = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "loop.wav" || string(data) != "RIFF-fake-audio" {
			t.Errorf("file = %q (%q)", hdr.Filename, data)
		}
		writeJSON(w, map[string]string{"spectrogramPngBase64": "AAA"})
	})

	resp, err := c.Spectrogram(context.Background(), SpectrogramRequest{FilePath: path, StartSec: 1.5, EndSec: 30})
	if err != nil {
		t.Fatalf("Spectrogram: %v", err)
	}
	if resp.SpectrogramPNGBase64 != "AAA" {
		t.Errorf("spectrogram = %q", resp.SpectrogramPNGBase64)
	}
}

func TestAnalyzeFields(t *testing.T) {
	tests := []struct {
		name       string
		budget     int
		wantBudget bool
	}{
		{"budget omitted when zero", 0, false},
		{"budget sent when set", 2048, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAudio(t)
			c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/analyze" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parse form: %v", err)
					return
				}
				want := map[string]string{
					"startSec":    "0",
					"endSec":      "30",
					"prompt":      "tighten the low end",
					"modelId":     "gemini-2.5-pro",
					"temperature": "0.2",
				}
				for k, v := range want {
					if got := r.FormValue(k); got != v {
						t.Errorf("%s = %q, want %q", k, got, v)
					}
				}
				_, present := r.MultipartForm.Value["thinkingBudget"]
				if present != tt.wantBudget {
					t.Errorf("thinkingBudget present = %v, want %v", present, tt.wantBudget)
				}
				if tt.wantBudget && r.FormValue("thinkingBudget") != "2048" {
					t.Errorf("thinkingBudget = %q", r.FormValue("thinkingBudget"))
				}
				writeJSON(w, AnalyzeResponse{SessionID: "s1", SpectrogramPNGBase64: "AAA", Advice: "ok"})
			})

			resp, err := c.Analyze(context.Background(), AnalyzeRequest{
				FilePath:       path,
				EndSec:         30,
				Prompt:         "tighten the low end",
				ModelID:        "gemini-2.5-pro",
				Temperature:    0.2,
				ThinkingBudget: tt.budget,
			})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if resp != (AnalyzeResponse{SessionID: "s1", SpectrogramPNGBase64: "AAA", Advice: "ok"}) {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestReply(t *testing.T) {
	c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.FormValue("sessionId") != "s1" || r.FormValue("message") != "more detail" {
			t.Errorf("form = %v", r.Form)
		}
		writeJSON(w, ReplyResponse{Reply: "sure, ..."})
	})

	resp, err := c.Reply(context.Background(), ReplyRequest{SessionID: "s1", Message: "more detail"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if resp.Reply != "sure, ..." {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestStatusErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		call    func(*Client, string) error
		wantMsg string
	}{
		{
			name: "analyze with body",
			body: "model unavailable",
			call: func(c *Client, p string) error {
				_, err := c.Analyze(context.Background(), AnalyzeRequest{FilePath: p, EndSec: 1, Prompt: "x", ModelID: "m"})
				return err
			},
			wantMsg: "model unavailable",
		},
		{
			name: "analyze without body",
			call: func(c *Client, p string) error {
				_, err := c.Analyze(context.Background(), AnalyzeRequest{FilePath: p, EndSec: 1, Prompt: "x", ModelID: "m"})
				return err
			},
			wantMsg: "Analysis failed.",
		},
		{
			name: "spectrogram without body",
			call: func(c *Client, p string) error {
				_, err := c.Spectrogram(context.Background(), SpectrogramRequest{FilePath: p, EndSec: 1})
				return err
			},
			wantMsg: "Failed to generate spectrogram.",
		},
		{
			name: "reply whitespace body",
			body: "  \n",
			call: func(c *Client, _ string) error {
				_, err := c.Reply(context.Background(), ReplyRequest{SessionID: "s1", Message: "x"})
				return err
			},
			wantMsg: "Failed to send reply.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, tt.body)
			})
			err := tt.call(c, writeAudio(t))
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if se.StatusCode != http.StatusInternalServerError {
				t.Errorf("status = %d", se.StatusCode)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestTransportErrorUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := New(url)
	_, err := c.Reply(context.Background(), ReplyRequest{SessionID: "s1", Message: "x"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if !strings.HasPrefix(err.Error(), "Failed to send reply.") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestMissingFileFailsBeforeRequest(t *testing.T) {
	called := false
	c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := c.Spectrogram(context.Background(), SpectrogramRequest{FilePath: "/nonexistent/audio.wav", EndSec: 1})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if called {
		t.Error("no request should be sent when the upload cannot be read")
	}
	var re *RequestError
	if !errors.As(err, &re) || re.Op != OpSpectrogram {
		t.Fatalf("err = %T %v, want *RequestError", err, err)
	}
	var te *TransportError
	if errors.As(err, &te) {
		t.Error("a local file error must not look like a transport failure")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("RequestError should unwrap to the open error")
	}
	if !strings.HasPrefix(err.Error(), "Failed to generate spectrogram.") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestHealth(t *testing.T) {
	c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, HealthResponse{OK: true})
	})
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestHealthNotOK(t *testing.T) {
	c := startMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HealthResponse{OK: false})
	})
	if err := c.Health(context.Background()); err == nil {
		t.Error("expected error when ok is false")
	}
}
