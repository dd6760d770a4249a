package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultURL is where the analysis service listens in development.
const DefaultURL = "http://localhost:8000"

// maxErrorBody caps how much of a failed response is kept for display.
const maxErrorBody = 4096

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client talks to the analysis service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend: base URL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	var out HealthResponse
	if err := c.do(req, OpHealth, &out); err != nil {
		return err
	}
	if !out.OK {
		return &StatusError{Op: OpHealth, StatusCode: http.StatusOK}
	}
	return nil
}

// Spectrogram requests a mel spectrogram preview of a region.
func (c *Client) Spectrogram(ctx context.Context, r SpectrogramRequest) (SpectrogramResponse, error) {
	var out SpectrogramResponse
	err := c.postForm(ctx, OpSpectrogram, "/api/spectrogram", func(f *form) {
		f.file("file", r.FilePath)
		f.float("startSec", r.StartSec)
		f.float("endSec", r.EndSec)
	}, &out)
	return out, err
}

// Analyze starts a chat session about a region and returns the first advice.
func (c *Client) Analyze(ctx context.Context, r AnalyzeRequest) (AnalyzeResponse, error) {
	var out AnalyzeResponse
	err := c.postForm(ctx, OpAnalyze, "/api/analyze", func(f *form) {
		f.file("file", r.FilePath)
		f.float("startSec", r.StartSec)
		f.float("endSec", r.EndSec)
		f.field("prompt", r.Prompt)
		f.field("modelId", r.ModelID)
		f.float("temperature", r.Temperature)
		if r.ThinkingBudget > 0 {
			f.field("thinkingBudget", strconv.Itoa(r.ThinkingBudget))
		}
	}, &out)
	return out, err
}

// Reply sends a follow-up message on an existing session.
func (c *Client) Reply(ctx context.Context, r ReplyRequest) (ReplyResponse, error) {
	var out ReplyResponse
	err := c.postForm(ctx, OpReply, "/api/chat", func(f *form) {
		f.field("sessionId", r.SessionID)
		f.field("message", r.Message)
	}, &out)
	return out, err
}

// form accumulates multipart fields and remembers the first write error.
type form struct {
	mw  *multipart.Writer
	err error
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.mw.WriteField(name, value)
}

func (f *form) float(name string, v float64) {
	f.field(name, strconv.FormatFloat(v, 'f', -1, 64))
}

func (f *form) file(name, path string) {
	if f.err != nil {
		return
	}
	src, err := os.Open(path)
	if err != nil {
		f.err = fmt.Errorf("open %s: %w", path, err)
		return
	}
	defer src.Close()

	dst, err := f.mw.CreateFormFile(name, filepath.Base(path))
	if err != nil {
		f.err = err
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		f.err = fmt.Errorf("copy %s: %w", path, err)
	}
}

func (c *Client) postForm(ctx context.Context, op Op, route string, build func(*form), out any) error {
	var body bytes.Buffer
	f := &form{mw: multipart.NewWriter(&body)}
	build(f)
	if f.err != nil {
		return &RequestError{Op: op, Err: f.err}
	}
	if err := f.mw.Close(); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("close multipart writer: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, &body)
	if err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", f.mw.FormDataContentType())
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op Op, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
