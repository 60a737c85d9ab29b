// Package vlm dispatches images to a remote vision-language backend that
// speaks the OpenAI chat completions protocol.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"resty.dev/v3"

	"github.com/mandalnilabja/ocrway/internal/imaging"
	"github.com/mandalnilabja/ocrway/internal/metrics"
	"github.com/mandalnilabja/ocrway/internal/tokenizer"
)

// Request parameter bounds and defaults.
const (
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
	DefaultMaxTokens   = 2048
	MinMaxTokens       = 256
	MaxMaxTokens       = 4096

	SizeChartTemperature = 0.3
)

// ErrInvalidRequest is returned for out-of-range request parameters.
var ErrInvalidRequest = errors.New("invalid understanding request")

// Config configures a Dispatcher.
type Config struct {
	ServerURL     string
	Model         string // model name sent to the backend
	DisplayModel  string // model name reported to callers
	Timeout       time.Duration
	HealthTimeout time.Duration
	MaxImageDim   int
}

// DefaultConfig returns the local llama.cpp server defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:     "http://127.0.0.1:8081",
		Model:         "qwen3-vl",
		DisplayModel:  "qwen3-vl-2b-thinking",
		Timeout:       120 * time.Second,
		HealthTimeout: 5 * time.Second,
		MaxImageDim:   512,
	}
}

// Request is one understanding job.
type Request struct {
	Instruction string
	Temperature float64
	MaxTokens   int
}

// NewRequest returns a request for instruction with default sampling.
func NewRequest(instruction string) Request {
	return Request{Instruction: instruction, Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// Validate checks parameter bounds.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Instruction) == "" {
		return fmt.Errorf("%w: instruction is required", ErrInvalidRequest)
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be between %.1f and %.1f", ErrInvalidRequest, MinTemperature, MaxTemperature)
	}
	if r.MaxTokens < MinMaxTokens || r.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: max_tokens must be between %d and %d", ErrInvalidRequest, MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// Usage reports token counts for one call.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// Result is a completed understanding call.
type Result struct {
	Content          string  `json:"result"`
	Model            string  `json:"model"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Usage            Usage   `json:"tokens_used"`
	HadReasoning     bool    `json:"had_reasoning"`
}

// Status values reported by Status.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusOffline   = "offline"
)

// Status is the backend health as seen by a probe.
type Status struct {
	Status string `json:"status"`
	Server string `json:"server,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher sends understanding jobs to the backend through a shared Gate.
type Dispatcher struct {
	cfg       Config
	client    *resty.Client
	gate      *Gate
	tokenizer tokenizer.Tokenizer
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. gate is shared process-wide; tok may
// be nil.
func NewDispatcher(cfg Config, gate *Gate, tok tokenizer.Tokenizer, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.ServerURL == "" {
		cfg.ServerURL = def.ServerURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.DisplayModel == "" {
		cfg.DisplayModel = def.DisplayModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = def.HealthTimeout
	}
	if gate == nil {
		gate = NewGate(DefaultMaxConcurrent)
	}
	if tok == nil {
		tok = tokenizer.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return &Dispatcher{
		cfg:       cfg,
		client:    newRestyClient(cfg.ServerURL),
		gate:      gate,
		tokenizer: tok,
		logger:    logger,
	}
}

// Close releases the HTTP client.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// Understand runs req against raw. The health probe and the wait for a gate
// slot honour ctx; once the main call starts it runs to completion or to
// the configured timeout even if ctx is cancelled.
func (d *Dispatcher) Understand(ctx context.Context, raw []byte, req Request) (*Result, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := d.health(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	payload, resized := imaging.Downscale(raw, d.cfg.MaxImageDim)
	dataURL := encodeDataURL(payload, resized)

	if err := d.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer d.gate.Release()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	var out chatResponse
	resp, err := d.client.R().
		SetContext(callCtx).
		SetBody(newChatRequest(d.cfg.Model, req.Instruction, dataURL, req.Temperature, req.MaxTokens)).
		SetResult(&out).
		Post(completionsPath)

	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordDispatch("vlm", "error", elapsed.Seconds())
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrBackendTimeout, d.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp.IsError() {
		metrics.RecordDispatch("vlm", "error", elapsed.Seconds())
		return nil, &BackendError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var content string
	if len(out.Choices) > 0 {
		content = out.Choices[0].Message.Content
	}
	answer, hadReasoning := StripReasoning(content)

	metrics.RecordDispatch("vlm", "success", elapsed.Seconds())
	d.logger.Debug("understanding completed",
		"duration_ms", elapsed.Milliseconds(),
		"resized", resized,
		"had_reasoning", hadReasoning,
	)

	return &Result{
		Content:          answer,
		Model:            d.cfg.DisplayModel,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		Usage:            d.usage(out.Usage, req.Instruction, payload, content),
		HadReasoning:     hadReasoning,
	}, nil
}

// Status probes the backend health endpoint.
func (d *Dispatcher) Status(ctx context.Context) Status {
	resp, err := d.probe(ctx)
	if err != nil {
		return Status{Status: StatusOffline, Error: err.Error()}
	}
	if resp.StatusCode() != http.StatusOK {
		return Status{Status: StatusUnhealthy, Error: fmt.Sprintf("Status code: %d", resp.StatusCode())}
	}
	return Status{Status: StatusHealthy, Server: d.cfg.ServerURL}
}

func (d *Dispatcher) health(ctx context.Context) error {
	resp, err := d.probe(ctx)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("Status code: %d", resp.StatusCode())
	}
	return nil
}

func (d *Dispatcher) probe(ctx context.Context) (*resty.Response, error) {
	hctx, cancel := context.WithTimeout(ctx, d.cfg.HealthTimeout)
	defer cancel()
	return d.client.R().SetContext(hctx).Get(healthPath)
}

// usage prefers backend-reported counts and estimates the rest.
func (d *Dispatcher) usage(reported *Usage, instruction string, img []byte, completion string) Usage {
	if reported != nil && reported.TotalTokens > 0 {
		return *reported
	}

	var w, h int
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img)); err == nil {
		w, h = cfg.Width, cfg.Height
	}

	prompt := d.tokenizer.CountPrompt(instruction, w, h, d.cfg.Model)
	completionTokens := d.tokenizer.CountCompletion(completion, d.cfg.Model)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
		Estimated:        true,
	}
}

func encodeDataURL(img []byte, resized bool) string {
	mime := "image/jpeg"
	if !resized {
		mime = mimetype.Detect(img).String()
		if !strings.HasPrefix(mime, "image/") {
			mime = "image/png"
		}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
