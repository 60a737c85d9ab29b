// Package understand serves remote image understanding.
package understand

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mandalnilabja/ocrway/internal/batch"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/shared"
	"github.com/mandalnilabja/ocrway/internal/types"
	"github.com/mandalnilabja/ocrway/internal/vlm"
)

// Dispatcher runs understanding jobs.
type Dispatcher interface {
	Understand(ctx context.Context, raw []byte, req vlm.Request) (*vlm.Result, error)
	Status(ctx context.Context) vlm.Status
}

var _ Dispatcher = (*vlm.Dispatcher)(nil)

// Handlers holds the dependencies for understanding HTTP handlers.
type Handlers struct {
	Dispatcher    Dispatcher
	MaxFileSize   int64
	MaxBatchItems int
	Logger        *slog.Logger
}

// New creates understanding handlers.
func New(d Dispatcher, maxFileSize int64, maxBatchItems int, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBatchItems <= 0 {
		maxBatchItems = batch.MaxItems
	}
	return &Handlers{Dispatcher: d, MaxFileSize: maxFileSize, MaxBatchItems: maxBatchItems, Logger: logger}
}

// Response is a single understanding result.
type Response struct {
	*vlm.Result
	Preset string `json:"preset,omitempty"`
}

// Understand runs a preset or custom prompt (POST /ocr/understand).
func (h *Handlers) Understand(w http.ResponseWriter, r *http.Request) {
	upload, err := shared.ReadImage(w, r, "file", h.MaxFileSize)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	req, preset, err := parseRequest(r, vlm.DefaultTemperature)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	h.respond(w, r, upload.Data, req, preset)
}

// SizeChart extracts size chart measurements (POST /ocr/understand/size-chart).
func (h *Handlers) SizeChart(w http.ResponseWriter, r *http.Request) {
	upload, err := shared.ReadImage(w, r, "file", h.MaxFileSize)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	maxTokens, err := shared.ParamInt(r, "max_tokens", vlm.DefaultMaxTokens)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	req := vlm.Request{
		Instruction: vlm.PresetInstruction(vlm.PresetSizeChart),
		Temperature: vlm.SizeChartTemperature,
		MaxTokens:   maxTokens,
	}
	h.respond(w, r, upload.Data, req, vlm.PresetSizeChart)
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, img []byte, req vlm.Request, preset string) {
	res, err := h.Dispatcher.Understand(r.Context(), img, req)
	if err != nil {
		h.logFailure(r, err)
		shared.WriteJSONError(w, err)
		return
	}
	shared.WriteJSON(w, Response{Result: res, Preset: preset}, http.StatusOK)
}

// Batch runs one instruction over up to MaxBatchItems files
// (POST /ocr/understand/batch). All items are submitted at once; the
// dispatcher's gate bounds how many reach the backend.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	items, err := shared.ReadImages(w, r, "files", h.MaxFileSize, h.MaxBatchItems)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	req, _, err := parseRequest(r, vlm.DefaultTemperature)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	res, err := batch.RunLimit(r.Context(), items, h.MaxBatchItems, batch.Concurrent,
		func(ctx context.Context, item batch.Item) (*vlm.Result, error) {
			out, err := h.Dispatcher.Understand(ctx, item.Data, req)
			if err != nil {
				h.logFailure(r, err)
				return nil, &batch.ItemError{Kind: types.Kind(err), Err: err}
			}
			return out, nil
		})
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	shared.WriteJSON(w, res, http.StatusOK)
}

// Status reports backend health (GET /ocr/understand/status).
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, h.Dispatcher.Status(r.Context()), http.StatusOK)
}

// Presets lists named instructions (GET /ocr/understand/presets).
func (h *Handlers) Presets(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, map[string]any{"presets": vlm.Presets()}, http.StatusOK)
}

// parseRequest reads prompt, preset, temperature and max_tokens. A custom
// prompt wins over a preset; unknown presets fall back to general.
func parseRequest(r *http.Request, defTemp float64) (vlm.Request, string, error) {
	req := vlm.Request{}

	preset := ""
	if prompt := strings.TrimSpace(shared.Param(r, "prompt")); prompt != "" {
		req.Instruction = prompt
	} else {
		preset = shared.Param(r, "preset")
		if !vlm.IsPreset(preset) {
			preset = vlm.PresetGeneral
		}
		req.Instruction = vlm.PresetInstruction(preset)
	}

	var err error
	if req.Temperature, err = shared.ParamFloat(r, "temperature", defTemp); err != nil {
		return req, "", err
	}
	if req.MaxTokens, err = shared.ParamInt(r, "max_tokens", vlm.DefaultMaxTokens); err != nil {
		return req, "", err
	}
	if err := req.Validate(); err != nil {
		return req, "", err
	}
	return req, preset, nil
}

func (h *Handlers) logFailure(r *http.Request, err error) {
	status, _ := types.FromError(err)
	h.Logger.Log(r.Context(), slog.LevelWarn, "understanding failed", "status", status, "error", err)
}
