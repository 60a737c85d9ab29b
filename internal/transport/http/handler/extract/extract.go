// Package extract serves local text extraction.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mandalnilabja/ocrway/internal/batch"
	"github.com/mandalnilabja/ocrway/internal/imaging"
	"github.com/mandalnilabja/ocrway/internal/ocr"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/shared"
	"github.com/mandalnilabja/ocrway/internal/types"
)

const fileField = "file"

// Handlers holds the dependencies for extraction HTTP handlers.
type Handlers struct {
	Extractor     *ocr.Extractor
	MaxFileSize   int64
	MaxBatchItems int
	Logger        *slog.Logger
}

// New creates extraction handlers.
func New(x *ocr.Extractor, maxFileSize int64, maxBatchItems int, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBatchItems <= 0 {
		maxBatchItems = batch.MaxItems
	}
	return &Handlers{Extractor: x, MaxFileSize: maxFileSize, MaxBatchItems: maxBatchItems, Logger: logger}
}

// Extract returns plain text (POST /ocr/extract).
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ocr.ShapeText)
}

// ExtractDetailed returns words with boxes (POST /ocr/extract/detailed).
func (h *Handlers) ExtractDetailed(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ocr.ShapeStructured)
}

// ExtractHOCR returns hOCR markup as XML (POST /ocr/extract/hocr).
func (h *Handlers) ExtractHOCR(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ocr.ShapeMarkup)
}

func (h *Handlers) serve(w http.ResponseWriter, r *http.Request, shape ocr.Shape) {
	upload, err := shared.ReadImage(w, r, fileField, h.MaxFileSize)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	params, err := parseParams(r)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	params.Shape = shape

	res, err := h.Extractor.Extract(r.Context(), upload.Data, params)
	if err != nil {
		h.logFailure(r, upload.Filename, err)
		shared.WriteJSONError(w, err)
		return
	}

	if m, ok := res.(*ocr.MarkupResult); ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(m.HOCR))
		return
	}
	shared.WriteJSON(w, res, http.StatusOK)
}

// Batch extracts text from up to MaxBatchItems files (POST /ocr/batch).
// Items run one after another; a failing item does not stop the rest.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	items, err := shared.ReadImages(w, r, "files", h.MaxFileSize, h.MaxBatchItems)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}

	params, err := parseParams(r)
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	params.Shape = ocr.ShapeText

	res, err := batch.RunLimit(r.Context(), items, h.MaxBatchItems, batch.Sequential,
		func(ctx context.Context, item batch.Item) (*ocr.TextResult, error) {
			out, err := h.Extractor.Extract(ctx, item.Data, params)
			if err != nil {
				h.logFailure(r, item.Filename, err)
				return nil, &batch.ItemError{Kind: types.Kind(err), Err: err}
			}
			text, ok := out.(*ocr.TextResult)
			if !ok {
				return nil, fmt.Errorf("unexpected result type %T", out)
			}
			return text, nil
		})
	if err != nil {
		shared.WriteJSONError(w, err)
		return
	}
	shared.WriteJSON(w, res, http.StatusOK)
}

// Languages lists installed and permitted languages (GET /ocr/languages).
func (h *Handlers) Languages(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, h.Extractor.Languages(r.Context()), http.StatusOK)
}

func parseParams(r *http.Request) (ocr.Params, error) {
	p := ocr.DefaultParams()

	if lang := shared.Param(r, "language"); lang != "" {
		p.Language = lang
	}

	var err error
	if p.PageSegMode, err = shared.ParamInt(r, "psm", ocr.DefaultPageSegMode); err != nil {
		return p, err
	}
	if p.EngineMode, err = shared.ParamInt(r, "oem", ocr.DefaultEngineMode); err != nil {
		return p, err
	}
	if p.Preprocess, err = shared.ParamBool(r, "preprocess", true); err != nil {
		return p, err
	}
	if preset := shared.Param(r, "preset"); preset != "" {
		if p.Preset, err = imaging.ParsePreset(preset); err != nil {
			return p, types.Invalidf("preset must be %q or %q", imaging.PresetTable, imaging.PresetChart)
		}
	}
	return p, nil
}

func (h *Handlers) logFailure(r *http.Request, filename string, err error) {
	status, _ := types.FromError(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.Logger.Log(r.Context(), level, "extraction failed", "filename", filename, "status", status, "error", err)
}
