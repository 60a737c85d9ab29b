// Package ocr adapts a local text-extraction engine: it validates the
// request, prepares the raster and shapes the engine output.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/mandalnilabja/ocrway/internal/imaging"
	"github.com/mandalnilabja/ocrway/internal/metrics"
)

// Defaults for extraction parameters.
const (
	DefaultLanguage    = "eng"
	DefaultPageSegMode = 3
	DefaultEngineMode  = 3
	MaxPageSegMode     = 13
	MaxEngineMode      = 3
)

const (
	languagesCacheKey = "installed"
	languagesTTL      = 10 * time.Minute
)

// ErrInvalidParams is returned for out-of-range segmentation or engine modes.
var ErrInvalidParams = errors.New("invalid extraction parameters")

// LanguageNotAllowedError is returned before any decoding when the
// requested language is not on the allow-list.
type LanguageNotAllowedError struct {
	Language string
	Allowed  []string
}

func (e *LanguageNotAllowedError) Error() string {
	return fmt.Sprintf("Language '%s' not allowed. Available: %s", e.Language, strings.Join(e.Allowed, ", "))
}

// EngineError wraps a failure inside the extraction engine.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("OCR processing failed: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// EngineOptions are passed through to the engine unchanged.
type EngineOptions struct {
	Language    string
	PageSegMode int
	EngineMode  int
}

// Engine is a local text-extraction backend. Image is an encoded raster.
type Engine interface {
	Text(ctx context.Context, image []byte, opts EngineOptions) (string, error)
	Tokens(ctx context.Context, image []byte, opts EngineOptions) ([]Token, error)
	HOCR(ctx context.Context, image []byte, opts EngineOptions) (string, error)
	Languages() ([]string, error)
	Version() string
}

// TextTokensEngine is implemented by engines that can return the plain text
// and the word tokens from a single recognition pass.
type TextTokensEngine interface {
	TextAndTokens(ctx context.Context, image []byte, opts EngineOptions) (string, []Token, error)
}

// Params describe one extraction request.
type Params struct {
	Language    string
	PageSegMode int
	EngineMode  int
	Preprocess  bool
	Preset      imaging.Preset
	Shape       Shape
}

// DefaultParams returns eng, psm 3, oem 3, preprocessing with the table preset.
func DefaultParams() Params {
	return Params{
		Language:    DefaultLanguage,
		PageSegMode: DefaultPageSegMode,
		EngineMode:  DefaultEngineMode,
		Preprocess:  true,
		Preset:      imaging.PresetTable,
		Shape:       ShapeText,
	}
}

// Validate checks mode ranges.
func (p Params) Validate() error {
	if p.PageSegMode < 0 || p.PageSegMode > MaxPageSegMode {
		return fmt.Errorf("%w: psm must be between 0 and %d", ErrInvalidParams, MaxPageSegMode)
	}
	if p.EngineMode < 0 || p.EngineMode > MaxEngineMode {
		return fmt.Errorf("%w: oem must be between 0 and %d", ErrInvalidParams, MaxEngineMode)
	}
	return nil
}

// LanguageInfo reports installed and permitted languages.
type LanguageInfo struct {
	Installed []string `json:"installed"`
	Allowed   []string `json:"allowed"`
	Available []string `json:"available"`
}

// Extractor runs extraction requests against an Engine.
type Extractor struct {
	engine    Engine
	allowed   []string
	cache     *ristretto.Cache[string, []string]
	logger    *slog.Logger
	maxPixels int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPixels overrides imaging.DefaultMaxPixels as the decode limit.
func WithMaxPixels(n int) Option {
	return func(x *Extractor) { x.maxPixels = n }
}

// NewExtractor creates an Extractor. cache may be nil.
func NewExtractor(engine Engine, allowed []string, cache *ristretto.Cache[string, []string], logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	x := &Extractor{
		engine:    engine,
		allowed:   allowed,
		cache:     cache,
		logger:    logger,
		maxPixels: imaging.DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// NewLanguageCache builds the cache used for the installed-language list.
func NewLanguageCache() (*ristretto.Cache[string, []string], error) {
	return ristretto.NewCache(&ristretto.Config[string, []string]{
		NumCounters:        100,
		MaxCost:            10,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
}

// Allowed returns the configured allow-list.
func (x *Extractor) Allowed() []string {
	return slices.Clone(x.allowed)
}

// Version returns the engine version string.
func (x *Extractor) Version() string {
	return x.engine.Version()
}

// Extract validates p, prepares raw and asks the engine for the requested
// shape.
func (x *Extractor) Extract(ctx context.Context, raw []byte, p Params) (Result, error) {
	start := time.Now()

	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if !slices.Contains(x.allowed, p.Language) {
		return nil, &LanguageNotAllowedError{Language: p.Language, Allowed: x.Allowed()}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	img, err := x.prepare(raw, p)
	if err != nil {
		return nil, err
	}

	opts := EngineOptions{Language: p.Language, PageSegMode: p.PageSegMode, EngineMode: p.EngineMode}
	result, err := x.run(ctx, img, opts, p.Shape, start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDispatch("tesseract", status, time.Since(start).Seconds())

	return result, err
}

func (x *Extractor) prepare(raw []byte, p Params) ([]byte, error) {
	decoded, err := imaging.DecodeLimit(raw, x.maxPixels)
	if err != nil {
		return nil, err
	}

	if p.Preprocess {
		preset := p.Preset
		if preset == "" {
			preset = imaging.PresetTable
		}
		return imaging.EncodePNG(imaging.TransformImage(decoded, preset))
	}
	return imaging.EncodePNG(decoded)
}

func (x *Extractor) run(ctx context.Context, img []byte, opts EngineOptions, shape Shape, start time.Time) (Result, error) {
	elapsed := func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}

	switch shape {
	case ShapeMarkup:
		hocr, err := x.engine.HOCR(ctx, img, opts)
		if err != nil {
			return nil, x.engineError("hocr", err)
		}
		return &MarkupResult{HOCR: hocr, Language: opts.Language, ProcessingTimeMs: elapsed()}, nil

	case ShapeStructured:
		tokens, err := x.engine.Tokens(ctx, img, opts)
		if err != nil {
			return nil, x.engineError("tokens", err)
		}
		res := shapeStructured(tokens)
		res.Language = opts.Language
		res.ProcessingTimeMs = elapsed()
		return res, nil

	default:
		text, tokens, err := x.textAndTokens(ctx, img, opts)
		if err != nil {
			return nil, err
		}
		trimmed, conf := shapeText(text, tokens)
		return &TextResult{
			Text:             trimmed,
			Confidence:       conf,
			Language:         opts.Language,
			ProcessingTimeMs: elapsed(),
		}, nil
	}
}

func (x *Extractor) textAndTokens(ctx context.Context, img []byte, opts EngineOptions) (string, []Token, error) {
	if e, ok := x.engine.(TextTokensEngine); ok {
		text, tokens, err := e.TextAndTokens(ctx, img, opts)
		if err != nil {
			return "", nil, x.engineError("text", err)
		}
		return text, tokens, nil
	}

	text, err := x.engine.Text(ctx, img, opts)
	if err != nil {
		return "", nil, x.engineError("text", err)
	}
	tokens, err := x.engine.Tokens(ctx, img, opts)
	if err != nil {
		return "", nil, x.engineError("tokens", err)
	}
	return text, tokens, nil
}

func (x *Extractor) engineError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	x.logger.Error("engine call failed", "op", op, "error", err)
	return &EngineError{Op: op, Err: err}
}

// Languages lists installed, allowed and usable languages. The installed
// list is cached; a failing engine falls back to "eng".
func (x *Extractor) Languages(ctx context.Context) LanguageInfo {
	installed := x.installed()

	available := make([]string, 0, len(x.allowed))
	for _, lang := range x.allowed {
		if slices.Contains(installed, lang) {
			available = append(available, lang)
		}
	}

	return LanguageInfo{
		Installed: installed,
		Allowed:   x.Allowed(),
		Available: available,
	}
}

func (x *Extractor) installed() []string {
	if x.cache != nil {
		if langs, ok := x.cache.Get(languagesCacheKey); ok {
			return langs
		}
	}

	langs, err := x.engine.Languages()
	if err != nil {
		x.logger.Warn("listing installed languages failed", "error", err)
		return []string{DefaultLanguage}
	}
	slices.Sort(langs)

	if x.cache != nil {
		x.cache.SetWithTTL(languagesCacheKey, langs, 1, languagesTTL)
	}
	return langs
}
