// Package tesseract implements ocr.Engine on top of the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/mandalnilabja/ocrway/internal/ocr"
)

// engineModeParam is read only while Tesseract initialises, so it is passed
// through an init config file instead of SetVariable.
const engineModeParam = "tessedit_ocr_engine_mode"

// Engine runs Tesseract through gosseract. A fresh client is used per call,
// so an Engine is safe for concurrent use.
type Engine struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client

	mu         sync.Mutex
	configDir  string
	modeConfig map[int]string
}

// New constructs a Tesseract-backed engine. An empty tessdataPrefix keeps
// Tesseract's default model directory.
func New(tessdataPrefix string) *Engine {
	return &Engine{
		tessdataPrefix: tessdataPrefix,
		clientFactory:  gosseract.NewClient,
		modeConfig:     make(map[int]string),
	}
}

// Close removes the engine's init config files.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configDir == "" {
		return nil
	}
	err := os.RemoveAll(e.configDir)
	e.configDir = ""
	clear(e.modeConfig)
	return err
}

// Text returns the recognised plain text.
func (e *Engine) Text(ctx context.Context, image []byte, opts ocr.EngineOptions) (string, error) {
	var out string
	err := e.withClient(ctx, image, opts, func(c *gosseract.Client) (err error) {
		out, err = c.Text()
		return err
	})
	return out, err
}

// TextAndTokens returns the plain text and the word boxes from one client,
// loading the model once.
func (e *Engine) TextAndTokens(ctx context.Context, image []byte, opts ocr.EngineOptions) (string, []ocr.Token, error) {
	var (
		text   string
		tokens []ocr.Token
	)
	err := e.withClient(ctx, image, opts, func(c *gosseract.Client) (err error) {
		if text, err = c.Text(); err != nil {
			return err
		}
		tokens, err = wordTokens(c)
		return err
	})
	return text, tokens, err
}

// Tokens returns word level boxes with block, paragraph and line numbers.
func (e *Engine) Tokens(ctx context.Context, image []byte, opts ocr.EngineOptions) ([]ocr.Token, error) {
	var tokens []ocr.Token
	err := e.withClient(ctx, image, opts, func(c *gosseract.Client) (err error) {
		tokens, err = wordTokens(c)
		return err
	})
	return tokens, err
}

func wordTokens(c *gosseract.Client) ([]ocr.Token, error) {
	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, err
	}
	tokens := make([]ocr.Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, ocr.Token{
			Text:       b.Word,
			Confidence: b.Confidence,
			Left:       b.Box.Min.X,
			Top:        b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
		})
	}
	return tokens, nil
}

// HOCR returns the hOCR document.
func (e *Engine) HOCR(ctx context.Context, image []byte, opts ocr.EngineOptions) (string, error) {
	var out string
	err := e.withClient(ctx, image, opts, func(c *gosseract.Client) (err error) {
		out, err = c.HOCRText()
		return err
	})
	return out, err
}

// Languages lists the installed trained models.
func (e *Engine) Languages() ([]string, error) {
	return gosseract.GetAvailableLanguages()
}

// Version returns the linked Tesseract version.
func (e *Engine) Version() string {
	return gosseract.Version()
}

func (e *Engine) withClient(ctx context.Context, image []byte, opts ocr.EngineOptions, fn func(*gosseract.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c, image, opts); err != nil {
		return err
	}
	return fn(c)
}

func (e *Engine) configure(c *gosseract.Client, image []byte, opts ocr.EngineOptions) error {
	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(opts.Language); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	path, err := e.engineModeConfig(opts.EngineMode)
	if err != nil {
		return fmt.Errorf("engine mode config: %w", err)
	}
	if err := c.SetConfigFile(path); err != nil {
		return fmt.Errorf("set engine mode: %w", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	return nil
}

// engineModeConfig returns a Tesseract config file that selects mode,
// writing it on first use.
func (e *Engine) engineModeConfig(mode int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if path, ok := e.modeConfig[mode]; ok {
		return path, nil
	}
	if e.configDir == "" {
		dir, err := os.MkdirTemp("", "ocrway-tesseract-")
		if err != nil {
			return "", err
		}
		e.configDir = dir
	}

	path := filepath.Join(e.configDir, fmt.Sprintf("oem%d", mode))
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%s %d\n", engineModeParam, mode)), 0o600); err != nil {
		return "", err
	}
	e.modeConfig[mode] = path
	return path, nil
}
