package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandalnilabja/ocrway/internal/imaging"
)

type fakeEngine struct {
	text      string
	tokens    []Token
	hocr      string
	langs     []string
	err       error
	calls     int
	langCalls int
	lastOpts  EngineOptions
	lastImage []byte
}

func (f *fakeEngine) Text(_ context.Context, img []byte, opts EngineOptions) (string, error) {
	f.calls++
	f.lastOpts, f.lastImage = opts, img
	return f.text, f.err
}

func (f *fakeEngine) Tokens(_ context.Context, img []byte, opts EngineOptions) ([]Token, error) {
	f.calls++
	f.lastOpts, f.lastImage = opts, img
	return f.tokens, f.err
}

func (f *fakeEngine) HOCR(_ context.Context, img []byte, opts EngineOptions) (string, error) {
	f.calls++
	f.lastOpts, f.lastImage = opts, img
	return f.hocr, f.err
}

func (f *fakeEngine) Languages() ([]string, error) {
	f.langCalls++
	return f.langs, f.err
}

func (f *fakeEngine) Version() string { return "5.3.0" }

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(5, 5, color.Gray{})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var sampleTokens = []Token{
	{Text: "", Confidence: -1, Block: 1, Paragraph: 0, Line: 0},
	{Text: "Size", Confidence: 90, Block: 1, Paragraph: 1, Line: 1},
	{Text: "  ", Confidence: 80, Block: 1, Paragraph: 1, Line: 1},
	{Text: "Chart", Confidence: 70, Block: 1, Paragraph: 1, Line: 1},
	{Text: "M", Confidence: 0, Block: 1, Paragraph: 1, Line: 2},
	{Text: "L", Confidence: 50, Block: 1, Paragraph: 1, Line: 2},
}

func TestExtractText(t *testing.T) {
	engine := &fakeEngine{text: "  Size Chart\nL \n", tokens: sampleTokens}
	x := NewExtractor(engine, []string{"eng"}, nil, nil)

	res, err := x.Extract(context.Background(), testImage(t), DefaultParams())
	require.NoError(t, err)

	text, ok := res.(*TextResult)
	require.True(t, ok)
	assert.Equal(t, "Size Chart\nL", text.Text)
	// positive confidences only: 90, 80, 70, 50
	assert.InDelta(t, 72.5, text.Confidence, 1e-9)
	assert.Equal(t, "eng", text.Language)
	assert.GreaterOrEqual(t, text.ProcessingTimeMs, 0.0)
}

func TestExtractStructured(t *testing.T) {
	engine := &fakeEngine{tokens: sampleTokens}
	x := NewExtractor(engine, []string{"eng"}, nil, nil)

	p := DefaultParams()
	p.Shape = ShapeStructured
	res, err := x.Extract(context.Background(), testImage(t), p)
	require.NoError(t, err)

	s, ok := res.(*StructuredResult)
	require.True(t, ok)
	assert.Equal(t, "Size Chart L", s.Text)
	assert.Equal(t, 3, s.WordCount)
	assert.Len(t, s.Words, 3)
	for _, w := range s.Words {
		assert.Positive(t, w.Confidence)
		assert.NotEmpty(t, w.Text)
	}
	assert.InDelta(t, 70.0, s.Confidence, 1e-9)
	// (1,0,0), (1,1,1), (1,1,2)
	assert.Equal(t, 3, s.LineCount)
}

func TestExtractStructuredNoTokens(t *testing.T) {
	x := NewExtractor(&fakeEngine{}, []string{"eng"}, nil, nil)

	p := DefaultParams()
	p.Shape = ShapeStructured
	res, err := x.Extract(context.Background(), testImage(t), p)
	require.NoError(t, err)

	s := res.(*StructuredResult)
	assert.Zero(t, s.Confidence)
	assert.Empty(t, s.Text)
	assert.Empty(t, s.Words)
}

func TestExtractMarkup(t *testing.T) {
	engine := &fakeEngine{hocr: "<div class='ocr_page'></div>"}
	x := NewExtractor(engine, []string{"eng", "deu"}, nil, nil)

	p := DefaultParams()
	p.Shape = ShapeMarkup
	p.Language = "deu"
	res, err := x.Extract(context.Background(), testImage(t), p)
	require.NoError(t, err)

	m, ok := res.(*MarkupResult)
	require.True(t, ok)
	assert.Equal(t, engine.hocr, m.HOCR)
	assert.Equal(t, "deu", m.Language)
	assert.Equal(t, "deu", engine.lastOpts.Language)
}

func TestExtractLanguageNotAllowedBeforeDecoding(t *testing.T) {
	engine := &fakeEngine{}
	x := NewExtractor(engine, []string{"eng"}, nil, nil)

	p := DefaultParams()
	p.Language = "klingon"
	_, err := x.Extract(context.Background(), []byte("not an image"), p)

	var langErr *LanguageNotAllowedError
	require.ErrorAs(t, err, &langErr)
	assert.Equal(t, "klingon", langErr.Language)
	assert.Zero(t, engine.calls)
	assert.Contains(t, err.Error(), "eng")
}

func TestExtractDecodeError(t *testing.T) {
	engine := &fakeEngine{}
	x := NewExtractor(engine, []string{"eng"}, nil, nil)

	_, err := x.Extract(context.Background(), []byte("not an image"), DefaultParams())
	assert.ErrorIs(t, err, imaging.ErrDecode)
	assert.Zero(t, engine.calls)
}

func TestExtractPixelLimit(t *testing.T) {
	engine := &fakeEngine{text: "x"}
	x := NewExtractor(engine, []string{"eng"}, nil, nil, WithMaxPixels(20*10-1))

	_, err := x.Extract(context.Background(), testImage(t), DefaultParams())
	assert.ErrorIs(t, err, imaging.ErrDecode)
	assert.ErrorIs(t, err, imaging.ErrTooManyPixels)
	assert.Zero(t, engine.calls)
}

type singlePassEngine struct {
	fakeEngine
	passes int
}

func (s *singlePassEngine) TextAndTokens(_ context.Context, _ []byte, _ EngineOptions) (string, []Token, error) {
	s.passes++
	return s.text, s.tokens, s.err
}

func TestExtractTextSinglePass(t *testing.T) {
	engine := &singlePassEngine{fakeEngine: fakeEngine{text: "Size Chart L", tokens: sampleTokens}}
	x := NewExtractor(engine, []string{"eng"}, nil, nil)

	res, err := x.Extract(context.Background(), testImage(t), DefaultParams())
	require.NoError(t, err)

	text, ok := res.(*TextResult)
	require.True(t, ok)
	assert.Equal(t, "Size Chart L", text.Text)
	assert.InDelta(t, (90.0+80+70+50)/4, text.Confidence, 0.01)
	assert.Equal(t, 1, engine.passes)
	assert.Zero(t, engine.calls)

	engine.err = errors.New("boom")
	_, err = x.Extract(context.Background(), testImage(t), DefaultParams())
	var engineErr *EngineError
	assert.ErrorAs(t, err, &engineErr)
}

func TestExtractEngineError(t *testing.T) {
	cause := errors.New("tesseract exploded")
	x := NewExtractor(&fakeEngine{err: cause}, []string{"eng"}, nil, nil)

	_, err := x.Extract(context.Background(), testImage(t), DefaultParams())

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.ErrorIs(t, err, cause)
}

func TestExtractInvalidModes(t *testing.T) {
	x := NewExtractor(&fakeEngine{}, []string{"eng"}, nil, nil)

	for _, p := range []Params{
		{Language: "eng", PageSegMode: 14, EngineMode: 3},
		{Language: "eng", PageSegMode: -1, EngineMode: 3},
		{Language: "eng", PageSegMode: 3, EngineMode: 4},
	} {
		_, err := x.Extract(context.Background(), testImage(t), p)
		assert.ErrorIs(t, err, ErrInvalidParams)
	}
}

func TestExtractPreprocessProducesPaddedRaster(t *testing.T) {
	engine := &fakeEngine{}
	x := NewExtractor(engine, []string{"eng"}, nil, nil)

	_, err := x.Extract(context.Background(), testImage(t), DefaultParams())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(engine.lastImage))
	require.NoError(t, err)
	assert.Equal(t, 20*3+2*imaging.TableBorder, img.Bounds().Dx())
}

func TestLanguagesCached(t *testing.T) {
	cache, err := NewLanguageCache()
	require.NoError(t, err)
	defer cache.Close()

	engine := &fakeEngine{langs: []string{"fra", "eng", "osd"}}
	x := NewExtractor(engine, []string{"eng", "deu", "fra"}, cache, nil)

	info := x.Languages(context.Background())
	assert.Equal(t, []string{"eng", "fra", "osd"}, info.Installed)
	assert.Equal(t, []string{"eng", "deu", "fra"}, info.Allowed)
	assert.Equal(t, []string{"eng", "fra"}, info.Available)

	cache.Wait()
	x.Languages(context.Background())
	assert.Equal(t, 1, engine.langCalls)
}

func TestLanguagesFallback(t *testing.T) {
	x := NewExtractor(&fakeEngine{err: errors.New("no tessdata")}, []string{"eng"}, nil, nil)
	info := x.Languages(context.Background())
	assert.Equal(t, []string{"eng"}, info.Installed)
}
