package ocr

import "strings"

// Shape selects how an extraction result is reported.
type Shape int

const (
	ShapeText Shape = iota
	ShapeStructured
	ShapeMarkup
)

// Result is one of *TextResult, *StructuredResult or *MarkupResult.
type Result interface {
	isResult()
}

// TextResult is plain text with a mean confidence.
type TextResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	Language         string  `json:"language"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// Word is a recognised token with its bounding box.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// StructuredResult carries word level detail.
type StructuredResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	Language         string  `json:"language"`
	Words            []Word  `json:"words"`
	LineCount        int     `json:"line_count"`
	WordCount        int     `json:"word_count"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// MarkupResult is the engine's hOCR document.
type MarkupResult struct {
	HOCR             string  `json:"hocr"`
	Language         string  `json:"language"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

func (*TextResult) isResult()       {}
func (*StructuredResult) isResult() {}
func (*MarkupResult) isResult()     {}

// Token is a raw engine token. Non-word rows may have empty text or a
// non-positive confidence.
type Token struct {
	Text       string
	Confidence float64
	Left       int
	Top        int
	Width      int
	Height     int
	Block      int
	Paragraph  int
	Line       int
}

type lineKey struct {
	block, paragraph, line int
}

// shapeText trims the text and averages every positive token confidence.
func shapeText(text string, tokens []Token) (string, float64) {
	var sum float64
	var n int
	for _, t := range tokens {
		if t.Confidence > 0 {
			sum += t.Confidence
			n++
		}
	}
	if n == 0 {
		return strings.TrimSpace(text), 0
	}
	return strings.TrimSpace(text), sum / float64(n)
}

// shapeStructured keeps tokens with non-empty text and positive confidence.
// Lines are counted over all raw tokens.
func shapeStructured(tokens []Token) *StructuredResult {
	words, conf := keptWords(tokens)

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}

	lines := make(map[lineKey]struct{})
	for _, t := range tokens {
		lines[lineKey{t.Block, t.Paragraph, t.Line}] = struct{}{}
	}

	return &StructuredResult{
		Text:       strings.Join(texts, " "),
		Confidence: conf,
		Words:      words,
		LineCount:  len(lines),
		WordCount:  len(words),
	}
}

func keptWords(tokens []Token) ([]Word, float64) {
	words := make([]Word, 0, len(tokens))
	var sum float64
	for _, t := range tokens {
		text := strings.TrimSpace(t.Text)
		if text == "" || t.Confidence <= 0 {
			continue
		}
		sum += t.Confidence
		words = append(words, Word{
			Text:       text,
			Confidence: t.Confidence,
			Left:       t.Left,
			Top:        t.Top,
			Width:      t.Width,
			Height:     t.Height,
		})
	}
	if len(words) == 0 {
		return words, 0
	}
	return words, sum / float64(len(words))
}
