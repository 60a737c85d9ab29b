// Package batch runs one operation over a bounded list of uploaded items
// and collects per-item outcomes. A failing item never aborts the others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mandalnilabja/ocrway/internal/metrics"
)

// MaxItems is the default upper bound on items per batch.
const MaxItems = 10

// DefaultErrorKind labels item failures that carry no kind of their own.
const DefaultErrorKind = "processing_error"

var (
	ErrNoItems      = errors.New("no files provided")
	ErrTooManyItems = errors.New("too many files in batch")
)

// Mode selects how items are scheduled.
type Mode int

const (
	// Sequential processes items one after another in input order.
	Sequential Mode = iota
	// Concurrent submits every item at once; any throttling happens
	// downstream.
	Concurrent
)

// Item is one input. Items with Err set are recorded as failed without
// running the operation.
type Item struct {
	Filename string
	Data     []byte
	Err      error
}

// ItemError attaches a classification to an item failure.
type ItemError struct {
	Kind string
	Err  error
}

func (e *ItemError) Error() string { return e.Err.Error() }
func (e *ItemError) Unwrap() error { return e.Err }

// ItemResult is the outcome for one item.
type ItemResult[T any] struct {
	Index     int    `json:"index"`
	Filename  string `json:"filename"`
	Success   bool   `json:"success"`
	Value     T      `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Result aggregates a batch.
type Result[T any] struct {
	Total            int             `json:"total"`
	Successful       int             `json:"successful"`
	Failed           int             `json:"failed"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	Items            []ItemResult[T] `json:"results"`
}

// Op processes a single item.
type Op[T any] func(ctx context.Context, item Item) (T, error)

// Run applies op to every item using MaxItems as the limit.
func Run[T any](ctx context.Context, items []Item, mode Mode, op Op[T]) (*Result[T], error) {
	return RunLimit(ctx, items, MaxItems, mode, op)
}

// RunLimit is Run with an explicit item limit.
func RunLimit[T any](ctx context.Context, items []Item, limit int, mode Mode, op Op[T]) (*Result[T], error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if limit <= 0 {
		limit = MaxItems
	}
	if len(items) > limit {
		return nil, fmt.Errorf("%w: maximum %d, got %d", ErrTooManyItems, limit, len(items))
	}

	start := time.Now()
	out := make([]ItemResult[T], len(items))

	switch mode {
	case Concurrent:
		// Each goroutine owns one slot of out, and none returns an error,
		// so the group never cancels its siblings.
		var g errgroup.Group
		for i := range items {
			g.Go(func() error {
				out[i] = runOne(ctx, i, items[i], op)
				return nil
			})
		}
		_ = g.Wait()
	default:
		for i := range items {
			out[i] = runOne(ctx, i, items[i], op)
		}
	}

	res := &Result[T]{Total: len(items), Items: out}
	for _, r := range out {
		if r.Success {
			res.Successful++
		} else {
			res.Failed++
		}
	}
	res.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return res, nil
}

func runOne[T any](ctx context.Context, index int, item Item, op Op[T]) (r ItemResult[T]) {
	r = ItemResult[T]{Index: index, Filename: item.Filename}
	defer func() { metrics.RecordBatchItem(r.Success) }()

	err := item.Err
	if err == nil {
		var v T
		if v, err = op(ctx, item); err == nil {
			r.Success = true
			r.Value = v
			return r
		}
	}
	r.Error = err.Error()
	r.ErrorKind = DefaultErrorKind
	var ie *ItemError
	if errors.As(err, &ie) && ie.Kind != "" {
		r.ErrorKind = ie.Kind
	}
	return r
}
