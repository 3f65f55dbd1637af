// Package render turns the document model into deliverable artifacts.
// Three independent renderers share one contract; a failure in one
// format never aborts the others.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mirefly/docharbor/internal/doc"
)

// Format selects a renderer.
type Format string

const (
	FormatHTML Format = "html"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// ErrRenderTimeout reports that a renderer exceeded its time budget.
// It is distinct from content errors so callers can tell the two
// apart in summaries.
var ErrRenderTimeout = errors.New("render: generation timed out")

// Options carries per-render settings shared by all formats.
type Options struct {
	Title   string
	Author  string
	Timeout time.Duration
}

// Renderer renders a document model into one output format.
type Renderer interface {
	Render(ctx context.Context, blocks []doc.Block, opts Options) ([]byte, error)
}

// ForFormat returns the renderer for a format.
func ForFormat(f Format) (Renderer, error) {
	switch f {
	case FormatHTML:
		return NewHTMLRenderer(), nil
	case FormatDOCX:
		return NewDocxRenderer(), nil
	case FormatPDF:
		return NewPDFRenderer(), nil
	default:
		return nil, fmt.Errorf("render: unknown format %q", f)
	}
}

// WithTimeout runs a renderer under opts.Timeout and converts a
// deadline overrun into ErrRenderTimeout. A zero timeout means no
// bound beyond the caller's context.
func WithTimeout(ctx context.Context, r Renderer, blocks []doc.Block, opts Options) ([]byte, error) {
	if opts.Timeout <= 0 {
		return r.Render(ctx, blocks, opts)
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := r.Render(ctx, blocks, opts)
		done <- result{data, err}
	}()
	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return nil, ErrRenderTimeout
		}
		return res.data, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrRenderTimeout
		}
		return nil, ctx.Err()
	}
}
