// Package pipeline holds the transformation programs applied to uploaded media.
// A Pipeline is opaque to the upload engine: bytes in, bytes out, and optionally
// a description of what came out.
package pipeline

import (
	"context"
	"io"

	"github.com/you-humble/mediafanout/internal/domain"
)

// Pipeline transforms src into dst. When introspect is true it reports metadata
// about the produced output, otherwise the returned metadata is nil.
//
// Implementations must be safe for concurrent use: one Pipeline value is shared
// by every upload that uses its transform.
type Pipeline interface {
	Run(ctx context.Context, src io.Reader, dst io.Writer, introspect bool) (*domain.MediaMeta, error)
}

// ContentTyper is implemented by pipelines that know their output content type
// before they run.
type ContentTyper interface {
	ContentType() string
}

type Func func(ctx context.Context, src io.Reader, dst io.Writer, introspect bool) (*domain.MediaMeta, error)

func (f Func) Run(ctx context.Context, src io.Reader, dst io.Writer, introspect bool) (*domain.MediaMeta, error) {
	return f(ctx, src, dst, introspect)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// headWriter keeps the first limit bytes written to it.
type headWriter struct {
	buf   []byte
	limit int
}

func (h *headWriter) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}
