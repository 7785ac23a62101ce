package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/gabriel-vasile/mimetype"
)

const (
	sniffLen = 3072
	// headLen covers a JPEG whose APPn segments (EXIF, ICC) precede the frame
	// header. Dimensions stay unset when the header lies beyond it.
	headLen = 256 << 10
)

// Passthrough copies the source unchanged. With introspection it sniffs the
// content type from the leading bytes and reads image dimensions from the
// first headLen bytes.
type Passthrough struct{}

func (Passthrough) Run(ctx context.Context, src io.Reader, dst io.Writer, introspect bool) (*domain.MediaMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cw := &countingWriter{w: dst}
	if !introspect {
		if _, err := io.Copy(cw, src); err != nil {
			return nil, fmt.Errorf("copy: %w", err)
		}
		return nil, nil
	}

	head := &headWriter{limit: headLen}
	if _, err := io.Copy(io.MultiWriter(cw, head), src); err != nil {
		return nil, fmt.Errorf("copy: %w", err)
	}

	mt := mimetype.Detect(head.buf[:min(len(head.buf), sniffLen)])
	meta := &domain.MediaMeta{
		Format:      strings.TrimPrefix(mt.Extension(), "."),
		ContentType: mt.String(),
		Size:        cw.n,
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(head.buf)); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}

	return meta, nil
}
