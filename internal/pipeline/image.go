package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/disintegration/imaging"
)

// Step is one in-memory image operation.
type Step func(img image.Image) image.Image

func Resize(width, height int) Step {
	return func(img image.Image) image.Image {
		return imaging.Resize(img, width, height, imaging.Lanczos)
	}
}

func Fit(width, height int) Step {
	return func(img image.Image) image.Image {
		return imaging.Fit(img, width, height, imaging.Lanczos)
	}
}

func Fill(width, height int) Step {
	return func(img image.Image) image.Image {
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	}
}

func Grayscale() Step {
	return func(img image.Image) image.Image {
		return imaging.Grayscale(img)
	}
}

func Blur(sigma float64) Step {
	return func(img image.Image) image.Image {
		return imaging.Blur(img, sigma)
	}
}

func Sharpen(sigma float64) Step {
	return func(img image.Image) image.Image {
		return imaging.Sharpen(img, sigma)
	}
}

func Rotate(angle float64) Step {
	return func(img image.Image) image.Image {
		return imaging.Rotate(img, angle, color.Transparent)
	}
}

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// Image decodes the source, applies its steps in order and encodes the result.
type Image struct {
	steps   []Step
	format  imaging.Format
	keep    bool
	quality int
}

// NewImage builds an image pipeline. An empty format keeps the source format.
// Quality applies to JPEG output only; 0 means the encoder default.
func NewImage(format string, quality int, steps ...Step) (*Image, error) {
	p := &Image{steps: steps, quality: quality, keep: format == ""}
	if !p.keep {
		f, err := imaging.FormatFromExtension(format)
		if err != nil {
			return nil, fmt.Errorf("image pipeline: %w", err)
		}
		p.format = f
	}
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("image pipeline: quality %d out of range", quality)
	}

	return p, nil
}

func (p *Image) ContentType() string {
	if p.keep {
		return ""
	}
	return contentTypes[p.format]
}

func (p *Image) Run(ctx context.Context, src io.Reader, dst io.Writer, introspect bool) (*domain.MediaMeta, error) {
	img, name, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	format := p.format
	if p.keep {
		if format, err = imaging.FormatFromExtension(name); err != nil {
			return nil, fmt.Errorf("source format %q: %w", name, err)
		}
	}

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img = step(img)
	}

	var opts []imaging.EncodeOption
	if p.quality > 0 {
		opts = append(opts, imaging.JPEGQuality(p.quality))
	}

	cw := &countingWriter{w: dst}
	if err := imaging.Encode(cw, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	if !introspect {
		return nil, nil
	}

	b := img.Bounds()
	return &domain.MediaMeta{
		Format:      strings.ToLower(format.String()),
		ContentType: contentTypes[format],
		Width:       b.Dx(),
		Height:      b.Dy(),
		Size:        cw.n,
	}, nil
}
