package pipeline

import (
	"fmt"
	"strings"
)

type Spec struct {
	Passthrough bool
	Format      string
	Quality     int
	Steps       []StepSpec
}

type StepSpec struct {
	Op     string
	Width  int
	Height int
	Sigma  float64
	Angle  float64
}

// Build turns a declarative spec into a Pipeline.
func Build(spec Spec) (Pipeline, error) {
	if spec.Passthrough {
		if len(spec.Steps) > 0 || spec.Format != "" {
			return nil, fmt.Errorf("passthrough takes no steps or format")
		}
		return Passthrough{}, nil
	}

	steps := make([]Step, 0, len(spec.Steps))
	for i, s := range spec.Steps {
		step, err := buildStep(s)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}

	return NewImage(spec.Format, spec.Quality, steps...)
}

func buildStep(s StepSpec) (Step, error) {
	switch strings.ToLower(s.Op) {
	case "resize":
		if s.Width <= 0 && s.Height <= 0 {
			return nil, fmt.Errorf("resize needs width or height")
		}
		return Resize(s.Width, s.Height), nil
	case "fit":
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("fit needs width and height")
		}
		return Fit(s.Width, s.Height), nil
	case "fill":
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("fill needs width and height")
		}
		return Fill(s.Width, s.Height), nil
	case "grayscale":
		return Grayscale(), nil
	case "blur":
		if s.Sigma <= 0 {
			return nil, fmt.Errorf("blur needs a positive sigma")
		}
		return Blur(s.Sigma), nil
	case "sharpen":
		if s.Sigma <= 0 {
			return nil, fmt.Errorf("sharpen needs a positive sigma")
		}
		return Sharpen(s.Sigma), nil
	case "rotate":
		return Rotate(s.Angle), nil
	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
}
