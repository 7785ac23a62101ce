package config

import (
	"fmt"

	"github.com/you-humble/mediafanout/internal/engine"
	"github.com/you-humble/mediafanout/internal/pipeline"
)

// EngineOptions builds the engine options described by the config. Every
// metadata function is wrapped with engine.WithContentType.
func (c *Config) EngineOptions() (engine.Options, error) {
	opts := engine.Options{
		Bucket:      c.Storage.Bucket,
		SkipMeta:    c.WithMeta != nil && !*c.WithMeta,
		MaxSize:     c.MaxUploadBytes(),
		TaskTimeout: c.TaskTimeout,
		ObjectMeta:  engine.WithContentType(staticMeta(c.ObjectMeta)),
	}

	if c.Key != "" {
		key, err := engine.KeyTemplate(c.Key)
		if err != nil {
			return engine.Options{}, fmt.Errorf("key: %w", err)
		}
		opts.Key = key
	}

	opts.Transforms = make([]engine.Transform, 0, len(c.Transforms))
	for i, t := range c.Transforms {
		tr, err := t.build()
		if err != nil {
			return engine.Options{}, fmt.Errorf("transforms[%d] %q: %w", i, t.ID, err)
		}
		opts.Transforms = append(opts.Transforms, tr)
	}

	return opts, nil
}

func (t Transform) build() (engine.Transform, error) {
	if t.ID == "" {
		return engine.Transform{}, fmt.Errorf("id is empty")
	}

	spec := pipeline.Spec{
		Passthrough: t.Passthrough,
		Format:      t.Format,
		Quality:     t.Quality,
		Steps:       make([]pipeline.StepSpec, 0, len(t.Steps)),
	}
	for _, s := range t.Steps {
		spec.Steps = append(spec.Steps, pipeline.StepSpec{
			Op:     s.Op,
			Width:  s.Width,
			Height: s.Height,
			Sigma:  s.Sigma,
			Angle:  s.Angle,
		})
	}

	p, err := pipeline.Build(spec)
	if err != nil {
		return engine.Transform{}, err
	}

	tr := engine.Transform{ID: t.ID, Pipeline: p}
	if t.Key != "" {
		if tr.Key, err = engine.KeyTemplate(t.Key); err != nil {
			return engine.Transform{}, fmt.Errorf("key: %w", err)
		}
	}
	if t.ObjectMeta != nil {
		tr.ObjectMeta = engine.WithContentType(engine.StaticMeta(t.ObjectMeta))
	}

	return tr, nil
}

func staticMeta(m map[string]string) engine.MetaFunc {
	if m == nil {
		return nil
	}
	return engine.StaticMeta(m)
}
