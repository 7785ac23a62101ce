// Package engine applies a set of transforms to every uploaded file and stores
// each output in object storage.
//
// One call to HandleFile buffers the file once, runs every transform in its own
// goroutine, waits for all of them and returns one outcome per transform in the
// order the transforms were configured. A failing transform only ever produces
// an error outcome; HandleFile itself does not fail.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/you-humble/mediafanout/internal/domain"
)

// StorageEngine is what the upload middleware drives, once per file part.
type StorageEngine interface {
	HandleFile(r *http.Request, file *File) (any, error)
	RemoveFile(r *http.Request, file *File) error
}

// ObjectStore persists bytes under bucket/key. Implementations must allow
// concurrent calls.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, meta domain.ObjectMeta) (domain.ObjectInfo, error)
}

type Recorder interface {
	RecordOutcome(transformID string, status domain.OutcomeStatus, kind domain.ErrorKind, d time.Duration)
	RecordInvocation(transforms int, d time.Duration)
}

type Options struct {
	Bucket     string
	Transforms []Transform

	// Key and ObjectMeta apply to transforms that do not set their own.
	Key        KeyFunc
	ObjectMeta MetaFunc

	// SkipMeta turns off output metadata capture.
	SkipMeta bool

	Generator GeneratorFunc

	// MaxSize bounds the buffered ingress, 0 means unbounded.
	MaxSize int64
	// TaskTimeout bounds each transform, 0 means no timeout.
	TaskTimeout time.Duration
}

type Engine struct {
	store    ObjectStore
	opts     Options
	recorder Recorder
}

func New(store ObjectStore, opts Options, recorder Recorder) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: nil object store")
	}
	if opts.Bucket == "" {
		return nil, errors.New("engine: empty bucket")
	}
	for i, t := range opts.Transforms {
		if t.Pipeline == nil {
			return nil, errors.New("engine: transform " + t.ID + " has no pipeline")
		}
		if t.ID == "" {
			slog.Warn("engine: transform without id", slog.Int("index", i))
		}
	}
	if opts.Generator == nil {
		opts.Generator = DefaultGenerator
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Engine{store: store, opts: opts, recorder: recorder}, nil
}

func (e *Engine) Options() Options {
	return e.opts
}

// HandleFile runs every transform against file and returns the generator's
// value. The returned error is always nil; per-transform failures are in the
// outcomes.
func (e *Engine) HandleFile(r *http.Request, file *File) (any, error) {
	start := time.Now()

	ctx := context.Background()
	if r != nil {
		// a client going away must not abort uploads already in flight
		ctx = context.WithoutCancel(r.Context())
	}

	n := len(e.opts.Transforms)
	l := slog.With(
		slog.String("original_name", file.OriginalName),
		slog.String("field_name", file.FieldName),
		slog.Int("transforms", n),
	)

	branches, size, err := split(file.Stream, n, e.opts.MaxSize)
	if err != nil {
		l.Warn("ingress read failed", slog.String("error", err.Error()))
	}

	outcomes := join(ctx, n, func(ctx context.Context, i int) domain.Outcome {
		if e.opts.TaskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
			defer cancel()
		}
		return e.runTask(ctx, r, file, &e.opts.Transforms[i], branches[i])
	})

	elapsed := time.Since(start)
	e.recorder.RecordInvocation(n, elapsed)

	ok, failed := domain.Tally(outcomes)
	l.Info("file handled",
		slog.Int64("size", size),
		slog.Int("succeeded", ok),
		slog.Int("failed", failed),
		slog.Duration("duration", elapsed),
	)

	return e.opts.Generator(GeneratorParams{
		Options:    &e.opts,
		File:       file,
		Size:       size,
		Transforms: outcomes,
	}), nil
}

// RemoveFile is called when the enclosing request fails after file was
// handled. Deleting stored objects is not supported, so it always succeeds.
func (e *Engine) RemoveFile(_ *http.Request, file *File) error {
	slog.Debug("remove file: nothing to do", slog.String("original_name", file.OriginalName))
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, domain.OutcomeStatus, domain.ErrorKind, time.Duration) {}

func (nopRecorder) RecordInvocation(int, time.Duration) {}
