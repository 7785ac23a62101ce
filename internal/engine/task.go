package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/you-humble/mediafanout/internal/domain"
)

// errUploadStopped is handed to a pipeline still writing after the upload
// returned, so its failure is not mistaken for a transform error.
var errUploadStopped = errors.New("upload stopped reading")

type taskError struct {
	kind domain.ErrorKind
	err  error
}

func (e *taskError) Error() string { return string(e.kind) + ": " + e.err.Error() }

func (e *taskError) Unwrap() error { return e.err }

func fail(kind domain.ErrorKind, err error) *taskError {
	return &taskError{kind: kind, err: err}
}

type pipeResult struct {
	meta *domain.MediaMeta
	err  error
}

// runTask produces the outcome of one transform. It never panics and never
// returns an error: every failure is folded into an error outcome.
func (e *Engine) runTask(ctx context.Context, r *http.Request, file *File, t *Transform, src io.Reader) (out domain.Outcome) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			out = failedOutcome(t.ID, fail(domain.KindInternal, fmt.Errorf("panic: %v", rec)))
		}
		e.observe(file, out, time.Since(start))
	}()

	key, info, media, terr := e.transformAndUpload(ctx, r, file, t, src)
	if terr != nil {
		return failedOutcome(t.ID, terr)
	}

	return domain.Outcome{
		ID:     t.ID,
		Status: domain.StatusSuccess,
		Key:    key,
		Object: &info,
		Meta:   media,
	}
}

func (e *Engine) transformAndUpload(
	ctx context.Context,
	r *http.Request,
	file *File,
	t *Transform,
	src io.Reader,
) (string, domain.ObjectInfo, *domain.MediaMeta, *taskError) {
	key, err := resolveKeyFunc(t, e.opts.Key)(r, file, t)
	if err != nil {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindKey, err)
	}
	if strings.TrimSpace(key) == "" {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindKey, errors.New("empty key"))
	}

	meta, err := resolveMetaFunc(t, e.opts.ObjectMeta)(r, file, t)
	if err != nil {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindObjectMeta, err)
	}
	if meta == nil {
		meta = domain.ObjectMeta{}
	}

	if t.Pipeline == nil {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindTransform, errors.New("no pipeline"))
	}

	// The pipeline writes into a pipe the upload reads from, so the upload
	// starts with the first transformed byte.
	pr, pw := io.Pipe()
	// Releases the pipeline goroutine even when Put panics.
	defer pr.CloseWithError(errUploadStopped)
	done := make(chan pipeResult, 1)
	go func() {
		res := e.runPipeline(ctx, t, src, pw)
		pw.CloseWithError(res.err)
		done <- res
	}()

	info, upErr := e.store.Put(ctx, e.opts.Bucket, key, pr, meta)
	pr.CloseWithError(errUploadStopped)
	res := <-done

	if res.err != nil && !errors.Is(res.err, errUploadStopped) {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindTransform, res.err)
	}
	if upErr != nil {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindUpload, upErr)
	}
	if res.err != nil {
		return "", domain.ObjectInfo{}, nil, fail(domain.KindTransform, res.err)
	}

	return key, info, res.meta, nil
}

func (e *Engine) runPipeline(ctx context.Context, t *Transform, src io.Reader, dst io.Writer) (res pipeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = pipeResult{err: fmt.Errorf("pipeline panic: %v", rec)}
		}
	}()

	meta, err := t.Pipeline.Run(ctx, src, dst, !e.opts.SkipMeta)
	if err != nil {
		return pipeResult{err: err}
	}
	if e.opts.SkipMeta {
		meta = nil
	}
	return pipeResult{meta: meta}
}

func failedOutcome(id string, terr *taskError) domain.Outcome {
	return domain.Outcome{
		ID:     id,
		Status: domain.StatusError,
		Error: &domain.Reason{
			Kind:    terr.kind,
			Message: terr.err.Error(),
		},
	}
}

func (e *Engine) observe(file *File, out domain.Outcome, elapsed time.Duration) {
	var kind domain.ErrorKind
	if out.Error != nil {
		kind = out.Error.Kind
		slog.Warn("transform failed",
			slog.String("transform_id", out.ID),
			slog.String("original_name", file.OriginalName),
			slog.String("kind", string(kind)),
			slog.String("error", out.Error.Message),
			slog.Duration("duration", elapsed),
		)
	} else {
		slog.Debug("transform uploaded",
			slog.String("transform_id", out.ID),
			slog.String("key", out.Key),
			slog.Duration("duration", elapsed),
		)
	}

	e.recorder.RecordOutcome(out.ID, out.Status, kind, elapsed)
}
