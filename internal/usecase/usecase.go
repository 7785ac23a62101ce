package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/you-humble/mediafanout/internal/domain"
	"github.com/you-humble/mediafanout/internal/engine"
)

type RecordStore interface {
	Save(ctx context.Context, rec domain.UploadRecord) error
	Get(ctx context.Context, id string) (domain.UploadRecord, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.UploadEvent) error
}

// recorder is implemented by generator results that can describe themselves
// as a FileRecord, such as engine.UploadedFile.
type recorder interface {
	Record() domain.FileRecord
}

type usecase struct {
	engine  engine.StorageEngine
	records RecordStore
	events  EventPublisher
}

// New wires the storage engine with the optional record store and event
// publisher; either may be nil.
func New(eng engine.StorageEngine, records RecordStore, events EventPublisher) *usecase {
	return &usecase{engine: eng, records: records, events: events}
}

func (uc *usecase) HandleFile(r *http.Request, file *engine.File) (any, error) {
	return uc.engine.HandleFile(r, file)
}

func (uc *usecase) RemoveFile(r *http.Request, file *engine.File) error {
	return uc.engine.RemoveFile(r, file)
}

// Complete records a finished upload and announces it. Both steps are
// attempted and their errors joined; logging them is left to the caller.
func (uc *usecase) Complete(ctx context.Context, uploadID string, files []domain.FileRecord) error {
	ok, failed := domain.TallyFiles(files)
	now := time.Now()

	var errs []error
	if uc.records != nil {
		err := uc.records.Save(ctx, domain.UploadRecord{
			ID:        uploadID,
			Files:     files,
			Succeeded: ok,
			Failed:    failed,
			CreatedAt: now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("save record: %w", err))
		}
	}

	if uc.events != nil {
		err := uc.events.Publish(ctx, domain.UploadEvent{
			UploadID:    uploadID,
			Files:       files,
			Succeeded:   ok,
			Failed:      failed,
			CompletedAt: now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("publish event: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (uc *usecase) Upload(ctx context.Context, id string) (domain.UploadRecord, error) {
	if uc.records == nil {
		return domain.UploadRecord{}, domain.ErrRecordNotFound
	}
	return uc.records.Get(ctx, id)
}

// FileRecord describes one handled file. Results that cannot describe
// themselves yield a record without outcomes.
func FileRecord(file *engine.File, result any) domain.FileRecord {
	if rec, ok := result.(recorder); ok {
		return rec.Record()
	}
	return domain.FileRecord{
		FieldName:    file.FieldName,
		OriginalName: file.OriginalName,
		MIMEType:     file.MIMEType,
		Size:         file.Size,
	}
}
