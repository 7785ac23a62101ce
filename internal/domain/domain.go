package domain

import (
	"errors"
	"time"
)

type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusError   OutcomeStatus = "error"
)

type ErrorKind string

const (
	KindKey        ErrorKind = "key"
	KindObjectMeta ErrorKind = "object_meta"
	KindTransform  ErrorKind = "transform"
	KindUpload     ErrorKind = "upload"
	KindInternal   ErrorKind = "internal"
)

// ObjectMeta is the storage-layer metadata attached to an uploaded object.
// The "Content-Type" entry, when present, becomes the object's content type.
type ObjectMeta map[string]string

type ObjectInfo struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ETag      string `json:"etag,omitempty"`
	VersionID string `json:"version_id,omitempty"`
	Size      int64  `json:"size"`
}

// MediaMeta describes the output of a transformation pipeline.
type MediaMeta struct {
	Format      string `json:"format,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Size        int64  `json:"size"`
}

type Reason struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Outcome is the result of one transform within one upload.
// Key, Object and Meta are set only on success, Error only on failure.
type Outcome struct {
	ID     string        `json:"id"`
	Status OutcomeStatus `json:"status"`
	Key    string        `json:"key,omitempty"`

	Object *ObjectInfo `json:"object,omitempty"`
	Meta   *MediaMeta  `json:"meta,omitempty"`
	Error  *Reason     `json:"error,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// FileRecord summarizes one handled file of an upload.
type FileRecord struct {
	FieldName    string `json:"field_name"`
	OriginalName string `json:"original_name"`
	MIMEType     string `json:"mime_type"`
	Size         int64  `json:"size"`

	Transforms []Outcome `json:"transforms"`
}

// UploadRecord is what is kept about one upload request after it completed.
type UploadRecord struct {
	ID    string       `json:"id"`
	Files []FileRecord `json:"files"`

	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

type UploadEvent struct {
	UploadID    string       `json:"upload_id"`
	Files       []FileRecord `json:"files"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	CompletedAt time.Time    `json:"completed_at"`
}

type UploadResponse struct {
	ID    string `json:"id"`
	Files []any  `json:"files"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	ErrRecordNotFound = errors.New("upload record not found")
	ErrNoFiles        = errors.New("no files in request")
)

// Tally counts succeeded and failed outcomes.
func Tally(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// TallyFiles counts outcomes across every file.
func TallyFiles(files []FileRecord) (succeeded, failed int) {
	for _, f := range files {
		ok, bad := Tally(f.Transforms)
		succeeded += ok
		failed += bad
	}
	return succeeded, failed
}
