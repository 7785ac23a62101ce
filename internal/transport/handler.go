package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/you-humble/mediafanout/internal/domain"
	"github.com/you-humble/mediafanout/internal/engine"
	"github.com/you-humble/mediafanout/internal/usecase"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of a part is inspected when it declares no usable
// content type.
const sniffLen = 3072

type Usecase interface {
	engine.StorageEngine
	Complete(ctx context.Context, uploadID string, files []domain.FileRecord) error
	Upload(ctx context.Context, id string) (domain.UploadRecord, error)
}

type handler struct {
	maxUploadBytes int64
	usecase        Usecase
}

func NewHandler(maxUploadBytes int64, uc Usecase) *handler {
	return &handler{
		maxUploadBytes: maxUploadBytes,
		usecase:        uc,
	}
}

type handledFile struct {
	file   *engine.File
	result any
}

// upload streams a multipart body. Every file part is handed to the engine
// once, in order. When a later part fails the files handled so far are
// removed before the error response is written.
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	uploadID := uuid.NewString()
	logger := slog.With(
		slog.String("request_id", uploadID),
		slog.String("handler", "upload"),
		slog.String("remote_addr", r.RemoteAddr),
	)

	defer r.Body.Close()
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		logger.Warn("MultipartReader", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}

	var handled []handledFile
	fail := func(status int, msg string, err error) {
		logger.Warn(msg,
			slog.String("error", err.Error()),
			slog.Int("handled_files", len(handled)),
		)
		for _, hf := range handled {
			if rerr := h.usecase.RemoveFile(r, hf.file); rerr != nil {
				logger.Error("RemoveFile",
					slog.String("original_name", hf.file.OriginalName),
					slog.String("error", rerr.Error()),
				)
			}
		}
		writeError(w, status, msg)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			fail(statusFor(err), "unable to read multipart body", err)
			return
		}

		if part.FileName() == "" {
			_ = part.Close()
			continue
		}

		file, err := newFile(part)
		if err != nil {
			fail(statusFor(err), "unable to read file part", err)
			return
		}

		result, err := h.usecase.HandleFile(r, file)
		_ = part.Close()
		if err != nil {
			fail(http.StatusInternalServerError, "cannot handle file", err)
			return
		}
		handled = append(handled, handledFile{file: file, result: result})
	}

	if len(handled) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrNoFiles.Error())
		return
	}

	resp := domain.UploadResponse{ID: uploadID, Files: make([]any, 0, len(handled))}
	records := make([]domain.FileRecord, 0, len(handled))
	for _, hf := range handled {
		resp.Files = append(resp.Files, hf.result)
		records = append(records, usecase.FileRecord(hf.file, hf.result))
	}

	if err := h.usecase.Complete(context.WithoutCancel(r.Context()), uploadID, records); err != nil {
		logger.Error("Complete usecase", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) uploadStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("handler", "upload_status"),
		slog.String("upload_id", id),
	)

	if id == "" {
		writeError(w, http.StatusBadRequest, "missing ID")
		return
	}

	rec, err := h.usecase.Upload(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "upload not found")
			return
		}
		logger.Error("Upload usecase", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.HealthResponse{Status: "ok"})
}

// newFile wraps a file part. A missing or generic content type is replaced by
// one sniffed from the first bytes, which are then replayed ahead of the part.
func newFile(part *multipart.Part) (*engine.File, error) {
	file := &engine.File{
		FieldName:    part.FormName(),
		OriginalName: part.FileName(),
		MIMEType:     part.Header.Get("Content-Type"),
		Size:         -1,
		Stream:       part,
	}

	if file.MIMEType != "" && file.MIMEType != "application/octet-stream" {
		return file, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	head = head[:n]

	file.MIMEType = mimetype.Detect(head).String()
	file.Stream = io.MultiReader(bytes.NewReader(head), part)
	return file, nil
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	resp := domain.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", slog.String("error", err.Error()))
	}
}
