package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/mediafanout/internal/domain"
	"github.com/you-humble/mediafanout/internal/engine"
	"github.com/you-humble/mediafanout/internal/pipeline"
	"github.com/you-humble/mediafanout/internal/usecase"
)

type fakeUsecase struct {
	handled   []*engine.File
	bodies    []string
	removed   []string
	completed []domain.FileRecord
	record    domain.UploadRecord
	getErr    error
}

func (f *fakeUsecase) HandleFile(_ *http.Request, file *engine.File) (any, error) {
	b, err := io.ReadAll(file.Stream)
	if err != nil {
		return nil, err
	}
	f.handled = append(f.handled, file)
	f.bodies = append(f.bodies, string(b))
	return engine.UploadedFile{OriginalName: file.OriginalName, MIMEType: file.MIMEType, Size: int64(len(b))}, nil
}

func (f *fakeUsecase) RemoveFile(_ *http.Request, file *engine.File) error {
	f.removed = append(f.removed, file.OriginalName)
	return nil
}

func (f *fakeUsecase) Complete(_ context.Context, _ string, files []domain.FileRecord) error {
	f.completed = files
	return nil
}

func (f *fakeUsecase) Upload(_ context.Context, id string) (domain.UploadRecord, error) {
	if f.getErr != nil {
		return domain.UploadRecord{}, f.getErr
	}
	if f.record.ID != id {
		return domain.UploadRecord{}, domain.ErrRecordNotFound
	}
	return f.record, nil
}

func newMux(uc Usecase, maxBytes int64) *http.ServeMux {
	return NewRouter(NewHandler(maxBytes, uc), nil).MountRoutes(http.NewServeMux())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

type part struct {
	field, name, contentType string
	body                     []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.name == "" {
			require.NoError(t, mw.WriteField(p.field, string(p.body)))
			continue
		}
		if p.contentType == "" {
			w, err := mw.CreateFormFile(p.field, p.name)
			require.NoError(t, err)
			_, err = w.Write(p.body)
			require.NoError(t, err)
			continue
		}
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.name)}
		h["Content-Type"] = []string{p.contentType}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	uc := &fakeUsecase{}
	body, ct := multipartBody(t,
		part{field: "note", body: []byte("ignored")},
		part{field: "doc", name: "a.txt", contentType: "text/plain", body: []byte("hello")},
		part{field: "photo", name: "b.png", body: pngBytes(t)},
	)

	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	newMux(uc, 1<<20).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		ID    string                `json:"id"`
		Files []engine.UploadedFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "a.txt", resp.Files[0].OriginalName)
	assert.Equal(t, "b.png", resp.Files[1].OriginalName)

	require.Len(t, uc.handled, 2)
	assert.Equal(t, "text/plain", uc.handled[0].MIMEType)
	assert.Equal(t, "doc", uc.handled[0].FieldName)
	assert.Equal(t, "image/png", uc.handled[1].MIMEType, "sniffed from content")
	assert.Equal(t, "hello", uc.bodies[0])
	assert.Equal(t, string(pngBytes(t)), uc.bodies[1], "sniffed bytes are replayed")

	assert.Len(t, uc.completed, 2)
	assert.Empty(t, uc.removed)
}

func TestUpload_NoFiles(t *testing.T) {
	uc := &fakeUsecase{}
	body, ct := multipartBody(t, part{field: "note", body: []byte("x")})

	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	newMux(uc, 0).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, uc.completed)
}

func TestUpload_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newMux(&fakeUsecase{}, 0).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Bad Request", resp.Error)
}

func TestUpload_BrokenPartRemovesHandledFiles(t *testing.T) {
	const boundary = "XBOUNDARY"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"a\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"first\r\n" +
		"--" + boundary + "\r\n" +
		"malformed header line\r\n\r\n" +
		"second\r\n" +
		"--" + boundary + "--\r\n"

	uc := &fakeUsecase{}
	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	rr := httptest.NewRecorder()
	newMux(uc, 0).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"first"}, uc.bodies)
	assert.Equal(t, []string{"a.txt"}, uc.removed)
	assert.Nil(t, uc.completed)
}

func TestStatusFor(t *testing.T) {
	tooLarge := fmt.Errorf("multipart: %w", &http.MaxBytesError{Limit: 10})
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(tooLarge))
	assert.Equal(t, http.StatusBadRequest, statusFor(errors.New("bad")))
}

func TestUploadStatus(t *testing.T) {
	uc := &fakeUsecase{record: domain.UploadRecord{ID: "u1", Succeeded: 2}}
	mux := newMux(uc, 0)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/uploads/u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var rec domain.UploadRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, 2, rec.Succeeded)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/uploads/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	uc.getErr = errors.New("redis down")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/uploads/u1", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHealthzAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})
	mux := NewRouter(NewHandler(0, &fakeUsecase{}), metrics).MountRoutes(http.NewServeMux())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metrics", rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/uploads", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	LogMiddleware(WithRecover(panicky)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	teapot := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr = httptest.NewRecorder()
	LogMiddleware(teapot).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, bucket, key string, r io.Reader, _ domain.ObjectMeta) (domain.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.ObjectInfo{}, err
	}
	s.mu.Lock()
	s.objects[key] = b
	s.mu.Unlock()
	return domain.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(b))}, nil
}

type failingPipeline struct{}

func (failingPipeline) Run(context.Context, io.Reader, io.Writer, bool) (*domain.MediaMeta, error) {
	return nil, errors.New("unsupported input")
}

func TestUpload_WithEngine(t *testing.T) {
	store := &memStore{objects: make(map[string][]byte)}
	originalKey, err := engine.KeyTemplate("original/{name}{ext}")
	require.NoError(t, err)

	eng, err := engine.New(store, engine.Options{
		Bucket: "media",
		Transforms: []engine.Transform{
			{ID: "original", Pipeline: pipeline.Passthrough{}, Key: originalKey},
			{ID: "broken", Pipeline: failingPipeline{}},
		},
	}, nil)
	require.NoError(t, err)

	body, ct := multipartBody(t, part{field: "doc", name: "notes.txt", contentType: "text/plain", body: []byte("content")})
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	newMux(usecase.New(eng, nil, nil), 1<<20).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Files []engine.UploadedFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)

	outcomes := resp.Files[0].Transforms
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, "original/notes.txt", outcomes[0].Key)
	assert.Equal(t, domain.StatusError, outcomes[1].Status)
	assert.Equal(t, domain.KindTransform, outcomes[1].Error.Kind)
	assert.Empty(t, outcomes[1].Key)

	assert.Equal(t, []byte("content"), store.objects["original/notes.txt"])
	assert.Len(t, store.objects, 1)
}

type removalTracker struct {
	Usecase
	removed []string
}

func (u *removalTracker) RemoveFile(r *http.Request, file *engine.File) error {
	u.removed = append(u.removed, file.OriginalName)
	return u.Usecase.RemoveFile(r, file)
}

func TestUpload_WithEngine_BodyTooLarge(t *testing.T) {
	store := &memStore{objects: make(map[string][]byte)}
	eng, err := engine.New(store, engine.Options{
		Bucket:     "media",
		Transforms: []engine.Transform{{ID: "original", Pipeline: pipeline.Passthrough{}}},
	}, nil)
	require.NoError(t, err)
	uc := &removalTracker{Usecase: usecase.New(eng, nil, nil)}

	body, ct := multipartBody(t, part{
		field:       "doc",
		name:        "big.bin",
		contentType: "application/x-test",
		body:        bytes.Repeat([]byte("x"), 4<<10),
	})
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	newMux(uc, 1024).ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())

	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusText(http.StatusRequestEntityTooLarge), resp.Error)

	assert.Equal(t, []string{"big.bin"}, uc.removed)
	assert.Empty(t, store.objects)
}
