package engine

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/you-humble/mediafanout/internal/domain"
	"github.com/you-humble/mediafanout/internal/pipeline"

	"github.com/google/uuid"
)

// File is the read-only view of one uploaded file. Size is -1 when unknown.
type File struct {
	FieldName    string
	OriginalName string
	MIMEType     string
	Size         int64

	Stream io.Reader
}

type KeyFunc func(r *http.Request, file *File, t *Transform) (string, error)

type MetaFunc func(r *http.Request, file *File, t *Transform) (domain.ObjectMeta, error)

// Transform describes one desired output of an upload.
//
// IDs are not checked for uniqueness. Outcomes stay positionally aligned with
// the transform list, so duplicated IDs only make correlation by ID ambiguous.
type Transform struct {
	ID       string
	Pipeline pipeline.Pipeline

	// Key and ObjectMeta override the engine-level functions for this transform.
	Key        KeyFunc
	ObjectMeta MetaFunc
}

var now = time.Now

// DefaultKey names an object "<unix-millis><ext>" after the upload time and
// the original file's extension.
func DefaultKey(_ *http.Request, file *File, _ *Transform) (string, error) {
	return strconv.FormatInt(now().UnixMilli(), 10) + extension(file.OriginalName), nil
}

// extension is the suffix from the last dot of the base name. Leading dots do
// not start one, so ".env" has none while ".env.local" has ".local".
func extension(name string) string {
	return path.Ext(strings.TrimLeft(path.Base(name), "."))
}

// DefaultObjectMeta yields an empty metadata map.
func DefaultObjectMeta(_ *http.Request, _ *File, _ *Transform) (domain.ObjectMeta, error) {
	return domain.ObjectMeta{}, nil
}

// resolveKeyFunc picks the transform's own function, then the engine-level
// one, then DefaultKey.
func resolveKeyFunc(t *Transform, engineLevel KeyFunc) KeyFunc {
	switch {
	case t.Key != nil:
		return t.Key
	case engineLevel != nil:
		return engineLevel
	default:
		return DefaultKey
	}
}

// resolveMetaFunc uses the same precedence as resolveKeyFunc.
func resolveMetaFunc(t *Transform, engineLevel MetaFunc) MetaFunc {
	switch {
	case t.ObjectMeta != nil:
		return t.ObjectMeta
	case engineLevel != nil:
		return engineLevel
	default:
		return DefaultObjectMeta
	}
}

// KeyTemplate builds a KeyFunc from a pattern. Supported placeholders:
// {id} transform id, {ext} original extension with dot, {name} original base
// name without extension, {field} form field, {ts} unix millis, {uuid} random uuid.
func KeyTemplate(pattern string) (KeyFunc, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty key template")
	}

	return func(_ *http.Request, file *File, t *Transform) (string, error) {
		ext := extension(file.OriginalName)
		base := path.Base(file.OriginalName)
		if file.OriginalName == "" {
			base = ""
		}

		key := strings.NewReplacer(
			"{id}", t.ID,
			"{ext}", ext,
			"{name}", strings.TrimSuffix(base, ext),
			"{field}", file.FieldName,
			"{ts}", strconv.FormatInt(now().UnixMilli(), 10),
			"{uuid}", uuid.NewString(),
		).Replace(pattern)

		if strings.TrimSpace(key) == "" {
			return "", fmt.Errorf("key template %q produced an empty key", pattern)
		}
		return key, nil
	}, nil
}

// StaticMeta always returns a copy of m.
func StaticMeta(m map[string]string) MetaFunc {
	return func(_ *http.Request, _ *File, _ *Transform) (domain.ObjectMeta, error) {
		return maps.Clone(domain.ObjectMeta(m)), nil
	}
}

// WithContentType wraps next and fills in "Content-Type" when next left it
// out: the pipeline's declared output type first, else the file's MIME type.
func WithContentType(next MetaFunc) MetaFunc {
	if next == nil {
		next = DefaultObjectMeta
	}

	return func(r *http.Request, file *File, t *Transform) (domain.ObjectMeta, error) {
		meta, err := next(r, file, t)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			meta = domain.ObjectMeta{}
		}
		if _, ok := meta["Content-Type"]; ok {
			return meta, nil
		}

		if ct, ok := t.Pipeline.(pipeline.ContentTyper); ok && ct.ContentType() != "" {
			meta["Content-Type"] = ct.ContentType()
		} else if file.MIMEType != "" {
			meta["Content-Type"] = file.MIMEType
		}
		return meta, nil
	}
}
