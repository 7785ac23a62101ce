// Package objectstore persists transform outputs in S3-compatible storage.
package objectstore

import (
	"fmt"
	"net/textproto"
	"path"
	"strings"

	"github.com/you-humble/mediafanout/internal/domain"
)

const userMetaPrefix = "X-Amz-Meta-"

// headers is ObjectMeta split into the standard object headers and user
// metadata.
type headers struct {
	ContentType        string
	ContentEncoding    string
	ContentDisposition string
	ContentLanguage    string
	CacheControl       string
	User               map[string]string
}

func splitMeta(meta domain.ObjectMeta) headers {
	h := headers{User: make(map[string]string)}
	for k, v := range meta {
		switch ck := textproto.CanonicalMIMEHeaderKey(k); ck {
		case "Content-Type":
			h.ContentType = v
		case "Content-Encoding":
			h.ContentEncoding = v
		case "Content-Disposition":
			h.ContentDisposition = v
		case "Content-Language":
			h.ContentLanguage = v
		case "Cache-Control":
			h.CacheControl = v
		default:
			h.User[strings.TrimPrefix(ck, userMetaPrefix)] = v
		}
	}
	return h
}

func normalizeBasePath(basePath string) string {
	basePath = strings.Trim(basePath, "/")
	if basePath != "" {
		basePath += "/"
	}
	return basePath
}

func objectName(basePath, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty object key")
	}

	clean := path.Clean(key)
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key: %s", key)
	}

	return basePath + strings.TrimLeft(clean, "/"), nil
}
