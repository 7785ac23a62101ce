package objectstore

import (
	"context"
	"fmt"
	"io"

	mio "github.com/you-humble/mediafanout/core/libs/minio"
	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/minio/minio-go/v7"
)

type minioStore struct {
	db       *minio.Client
	basePath string
	partSize uint64
}

// NewMinIOStore connects to MinIO and ensures cfg.Bucket exists. partSize is
// the multipart chunk size used for streams of unknown length.
func NewMinIOStore(ctx context.Context, cfg mio.Config, basePath string, partSize uint64) (*minioStore, error) {
	mioClient, err := mio.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &minioStore{
		db:       mioClient,
		basePath: normalizeBasePath(basePath),
		partSize: partSize,
	}, nil
}

func (s *minioStore) Put(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	meta domain.ObjectMeta,
) (domain.ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return domain.ObjectInfo{}, ctx.Err()
	default:
	}

	name, err := objectName(s.basePath, key)
	if err != nil {
		return domain.ObjectInfo{}, err
	}

	h := splitMeta(meta)
	info, err := s.db.PutObject(ctx, bucket, name, r, -1, minio.PutObjectOptions{
		ContentType:        h.ContentType,
		ContentEncoding:    h.ContentEncoding,
		ContentDisposition: h.ContentDisposition,
		ContentLanguage:    h.ContentLanguage,
		CacheControl:       h.CacheControl,
		UserMetadata:       h.User,
		PartSize:           s.partSize,
	})
	if err != nil {
		return domain.ObjectInfo{}, fmt.Errorf("put object: %w", err)
	}

	return domain.ObjectInfo{
		Bucket:    info.Bucket,
		Key:       info.Key,
		ETag:      info.ETag,
		VersionID: info.VersionID,
		Size:      info.Size,
	}, nil
}
