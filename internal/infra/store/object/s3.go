package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	s3cli "github.com/you-humble/mediafanout/core/libs/s3"
	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Store struct {
	api      s3API
	basePath string
}

func NewS3Store(ctx context.Context, cfg s3cli.Config, basePath string) (*s3Store, error) {
	client, err := s3cli.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newS3Store(client, basePath), nil
}

func newS3Store(api s3API, basePath string) *s3Store {
	return &s3Store{api: api, basePath: normalizeBasePath(basePath)}
}

// Put buffers r in memory: a plain PutObject needs the content length up front.
func (s *s3Store) Put(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	meta domain.ObjectMeta,
) (domain.ObjectInfo, error) {
	name, err := objectName(s.basePath, key)
	if err != nil {
		return domain.ObjectInfo{}, err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return domain.ObjectInfo{}, fmt.Errorf("read body: %w", err)
	}
	size := int64(buf.Len())

	h := splitMeta(meta)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(size),
		Metadata:      h.User,
	}
	if h.ContentType != "" {
		in.ContentType = aws.String(h.ContentType)
	}
	if h.ContentEncoding != "" {
		in.ContentEncoding = aws.String(h.ContentEncoding)
	}
	if h.ContentDisposition != "" {
		in.ContentDisposition = aws.String(h.ContentDisposition)
	}
	if h.ContentLanguage != "" {
		in.ContentLanguage = aws.String(h.ContentLanguage)
	}
	if h.CacheControl != "" {
		in.CacheControl = aws.String(h.CacheControl)
	}

	out, err := s.api.PutObject(ctx, in)
	if err != nil {
		return domain.ObjectInfo{}, fmt.Errorf("put object: %w", err)
	}

	return domain.ObjectInfo{
		Bucket:    bucket,
		Key:       name,
		ETag:      strings.Trim(aws.ToString(out.ETag), `"`),
		VersionID: aws.ToString(out.VersionId),
		Size:      size,
	}, nil
}
