package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/mediafanout/internal/engine"
	"github.com/you-humble/mediafanout/internal/pipeline"
)

const sample = `
addr: ":9000"
task_timeout: 30s
key: "{field}/{ts}{ext}"
object_meta:
  x-amz-meta-source: upload
storage:
  bucket: media
  minio:
    endpoint: localhost:9000
transforms:
  - id: original
    passthrough: true
  - id: thumb
    key: "thumb/{name}.jpg"
    format: jpeg
    quality: 80
    object_meta:
      Cache-Control: max-age=3600
    steps:
      - op: fit
        width: 64
        height: 64
      - op: grayscale
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.TaskTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())
	assert.Equal(t, uint64(16<<20), cfg.PartSize())
	assert.Equal(t, DriverMinIO, cfg.Storage.Driver)
	require.NotNil(t, cfg.WithMeta)
	assert.True(t, *cfg.WithMeta)
	require.Len(t, cfg.Transforms, 2)
	assert.Equal(t, "fit", cfg.Transforms[1].Steps[0].Op)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "no bucket", yaml: "storage: {minio: {endpoint: x}}"},
		{name: "no minio endpoint", yaml: "storage: {bucket: b}"},
		{name: "s3 without region", yaml: "storage: {bucket: b, driver: s3}"},
		{name: "unknown driver", yaml: "storage: {bucket: b, driver: gcs}"},
		{name: "negative timeout", yaml: "task_timeout: -1s\nstorage: {bucket: b, minio: {endpoint: x}}"},
		{name: "nats without subject", yaml: "nats: {url: nats://x}\nstorage: {bucket: b, minio: {endpoint: x}}"},
		{name: "bad yaml", yaml: "storage: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "media", cfg.Storage.Bucket)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)

	assert.Equal(t, "media", opts.Bucket)
	assert.False(t, opts.SkipMeta)
	assert.Equal(t, 30*time.Second, opts.TaskTimeout)
	require.Len(t, opts.Transforms, 2)

	original, thumb := &opts.Transforms[0], &opts.Transforms[1]
	assert.Equal(t, "original", original.ID)
	assert.IsType(t, pipeline.Passthrough{}, original.Pipeline)
	assert.Nil(t, original.Key)
	assert.Nil(t, original.ObjectMeta)

	f := &engine.File{FieldName: "photo", OriginalName: "cat.png", MIMEType: "image/png"}
	r := &http.Request{}

	key, err := thumb.Key(r, f, thumb)
	require.NoError(t, err)
	assert.Equal(t, "thumb/cat.jpg", key)

	meta, err := thumb.ObjectMeta(r, f, thumb)
	require.NoError(t, err)
	assert.Equal(t, "max-age=3600", meta["Cache-Control"])
	assert.Equal(t, "image/jpeg", meta["Content-Type"])

	meta, err = opts.ObjectMeta(r, f, original)
	require.NoError(t, err)
	assert.Equal(t, "upload", meta["x-amz-meta-source"])
	assert.Equal(t, "image/png", meta["Content-Type"])

	require.NotNil(t, opts.Key)
	key, err = opts.Key(r, f, original)
	require.NoError(t, err)
	assert.Regexp(t, `^photo/\d+\.png$`, key)
}

func TestEngineOptions_WithMetaOff(t *testing.T) {
	cfg, err := Parse([]byte("with_meta: false\nstorage: {bucket: b, minio: {endpoint: x}}"))
	require.NoError(t, err)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.True(t, opts.SkipMeta)
	assert.Empty(t, opts.Transforms)
	assert.Nil(t, opts.Key)
}

func TestEngineOptions_BadTransform(t *testing.T) {
	tests := []struct {
		name string
		t    Transform
	}{
		{name: "no id", t: Transform{Passthrough: true}},
		{name: "unknown op", t: Transform{ID: "x", Steps: []Step{{Op: "explode"}}}},
		{name: "bad format", t: Transform{ID: "x", Format: "bmp2"}},
		{name: "blank key", t: Transform{ID: "x", Passthrough: true, Key: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Transforms: []Transform{tt.t}}
			_, err := cfg.EngineOptions()
			require.Error(t, err)
		})
	}
}
