package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMinIO = "minio"
	DriverS3    = "s3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`

	MaxUploadBytesMb int64         `yaml:"max_upload_mb"`
	WithMeta         *bool         `yaml:"with_meta"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`

	// Key and ObjectMeta apply to transforms that set neither.
	Key        string            `yaml:"key"`
	ObjectMeta map[string]string `yaml:"object_meta"`

	RecordTTL time.Duration `yaml:"record_ttl"`

	Storage    Storage     `yaml:"storage"`
	Redis      Redis       `yaml:"redis"`
	NATS       NATS        `yaml:"nats"`
	Metrics    Metrics     `yaml:"metrics"`
	Transforms []Transform `yaml:"transforms"`
}

type Storage struct {
	Driver     string `yaml:"driver"`
	Bucket     string `yaml:"bucket"`
	BasePath   string `yaml:"base_path"`
	PartSizeMb uint64 `yaml:"part_size_mb"`

	MinIO MinIO `yaml:"minio"`
	S3    S3    `yaml:"s3"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Region          string `yaml:"region"`
	MaxRetries      int    `yaml:"max_retries"`
}

type S3 struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// Redis and NATS are optional: an empty addr or url disables upload records
// and completion events respectively.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATS struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	Subject       string `yaml:"subject"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type Transform struct {
	ID          string            `yaml:"id"`
	Key         string            `yaml:"key"`
	ObjectMeta  map[string]string `yaml:"object_meta"`
	Passthrough bool              `yaml:"passthrough"`
	Format      string            `yaml:"format"`
	Quality     int               `yaml:"quality"`
	Steps       []Step            `yaml:"steps"`
}

type Step struct {
	Op     string  `yaml:"op"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Sigma  float64 `yaml:"sigma"`
	Angle  float64 `yaml:"angle"`
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %q: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is empty")
	}

	switch c.Storage.Driver {
	case "", DriverMinIO:
		if c.Storage.MinIO.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is empty")
		}
	case DriverS3:
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is empty")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of %q, %q", c.Storage.Driver, DriverMinIO, DriverS3)
	}

	if c.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout must not be negative, got %s", c.TaskTimeout)
	}
	if c.RecordTTL < 0 {
		return fmt.Errorf("record_ttl must not be negative, got %s", c.RecordTTL)
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is empty")
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxUploadBytesMb <= 0 {
		c.MaxUploadBytesMb = 50
	}
	if c.WithMeta == nil {
		on := true
		c.WithMeta = &on
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMinIO
	}
	if c.Storage.PartSizeMb == 0 {
		c.Storage.PartSizeMb = 16
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = "UPLOADS"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "mediafanout"
	}
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadBytesMb << 20
}

func (c *Config) PartSize() uint64 {
	return c.Storage.PartSizeMb << 20
}
