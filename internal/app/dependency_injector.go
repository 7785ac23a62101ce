package app

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	mio "github.com/you-humble/mediafanout/core/libs/minio"
	natsq "github.com/you-humble/mediafanout/core/libs/nats"
	rediscli "github.com/you-humble/mediafanout/core/libs/redis"
	s3cli "github.com/you-humble/mediafanout/core/libs/s3"
	"github.com/you-humble/mediafanout/internal/admin"
	"github.com/you-humble/mediafanout/internal/engine"
	"github.com/you-humble/mediafanout/internal/infra/config"
	"github.com/you-humble/mediafanout/internal/infra/events"
	objectstore "github.com/you-humble/mediafanout/internal/infra/store/object"
	recordstore "github.com/you-humble/mediafanout/internal/infra/store/record"
	"github.com/you-humble/mediafanout/internal/metrics"
	"github.com/you-humble/mediafanout/internal/transport"
	"github.com/you-humble/mediafanout/internal/usecase"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type Router interface {
	MountRoutes(*http.ServeMux) *http.ServeMux
}

type recordPruner interface {
	usecase.RecordStore
	Prune(ctx context.Context, now time.Time) (int64, error)
}

type dependencyInjector struct {
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger

	registry *prometheus.Registry
	recorder *metrics.Recorder

	objectStore engine.ObjectStore
	engine      *engine.Engine

	redis       *redis.Client
	recordStore recordPruner

	natsConn *nats.Conn
	js       nats.JetStreamContext
	events   usecase.EventPublisher

	usecase transport.Usecase
	handler transport.Handler
	router  Router

	admin *admin.Server
}

func newDI(cfgPath string) *dependencyInjector {
	return &dependencyInjector{cfgPath: cfgPath}
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		di.cfg = config.MustLoad(di.cfgPath)
	}

	return di.cfg
}

func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		level := slog.LevelInfo
		if lvl := di.Config().LogLevel; lvl != "" {
			if err := level.UnmarshalText([]byte(strings.ToUpper(lvl))); err != nil {
				log.Fatalf("config: log_level: %v", err)
			}
		}

		di.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}

	slog.SetDefault(di.logger)
	return di.logger
}

// Registry is nil when metrics are disabled.
func (di *dependencyInjector) Registry() *prometheus.Registry {
	if di.registry == nil && di.Config().Metrics.Enabled {
		di.registry = metrics.NewRegistry()
	}
	return di.registry
}

func (di *dependencyInjector) Recorder() engine.Recorder {
	reg := di.Registry()
	if reg == nil {
		return nil
	}

	if di.recorder == nil {
		rec, err := metrics.NewRecorder(di.Config().Metrics.Namespace, reg)
		if err != nil {
			log.Fatalf("DI Recorder: %+v", err)
		}
		di.recorder = rec
	}
	return di.recorder
}

func (di *dependencyInjector) ObjectStore(ctx context.Context) engine.ObjectStore {
	if di.objectStore == nil {
		cfg := di.Config().Storage

		switch cfg.Driver {
		case config.DriverS3:
			store, err := objectstore.NewS3Store(ctx, s3cli.Config{
				Region:          cfg.S3.Region,
				Endpoint:        cfg.S3.Endpoint,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
				PathStyle:       cfg.S3.PathStyle,
			}, cfg.BasePath)
			if err != nil {
				log.Fatalf("ObjectStore s3: %+v", err)
			}
			di.objectStore = store
			di.Logger().Info("initialized S3 object store",
				slog.String("region", cfg.S3.Region),
				slog.String("bucket", cfg.Bucket),
			)

		default:
			store, err := objectstore.NewMinIOStore(ctx, mio.Config{
				Endpoint:        cfg.MinIO.Endpoint,
				AccessKeyID:     cfg.MinIO.AccessKeyID,
				SecretAccessKey: cfg.MinIO.SecretAccessKey,
				UseSSL:          cfg.MinIO.UseSSL,
				Region:          cfg.MinIO.Region,
				Bucket:          cfg.Bucket,
				Retry:           mio.RetryConfig{MaxRetries: cfg.MinIO.MaxRetries},
			}, cfg.BasePath, di.Config().PartSize())
			if err != nil {
				log.Fatalf("ObjectStore minio: %+v", err)
			}
			di.objectStore = store
			di.Logger().Info("initialized MinIO object store",
				slog.String("endpoint", cfg.MinIO.Endpoint),
				slog.String("bucket", cfg.Bucket),
			)
		}
	}

	return di.objectStore
}

func (di *dependencyInjector) Engine(ctx context.Context) *engine.Engine {
	if di.engine == nil {
		opts, err := di.Config().EngineOptions()
		if err != nil {
			log.Fatalf("config: %+v", err)
		}

		eng, err := engine.New(di.ObjectStore(ctx), opts, di.Recorder())
		if err != nil {
			log.Fatalf("DI Engine: %+v", err)
		}
		di.engine = eng
		di.Logger().Info("storage engine ready",
			slog.Int("transforms", len(opts.Transforms)),
			slog.Bool("with_meta", !opts.SkipMeta),
		)
	}

	return di.engine
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Redis
		client, err := rediscli.NewClient(ctx, rediscli.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("DI RedisClient: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

// RecordStore is nil when redis is not configured.
func (di *dependencyInjector) RecordStore(ctx context.Context) recordPruner {
	if di.recordStore == nil && di.Config().Redis.Addr != "" {
		di.recordStore = recordstore.NewRedisRecordStore(di.RedisClient(ctx), di.Config().RecordTTL)
	}
	return di.recordStore
}

func (di *dependencyInjector) NATSConn() *nats.Conn {
	if di.natsConn == nil {
		cfg := di.Config().NATS
		nc, err := natsq.NewConnect(cfg.URL, natsq.Config{
			Name:          "mediafanout",
			MaxReconnects: cfg.MaxReconnects,
		})
		if err != nil {
			log.Fatalf("NATS connect: %+v", err)
		}
		di.natsConn = nc
		di.Logger().Info("connected to NATS", slog.String("url", cfg.URL))
	}
	return di.natsConn
}

func (di *dependencyInjector) JetStream() nats.JetStreamContext {
	if di.js == nil {
		cfg := di.Config()
		streamCfg := &nats.StreamConfig{
			Name:     cfg.NATS.Stream,
			Subjects: []string{cfg.NATS.Subject},
			Storage:  nats.FileStorage,
			Replicas: 1,
		}
		if cfg.RecordTTL > 0 {
			streamCfg.MaxAge = cfg.RecordTTL
		}

		js, err := natsq.NewJetStream(di.NATSConn(), streamCfg)
		if err != nil {
			log.Fatalf("DI JetStream: %+v", err)
		}

		di.js = js
	}
	return di.js
}

// Events is nil when NATS is not configured.
func (di *dependencyInjector) Events() usecase.EventPublisher {
	if di.events == nil && di.Config().NATS.URL != "" {
		di.events = events.NewPublisher(di.JetStream(), di.Config().NATS.Subject)
	}
	return di.events
}

func (di *dependencyInjector) Usecase(ctx context.Context) transport.Usecase {
	if di.usecase == nil {
		di.usecase = usecase.New(di.Engine(ctx), di.RecordStore(ctx), di.Events())
	}

	return di.usecase
}

func (di *dependencyInjector) Handler(ctx context.Context) transport.Handler {
	if di.handler == nil {
		di.handler = transport.NewHandler(di.Config().MaxUploadBytes(), di.Usecase(ctx))
	}

	return di.handler
}

func (di *dependencyInjector) Router(ctx context.Context) Router {
	if di.router == nil {
		var metricsHandler http.Handler
		if reg := di.Registry(); reg != nil {
			metricsHandler = metrics.Handler(reg)
		}
		di.router = transport.NewRouter(di.Handler(ctx), metricsHandler)
	}

	return di.router
}

func (di *dependencyInjector) Admin() *admin.Server {
	if di.admin == nil {
		di.admin = admin.NewServer(di.Logger())
	}
	return di.admin
}

func (di *dependencyInjector) Close() {
	if di.natsConn != nil {
		if err := di.natsConn.Drain(); err != nil {
			di.Logger().Warn("NATS drain", slog.String("error", err.Error()))
		}
	}
	if di.redis != nil {
		if err := di.redis.Close(); err != nil {
			di.Logger().Warn("redis close", slog.String("error", err.Error()))
		}
	}
}
