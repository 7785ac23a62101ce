package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/you-humble/mediafanout/internal/transport"
)

const pruneInterval = 10 * time.Minute

type app struct {
	di  *dependencyInjector
	srv *http.Server
}

func New(ctx context.Context, cfgPath string) *app {
	di := newDI(cfgPath)
	di.Logger()
	mux := http.NewServeMux()
	return &app{
		di: di,
		srv: &http.Server{
			Addr: di.Config().Addr,
			Handler: transport.WithRecover(
				transport.LogMiddleware(
					di.Router(ctx).MountRoutes(mux),
				),
			),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (a *app) Run(ctx context.Context) error {
	defer a.di.Close()

	errCh := make(chan error, 2)
	go func() {
		slog.Info("starting server", slog.String("addr", a.srv.Addr))
		if e := a.srv.ListenAndServe(); e != nil && !errors.Is(e, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", e.Error()))
			errCh <- e
		}
	}()

	adminSrv := a.di.Admin()
	if addr := a.di.Config().GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("admin listen %s: %w", addr, err)
		}
		go func() {
			slog.Info("starting admin gRPC server", slog.String("addr", addr))
			if e := adminSrv.GRPC.Serve(lis); e != nil {
				slog.Error("admin server error", slog.String("error", e.Error()))
				errCh <- e
			}
		}()
	}
	adminSrv.SetServing(true)

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go a.pruneRecords(pruneCtx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	adminSrv.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		a.di.Config().ShutdownTimeout,
	)
	defer cancel()

	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
		return err
	}
	adminSrv.Shutdown()

	slog.Info("server gracefully stopped")
	return nil
}

// pruneRecords trims the record index while records are kept with a TTL.
func (a *app) pruneRecords(ctx context.Context) {
	store := a.di.RecordStore(ctx)
	if store == nil || a.di.Config().RecordTTL <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.Prune(ctx, now)
			if err != nil {
				slog.Warn("prune records", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				slog.Debug("pruned records", slog.Int64("count", n))
			}
		}
	}
}
