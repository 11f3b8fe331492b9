package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"potluck/internal/handler"
	"potluck/internal/logger"
	"potluck/internal/ratelimit"
	"potluck/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the ingestion scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	// 启动定时任务
	sched := scheduler.NewScheduler(a.ingest, a.cfg.Ingest.Schedule, a.log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// 初始化Gin
	gin.SetMode(a.cfg.Server.Mode)
	h := handler.NewHandler(handler.Options{
		Ingest:      a.ingest,
		Reader:      a.reader,
		Status:      a.status,
		Limiter:     ratelimit.New(a.cfg.Ingest.RateLimit.Window, a.cfg.Ingest.RateLimit.Max),
		APIKey:      a.cfg.Ingest.APIKey,
		CacheMaxAge: a.cfg.Reader.CacheMaxAge,
		Logger:      a.log,
	})
	h.SetScheduler(sched)

	// 注册路由
	r, err := handler.NewRouter(h, a.cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.GetServerAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
