package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ats-radar/internal/api"
	"ats-radar/internal/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// serveShutdownTimeout 是 serve 收到退出信号后等待请求结束的时间。
const serveShutdownTimeout = 5 * time.Second

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type daemon interface {
	Start(ctx context.Context) error
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the jobs API and run scheduled syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			deps, cleanup, err := opts.build(cmd.Context(), cfg, buildOptions{})
			defer cleanup()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           api.NewHandler(deps.store, deps.sched),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serverLog := logger.Component("server")
			serverLog.Info().Str("addr", cfg.Server.Addr).Msg("listening")
			return runServer(cmd.Context(), srv, deps.sched, serveShutdownTimeout)
		},
	}
}

// runServer 同时运行 HTTP 服务与调度器，ctx 取消时优雅关闭。
func runServer(ctx context.Context, srv httpServer, sched daemon, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
