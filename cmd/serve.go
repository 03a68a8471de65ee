package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geo-enrich/internal/api"
	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/model"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload/process/download HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		handler := buildHandler(env)
		port := resolvePort(servePort, cfg.Server.Port)

		g, gctx := errgroup.WithContext(ctx)
		if cfg.Monitoring.Enabled {
			checker := newChecker(env)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			return startServer(gctx, handler, port)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildHandler wires the HTTP shell to the pipeline. Each processed dataset is
// written back to its upload file.
func buildHandler(env *enrichEnv) http.Handler {
	enrich := func(ctx context.Context, path string, key config.Secret) (*model.RunSummary, error) {
		return env.enrichFile(ctx, path, newClient(env.cfg, key), runOptions{})
	}
	return api.New(env.cfg.Server, enrich, env.cfg.Geocoder.ResolveCredential).Handler()
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves until ctx is cancelled, then drains in-flight requests.
// Request contexts derive from ctx, so a running /process sees the
// cancellation, persists its progress and returns before the drain times out.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}
