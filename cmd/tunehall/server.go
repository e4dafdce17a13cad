package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"tunehall/internal/http/middleware"
	"tunehall/internal/httpapi"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			if cfg.Engine.SeedDemo {
				if err := seedDemoCatalog(ctx, rt); err != nil {
					return err
				}
			}

			server := &http.Server{
				Addr:              cfg.Server.Addr(),
				Handler:           newHTTPHandler(rt),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Zerolog().Info().Str("addr", server.Addr).Msg("API listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				logger.Error(err, "server failed")
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
}

// newHTTPHandler mounts the API behind the middleware chain. /metrics and
// /health stay reachable without a token.
func newHTTPHandler(rt *runtime) http.Handler {
	entitySvcs := make([]httpapi.EntityService, 0, len(rt.entities))
	for _, svc := range rt.entities {
		entitySvcs = append(entitySvcs, svc)
	}

	router := httpapi.New(entitySvcs, rt.playlists, rt.favorites).Routes()
	router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	var auth *middleware.Authenticator
	if rt.cfg.Security.JWTSecret != "" {
		auth = middleware.NewAuthenticator(rt.cfg.Security.JWTSecret, rt.cfg.Security.JWTIssuer)
	}

	router.Use(
		middleware.Instrument(rt.metrics),
		mux.MiddlewareFunc(middleware.RequireToken(auth)),
	)

	var handler http.Handler = router
	handler = middleware.CORS(rt.cfg.CORS.AllowedOrigins)(handler)
	handler = middleware.Recovery(rt.logger)(handler)
	handler = middleware.RequestLogging(rt.logger)(handler)
	return handler
}
