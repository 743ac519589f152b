package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/api"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification HTTP API.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen-addr", ":8080", "HTTP listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	s, err := buildStack(ctx, rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer s.close()

	if !rt.cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := api.NewRateLimiter(rt.cfg.ClientRate, rt.cfg.ClientWindow)
	defer limiter.Stop()

	router := api.NewRouter(s.orchestrator, api.Options{
		CORSOrigins: rt.cfg.CORSOrigins,
		JWTSecret:   rt.cfg.JWTSecret,
		Limiter:     limiter,
		Checks:      s.registry.Describe(),
		Logger:      rt.log.Named("http"),
	})
	httpSrv := &http.Server{
		Addr:              rt.cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	rt.log.Info("verifier listening", zap.String("addr", rt.cfg.ListenAddr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
