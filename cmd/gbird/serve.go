package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/gbird/internal/app"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console server",
		Long:  "Serve the console UI, REST API and websocket, and run the recording controller until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.BindAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					log.WithError(err).Warn("cleanup failed")
				}
			}()
			log.WithFields(logrus.Fields{
				"stt":        res.Providers.STTDetail,
				"completion": res.Providers.Completion,
				"tts":        res.Providers.TTSDetail,
				"snapshot":   cfg.SnapshotBackend,
			}).Info("providers resolved")

			httpServer := &http.Server{
				Addr:              cfg.BindAddr,
				Handler:           res.API.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return res.Orchestrator.Run(gctx)
			})
			g.Go(func() error {
				log.WithField("addr", cfg.BindAddr).Info("server listening")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					log.WithError(err).Warn("graceful shutdown failed")
					_ = httpServer.Close()
				}
				return nil
			})

			err = g.Wait()
			log.Info("shutdown complete")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides APP_BIND_ADDR)")
	return cmd
}
