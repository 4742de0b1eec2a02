package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reposynth/reposynth/artifactcache"
	"github.com/reposynth/reposynth/composite"
	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/gateway"
	"github.com/reposynth/reposynth/internal/dcontext"
	"github.com/reposynth/reposynth/internal/notifications"
	"github.com/reposynth/reposynth/internal/uuid"
	"github.com/reposynth/reposynth/metrics"
	"github.com/reposynth/reposynth/rerror"
)

func serveCmd() *cobra.Command {
	var dumpConfig bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the repository composition gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config-path")

			cfg, err := configuration.Load(configPath)
			if err != nil {
				return err
			}

			if dumpConfig {
				fmt.Print(cfg.String())
				return nil
			}

			return serve(cfg)
		},
	}

	cmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "print the resolved configuration instead of serving")

	return cmd
}

func serve(cfg *configuration.Configuration) error {
	configureLogging(cfg.Log)

	instanceID := uuid.NewString()
	baseCtx := dcontext.WithFields(context.Background(), logrus.Fields{"instance-id": instanceID})

	bus := notifications.NewBus()
	bus.Register(metrics.Sink{})

	artifacts := artifactcache.New(cfg, bus)
	composites := composite.New(cfg, artifacts, bus)
	handler := gateway.New(cfg, artifacts, composites)

	wrapped := handlers.CombinedLoggingHandler(os.Stdout, handler)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	log := dcontext.GetLogger(baseCtx)
	log.WithField("addr", cfg.ListenAddr).Info("listening")

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: wrapped,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}

	if err := server.ListenAndServe(); err != nil {
		return rerror.AddressBind(err, cfg.ListenAddr)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		dcontext.GetLogger(context.Background()).WithError(err).Error("metrics listener failed")
	}
}

func configureLogging(cfg configuration.Log) {
	logger := logrus.StandardLogger()

	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err == nil {
			logger.SetLevel(level)
		}
	}

	if cfg.Formatter == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	dcontext.SetDefaultLogger(logger)
}
