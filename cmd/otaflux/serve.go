// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otaflux/otaflux/internal/api"
	"github.com/otaflux/otaflux/internal/cache"
	"github.com/otaflux/otaflux/internal/config"
	"github.com/otaflux/otaflux/internal/manager"
	"github.com/otaflux/otaflux/internal/metrics"
	"github.com/otaflux/otaflux/internal/notifier"
	"github.com/otaflux/otaflux/internal/registry"
	"github.com/otaflux/otaflux/internal/sign"
	"github.com/otaflux/otaflux/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

var serveOpts config.Options

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OtaFlux HTTP and metrics servers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveOpts.BindFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := serveOpts.ApplyEnvOverrides(cmd.Flags()); err != nil {
		return err
	}
	if err := serveOpts.Validate(); err != nil {
		return err
	}

	log, err := config.NewLogger(serveOpts.LogLevel)
	if err != nil {
		return err
	}

	gateway := registry.NewGateway(registry.Options{
		Host:             serveOpts.RegistryURL,
		RepositoryPrefix: serveOpts.RepositoryPrefix,
		Username:         serveOpts.RegistryUsername,
		Password:         serveOpts.RegistryPassword,
		Insecure:         serveOpts.RegistryInsecure,
	})

	verifier, err := sign.NewVerifier(serveOpts.CosignPubKeyPath)
	if err != nil {
		return err
	}

	firmwareCache, err := cache.New(serveOpts.CacheSize)
	if err != nil {
		return err
	}

	mqttNotifier, err := notifier.New(notifier.Options{
		BrokerURL:        serveOpts.MQTTURL,
		Username:         serveOpts.MQTTUsername,
		Password:         serveOpts.MQTTPassword,
		BaseTopic:        serveOpts.MQTTTopic,
		RepositoryPrefix: serveOpts.RepositoryPrefix,
		CACertPath:       serveOpts.MQTTCACertPath,
		ClientCertPath:   serveOpts.MQTTClientCertPath,
		ClientKeyPath:    serveOpts.MQTTClientKeyPath,
	}, log)
	if err != nil {
		return err
	}
	defer mqttNotifier.Close()

	fwManager := manager.New(gateway, verifier, firmwareCache, mqttNotifier, log)
	webhookHandler := webhook.New(fwManager, log)

	promRegistry := prometheus.NewRegistry()
	metrics.MustRegister(promRegistry)

	deviceServer := &http.Server{
		Addr:    serveOpts.ListenAddr,
		Handler: api.NewDeviceMux(fwManager, webhookHandler, log),
	}
	metricsServer := &http.Server{
		Addr:    serveOpts.MetricsListenAddr,
		Handler: api.NewMetricsMux(promRegistry),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		log.Info("device server listening", "addr", serveOpts.ListenAddr)
		if err := deviceServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("device server: %w", err)
		}
	}()
	go func() {
		log.Info("metrics server listening", "addr", serveOpts.MetricsListenAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errs:
		log.Error(err, "server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = deviceServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	return nil
}
