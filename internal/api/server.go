// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package api implements the device-facing HTTP adapter and the separate
// Prometheus /metrics server, using net/http directly (Go 1.22+
// http.ServeMux method+path patterns) since the teacher never reaches
// for a router dependency either.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otaflux/otaflux/internal/firmware"
	"github.com/otaflux/otaflux/internal/metrics"
)

// Resolver is the subset of internal/manager.Manager the device-facing
// surface depends on.
type Resolver interface {
	Resolve(ctx context.Context, device firmware.DeviceId) (*firmware.Entry, error)
}

// WebhookHandler is the subset of internal/webhook.Handler the ingress
// route depends on.
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte) (ok bool)
}

// NewDeviceMux builds the device-facing HTTP surface from spec.md §6:
// /health, /version, /firmware, and /webhooks/harbor.
func NewDeviceMux(resolver Resolver, webhook WebhookHandler, log logr.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		handleDevice(w, r, resolver, log, func(w http.ResponseWriter, entry *firmware.Entry) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "%s\n%d\n%d\n", entry.Version.String(), entry.CRC32, entry.Size)
		})
	})

	mux.HandleFunc("GET /firmware", func(w http.ResponseWriter, r *http.Request) {
		handleDevice(w, r, resolver, log, func(w http.ResponseWriter, entry *firmware.Entry) {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(entry.Binary)
		})
	})

	mux.HandleFunc("POST /webhooks/harbor", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			metrics.HTTPRequests.WithLabelValues("webhooks/harbor", "400").Inc()
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if ok := webhook.Handle(r.Context(), body); !ok {
			metrics.HTTPRequests.WithLabelValues("webhooks/harbor", "400").Inc()
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		metrics.HTTPRequests.WithLabelValues("webhooks/harbor", "200").Inc()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

// handleDevice implements the shared "require ?device=, resolve, map
// errors to status codes" flow for /version and /firmware.
func handleDevice(w http.ResponseWriter, r *http.Request, resolver Resolver, log logr.Logger, write func(http.ResponseWriter, *firmware.Entry)) {
	device := r.URL.Query().Get("device")
	route := r.URL.Path[1:]
	if device == "" {
		metrics.HTTPRequests.WithLabelValues(route, "400").Inc()
		http.Error(w, "device query parameter is required", http.StatusBadRequest)
		return
	}

	entry, err := resolver.Resolve(r.Context(), firmware.DeviceId(device))
	if err != nil {
		status := statusFor(err)
		metrics.HTTPRequests.WithLabelValues(route, fmt.Sprint(status)).Inc()
		if status == http.StatusNotFound {
			http.Error(w, err.Error(), status)
			return
		}
		log.Error(err, "resolve failed", "device", device)
		http.Error(w, "internal error", status)
		return
	}

	metrics.HTTPRequests.WithLabelValues(route, "200").Inc()
	write(w, entry)
}

// statusFor maps the internal/firmware error taxonomy to HTTP status
// codes per spec.md §7.
func statusFor(err error) int {
	var noFirmware *firmware.NoFirmwareError
	if errors.As(err, &noFirmware) {
		return http.StatusNotFound
	}

	var regErr *firmware.RegistryError
	if errors.As(err, &regErr) && regErr.Kind == firmware.RegistryErrorNotFound {
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

// NewMetricsMux builds the /metrics server, registering reg (typically
// the default registry, or a dedicated one built at startup).
func NewMetricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
