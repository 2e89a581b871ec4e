// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package metrics holds the Prometheus collectors shared by the Firmware
// Cache and the device HTTP adapter, following the teacher's
// internal/reporter package-level-collector-plus-MustRegister convention.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheHits counts Firmware Cache lookups that found an entry, labeled
// by device, per spec.md §4.4 and §8 property 3.
var CacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otaflux_cache_hits_total",
		Help: "Number of Firmware Cache lookups that found a cached entry, by device.",
	},
	[]string{"device"},
)

// CacheMisses counts Firmware Cache lookups that required a load,
// labeled by device.
var CacheMisses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otaflux_cache_misses_total",
		Help: "Number of Firmware Cache lookups that required a registry load, by device.",
	},
	[]string{"device"},
)

// HTTPRequests counts device-facing HTTP requests, labeled by route and
// exact HTTP status code (e.g. "200", "404").
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otaflux_http_requests_total",
		Help: "Number of device-facing HTTP requests, by route and status.",
	},
	[]string{"route", "status"},
)

// NotifierPublishes counts MQTT publish attempts, labeled by outcome
// ("ok" or "error").
var NotifierPublishes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otaflux_notifier_publishes_total",
		Help: "Number of MQTT publish attempts, by outcome.",
	},
	[]string{"outcome"},
)

var collectors = []prometheus.Collector{
	CacheHits,
	CacheMisses,
	HTTPRequests,
	NotifierPublishes,
}

// MustRegister registers every OtaFlux collector with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(collectors...)
}
