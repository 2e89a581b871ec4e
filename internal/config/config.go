// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package config implements OtaFlux's ambient configuration surface:
// pflag-bound options mirrored by environment variables (environment
// wins), validation, and the zap/zapr logger construction, following the
// teacher's cmd/operator/main.go flag-registration and
// fluxcd/pkg/runtime/logger-backed logging conventions generalized to
// OtaFlux's own option set.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/otaflux/otaflux/internal/firmware"
)

// Options holds every OtaFlux configuration value from spec.md §6.
type Options struct {
	RegistryURL       string
	RepositoryPrefix  string
	RegistryUsername  string
	RegistryPassword  string
	RegistryInsecure  bool
	CosignPubKeyPath  string

	ListenAddr        string
	MetricsListenAddr string
	CacheSize         int
	LogLevel          string

	MQTTURL      string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string

	MQTTCACertPath     string
	MQTTClientCertPath string
	MQTTClientKeyPath  string
}

// envBindings maps each flag name to the environment variable that, when
// set, overrides it. Names follow spec.md §6's "obvious upper-snake-case"
// convention with an OTAFLUX_ prefix.
var envBindings = map[string]string{
	"registry-url":            "OTAFLUX_REGISTRY_URL",
	"repository-prefix":       "OTAFLUX_REPOSITORY_PREFIX",
	"registry-username":       "OTAFLUX_REGISTRY_USERNAME",
	"registry-password":       "OTAFLUX_REGISTRY_PASSWORD",
	"registry-insecure":       "OTAFLUX_REGISTRY_INSECURE",
	"cosign-pub-key-path":     "OTAFLUX_COSIGN_PUB_KEY_PATH",
	"listen-addr":             "OTAFLUX_LISTEN_ADDR",
	"metrics-listen-addr":     "OTAFLUX_METRICS_LISTEN_ADDR",
	"cache-size":              "OTAFLUX_CACHE_SIZE",
	"log-level":               "OTAFLUX_LOG_LEVEL",
	"mqtt-url":                "OTAFLUX_MQTT_URL",
	"mqtt-username":           "OTAFLUX_MQTT_USERNAME",
	"mqtt-password":           "OTAFLUX_MQTT_PASSWORD",
	"mqtt-topic":              "OTAFLUX_MQTT_TOPIC",
	"mqtt-ca-cert-path":       "OTAFLUX_MQTT_CA_CERT_PATH",
	"mqtt-client-cert-path":   "OTAFLUX_MQTT_CLIENT_CERT_PATH",
	"mqtt-client-key-path":    "OTAFLUX_MQTT_CLIENT_KEY_PATH",
}

// BindFlags registers every Options field on fs with the defaults from
// spec.md §6.
func (o *Options) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.RegistryURL, "registry-url", "", "Base URL of the OCI registry.")
	fs.StringVar(&o.RepositoryPrefix, "repository-prefix", "", "Path prefix prepended to each device id.")
	fs.StringVar(&o.RegistryUsername, "registry-username", "", "Basic auth username for the registry.")
	fs.StringVar(&o.RegistryPassword, "registry-password", "", "Basic auth password for the registry.")
	fs.BoolVar(&o.RegistryInsecure, "registry-insecure", false, "Allow plaintext HTTP to the registry.")
	fs.StringVar(&o.CosignPubKeyPath, "cosign-pub-key-path", "", "PEM public key enabling signature verification.")

	fs.StringVar(&o.ListenAddr, "listen-addr", "0.0.0.0:8080", "Bind address for the device-facing HTTP server.")
	fs.StringVar(&o.MetricsListenAddr, "metrics-listen-addr", "0.0.0.0:9090", "Bind address for the /metrics server.")
	fs.IntVar(&o.CacheSize, "cache-size", 100, "Firmware Cache LRU capacity in entries.")
	fs.StringVar(&o.LogLevel, "log-level", "info", "Log verbosity: debug, info, warn, error.")

	fs.StringVar(&o.MQTTURL, "mqtt-url", "", "MQTT broker URL; enables notifications when set.")
	fs.StringVar(&o.MQTTUsername, "mqtt-username", "", "MQTT username.")
	fs.StringVar(&o.MQTTPassword, "mqtt-password", "", "MQTT password.")
	fs.StringVar(&o.MQTTTopic, "mqtt-topic", "otaflux/updates", "Base topic for update announcements.")

	fs.StringVar(&o.MQTTCACertPath, "mqtt-ca-cert-path", "", "CA certificate for MQTT TLS.")
	fs.StringVar(&o.MQTTClientCertPath, "mqtt-client-cert-path", "", "Client certificate for MQTT mTLS.")
	fs.StringVar(&o.MQTTClientKeyPath, "mqtt-client-key-path", "", "Client key for MQTT mTLS.")
}

// ApplyEnvOverrides overrides every flag whose bound environment variable
// is set, per spec.md §6: "Environment variables ... take precedence over
// flags when both are supplied."
func (o *Options) ApplyEnvOverrides(fs *flag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *flag.Flag) {
		envVar, ok := envBindings[f.Name]
		if !ok {
			return
		}
		val, ok := os.LookupEnv(envVar)
		if !ok {
			return
		}
		if err := fs.Set(f.Name, val); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("applying %s: %w", envVar, err)
		}
	})
	return firstErr
}

// Validate checks the required options from spec.md §6 and returns a
// firmware.ErrConfigInvalid-wrapped error describing every problem found.
func (o *Options) Validate() error {
	var problems []string

	if o.RegistryURL == "" {
		problems = append(problems, "registry-url is required")
	}
	if o.RepositoryPrefix == "" {
		problems = append(problems, "repository-prefix is required")
	}
	if o.RegistryUsername == "" || o.RegistryPassword == "" {
		problems = append(problems, "registry-username and registry-password are required")
	}
	if o.CacheSize <= 0 {
		problems = append(problems, "cache-size must be positive")
	}
	if o.MQTTURL != "" && o.MQTTTopic == "" {
		problems = append(problems, "mqtt-topic is required when mqtt-url is set")
	}
	if _, err := parseLogLevel(o.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) == 0 {
		return nil
	}
	return firmware.InvalidConfigError(fmt.Errorf(strings.Join(problems, "; ")))
}

func parseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("log-level %q is not one of debug, info, warn, error", level)
	}
}

// NewLogger builds a logr.Logger backed by zap, at the configured level,
// mirroring the teacher's fluxcd/pkg/runtime/logger.NewLogger being a
// thin zapr-backed constructor around zap.Config.
func NewLogger(level string) (logr.Logger, error) {
	zapLevel, err := parseLogLevel(level)
	if err != nil {
		return logr.Discard(), firmware.InvalidConfigError(err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), firmware.InvalidConfigError(fmt.Errorf("building zap logger: %w", err))
	}
	return zapr.NewLogger(zl), nil
}
