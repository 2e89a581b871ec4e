// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package notifier implements the Notifier: a background pump that
// publishes UpdateEvent announcements to an MQTT broker with QoS 1 and
// retained delivery, following the teacher's internal/notifier
// pattern of a disabled no-op fallback plus an options-constructed
// client, retargeted from Kubernetes events to MQTT.
package notifier

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/otaflux/otaflux/internal/firmware"
	"github.com/otaflux/otaflux/internal/metrics"
)

const (
	qosAtLeastOnce = 1
	queueCapacity  = 256
	shutdownGrace  = 5 * time.Second
)

// Options configures a Notifier.
type Options struct {
	BrokerURL        string
	Username         string
	Password         string
	BaseTopic        string
	RepositoryPrefix string
	CACertPath       string
	ClientCertPath   string
	ClientKeyPath    string
}

// wireMessage is the JSON body published for every UpdateEvent, per
// spec.md §4.7.
type wireMessage struct {
	Version string `json:"version"`
	Size    int    `json:"size"`
}

// Notifier owns a background pump goroutine around an MQTT client.
// Publish is a non-blocking hand-off to the pump's queue; if the queue is
// saturated, the publish is dropped and logged, and if the Notifier is
// disabled it is dropped silently. Neither case is surfaced to the caller
// (spec.md §4.7, §7 NotifierUnavailable).
type Notifier struct {
	enabled   bool
	client    mqtt.Client
	topicBase string
	queue     chan firmware.UpdateEvent
	done      chan struct{}
	log       logr.Logger
}

// New constructs a Notifier from Options. An empty BrokerURL disables the
// Notifier: Publish becomes a no-op, matching §4.7's "enable notifications"
// semantics being gated entirely on mqtt-url being set.
func New(o Options, log logr.Logger) (*Notifier, error) {
	if o.BrokerURL == "" {
		return &Notifier{log: log}, nil
	}

	tlsConfig, err := buildTLSConfig(o, log)
	if err != nil {
		return nil, firmware.InvalidConfigError(err)
	}

	clientID := fmt.Sprintf("otaflux-%s", uuid.NewString())
	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	n := &Notifier{
		enabled:   true,
		client:    mqtt.NewClient(opts),
		topicBase: o.BaseTopic + "/" + o.RepositoryPrefix,
		queue:     make(chan firmware.UpdateEvent, queueCapacity),
		done:      make(chan struct{}),
		log:       log,
	}

	if token := n.client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, firmware.InvalidConfigError(fmt.Errorf("connecting to mqtt broker %s: %w", o.BrokerURL, token.Error()))
	}

	go n.pump()
	return n, nil
}

// buildTLSConfig implements the degrade-on-partial-mTLS policy from
// spec.md §4.7/§8 property 8: all three of CA/client-cert/client-key are
// required for mTLS; if only some are supplied, it logs a warning and
// returns a TLS config without a client certificate, trusting the given CA
// if there is one and the system roots otherwise. It returns nil only when
// no TLS material is configured at all.
func buildTLSConfig(o Options, log logr.Logger) (*tls.Config, error) {
	haveCA := o.CACertPath != ""
	haveCert := o.ClientCertPath != ""
	haveKey := o.ClientKeyPath != ""

	if !haveCA && !haveCert && !haveKey {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if haveCA {
		caBytes, err := os.ReadFile(o.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("reading mqtt CA cert %q: %w", o.CACertPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("mqtt CA cert %q contains no usable certificates", o.CACertPath)
		}
		cfg.RootCAs = pool
	}

	switch {
	case haveCert && haveKey:
		cert, err := tls.LoadX509KeyPair(o.ClientCertPath, o.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading mqtt client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case haveCert || haveKey:
		log.Info("mqtt mTLS materials incomplete, degrading to non-mTLS connection",
			"hasClientCert", haveCert, "hasClientKey", haveKey, "hasCA", haveCA)
	}

	return cfg, nil
}

// Publish hands event to the pump's queue without blocking. If the
// Notifier is disabled, or the queue is saturated, the event is dropped.
func (n *Notifier) Publish(event firmware.UpdateEvent) {
	if !n.enabled {
		return
	}
	select {
	case n.queue <- event:
	default:
		metrics.NotifierPublishes.WithLabelValues("error").Inc()
		n.log.Info("notifier queue saturated, dropping update event", "device", event.Device)
	}
}

// pump owns the MQTT client and drains the publish queue until Close is
// called.
func (n *Notifier) pump() {
	for {
		select {
		case event := <-n.queue:
			n.publishNow(event)
		case <-n.done:
			n.drain()
			close(n.done)
			return
		}
	}
}

func (n *Notifier) drain() {
	deadline := time.After(shutdownGrace)
	for {
		select {
		case event := <-n.queue:
			n.publishNow(event)
		case <-deadline:
			return
		default:
			return
		}
	}
}

func (n *Notifier) publishNow(event firmware.UpdateEvent) {
	body, err := json.Marshal(wireMessage{Version: event.Version.String(), Size: event.Size})
	if err != nil {
		metrics.NotifierPublishes.WithLabelValues("error").Inc()
		n.log.Error(err, "marshaling update event", "device", event.Device)
		return
	}

	topic := n.topicBase + string(event.Device)
	token := n.client.Publish(topic, qosAtLeastOnce, true, body)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		metrics.NotifierPublishes.WithLabelValues("error").Inc()
		n.log.Error(token.Error(), "mqtt publish failed", "topic", topic)
		return
	}
	metrics.NotifierPublishes.WithLabelValues("ok").Inc()
}

// Close stops the pump, draining the queue up to a bounded grace window,
// then disconnects the MQTT client.
func (n *Notifier) Close() {
	if !n.enabled {
		return
	}
	// Signal the pump, then wait until it has drained and closed done.
	n.done <- struct{}{}
	<-n.done
	n.client.Disconnect(uint(shutdownGrace.Milliseconds()))
}
