// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package manager implements the Firmware Manager: the orchestrator that
// wires the Registry Gateway, Signature Verifier, Version Selector and
// Firmware Cache into the two operations the rest of OtaFlux consumes,
// resolve and refresh.
package manager

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/Masterminds/semver/v3"
	digest "github.com/opencontainers/go-digest"

	"github.com/otaflux/otaflux/internal/cache"
	"github.com/otaflux/otaflux/internal/firmware"
	"github.com/otaflux/otaflux/internal/sign"
	"github.com/otaflux/otaflux/internal/version"
)

// Gateway is the subset of internal/registry.Gateway the Manager depends
// on, narrowed here for testability.
type Gateway interface {
	ListTags(ctx context.Context, device firmware.DeviceId) (firmware.TagSet, error)
	FetchArtifact(ctx context.Context, device firmware.DeviceId, tag string) (firmware.Artifact, error)
	FetchSignature(ctx context.Context, device firmware.DeviceId, manifestDigest digest.Digest) ([]byte, error)
}

// Notifier is the subset of internal/notifier.Notifier the Manager
// depends on.
type Notifier interface {
	Publish(event firmware.UpdateEvent)
}

// Manager composes a Gateway, a Verifier, the Cache and an optional
// Notifier into resolve/refresh.
type Manager struct {
	gateway  Gateway
	verifier *sign.Verifier
	cache    *cache.Cache
	notifier Notifier
	log      logr.Logger
}

// New constructs a Manager. notifier may be nil, in which case refresh
// never publishes.
func New(gateway Gateway, verifier *sign.Verifier, c *cache.Cache, notifier Notifier, log logr.Logger) *Manager {
	return &Manager{
		gateway:  gateway,
		verifier: verifier,
		cache:    c,
		notifier: notifier,
		log:      log,
	}
}

// Resolve returns the cached Entry for device, loading and caching it on
// first use. It never revalidates an already-cached Entry: freshness is
// push-driven through refresh, per spec.md §4.5's documented policy.
func (m *Manager) Resolve(ctx context.Context, device firmware.DeviceId) (*firmware.Entry, error) {
	return m.cache.GetOrLoad(device, func(device firmware.DeviceId) (*firmware.Entry, error) {
		return m.load(ctx, device, "")
	})
}

// Refresh unconditionally resolves device at tag (or, if tag is empty, at
// the newest discovered version) and replaces any cached Entry, publishing
// an UpdateEvent to the Notifier on success.
func (m *Manager) Refresh(ctx context.Context, device firmware.DeviceId, tag string) (*firmware.Entry, error) {
	entry, err := m.load(ctx, device, tag)
	if err != nil {
		return nil, err
	}
	m.cache.Put(device, entry)

	if m.notifier != nil {
		m.notifier.Publish(firmware.UpdateEvent{
			Device:  device,
			Version: entry.Version,
			Size:    entry.Size,
		})
	}
	return entry, nil
}

// load performs the shared resolve/refresh work: select a tag if one was
// not already supplied, fetch the artifact, verify it if a key is
// configured, and construct the Entry.
func (m *Manager) load(ctx context.Context, device firmware.DeviceId, tag string) (*firmware.Entry, error) {
	var selectedVersion *semver.Version

	if tag == "" {
		tags, err := m.gateway.ListTags(ctx, device)
		if err != nil {
			return nil, err
		}
		v, selectedTag, err := version.Select(tags)
		if err != nil {
			return nil, firmware.NewNoFirmwareError(device)
		}
		selectedVersion, tag = v, selectedTag
	} else {
		v, _, err := version.Select(firmware.TagSet{tag})
		if err != nil {
			return nil, firmware.NewNoFirmwareError(device)
		}
		selectedVersion = v
	}

	artifact, err := m.gateway.FetchArtifact(ctx, device, tag)
	if err != nil {
		return nil, err
	}

	if m.verifier.Enabled() {
		sig, err := m.gateway.FetchSignature(ctx, device, artifact.ManifestDigest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", firmware.ErrSignatureInvalid, err)
		}
		if err := m.verifier.Verify(artifact.ManifestDigest, sig); err != nil {
			return nil, err
		}
	}

	return firmware.NewEntry(device, selectedVersion, artifact), nil
}
