// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package registry implements the Registry Gateway: the only component
// that speaks the OCI Distribution protocol, wrapping
// github.com/google/go-containerregistry so the rest of OtaFlux never
// imports it directly.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	digest "github.com/opencontainers/go-digest"

	"github.com/otaflux/otaflux/internal/firmware"
)

// Options configures a Gateway. Username/Password are optional; an empty
// pair means anonymous pulls.
type Options struct {
	Host             string
	RepositoryPrefix string
	Username         string
	Password         string
	Insecure         bool
}

// Gateway resolves device ids into OCI repositories under a configured
// registry host and prefix, and fetches tag lists and firmware artifacts
// from them.
type Gateway struct {
	host   string
	prefix string
	auth   authn.Authenticator
	opts   []name.Option
}

// NewGateway constructs a Gateway from Options. Authentication is basic
// auth when both Username and Password are set, matching the pattern
// grounded in rancher-charts-build-scripts' cosign registry client
// (remote.WithAuth(&authn.Basic{...})); otherwise authn.Anonymous is
// passed to remote.WithAuth.
func NewGateway(o Options) *Gateway {
	auth := authn.Anonymous
	if o.Username != "" && o.Password != "" {
		auth = &authn.Basic{Username: o.Username, Password: o.Password}
	}

	var nameOpts []name.Option
	if o.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	} else {
		nameOpts = append(nameOpts, name.StrictValidation)
	}

	return &Gateway{
		host:   strings.TrimSuffix(o.Host, "/"),
		prefix: o.RepositoryPrefix,
		auth:   auth,
		opts:   nameOpts,
	}
}

// repository builds the fully-qualified OCI repository for device,
// without a tag.
func (g *Gateway) repository(device firmware.DeviceId) (name.Repository, error) {
	path := fmt.Sprintf("%s/%s%s", g.host, g.prefix, device)
	return name.NewRepository(path, g.opts...)
}

// ListTags returns every tag published under device's repository.
func (g *Gateway) ListTags(ctx context.Context, device firmware.DeviceId) (firmware.TagSet, error) {
	repo, err := g.repository(device)
	if err != nil {
		return nil, firmware.NewRegistryError(firmware.RegistryErrorProtocol, string(device), err)
	}

	tags, err := remote.List(repo, remote.WithContext(ctx), remote.WithAuth(g.auth))
	if err != nil {
		return nil, categorize(err, repo.Name())
	}
	return firmware.TagSet(tags), nil
}

// FetchArtifact resolves the manifest at device:tag and returns the bytes
// of its first layer exactly as stored, never decompressed. Per §4.1, binary
// preparation (decompression, untarring) is the producer's
// responsibility; the Gateway never inspects layer contents.
func (g *Gateway) FetchArtifact(ctx context.Context, device firmware.DeviceId, tag string) (firmware.Artifact, error) {
	repo, err := g.repository(device)
	if err != nil {
		return firmware.Artifact{}, firmware.NewRegistryError(firmware.RegistryErrorProtocol, string(device), err)
	}
	return g.fetchTag(ctx, repo.Tag(tag))
}

// FetchSignature fetches the detached signature published for
// manifestDigest, following the cosign convention of storing it as the
// first layer of a sibling tag named "sha256-<hex>.sig" in the same
// repository (the scheme grounded in
// rancher-charts-build-scripts/pkg/registries/cosign.go). A RegistryError
// with Kind RegistryErrorNotFound means no signature was published.
func (g *Gateway) FetchSignature(ctx context.Context, device firmware.DeviceId, manifestDigest digest.Digest) ([]byte, error) {
	repo, err := g.repository(device)
	if err != nil {
		return nil, firmware.NewRegistryError(firmware.RegistryErrorProtocol, string(device), err)
	}

	sigTag := strings.ReplaceAll(manifestDigest.String(), ":", "-") + ".sig"
	artifact, err := g.fetchTag(ctx, repo.Tag(sigTag))
	if err != nil {
		return nil, err
	}
	return artifact.Bytes, nil
}

func (g *Gateway) fetchTag(ctx context.Context, ref name.Tag) (firmware.Artifact, error) {
	img, err := remote.Image(ref, remote.WithContext(ctx), remote.WithAuth(g.auth))
	if err != nil {
		return firmware.Artifact{}, categorize(err, ref.Name())
	}

	manifestDigest, err := img.Digest()
	if err != nil {
		return firmware.Artifact{}, firmware.NewRegistryError(firmware.RegistryErrorProtocol, ref.Name(), err)
	}

	layers, err := img.Layers()
	if err != nil {
		return firmware.Artifact{}, firmware.NewRegistryError(firmware.RegistryErrorProtocol, ref.Name(), err)
	}
	if len(layers) == 0 {
		return firmware.Artifact{}, firmware.NewRegistryError(firmware.RegistryErrorProtocol, ref.Name(), firmware.ErrNoLayers)
	}

	rc, err := layers[0].Compressed()
	if err != nil {
		return firmware.Artifact{}, firmware.NewRegistryError(firmware.RegistryErrorProtocol, ref.Name(), err)
	}
	defer rc.Close()

	bytes, err := io.ReadAll(rc)
	if err != nil {
		return firmware.Artifact{}, firmware.NewRegistryError(firmware.RegistryErrorTransport, ref.Name(), err)
	}

	return firmware.Artifact{
		Bytes:          bytes,
		ManifestDigest: digest.Digest(manifestDigest.String()),
	}, nil
}

// categorize maps a go-containerregistry error into OtaFlux's
// RegistryError taxonomy by inspecting the wrapped transport.Error's
// status code, per SPEC_FULL.md §4.1.
func categorize(err error, repo string) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case http.StatusNotFound:
			return firmware.NewRegistryError(firmware.RegistryErrorNotFound, repo, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return firmware.NewRegistryError(firmware.RegistryErrorUnauthorized, repo, err)
		default:
			return firmware.NewRegistryError(firmware.RegistryErrorProtocol, repo, err)
		}
	}
	return firmware.NewRegistryError(firmware.RegistryErrorTransport, repo, err)
}

