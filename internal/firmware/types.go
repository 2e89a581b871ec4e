// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package firmware defines the shared data model for the firmware
// resolution and caching engine: the types every other internal package
// (registry, sign, version, cache, manager, webhook, notifier) imports
// rather than redeclaring.
package firmware

import (
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/Masterminds/semver/v3"
	digest "github.com/opencontainers/go-digest"
)

// DeviceId identifies a device and, by convention, the OCI repository
// that carries its firmware images. It is opaque to OtaFlux beyond the
// syntactic constraints below.
type DeviceId string

// Validate reports whether id is a well-formed DeviceId: non-empty, ASCII,
// and not beginning with a path separator.
func (id DeviceId) Validate() error {
	if id == "" {
		return fmt.Errorf("device id is empty")
	}
	if strings.HasPrefix(string(id), "/") {
		return fmt.Errorf("device id %q must not start with '/'", id)
	}
	for _, r := range id {
		if r > 127 {
			return fmt.Errorf("device id %q is not ASCII", id)
		}
	}
	return nil
}

func (id DeviceId) String() string { return string(id) }

// ImageRef is a fully-qualified OCI artifact reference for a device at a
// given tag, formed as {registry}/{prefix}{DeviceId}:{tag}.
type ImageRef struct {
	Registry   string
	Repository string
	Tag        string
}

// Repo returns the registry-qualified repository path, without a tag.
func (r ImageRef) Repo() string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(r.Registry, "/"), strings.TrimPrefix(r.Repository, "/"))
}

// String returns the full "repo:tag" reference.
func (r ImageRef) String() string {
	return fmt.Sprintf("%s:%s", r.Repo(), r.Tag)
}

// TagSet is an unordered snapshot of tags retrieved for a repository.
type TagSet []string

// Artifact is the raw payload retrieved from the registry for one
// ImageRef, prior to being wrapped into a cached Entry.
type Artifact struct {
	Bytes           []byte
	ManifestDigest  digest.Digest
}

// Entry is a resolved, cached firmware image. Entries are immutable once
// constructed and are safe to share by reference across concurrent
// readers, including readers whose reference outlives the entry's
// eviction from the cache.
type Entry struct {
	Device         DeviceId
	Version        *semver.Version
	Binary         []byte
	CRC32          uint32
	Size           int
	ManifestDigest digest.Digest
}

// NewEntry builds an Entry from a resolved version and artifact,
// computing the CRC32/IEEE checksum and byte size required by the
// CRC-agreement invariant.
func NewEntry(device DeviceId, version *semver.Version, artifact Artifact) *Entry {
	return &Entry{
		Device:         device,
		Version:        version,
		Binary:         artifact.Bytes,
		CRC32:          crc32.ChecksumIEEE(artifact.Bytes),
		Size:           len(artifact.Bytes),
		ManifestDigest: artifact.ManifestDigest,
	}
}

// UpdateEvent is the announcement published by the Notifier whenever a
// refresh successfully installs a new Entry. It is never stored.
type UpdateEvent struct {
	Device  DeviceId
	Version *semver.Version
	Size    int
}
