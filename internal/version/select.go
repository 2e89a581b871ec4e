// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package version implements the Version Selector: converting a snapshot
// of registry tags into the single newest semantic version among them.
package version

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/otaflux/otaflux/internal/firmware"
)

// Select parses every tag in tags as a semantic version, silently dropping
// tags that do not parse (CI tags such as "latest", "main", "sha-abcdef"
// are expected to coexist with release tags), and returns the maximum by
// SemVer 2.0 precedence together with the tag string it came from.
//
// A leading "v" is stripped before parsing, so "v1.2.3" and "1.2.3" compare
// equal. If no tag parses, Select returns firmware.ErrNoVersion.
func Select(tags firmware.TagSet) (*semver.Version, string, error) {
	var versions []*semver.Version
	bySemver := make(map[*semver.Version]string, len(tags))

	for _, tag := range tags {
		candidate := strings.TrimPrefix(tag, "v")
		v, err := semver.NewVersion(candidate)
		if err != nil {
			continue
		}
		versions = append(versions, v)
		bySemver[v] = tag
	}

	if len(versions) == 0 {
		return nil, "", firmware.ErrNoVersion
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))
	best := versions[0]
	return best, bySemver[best], nil
}
