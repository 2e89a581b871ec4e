// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package version

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/otaflux/otaflux/internal/firmware"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		tags     firmware.TagSet
		expected string
		wantErr  bool
	}{
		{
			name:     "mix of release and CI tags",
			tags:     firmware.TagSet{"v0.1.0", "0.2.0", "latest", "main"},
			expected: "0.2.0",
		},
		{
			name:     "v-prefix does not affect precedence",
			tags:     firmware.TagSet{"v1.0.0", "1.0.1"},
			expected: "1.0.1",
		},
		{
			name:     "pre-release ranks below release",
			tags:     firmware.TagSet{"1.0.0", "1.0.0-rc.1"},
			expected: "1.0.0",
		},
		{
			name:    "no parseable tags",
			tags:    firmware.TagSet{"latest", "main", "sha-deadbeef"},
			wantErr: true,
		},
		{
			name:    "empty tag set",
			tags:    firmware.TagSet{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			v, tag, err := Select(tt.tags)
			if tt.wantErr {
				g.Expect(err).To(MatchError(firmware.ErrNoVersion))
				return
			}
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(v.String()).To(Equal(tt.expected))
			g.Expect(tag).NotTo(BeEmpty())
		})
	}
}

func TestSelect_S1Scenario(t *testing.T) {
	g := NewWithT(t)
	v, _, err := Select(firmware.TagSet{"v0.1.0", "0.2.0", "latest", "main"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v.String()).To(Equal("0.2.0"))
}
