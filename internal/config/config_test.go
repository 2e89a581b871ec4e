// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"testing"

	flag "github.com/spf13/pflag"
	. "github.com/onsi/gomega"
)

func newBoundFlagSet(o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	o.BindFlags(fs)
	return fs
}

func TestValidate_RequiresRegistryOptions(t *testing.T) {
	g := NewWithT(t)
	o := &Options{CacheSize: 100, LogLevel: "info"}
	err := o.Validate()
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("registry-url"))
}

func TestValidate_Passes(t *testing.T) {
	g := NewWithT(t)
	o := &Options{
		RegistryURL:      "registry.example.com",
		RepositoryPrefix: "fw-",
		RegistryUsername: "svc",
		RegistryPassword: "secret",
		CacheSize:        100,
		LogLevel:         "info",
	}
	g.Expect(o.Validate()).NotTo(HaveOccurred())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	g := NewWithT(t)
	o := &Options{
		RegistryURL:      "registry.example.com",
		RepositoryPrefix: "fw-",
		RegistryUsername: "svc",
		RegistryPassword: "secret",
		CacheSize:        100,
		LogLevel:         "verbose",
	}
	err := o.Validate()
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("log-level"))
}

func TestApplyEnvOverrides_WinsOverFlag(t *testing.T) {
	g := NewWithT(t)
	o := &Options{}
	fs := newBoundFlagSet(o)
	g.Expect(fs.Parse([]string{"--registry-url=flag-value.example.com"})).To(Succeed())

	t.Setenv("OTAFLUX_REGISTRY_URL", "env-value.example.com")
	g.Expect(o.ApplyEnvOverrides(fs)).NotTo(HaveOccurred())
	g.Expect(o.RegistryURL).To(Equal("env-value.example.com"))
}

func TestApplyEnvOverrides_LeavesUnsetFlagsAlone(t *testing.T) {
	g := NewWithT(t)
	o := &Options{}
	fs := newBoundFlagSet(o)
	g.Expect(fs.Parse(nil)).To(Succeed())

	g.Expect(o.ApplyEnvOverrides(fs)).NotTo(HaveOccurred())
	g.Expect(o.ListenAddr).To(Equal("0.0.0.0:8080"))
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	g := NewWithT(t)
	_, err := NewLogger("not-a-level")
	g.Expect(err).To(HaveOccurred())
}

func TestNewLogger_AcceptsKnownLevels(t *testing.T) {
	g := NewWithT(t)
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		_, err := NewLogger(level)
		g.Expect(err).NotTo(HaveOccurred())
	}
}
