// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"bytes"
	"testing"

	. "github.com/onsi/gomega"
)

func TestVersionCommand_PrintsBuildVersion(t *testing.T) {
	g := NewWithT(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	g.Expect(rootCmd.Execute()).To(Succeed())
	g.Expect(out.String()).To(Equal(buildVersion + "\n"))
}

func TestServeCommand_RejectsMissingRequiredOptions(t *testing.T) {
	g := NewWithT(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"serve"})

	err := rootCmd.Execute()
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("registry-url"))
}
