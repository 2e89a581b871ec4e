// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "otaflux",
	Short: "OtaFlux OTA firmware delivery service",
	Long: `OtaFlux is a caching, version-resolving proxy in front of an OCI
registry for IoT firmware distribution.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
