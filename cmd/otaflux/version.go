// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is set via -ldflags "-X main.buildVersion=..." at release
// time; it defaults to "dev" for local builds.
var buildVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the otaflux build version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), buildVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
