// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cpubench/pkg/logging"
	"github.com/AleutianAI/cpubench/pkg/ux"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	logLevel string
	logDir   string
	logJSON  bool
	output   string
}

// newRootCmd builds the command tree. Status lines go to stderr so that
// stdout carries only the report.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "cpubench",
		Short: "Compare the CPU-time throughput of Go workloads",
		Long: `cpubench runs each candidate workload on its own OS thread until it has
consumed a fixed CPU-time budget, then scores the candidates by their share
of the combined throughput.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ux.ParseMode(g.output); err != nil {
				return err
			}
			if _, err := logging.ParseLevel(g.logLevel); err != nil {
				return err
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "",
		"Log level: debug, info, warn or error (default from suite file, else info)")
	root.PersistentFlags().StringVar(&g.logDir, "log-dir", "",
		"Also write JSON logs to a dated file in this directory")
	root.PersistentFlags().BoolVar(&g.logJSON, "log-json", false,
		"Write console logs as JSON")
	root.PersistentFlags().StringVar(&g.output, "ui", "auto",
		"Status output: rich, plain, machine or auto (also "+ux.EnvMode+")")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newListCmd(g))
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newVersionCmd())
	return root
}

// printer builds the status printer for the command's stderr.
func (g *globalOptions) printer(cmd *cobra.Command) *ux.Printer {
	mode, _ := ux.ParseMode(g.output)
	return ux.NewPrinter(cmd.ErrOrStderr(), mode)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cpubench version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cpubench %s (%s %s/%s)\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
