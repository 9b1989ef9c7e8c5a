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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cpubench/cmd/cpubench/config"
)

// defaultSuitePath is where `cpubench init` writes when no path is given.
const defaultSuitePath = "cpubench.yaml"

func newInitCmd(g *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write an example suite file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultSuitePath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteFile(path, config.ExampleSuiteFile(), force); err != nil {
				return err
			}
			p := g.printer(cmd)
			p.Success(fmt.Sprintf("wrote %s", path))
			p.Muted(fmt.Sprintf("run it with: cpubench run --config %s", path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
