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
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/cpubench/services/bench/catalog"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workloads available as candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := catalog.Builtin()
			switch format {
			case "table":
				return listTable(cmd.OutOrStdout(), registry)
			case "json":
				return listJSON(cmd.OutOrStdout(), registry)
			default:
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}

type workloadListing struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      map[string]int `json:"params"`
}

func listings(r *catalog.Registry) []workloadListing {
	names := r.Names()
	out := make([]workloadListing, 0, len(names))
	for _, name := range names {
		w, _ := r.Lookup(name)
		params := w.Defaults
		if params == nil {
			params = map[string]int{}
		}
		out = append(out, workloadListing{Name: name, Description: w.Description, Params: params})
	}
	return out
}

func listJSON(w io.Writer, r *catalog.Registry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(listings(r))
}

func listTable(w io.Writer, r *catalog.Registry) error {
	renderer := lipgloss.NewRenderer(w)
	header := renderer.NewStyle().Bold(true).Padding(0, 1)
	cell := renderer.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(renderer.NewStyle().Foreground(lipgloss.Color("#16858E"))).
		Headers("Workload", "Parameters", "Description").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, l := range listings(r) {
		t.Row(l.Name, formatParams(l.Params), l.Description)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// formatParams renders defaults as "k=v,k=v", the syntax --candidate takes.
func formatParams(params map[string]int) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, params[k]))
	}
	return strings.Join(parts, ",")
}
