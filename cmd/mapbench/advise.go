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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/mapbench/services/bench/advisor"
)

func newAdviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advise <object-count>",
		Short: "Print the recommended render mode for a marker count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("object count %q: %w", args[0], err)
			}
			a := advisor.Advise(n)
			high := "no"
			if a.HighLoad {
				high = "yes"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Objects:     %d\nRecommended: %s\nHigh load:   %s\n",
				a.ObjectCount, a.Recommended, high)
			return nil
		},
	}
}
