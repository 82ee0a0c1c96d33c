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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/mapbench/cmd/mapbench/config"
	"github.com/AleutianAI/mapbench/pkg/logging"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "mapbench",
		Short: "Telemetry and chaos core for the map marker rendering benchmark",
		Long: `mapbench collects frame rate, input latency and chaos statistics for
map marker rendering sessions, and recommends a render mode for a marker count.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newSimulateCmd(opts),
		newAdviseCmd(),
	)
	return root
}

// load reads the config and applies the flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, service string) *logging.Logger {
	level, _ := logging.ParseLevel(cfg.Level)
	return logging.New(logging.Config{
		Level:   level,
		Service: service,
		Format:  logging.Format(cfg.Format),
		LogDir:  cfg.Dir,
	})
}
