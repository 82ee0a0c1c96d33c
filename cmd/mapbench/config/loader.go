// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/mapbench/pkg/logging"
	"github.com/AleutianAI/mapbench/services/bench/sink"
)

// ErrInvalidConfig wraps every load and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("listenaddr", validateListenAddr)
	_ = validate.RegisterValidation("loglevel", validateLogLevel)
}

func validateListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := logging.ParseLevel(fl.Field().String())
	return err == nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
//
// Outputs:
//   - *Config: The configuration. Nil on error.
//   - error: Wraps ErrInvalidConfig for parse and validation failures.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every struct tag of cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg from MAPBENCH_* variables.
//
// Variables:
//   - MAPBENCH_ADDR
//   - MAPBENCH_LOG_LEVEL, MAPBENCH_LOG_FORMAT, MAPBENCH_LOG_DIR
//   - MAPBENCH_TARGET_MS, MAPBENCH_CHAOS_INTERVAL, MAPBENCH_INTENSITY
//   - MAPBENCH_TRACE_EXPORTER, MAPBENCH_METRIC_EXPORTER
//   - MAPBENCH_INFLUX_URL, MAPBENCH_INFLUX_TOKEN, MAPBENCH_INFLUX_ORG,
//     MAPBENCH_INFLUX_BUCKET
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("MAPBENCH_ADDR", &cfg.Server.Addr)
	str("MAPBENCH_LOG_LEVEL", &cfg.Log.Level)
	str("MAPBENCH_LOG_FORMAT", &cfg.Log.Format)
	str("MAPBENCH_LOG_DIR", &cfg.Log.Dir)
	float("MAPBENCH_TARGET_MS", &cfg.Session.TargetMS)
	duration("MAPBENCH_CHAOS_INTERVAL", &cfg.Session.ChaosInterval)
	integer("MAPBENCH_INTENSITY", &cfg.Session.Intensity)
	str("MAPBENCH_TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("MAPBENCH_METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)

	if url, ok := lookup("MAPBENCH_INFLUX_URL"); ok && url != "" {
		if cfg.Sinks.Influx == nil {
			cfg.Sinks.Influx = &sink.InfluxConfig{}
		}
		cfg.Sinks.Influx.URL = url
	}
	if cfg.Sinks.Influx != nil {
		str("MAPBENCH_INFLUX_TOKEN", &cfg.Sinks.Influx.Token)
		str("MAPBENCH_INFLUX_ORG", &cfg.Sinks.Influx.Org)
		str("MAPBENCH_INFLUX_BUCKET", &cfg.Sinks.Influx.Bucket)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
