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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/mapbench/pkg/logging"
	"github.com/AleutianAI/mapbench/services/bench/advisor"
	"github.com/AleutianAI/mapbench/services/bench/chaos"
	"github.com/AleutianAI/mapbench/services/bench/fps"
	"github.com/AleutianAI/mapbench/services/bench/report"
	"github.com/AleutianAI/mapbench/services/bench/session"
	"github.com/AleutianAI/mapbench/services/bench/sink"
)

// simOptions configures a synthetic session.
type simOptions struct {
	Duration    time.Duration
	FPS         float64
	Jitter      float64
	LatencyMS   float64
	Intensity   int
	Chaos       bool
	Objects     int
	Mode        string
	TargetMS    float64
	Seed        uint64
	Sessions    int
	JSON        bool
	NoColor     bool
	TickEvery   time.Duration
	LatencyRate int
}

var errInvalidSim = errors.New("invalid simulation options")

func (o simOptions) validate() error {
	var errs []error
	if o.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if o.FPS <= 0 {
		errs = append(errs, errors.New("fps must be positive"))
	}
	if o.Jitter < 0 || o.Jitter >= 1 {
		errs = append(errs, errors.New("jitter must be in [0, 1)"))
	}
	if o.LatencyMS < 0 {
		errs = append(errs, errors.New("latency must be >= 0"))
	}
	if o.Sessions < 1 {
		errs = append(errs, errors.New("sessions must be >= 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInvalidSim, errors.Join(errs...))
	}
	return nil
}

func defaultSimOptions() simOptions {
	return simOptions{
		Duration:    10 * time.Second,
		FPS:         60,
		Jitter:      0.2,
		LatencyMS:   120,
		Intensity:   1,
		Chaos:       true,
		Objects:     advisor.DefaultObjectCount,
		Mode:        "DOM",
		Seed:        1,
		Sessions:    1,
		TickEvery:   chaos.DefaultTickInterval,
		LatencyRate: 30,
	}
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	o := defaultSimOptions()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive synthetic sessions headlessly and print their reports",
		Long: `simulate runs one or more sessions on a simulated clock: frames arrive at
the given rate with random jitter, chaos ticks every 16ms of simulated time
and a latency sample is taken every 30 frames. Nothing sleeps, so a long
duration finishes immediately.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("target") {
				o.TargetMS = cfg.Session.TargetMS
			}
			logs := newLogger(cfg.Log, "mapbench-simulate")
			defer logs.Close()

			reports, err := runSimulations(cmd.Context(), o, logs.Slog())
			if err != nil {
				return err
			}
			color := !o.NoColor && logging.IsTerminal(os.Stdout)
			return printReports(cmd.OutOrStdout(), reports, o.JSON, color)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&o.Duration, "duration", o.Duration, "Simulated run length")
	f.Float64Var(&o.FPS, "fps", o.FPS, "Mean frame rate")
	f.Float64Var(&o.Jitter, "jitter", o.Jitter, "Relative frame time jitter in [0, 1)")
	f.Float64Var(&o.LatencyMS, "latency", o.LatencyMS, "Mean input latency in milliseconds")
	f.IntVar(&o.Intensity, "intensity", o.Intensity, "Chaos intensity (1-10)")
	f.BoolVar(&o.Chaos, "chaos", o.Chaos, "Run the chaos engine")
	f.IntVar(&o.Objects, "objects", o.Objects, "Marker count")
	f.StringVar(&o.Mode, "mode", o.Mode, "Render mode (DOM, Canvas, WebGL)")
	f.Float64Var(&o.TargetMS, "target", o.TargetMS, "P95 latency target in milliseconds")
	f.Uint64Var(&o.Seed, "seed", o.Seed, "Random seed; session i uses seed+i")
	f.IntVar(&o.Sessions, "sessions", o.Sessions, "Number of sessions to run in parallel")
	f.BoolVar(&o.JSON, "json", o.JSON, "Print reports as JSON")
	f.BoolVar(&o.NoColor, "no-color", o.NoColor, "Disable colored output")
	return cmd
}

// runSimulations runs o.Sessions sessions concurrently and returns their
// reports in session order.
func runSimulations(ctx context.Context, o simOptions, logger *slog.Logger) ([]*report.Report, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	mode, err := advisor.ParseRenderMode(o.Mode)
	if err != nil {
		return nil, err
	}

	reports := make([]*report.Report, o.Sessions)
	g, gCtx := errgroup.WithContext(ctx)
	for i := range o.Sessions {
		g.Go(func() error {
			r, err := simulate(gCtx, o, mode, o.Seed+uint64(i), logger)
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// simClock is a manually advanced clock.
type simClock struct{ t time.Time }

func (c *simClock) Now() time.Time { return c.t }

// simulate drives one session on a simulated clock.
func simulate(ctx context.Context, o simOptions, mode advisor.RenderMode, seed uint64, logger *slog.Logger) (*report.Report, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	clock := &simClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	m := advisor.DefaultMapConfig()
	m.SetObjectCount(o.Objects)
	m.SetRenderMode(mode)

	opts := []session.Option{
		session.WithManualChaos(),
		session.WithSeed(seed),
		session.WithClock(clock.Now),
		session.WithIntensity(o.Intensity),
		session.WithMap(m),
		session.WithLogger(logger),
		session.WithSink(sink.NewLog(logger)),
	}
	if o.TargetMS > 0 {
		opts = append(opts, session.WithTarget(o.TargetMS))
	}
	s := session.New(fmt.Sprintf("sim-%d", seed), opts...)
	defer s.Close()

	if err := s.StartRecording(); err != nil {
		return nil, err
	}
	if o.Chaos {
		if err := s.StartChaos(); err != nil {
			return nil, err
		}
	}

	sampler := fps.NewSampler(clock.t)
	frameTime := time.Duration(float64(time.Second) / o.FPS)
	end := clock.t.Add(o.Duration)
	var sinceTick time.Duration
	heapMB := 40.0

	for frame := 1; clock.t.Before(end); frame++ {
		if frame%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		dt := time.Duration(float64(frameTime) * (1 + o.Jitter*(2*rng.Float64()-1)))
		clock.t = clock.t.Add(dt)

		if v, ok := sampler.Frame(clock.t); ok {
			if _, err := s.RecordFPS(v); err != nil {
				return nil, err
			}
			heapMB += rng.Float64() * 2
			if _, err := s.RecordMemory(heapMB); err != nil {
				return nil, err
			}
		}

		sinceTick += dt
		for sinceTick >= o.TickEvery {
			sinceTick -= o.TickEvery
			if _, err := s.TickChaos(); err != nil {
				return nil, err
			}
		}

		if o.LatencyRate > 0 && frame%o.LatencyRate == 0 {
			ms := o.LatencyMS * (0.5 + rng.Float64())
			if err := s.AddLatency(ms); err != nil {
				return nil, err
			}
		}
	}

	if err := s.StopChaos(); err != nil {
		return nil, err
	}
	if err := s.StopRecording(); err != nil {
		return nil, err
	}
	return s.Report(ctx)
}

func printReports(w io.Writer, reports []*report.Report, asJSON, color bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	}
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, report.Render(r, color))
	}
	return nil
}
