// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command filterscore scores one or more messages against a symbol
// configuration and prints the resulting verdict.
//
// Usage:
//
//	filterscore score -c testdata/sample_config.yaml hits.json
//	filterscore score -c testdata/sample_config.yaml --batch hits1.json hits2.json
//	filterscore explain -c testdata/sample_config.yaml BAYES_SPAM
//	filterscore serve -c testdata/sample_config.yaml --addr :8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aleutianfoss/filterscore/internal/config"
	"github.com/aleutianfoss/filterscore/internal/metric"
	"github.com/aleutianfoss/filterscore/internal/task"
)

// configPath holds the -c/--config flag shared by every subcommand,
// following the teacher's pattern of package-level flag variables
// (tracePath/traceInteractive in cmd/aleutian/cmd_chat.go).
var configPath string

// scoreBatch holds the score command's --batch flag.
var scoreBatch bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("filterscore: command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filterscore",
		Short: "Score messages against a symbol configuration and derive a verdict",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML symbol configuration (defaults to the embedded baseline)")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newExplainCmd())
	root.AddCommand(newServeCmd())
	return root
}

// hitInput is the on-disk shape of one message's symbol hits, consumed by
// the score command.
type hitInput struct {
	MessageID string             `json:"message_id"`
	Settings  map[string]float64 `json:"settings,omitempty"`
	Hits      []struct {
		Symbol string  `json:"symbol"`
		Weight float64 `json:"weight"`
		Option string  `json:"option,omitempty"`
		Single bool    `json:"single,omitempty"`
	} `json:"hits"`
}

// scoreOutput is the score command's JSON result shape.
type scoreOutput struct {
	MessageID string  `json:"message_id"`
	Score     float64 `json:"score"`
	Action    string  `json:"action"`
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score FILE...",
		Short: "Score one or more JSON hit files and print the resulting verdict(s)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !scoreBatch || len(args) == 1 {
				for _, path := range args {
					out, err := scoreFile(cmd.Context(), cfg, path)
					if err != nil {
						return fmt.Errorf("scoring %s: %w", path, err)
					}
					if err := printJSON(out); err != nil {
						return err
					}
				}
				return nil
			}

			// --batch with multiple files: each file gets its own Task,
			// single-owner per spec.md §5, so independent goroutines may
			// score them concurrently without additional synchronization.
			results := make([]scoreOutput, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					out, err := scoreFile(ctx, cfg, path)
					if err != nil {
						return fmt.Errorf("scoring %s: %w", path, err)
					}
					results[i] = out
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for _, out := range results {
				if err := printJSON(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&scoreBatch, "batch", false, "score multiple files concurrently via errgroup")
	return cmd
}

func scoreFile(ctx context.Context, cfg *config.View, path string) (scoreOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoreOutput{}, err
	}
	var in hitInput
	if err := json.Unmarshal(data, &in); err != nil {
		return scoreOutput{}, fmt.Errorf("parsing hit file: %w", err)
	}

	t := task.New(in.MessageID, cfg, in.Settings, slog.Default())
	for _, h := range in.Hits {
		var flags metric.InsertFlags
		if h.Single {
			flags |= metric.FlagSingle
		}
		if _, ok := t.InsertScored(ctx, h.Symbol, h.Weight, h.Option, flags); !ok {
			return scoreOutput{}, fmt.Errorf("symbol %s rejected: task already in idempotent phase", h.Symbol)
		}
	}
	t.EnterIdempotentPhase()
	action := t.Verdict(ctx)
	t.Release()

	m, _ := t.Result()
	return scoreOutput{MessageID: t.MessageID(), Score: m.Score(), Action: action.Name}, nil
}

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain SYMBOL",
		Short: "Print the configured definition of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			def, ok := cfg.Symbols[args[0]]
			if !ok {
				return fmt.Errorf("symbol %q has no configured definition (would be treated as unknown unless FlagEnforce is set)", args[0])
			}
			return printJSON(def)
		},
	}
}

func loadConfig() (*config.View, error) {
	if configPath == "" {
		return config.Default()
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return config.Load(data)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
