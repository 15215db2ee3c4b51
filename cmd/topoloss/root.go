package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/topoloss/internal/backend/cpu"
	"github.com/born-ml/topoloss/internal/nn"
	"github.com/born-ml/topoloss/internal/serialization"
	"github.com/born-ml/topoloss/internal/topoloss"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "topoloss",
		Short:        "Topographic regularization for neural network layers",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	newLogger := func() (*slog.Logger, error) {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})), nil
	}

	root.AddCommand(newVersionCmd(), newSheetCmd(), newTrainCmd(newLogger), newReportCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			backend := cpu.New()
			features := backend.Features()
			if len(features) == 0 {
				features = []string{"none"}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topoloss %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "backend: %s (%s)\n", backend.Name(), strings.Join(features, ", "))
		},
	}
}

func newSheetCmd() *cobra.Command {
	var factors []float64

	cmd := &cobra.Command{
		Use:   "sheet N",
		Short: "Show the sheet layout and pyramid levels for N units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n < 1 {
				return fmt.Errorf("N must be a positive integer, got %q", args[0])
			}

			shape := topoloss.ResolveSheetShape(n)
			fmt.Fprintf(cmd.OutOrStdout(), "units: %d\nsheet: %v\n", n, shape)
			if len(factors) == 0 {
				return nil
			}

			levels, err := topoloss.PyramidShapes(shape, topoloss.Uniform(factors...))
			if err != nil {
				return err
			}
			for i, level := range levels {
				fmt.Fprintf(cmd.OutOrStdout(), "level %d: %v\n", i, level)
			}
			return nil
		},
	}
	cmd.Flags().Float64SliceVarP(&factors, "factor", "f", nil, "shrink factor per pyramid level (repeatable)")
	return cmd
}

func newTrainCmd(newLogger func() (*slog.Logger, error)) *cobra.Command {
	var configPath, savePath string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on its topographic losses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			summary, err := train(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loss: %.6f -> %.6f over %d steps\n", summary.First, summary.Last, cfg.Steps)
			if savePath == "" {
				return nil
			}
			if err := serialization.WriteFile(savePath, summary.State, reportMetadata(cfg, summary.Report)); err != nil {
				return err
			}
			logger.Info("saved weights", slog.String("path", savePath), slog.Int("tensors", len(summary.State)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML run configuration")
	cmd.Flags().StringVarP(&savePath, "save", "o", "", "write the trained weights to this SafeTensors file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newReportCmd() *cobra.Command {
	var configPath, weightsPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the topographic losses of a model",
		Long: "Builds the model described by --config, optionally loads trained weights, " +
			"and prints the unscaled loss of every spec.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			if weightsPath != "" {
				dict, _, err := serialization.ReadFile(weightsPath)
				if err != nil {
					return err
				}
				if err := nn.LoadStateDict[backendT](s.model, dict); err != nil {
					return err
				}
			}
			report, err := s.tl.Report(s.bound)
			if err != nil {
				return err
			}
			keys := lo.Keys(report)
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %.6f\n", k, report[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML run configuration")
	cmd.Flags().StringVarP(&weightsPath, "weights", "w", "", "SafeTensors file written by train --save")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// reportMetadata records the run and its final losses in the weights file.
func reportMetadata(cfg *Config, report map[string]float64) map[string]string {
	meta := map[string]string{
		"format":  "topoloss",
		"version": version,
		"seed":    strconv.FormatInt(cfg.Seed, 10),
		"steps":   strconv.Itoa(cfg.Steps),
	}
	for k, v := range report {
		meta["topo."+k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return meta
}
