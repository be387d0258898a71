package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"PortfolioLens/internal/features"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
	"PortfolioLens/internal/report"
)

func newScoreCmd() *cobra.Command {
	var (
		asJSON  bool
		details bool
		top     int
		weights []float64
		record  bool
	)
	cmd := &cobra.Command{
		Use:   "score [file|-]",
		Short: "Score a portfolio against the philosophy catalog",
		Long: `Score a portfolio file (YAML or JSON, "-" for stdin).

The file is either a portfolio with "holdings" (and an optional "profile"),
or a plain feature vector such as {pct_equity: 0.8, pct_bonds: 0.2}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			fv, err := featuresFromDocument(data)
			if err != nil {
				return err
			}
			fv = features.ApplyConcentration(fv, weights)
			if err := fv.CheckFinite(); err != nil {
				return err
			}

			start := time.Now()
			res := a.engine.ScorePortfolio(fv)
			a.metrics.ObserveScore("cli", res, time.Since(start))

			if record {
				if err := recordRun(a, res); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return report.Write(out, report.ResultMarkdown(res, report.Options{Top: top, Details: details}), styled())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&details, "details", false, "List matched and missing signals")
	cmd.Flags().IntVar(&top, "top", 0, "Only show the N best philosophies")
	cmd.Flags().Float64SliceVar(&weights, "weights", nil, "Position weights, fills the concentration features")
	cmd.Flags().BoolVar(&record, "record", false, "Store the run in the history database")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// featuresFromDocument accepts a portfolio with holdings or a bare feature
// vector.
func featuresFromDocument(data []byte) (model.FeatureVector, error) {
	p, err := features.ParsePortfolio(data)
	if err != nil {
		return model.FeatureVector{}, err
	}
	var fv model.FeatureVector
	if len(p.Holdings) > 0 {
		if fv, err = p.Features(features.Basic{}); err != nil {
			return fv, err
		}
	} else if err := yaml.Unmarshal(data, &fv); err != nil {
		return fv, fmt.Errorf("parse features: %w", err)
	}
	if err := fv.CheckFinite(); err != nil {
		return model.FeatureVector{}, err
	}
	return fv, nil
}

func recordRun(a *app, res *model.ComplianceResult) error {
	rec, err := openRecorder(a)
	if err != nil {
		return err
	}
	defer rec.Close()

	run := recorder.NewRun(res, a.engine.Catalog().Version)
	if err := rec.RecordRun(context.Background(), run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	a.log.Info().Str("run_id", run.ID).Msg("scoring run recorded")
	return nil
}
