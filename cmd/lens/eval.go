package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"PortfolioLens/internal/rules"
)

func newEvalCmd() *cobra.Command {
	var featuresFile string
	cmd := &cobra.Command{
		Use:   "eval RULE [field=value ...]",
		Short: "Evaluate a single rule",
		Long: `Evaluate a rule against field=value pairs or a feature file.

Values that parse as numbers become numbers, true/false become booleans,
everything else is a string.`,
		Example: `  lens eval "pct_equity between 0.5 and 0.9" pct_equity=0.6
  lens eval "rebalance_frequency in [annual, threshold]" rebalance_frequency=annual`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := args[0]
			if _, err := rules.Parse(rule); err != nil {
				return fmt.Errorf("invalid rule: %w", err)
			}

			ctx := rules.Context{}
			if featuresFile != "" {
				data, err := readInput(cmd.InOrStdin(), featuresFile)
				if err != nil {
					return err
				}
				fv, err := featuresFromDocument(data)
				if err != nil {
					return err
				}
				ctx = fv.Context()
			}
			pairs, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			for k, v := range pairs {
				ctx[k] = v
			}

			result, err := rules.EvaluateOnce(rule, ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&featuresFile, "features", "", "Feature or portfolio file used as context")
	return cmd
}

func parseAssignments(args []string) (rules.Context, error) {
	ctx := rules.Context{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		ctx[key] = parseValue(raw)
	}
	return ctx, nil
}

func parseValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
