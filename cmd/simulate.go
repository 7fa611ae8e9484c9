package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"airq-service/internal/analytics"
	"airq-service/internal/models"

	"github.com/spf13/cobra"
)

func parseDeltas(raw []string) (models.Deltas, error) {
	deltas := models.Deltas{}
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --delta %q (expected metric=value)", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --delta %q: %w", kv, err)
		}
		deltas[models.Metric(strings.TrimSpace(name))] = v
	}
	return deltas, nil
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	flags := &inputFlags{}
	var rawDeltas []string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Predict the score after changing some readings",
		Long: "Applies deltas to the readings and compares the scores. Without --delta the\n" +
			"suggested corrections for out-of-band readings are simulated.",
		Example: "  airq simulate --temperature 22 --humidity 45 --co2 600 --area 100 --occupancy 10 --delta area_per_person=10",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			deltas, err := parseDeltas(rawDeltas)
			if err != nil {
				return err
			}
			engine, err := engineFor(opts, flags.lang)
			if err != nil {
				return err
			}

			if errs := engine.Validate(in); len(errs) > 0 {
				printResult(cmd.OutOrStdout(), engine.Analyze(in))
				return errInvalidInputs
			}
			if len(deltas) == 0 {
				deltas = engine.SuggestDeltas(in)
			}

			p, err := engine.Simulate(in, deltas)
			if err != nil {
				return err
			}
			if flags.output != "text" {
				return writeStructured(cmd.OutOrStdout(), flags.output, p)
			}
			printPrediction(cmd.OutOrStdout(), p)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&rawDeltas, "delta", nil, "change to apply as metric=value (repeatable)")
	return cmd
}

func printPrediction(w io.Writer, p models.Prediction) {
	if len(p.Applied) == 0 {
		fmt.Fprintln(w, "No changes to simulate.")
	}
	for _, m := range analytics.SortedMetrics(p.Applied) {
		fmt.Fprintf(w, "  %-16s %+g\n", m, p.Applied[m])
	}
	fmt.Fprintf(w, "Current score:  %.2f\n", p.CurrentScore)
	fmt.Fprintf(w, "Improved score: %.2f (%+.2f, %+.1f%%)\n", p.ImprovedScore, p.Improvement, p.ImprovementPercentage)
	fmt.Fprintln(w, p.Impact)
}
