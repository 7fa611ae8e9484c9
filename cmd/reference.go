package main

import (
	"airq-service/internal/analytics"
	"airq-service/internal/models"

	"github.com/spf13/cobra"
)

type referenceDoc struct {
	Locale  string                                     `yaml:"locale" json:"locale"`
	Ranges  map[models.Metric]analytics.ReferenceRange `yaml:"ranges" json:"ranges"`
	Weights []analytics.Weight                         `yaml:"weights" json:"weights"`
	Bands   []analytics.Band                           `yaml:"bands" json:"bands"`
	Rules   []analytics.Rule                           `yaml:"rules" json:"rules"`
}

func newReferenceCmd(opts *rootOptions) *cobra.Command {
	var lang, output string
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Print the reference ranges, weights, bands and rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := engineFor(opts, lang)
			if err != nil {
				return err
			}
			doc := referenceDoc{
				Locale:  engine.Locale(),
				Ranges:  engine.Ranges(),
				Weights: engine.Weights(),
				Bands:   engine.Bands(),
				Rules:   engine.Rules(),
			}
			return writeStructured(cmd.OutOrStdout(), output, doc)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "language for rule actions (en, tr)")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml|json")
	return cmd
}
