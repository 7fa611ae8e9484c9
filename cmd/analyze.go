package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"airq-service/internal/analytics"
	"airq-service/internal/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// inputFlags collects one set of readings from a file and/or flags. Flags
// that are set explicitly override the file.
type inputFlags struct {
	file   string
	inputs models.RawInputs
	lang   string
	output string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "file", "f", "", "YAML or JSON file with the readings")
	fs.Float64Var(&f.inputs.Temperature, "temperature", 0, "temperature in °C")
	fs.Float64Var(&f.inputs.Humidity, "humidity", 0, "relative humidity in %")
	fs.Float64Var(&f.inputs.CO2, "co2", 0, "CO2 concentration in ppm")
	fs.Float64Var(&f.inputs.Area, "area", 0, "floor area in m²")
	fs.IntVar(&f.inputs.Occupancy, "occupancy", 0, "number of people in the room")
	fs.StringVar(&f.lang, "lang", "", "output language (en, tr)")
	fs.StringVarP(&f.output, "output", "o", "text", "output format: text|json|yaml")
}

func (f *inputFlags) resolve(cmd *cobra.Command) (models.RawInputs, error) {
	switch f.output {
	case "text", "json", "yaml":
	default:
		return models.RawInputs{}, fmt.Errorf("invalid --output %q (expected text|json|yaml)", f.output)
	}
	if f.file == "" {
		return f.inputs, nil
	}

	data, err := os.ReadFile(f.file)
	if err != nil {
		return models.RawInputs{}, fmt.Errorf("failed to read %s: %w", f.file, err)
	}
	var in models.RawInputs
	if err := yaml.Unmarshal(data, &in); err != nil {
		return models.RawInputs{}, fmt.Errorf("failed to decode %s: %w", f.file, err)
	}

	fs := cmd.Flags()
	if fs.Changed("temperature") {
		in.Temperature = f.inputs.Temperature
	}
	if fs.Changed("humidity") {
		in.Humidity = f.inputs.Humidity
	}
	if fs.Changed("co2") {
		in.CO2 = f.inputs.CO2
	}
	if fs.Changed("area") {
		in.Area = f.inputs.Area
	}
	if fs.Changed("occupancy") {
		in.Occupancy = f.inputs.Occupancy
	}
	return in, nil
}

func writeStructured(w io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var errInvalidInputs = errors.New("invalid inputs")

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	flags := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score one set of readings",
		Example: "  airq analyze --temperature 22 --humidity 45 --co2 600 --area 100 --occupancy 10\n" +
			"  airq analyze -f room.yaml --lang tr -o json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			engine, err := engineFor(opts, flags.lang)
			if err != nil {
				return err
			}

			result := engine.Analyze(in)
			out := cmd.OutOrStdout()
			if flags.output != "text" {
				if err := writeStructured(out, flags.output, result); err != nil {
					return err
				}
			} else {
				printResult(out, result)
			}
			if !result.Success {
				return errInvalidInputs
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printResult(w io.Writer, res models.AnalysisResult) {
	if !res.Success {
		fmt.Fprintf(w, "%s\n", res.Category)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return
	}

	fmt.Fprintf(w, "Score: %.2f (%s)\n\n", res.Score, res.Category)
	for _, m := range analytics.DeltaOrder {
		d, ok := res.DetailedAnalysis[m]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-16s %8s %-10s %-18s %s", m, formatValue(d.Value), d.Unit, d.Status, d.OptimalRange)
		if d.Score != nil {
			line += fmt.Sprintf("  [%.2f]", *d.Score)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}

	if len(res.Recommendations) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, rec := range res.Recommendations {
		fmt.Fprintf(w, "[%s] %s\n", rec.Priority, rec.Title)
		for _, a := range rec.Actions {
			fmt.Fprintf(w, "    - %s\n", a)
		}
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
