package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"airq-service/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdirForTest(t, t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var scenarioFlags = []string{"--temperature", "22", "--humidity", "45", "--co2", "600", "--area", "100", "--occupancy", "10"}

func TestAnalyzeText(t *testing.T) {
	out, err := run(t, append([]string{"analyze"}, scenarioFlags...)...)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Score: 0.45 (Moderate)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "area_per_person") {
		t.Fatalf("expected the detailed analysis, got:\n%s", out)
	}
}

func TestAnalyzeJSONInTurkish(t *testing.T) {
	out, err := run(t, append([]string{"analyze", "--lang", "tr", "-o", "json"}, scenarioFlags...)...)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Category != "Orta" || math.Abs(res.Score-0.45) > 1e-9 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAnalyzeFromFileWithOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.yaml")
	doc := "temperature: 22\nhumidity: 45\nco2: 2000\narea: 100\noccupancy: 10\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := run(t, "analyze", "-f", path, "--co2", "600")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Score: 0.45") {
		t.Fatalf("expected the --co2 flag to override the file, got:\n%s", out)
	}
}

func TestAnalyzeInvalid(t *testing.T) {
	out, err := run(t, "analyze", "--temperature", "22", "--humidity", "45", "--co2", "100", "--area", "100")
	if !errors.Is(err, errInvalidInputs) {
		t.Fatalf("expected errInvalidInputs, got %v", err)
	}
	if !strings.Contains(out, "CO2 level must be between 300 and 5000 ppm") {
		t.Fatalf("expected the validation message, got:\n%s", out)
	}
}

func TestAnalyzeRejectsUnknownOutput(t *testing.T) {
	if _, err := run(t, append([]string{"analyze", "-o", "xml"}, scenarioFlags...)...); err == nil {
		t.Fatalf("expected an error for -o xml")
	}
}

func TestSimulate(t *testing.T) {
	out, err := run(t, append([]string{"simulate", "-o", "json", "--delta", "area_per_person=10"}, scenarioFlags...)...)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var p models.Prediction
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if p.ImprovedInputs.Occupancy != 5 || p.Applied[models.MetricAreaPerPerson] != 10 {
		t.Fatalf("unexpected prediction %+v", p)
	}
}

func TestSimulateNegativeTargetEmptiesRoom(t *testing.T) {
	out, err := run(t, append([]string{"simulate", "-o", "json", "--delta", "area_per_person=-20"}, scenarioFlags...)...)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var p models.Prediction
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if p.ImprovedInputs.Occupancy != 1 {
		t.Fatalf("expected occupancy 1, got %+v", p.ImprovedInputs)
	}
}

func TestSimulateErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"malformed delta", []string{"--delta", "co2"}},
		{"non-numeric delta", []string{"--delta", "co2=lots"}},
		{"unknown metric", []string{"--delta", "noise=-5"}},
		{"unreachable target", []string{"--delta", "area_per_person=-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(append([]string{"simulate"}, scenarioFlags...), tt.args...)
			if _, err := run(t, args...); err == nil {
				t.Fatalf("expected an error for %v", tt.args)
			}
		})
	}
}

func TestParseDeltas(t *testing.T) {
	d, err := parseDeltas([]string{"co2=-400", " temperature = 2.5 "})
	if err != nil {
		t.Fatalf("parseDeltas: %v", err)
	}
	if d[models.MetricCO2] != -400 || d[models.MetricTemperature] != 2.5 {
		t.Fatalf("unexpected deltas %v", d)
	}
}

func TestReferenceYAML(t *testing.T) {
	out, err := run(t, "reference")
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	for _, want := range []string{"locale: en", "inverse: true", "area_per_person", "very_poor"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
