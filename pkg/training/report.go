package training

import (
	"bytes"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// FeatureImportance is one entry of a report's importance table.
type FeatureImportance struct {
	Feature    string  `yaml:"feature"`
	Importance float64 `yaml:"importance"`
}

// Report summarises one training run. It is written next to the artifacts
// as <model>_report.yaml.
type Report struct {
	Model       string                 `yaml:"model"`
	TrainedAt   time.Time              `yaml:"trained_at"`
	Source      string                 `yaml:"source,omitempty"`
	Samples     int                    `yaml:"samples"`
	Features    []string               `yaml:"features"`
	Classes     []string               `yaml:"classes,omitempty"`
	Params      map[string]interface{} `yaml:"params,omitempty"`
	Metrics     map[string]float64     `yaml:"metrics,omitempty"`
	Importances []FeatureImportance    `yaml:"feature_importances,omitempty"`
	Artifacts   []string               `yaml:"artifacts"`
}

// FileName returns the report's file name.
func (r *Report) FileName() string {
	return r.Model + "_report.yaml"
}

// PlotFileName returns the importance chart's file name.
func (r *Report) PlotFileName() string {
	return r.Model + "_importances.png"
}

// setImportances stores importances sorted by decreasing weight.
func (r *Report) setImportances(features []string, importances []float64) {
	r.Importances = make([]FeatureImportance, len(importances))
	for i, v := range importances {
		r.Importances[i] = FeatureImportance{Feature: features[i], Importance: v}
	}
	sort.SliceStable(r.Importances, func(a, b int) bool {
		return r.Importances[a].Importance > r.Importances[b].Importance
	})
}

// YAML encodes the report.
func (r *Report) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, errors.Wrap(err, "encode report")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode report")
	}
	return buf.Bytes(), nil
}

// ImportancePlot renders the report's importances as a PNG bar chart.
func (r *Report) ImportancePlot() ([]byte, error) {
	if len(r.Importances) == 0 {
		return nil, errors.NewValueError("ImportancePlot", "report has no feature importances")
	}

	p := plot.New()
	p.Title.Text = r.Model + " feature importances"
	p.Y.Label.Text = "importance"
	p.Y.Min = 0

	values := make(plotter.Values, len(r.Importances))
	labels := make([]string, len(r.Importances))
	for i, fi := range r.Importances {
		values[i] = fi.Importance
		labels[i] = fi.Feature
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = draw.XRight

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, errors.Wrap(err, "render plot")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "render plot")
	}
	return buf.Bytes(), nil
}
