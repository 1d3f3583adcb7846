package training

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

// BuildRanges derives the ideal range table from a labelled crop dataset:
// for every crop and feature the band between the lower and upper quantile
// of the observed values, rounded to two decimals. Crops keep the order of
// their first row.
func BuildRanges(frame *Frame, lower, upper float64) (*agronomy.RangeTable, error) {
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, errors.NewValidationError("quantiles",
			"need 0 <= lower < upper <= 1", fmt.Sprintf("[%v, %v]", lower, upper))
	}
	columns, err := frame.FeatureColumns(agronomy.FeatureColumns, agronomy.FeatureForColumn)
	if err != nil {
		return nil, err
	}
	crops, err := cropLabels(frame)
	if err != nil {
		return nil, err
	}

	var order []string
	rowsByCrop := make(map[string][]int)
	for i, crop := range crops {
		if _, seen := rowsByCrop[crop]; !seen {
			order = append(order, crop)
		}
		rowsByCrop[crop] = append(rowsByCrop[crop], i)
	}

	values := make([][]float64, len(columns))
	for j, column := range columns {
		if values[j], err = frame.Floats(column); err != nil {
			return nil, err
		}
	}

	table := agronomy.NewRangeTable()
	for _, crop := range order {
		rows := rowsByCrop[crop]
		ranges := make(agronomy.CropRanges, len(columns))
		sample := make([]float64, len(rows))
		for j, feature := range agronomy.FeatureColumns {
			for k, r := range rows {
				sample[k] = values[j][r]
			}
			sort.Float64s(sample)
			ranges[feature] = agronomy.Bounds{
				Min: round2(stat.Quantile(lower, stat.LinInterp, sample, nil)),
				Max: round2(stat.Quantile(upper, stat.LinInterp, sample, nil)),
			}
		}
		table.Set(crop, ranges)
	}
	return table, nil
}

// Ranges writes ideal_ranges.json built by BuildRanges.
func (t *Trainer) Ranges(frame *Frame) (*Report, error) {
	start := time.Now()
	table, err := BuildRanges(frame, t.opts.LowerQuantile, t.opts.UpperQuantile)
	if err != nil {
		return nil, err
	}
	if err := t.store.SaveRanges(table); err != nil {
		return nil, err
	}

	report := t.newReport("ranges", frame)
	report.Artifacts = []string{artifact.IdealRangesName}
	report.Features = agronomy.FeatureColumns
	report.Classes = table.Crops()
	report.Params = map[string]interface{}{
		"lower_quantile": t.opts.LowerQuantile,
		"upper_quantile": t.opts.UpperQuantile,
	}
	t.logger.Info("ideal ranges built", log.ClassesKey, table.Len(), log.PathKey, t.store.Dir())
	return report, t.finish(report, start)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
