// Package training fits the models the API serves and writes them to the
// artifact store.
//
// 各コマンドは CSV を読み込み、エンコーダとランダムフォレストを学習し、
// アーティファクトと YAML レポートを保存する。
package training

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/metrics"
	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
	"github.com/YuminosukeSato/cropadvisor/preprocessing"
	"github.com/YuminosukeSato/cropadvisor/sklearn/ensemble"
)

// Dataset column names.
const (
	FertilizerColumn = "fertilizer_recommendation"
	LabelColumn      = "label"
	YieldColumn      = "yield"
)

// Artifact names written only by the trainer.
const (
	FertilizerModelName   = "fertilizer_model"
	FertilizerEncoderName = "fertilizer_encoder"
	CropEncoderName       = "crop_encoder"
)

// Options controls the forests the trainer fits.
type Options struct {
	NEstimators int
	MaxDepth    int
	RandomState int64
	NJobs       int
	// LowerQuantile and UpperQuantile bound the ideal ranges derived from
	// the crop dataset.
	LowerQuantile float64
	UpperQuantile float64
	// Plot renders an importance chart next to each report.
	Plot bool
	// Source names the input file in reports.
	Source string
}

// DefaultOptions matches the reference training run: 200 trees, seed 42.
func DefaultOptions() Options {
	return Options{
		NEstimators:   200,
		RandomState:   42,
		NJobs:         -1,
		LowerQuantile: 0.1,
		UpperQuantile: 0.9,
	}
}

func (o Options) forestOptions() []ensemble.Option {
	return []ensemble.Option{
		ensemble.WithNEstimators(o.NEstimators),
		ensemble.WithMaxDepth(o.MaxDepth),
		ensemble.WithRandomState(o.RandomState),
		ensemble.WithNJobs(o.NJobs),
	}
}

// Trainer fits models and persists them through a store.
type Trainer struct {
	store  *artifact.Store
	logger log.Logger
	opts   Options
}

// NewTrainer returns a trainer writing into store.
func NewTrainer(store *artifact.Store, logger log.Logger, opts Options) *Trainer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Trainer{store: store, logger: logger.With(log.ComponentKey, "trainer"), opts: opts}
}

// Fertilizer trains the fertilizer recommendation model. Every column except
// the fertilizer label is a feature; a textual crop label column is encoded
// first and its encoder saved as crop_encoder.
func (t *Trainer) Fertilizer(frame *Frame) (*Report, error) {
	start := time.Now()
	if !frame.Has(FertilizerColumn) {
		return nil, errors.NewValueError("Trainer.Fertilizer", fmt.Sprintf("column %q not found", FertilizerColumn))
	}
	if !frame.Has(LabelColumn) {
		return nil, errors.NewValueError("Trainer.Fertilizer", fmt.Sprintf("column %q not found", LabelColumn))
	}

	report := t.newReport("fertilizer", frame)
	var features []string
	for _, c := range frame.Columns() {
		if c != FertilizerColumn {
			features = append(features, c)
		}
	}

	var cropCodes []float64
	if !frame.IsNumeric(LabelColumn) {
		crops, err := frame.Strings(LabelColumn)
		if err != nil {
			return nil, err
		}
		enc := preprocessing.NewLabelEncoder()
		codes, err := enc.FitTransform(crops)
		if err != nil {
			return nil, err
		}
		cropCodes = intsToFloats(codes)
		if err := t.store.Save(CropEncoderName, enc); err != nil {
			return nil, err
		}
		report.Artifacts = append(report.Artifacts, CropEncoderName)
	}

	X := mat.NewDense(frame.Len(), len(features), nil)
	for j, name := range features {
		if name == LabelColumn && cropCodes != nil {
			X.SetCol(j, cropCodes)
			continue
		}
		values, err := frame.Floats(name)
		if err != nil {
			return nil, err
		}
		X.SetCol(j, values)
	}

	labels, err := frame.Strings(FertilizerColumn)
	if err != nil {
		return nil, err
	}
	enc := preprocessing.NewLabelEncoder()
	codes, err := enc.FitTransform(labels)
	if err != nil {
		return nil, err
	}
	y := mat.NewDense(len(codes), 1, intsToFloats(codes))

	forest := ensemble.NewRandomForestClassifier(t.opts.forestOptions()...)
	if err := t.fit("fertilizer", forest.Fit, X, y); err != nil {
		return nil, err
	}

	if err := t.store.Save(FertilizerModelName, forest); err != nil {
		return nil, err
	}
	if err := t.store.Save(FertilizerEncoderName, enc); err != nil {
		return nil, err
	}
	report.Artifacts = append(report.Artifacts, FertilizerModelName, FertilizerEncoderName)

	report.Features = features
	report.Classes = enc.Classes()
	report.Params = forest.GetParams()
	report.Metrics = map[string]float64{"train_accuracy": forest.Score(X, y)}
	report.setImportances(features, forest.GetFeatureImportances())
	return report, t.finish(report, start)
}

// Crop trains the crop recommendation classifier served by /predict-crop.
func (t *Trainer) Crop(frame *Frame) (*Report, error) {
	start := time.Now()
	columns, err := frame.FeatureColumns(agronomy.FeatureColumns, agronomy.FeatureForColumn)
	if err != nil {
		return nil, err
	}
	X, err := frame.Matrix(columns)
	if err != nil {
		return nil, err
	}
	crops, err := cropLabels(frame)
	if err != nil {
		return nil, err
	}

	enc := preprocessing.NewLabelEncoder()
	codes, err := enc.FitTransform(crops)
	if err != nil {
		return nil, err
	}
	y := mat.NewDense(len(codes), 1, intsToFloats(codes))

	forest := ensemble.NewRandomForestClassifier(t.opts.forestOptions()...)
	if err := t.fit("crop", forest.Fit, X, y); err != nil {
		return nil, err
	}
	classifier, err := artifact.NewCropClassifier(forest, enc)
	if err != nil {
		return nil, err
	}
	if err := t.store.Save(artifact.CropModelName, classifier); err != nil {
		return nil, err
	}

	report := t.newReport("crop", frame)
	report.Artifacts = []string{artifact.CropModelName}
	report.Features = agronomy.FeatureColumns
	report.Classes = enc.Classes()
	report.Params = forest.GetParams()
	report.Metrics = map[string]float64{"train_accuracy": forest.Score(X, y)}
	report.setImportances(agronomy.FeatureColumns, forest.GetFeatureImportances())
	return report, t.finish(report, start)
}

// Yield trains the yield regressor served by /predict-yield on the feature
// vector plus the encoded crop, and saves the crop encoder as label_encoder.
func (t *Trainer) Yield(frame *Frame) (*Report, error) {
	start := time.Now()
	columns, err := frame.FeatureColumns(agronomy.FeatureColumns, agronomy.FeatureForColumn)
	if err != nil {
		return nil, err
	}
	base, err := frame.Matrix(columns)
	if err != nil {
		return nil, err
	}
	crops, err := cropLabels(frame)
	if err != nil {
		return nil, err
	}
	target, err := frame.Floats(YieldColumn)
	if err != nil {
		return nil, err
	}

	enc := preprocessing.NewLabelEncoder()
	codes, err := enc.FitTransform(crops)
	if err != nil {
		return nil, err
	}

	rows, cols := base.Dims()
	X := mat.NewDense(rows, cols+1, nil)
	X.Slice(0, rows, 0, cols).(*mat.Dense).Copy(base)
	X.SetCol(cols, intsToFloats(codes))
	y := mat.NewDense(rows, 1, target)

	forest := ensemble.NewRandomForestRegressor(t.opts.forestOptions()...)
	if err := t.fit("yield", forest.Fit, X, y); err != nil {
		return nil, err
	}
	if err := t.store.Save(artifact.YieldModelName, forest); err != nil {
		return nil, err
	}
	if err := t.store.Save(artifact.LabelEncoderName, enc); err != nil {
		return nil, err
	}

	pred, err := forest.Predict(X)
	if err != nil {
		return nil, err
	}
	scores, err := yieldScores(mat.NewVecDense(rows, target), mat.NewVecDense(rows, mat.Col(nil, 0, pred)))
	if err != nil {
		return nil, err
	}
	scores["train_r2"] = forest.Score(X, y)

	features := append(append([]string{}, agronomy.FeatureColumns...), "crop_encoded")
	report := t.newReport("yield", frame)
	report.Artifacts = []string{artifact.YieldModelName, artifact.LabelEncoderName}
	report.Features = features
	report.Classes = enc.Classes()
	report.Params = forest.GetParams()
	report.Metrics = scores
	report.setImportances(features, forest.GetFeatureImportances())
	return report, t.finish(report, start)
}

// yieldScores は学習データ上の誤差指標を返す
// 収量が全て0のデータでは MAPE を省く。
func yieldScores(yTrue, yPred *mat.VecDense) (map[string]float64, error) {
	mae, err := metrics.MAE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	rmse, err := metrics.RMSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	scores := map[string]float64{"train_mae": mae, "train_rmse": rmse}
	if mape, err := metrics.MAPE(yTrue, yPred); err == nil {
		scores["train_mape"] = mape
	}
	return scores, nil
}

// cropLabels returns the lowercased crop label column.
func cropLabels(frame *Frame) ([]string, error) {
	column := LabelColumn
	if !frame.Has(column) && frame.Has(agronomy.CropField) {
		column = agronomy.CropField
	}
	crops, err := frame.Strings(column)
	if err != nil {
		return nil, err
	}
	for i, c := range crops {
		crops[i] = agronomy.NormalizeCrop(c)
	}
	return crops, nil
}

func (t *Trainer) fit(model string, fit func(X, y mat.Matrix) error, X, y mat.Matrix) error {
	rows, cols := X.Dims()
	t.logger.Info("training started",
		log.ModelNameKey, model,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.RandomSeedKey, t.opts.RandomState,
	)
	start := time.Now()
	if err := fit(X, y); err != nil {
		return errors.Wrapf(err, "fit %s model", model)
	}
	t.logger.Info("training finished",
		log.ModelNameKey, model,
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (t *Trainer) newReport(model string, frame *Frame) *Report {
	return &Report{
		Model:     model,
		TrainedAt: time.Now().UTC(),
		Source:    t.opts.Source,
		Samples:   frame.Len(),
	}
}

// finish writes the report and optional plot.
func (t *Trainer) finish(report *Report, start time.Time) error {
	data, err := report.YAML()
	if err != nil {
		return err
	}
	if err := t.store.WriteFile(report.FileName(), data); err != nil {
		return err
	}
	if t.opts.Plot && len(report.Importances) > 0 {
		png, err := report.ImportancePlot()
		if err != nil {
			return err
		}
		if err := t.store.WriteFile(report.PlotFileName(), png); err != nil {
			return err
		}
	}

	fields := []any{
		log.ModelNameKey, report.Model,
		log.SamplesKey, report.Samples,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if v, ok := report.Metrics["train_accuracy"]; ok {
		fields = append(fields, log.AccuracyKey, v)
	}
	if v, ok := report.Metrics["train_r2"]; ok {
		fields = append(fields, log.R2ScoreKey, v, log.MAEKey, report.Metrics["train_mae"])
	}
	if len(report.Classes) > 0 {
		fields = append(fields, log.ClassesKey, len(report.Classes))
	}
	t.logger.Info("model trained", fields...)
	return nil
}

func intsToFloats(codes []int) []float64 {
	out := make([]float64, len(codes))
	for i, c := range codes {
		out[i] = float64(c)
	}
	return out
}
