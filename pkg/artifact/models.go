package artifact

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/preprocessing"
	"github.com/YuminosukeSato/cropadvisor/sklearn/ensemble"
)

// CropModel ranks crops for one feature vector.
type CropModel interface {
	// Classes returns crop labels in probability column order.
	Classes() []string
	// PredictProba returns one probability per class.
	PredictProba(features []float64) ([]float64, error)
}

// YieldModel predicts a yield from the feature vector plus the encoded crop.
type YieldModel interface {
	Predict(features []float64) (float64, error)
}

// CropEncoder maps crop names to the integer codes the yield model was
// trained with.
type CropEncoder interface {
	Classes() []string
	Has(crop string) bool
	Encode(crop string) (int, error)
}

// CropClassifier is the persisted crop recommendation model: a random forest
// trained on LabelEncoder codes plus the labels those codes stand for.
type CropClassifier struct {
	Labels []string
	Forest *ensemble.RandomForestClassifier
}

// NewCropClassifier pairs a fitted forest with the encoder used for its target.
func NewCropClassifier(forest *ensemble.RandomForestClassifier, encoder *preprocessing.LabelEncoder) (*CropClassifier, error) {
	if !forest.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "NewCropClassifier")
	}
	c := &CropClassifier{Labels: encoder.Classes(), Forest: forest}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CropClassifier) check() error {
	for _, code := range c.Forest.Classes() {
		if code < 0 || int(code) >= len(c.Labels) || code != float64(int(code)) {
			return errors.NewValueError("CropClassifier", "forest class codes do not match the label list")
		}
	}
	return nil
}

// Classes returns the crop label of every probability column.
func (c *CropClassifier) Classes() []string {
	codes := c.Forest.Classes()
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = c.Labels[int(code)]
	}
	return out
}

// PredictProba implements CropModel.
func (c *CropClassifier) PredictProba(features []float64) ([]float64, error) {
	proba, err := c.Forest.PredictProba(mat.NewDense(1, len(features), features))
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, proba), nil
}

// YieldRegressor adapts a fitted forest to YieldModel.
type YieldRegressor struct {
	Forest *ensemble.RandomForestRegressor
}

// Predict implements YieldModel.
func (y *YieldRegressor) Predict(features []float64) (float64, error) {
	pred, err := y.Forest.Predict(mat.NewDense(1, len(features), features))
	if err != nil {
		return 0, err
	}
	return pred.At(0, 0), nil
}

// Encoder adapts a fitted LabelEncoder to CropEncoder.
type Encoder struct {
	*preprocessing.LabelEncoder
}

// Encode implements CropEncoder.
func (e Encoder) Encode(crop string) (int, error) {
	codes, err := e.Transform([]string{crop})
	if err != nil {
		return 0, err
	}
	return codes[0], nil
}
