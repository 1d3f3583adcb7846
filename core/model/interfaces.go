// Package model provides the interfaces shared by the estimators in this module.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator

	// PredictProba returns probability estimates for each class.
	// Columns follow the order of Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []float64
}

// Regressor is the interface for models predicting a single continuous target.
type Regressor interface {
	Estimator
}

// FeatureImportancer is implemented by models that expose impurity based
// feature importances.
type FeatureImportancer interface {
	// GetFeatureImportances returns one non-negative weight per input feature,
	// normalized to sum to 1 when any split was made.
	GetFeatureImportances() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
