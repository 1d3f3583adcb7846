// Package log defines standard attribute keys for cropadvisor.
//
// The keys follow a hierarchical naming convention (e.g., "model.name",
// "http.route") to enable structured log analysis and filtering.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "RandomForestClassifier", "LabelEncoder"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	// Examples: "artifact", "api", "training"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy on the held-out split.
	AccuracyKey = "metrics.accuracy"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// MAEKey records mean absolute error for regression.
	MAEKey = "metrics.mae"
)

// Artifacts
const (
	// ArtifactKey names a model store entry such as "crop_model".
	ArtifactKey = "artifact.name"

	// PathKey is a filesystem path.
	PathKey = "artifact.path"
)

// HTTP
const (
	RequestIDKey = "http.request_id"
	MethodKey    = "http.method"
	RouteKey     = "http.route"
	StatusKey    = "http.status"
	AddressKey   = "http.address"
)

// Domain
const (
	// CropKey is the crop name of an analyze or yield request.
	CropKey = "crop.name"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationLoad    = "load"
	OperationSave    = "save"

	PhaseTraining  = "training"
	PhaseTesting   = "testing"
	PhaseInference = "inference"
)
