// Package cropadvisor serves crop recommendation, soil analysis and yield
// prediction models over a small JSON API, and trains those models offline
// from CSV datasets.
//
// The estimators follow the scikit-learn API so that code written against a
// Python training pipeline reads the same in Go: random forests are built
// from CART decision trees, fitted in parallel and persisted with gob.
//
// # Quick Start
//
// Train the models from the crop recommendation dataset and serve them:
//
//	cropadvisor-train --data Crop_recommendation.csv --models-dir models all
//	cropadvisor-api --models-dir models --port 5000
//
//	curl -X POST localhost:5000/predict-crop -d '{
//	    "nitrogen": 90, "phosphorus": 42, "potassium": 43,
//	    "temperature": 20.8, "humidity": 82, "ph": 6.5, "rainfall": 202.9
//	}'
//
// Using the estimators directly:
//
//	enc := preprocessing.NewLabelEncoder()
//	codes, _ := enc.FitTransform(labels)
//
//	forest := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(200),
//	    ensemble.WithRandomState(42),
//	)
//	if err := forest.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	proba, err := forest.PredictProba(XTest)
//
// # Packages
//
//   - sklearn/tree: DecisionTreeClassifier, DecisionTreeRegressor
//   - sklearn/ensemble: RandomForestClassifier, RandomForestRegressor
//   - preprocessing: LabelEncoder
//   - metrics: regression and classification metrics
//   - core/model: estimator interfaces, fitted state, gob persistence
//   - core/parallel: CPU fan-out used by the forests
//   - pkg/agronomy: feature vector, ideal range table, LOW/OPTIMAL/HIGH
//   - pkg/artifact: model store and the immutable artifact set
//   - pkg/api: HTTP handlers, routing, metrics and server lifecycle
//   - pkg/training: CSV loading, trainer commands, YAML reports, plots
//   - pkg/config, pkg/log, pkg/errors: configuration, logging, errors
//
// # Endpoints
//
//	GET  /               API description
//	POST /predict-crop   top 3 crops with confidence
//	POST /analyze-crop   per-feature LOW / OPTIMAL / HIGH for a crop
//	POST /predict-yield  predicted yield in kg/hectare
//	GET  /health         artifact load status
//	GET  /crops          crops of the ideal range table
//	GET  /metrics        Prometheus metrics
package cropadvisor
