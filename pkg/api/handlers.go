// Package api serves the trained crop models over HTTP.
//
// Every endpoint is an endpointFunc that returns either a result or an
// *apiError. The router renders both as JSON, so handlers never touch the
// ResponseWriter and can be tested as plain functions.
package api

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

const (
	// Version is reported by GET /.
	Version = "1.0.0"

	// YieldUnit is the unit of predicted_yield.
	YieldUnit = "kg/hectare"

	// TopCrops is the number of recommendations returned by /predict-crop.
	TopCrops = 3

	maxBodyBytes = 1 << 20
)

const (
	msgModelNotLoaded  = "Model not loaded"
	msgRangesNotLoaded = "Ideal ranges data not loaded"
	msgYieldNotLoaded  = "Yield model not loaded"
	msgDataNotLoaded   = "Data not loaded"
	msgBadBody         = "Request body must be a JSON object"
	msgBodyTooLarge    = "Request body too large"
	msgNotFound        = "Endpoint not found"
	msgMethod          = "Method not allowed"
	msgInternal        = "Internal server error"
)

var endpoints = map[string]string{
	"/predict-crop":  "POST - Predict recommended crops based on soil parameters",
	"/analyze-crop":  "POST - Analyze soil parameters for a specific crop",
	"/predict-yield": "POST - Predict yield for a specific crop and soil conditions",
	"/health":        "GET - Health check endpoint",
	"/crops":         "GET - Get list of available crops",
}

type endpointFunc func(r *http.Request) (result, *apiError)

// Handlers implements the endpoints over one immutable artifact set.
type Handlers struct {
	artifacts *artifact.Set
	logger    log.Logger
	metrics   *Metrics
}

// NewHandlers returns handlers serving set. A nil set behaves as if nothing
// loaded.
func NewHandlers(set *artifact.Set, logger log.Logger, metrics *Metrics) *Handlers {
	if set == nil {
		set = &artifact.Set{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Handlers{artifacts: set, logger: logger.With(log.ComponentKey, "api"), metrics: metrics}
}

// Home describes the API.
func (h *Handlers) Home(r *http.Request) (result, *apiError) {
	return ok(homeResponse{
		Endpoints: endpoints,
		Message:   "Crop Recommendation and Yield Analysis API",
		Version:   Version,
	}), nil
}

// PredictCrop ranks crops for the posted soil readings.
func (h *Handlers) PredictCrop(r *http.Request) (result, *apiError) {
	model := h.artifacts.Crop
	if model == nil {
		return result{}, internalError(msgModelNotLoaded)
	}

	fields, apiErr := readFields(r)
	if apiErr != nil {
		return result{}, apiErr
	}
	if valid, msg := Validate(fields, agronomy.RequiredFields(false)); !valid {
		return result{}, badRequest(msg)
	}

	start := time.Now()
	proba, err := errors.SafeCall("PredictCrop", func() ([]float64, error) {
		return model.PredictProba(fields.Features())
	})
	h.observeInference(artifact.CropModelName, start, err)
	if err != nil {
		h.logger.Error("crop prediction failed", err, log.RequestIDKey, RequestID(r.Context()))
		return result{}, internalError(err.Error())
	}

	classes := model.Classes()
	if len(classes) != len(proba) {
		return result{}, internalError(fmt.Sprintf("model returned %d probabilities for %d classes", len(proba), len(classes)))
	}
	crops, confidence := topK(classes, proba, TopCrops)
	return ok(cropPrediction{Confidence: confidence, RecommendedCrops: crops}), nil
}

// topK returns the k most probable labels in descending order. Ties keep the
// later class first.
func topK(classes []string, proba []float64, k int) ([]string, []float64) {
	idx := make([]int, len(proba))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := proba[idx[a]], proba[idx[b]]
		if pa != pb {
			return pa > pb
		}
		return idx[a] > idx[b]
	})
	if k > len(idx) {
		k = len(idx)
	}
	crops := make([]string, k)
	confidence := make([]float64, k)
	for i := 0; i < k; i++ {
		crops[i] = classes[idx[i]]
		confidence[i] = proba[idx[i]]
	}
	return crops, confidence
}

// AnalyzeCrop compares the posted readings with the crop's ideal ranges.
func (h *Handlers) AnalyzeCrop(r *http.Request) (result, *apiError) {
	table := h.artifacts.Ranges
	if table == nil {
		return result{}, internalError(msgRangesNotLoaded)
	}

	fields, crop, apiErr := h.cropRequest(r)
	if apiErr != nil {
		return result{}, apiErr
	}

	ranges, found := table.Lookup(crop)
	if !found {
		return result{}, unknownCrop(crop, table.Crops())
	}

	analysis := make(map[string]agronomy.Category, len(agronomy.FeatureColumns))
	for _, feature := range agronomy.FeatureColumns {
		bounds, ok := ranges[feature]
		if !ok {
			err := errors.NewValueError("AnalyzeCrop",
				fmt.Sprintf("no ideal range for feature '%s' of crop '%s'", feature, crop))
			h.logger.Error("incomplete ideal range entry", err, log.CropKey, crop)
			return result{}, internalError(err.Error())
		}
		analysis[feature] = bounds.Categorize(fields.Float(feature))
	}

	return ok(cropAnalysis{Analysis: analysis, Crop: crop, IdealRanges: ranges}), nil
}

// PredictYield estimates the yield of a crop under the posted conditions.
func (h *Handlers) PredictYield(r *http.Request) (result, *apiError) {
	model, encoder := h.artifacts.Yield, h.artifacts.Encoder
	if model == nil || encoder == nil {
		return result{}, internalError(msgYieldNotLoaded)
	}

	fields, crop, apiErr := h.cropRequest(r)
	if apiErr != nil {
		return result{}, apiErr
	}
	if !encoder.Has(crop) {
		return result{}, unknownCrop(crop, encoder.Classes())
	}

	start := time.Now()
	yield, err := errors.SafeCall("PredictYield", func() (float64, error) {
		code, err := encoder.Encode(crop)
		if err != nil {
			return 0, err
		}
		return model.Predict(append(fields.Features(), float64(code)))
	})
	h.observeInference(artifact.YieldModelName, start, err)
	if err != nil {
		h.logger.Error("yield prediction failed", err, log.CropKey, crop, log.RequestIDKey, RequestID(r.Context()))
		return result{}, internalError(err.Error())
	}

	return ok(yieldPrediction{Crop: crop, PredictedYield: round2(yield), Unit: YieldUnit}), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Health reports which artifacts loaded.
func (h *Handlers) Health(r *http.Request) (result, *apiError) {
	status := "unhealthy"
	if h.artifacts.Healthy() {
		status = "healthy"
	}
	return ok(healthResponse{Models: h.artifacts.Status(), Status: status}), nil
}

// Crops lists the crops of the ideal range table.
func (h *Handlers) Crops(r *http.Request) (result, *apiError) {
	table := h.artifacts.Ranges
	if table == nil {
		return result{}, internalError(msgDataNotLoaded)
	}
	return ok(cropsResponse{AvailableCrops: table.Crops(), TotalCrops: table.Len()}), nil
}

// cropRequest reads and validates a body carrying a crop name and the
// feature vector. The crop is returned lowercased.
func (h *Handlers) cropRequest(r *http.Request) (Fields, string, *apiError) {
	fields, apiErr := readFields(r)
	if apiErr != nil {
		return nil, "", apiErr
	}
	if valid, msg := Validate(fields, agronomy.RequiredFields(true)); !valid {
		return nil, "", badRequest(msg)
	}
	crop := fields[agronomy.CropField]
	if crop.Type != gjson.String {
		return nil, "", badRequest(invalidType(agronomy.CropField))
	}
	return fields, agronomy.NormalizeCrop(crop.Str), nil
}

func readFields(r *http.Request) (Fields, *apiError) {
	if r.Body == nil {
		return nil, badRequest(msgBadBody)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest(msgBadBody)
	}
	if len(body) > maxBodyBytes {
		return nil, &apiError{status: http.StatusRequestEntityTooLarge, message: msgBodyTooLarge}
	}
	fields, valid := ParseFields(body)
	if !valid {
		return nil, badRequest(msgBadBody)
	}
	return fields, nil
}

func (h *Handlers) observeInference(model string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.observeInference(model, time.Since(start), err)
}
