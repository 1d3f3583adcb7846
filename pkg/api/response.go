package api

import (
	"encoding/json"
	"net/http"

	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
)

// result is a successful handler outcome.
type result struct {
	status int
	body   interface{}
}

func ok(body interface{}) result {
	return result{status: http.StatusOK, body: body}
}

// apiError is a handler failure rendered as {"error": ...}.
type apiError struct {
	status         int
	message        string
	availableCrops []string
}

func (e *apiError) Error() string {
	return e.message
}

func badRequest(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, message: message}
}

func internalError(message string) *apiError {
	return &apiError{status: http.StatusInternalServerError, message: message}
}

func unknownCrop(crop string, available []string) *apiError {
	if available == nil {
		available = []string{}
	}
	return &apiError{
		status:         http.StatusBadRequest,
		message:        "Crop '" + crop + "' not found in database",
		availableCrops: available,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// unknownCropBody always carries available_crops, even when it is empty.
type unknownCropBody struct {
	AvailableCrops []string `json:"available_crops"`
	Error          string   `json:"error"`
}

func (e *apiError) body() interface{} {
	if e.availableCrops != nil {
		return unknownCropBody{AvailableCrops: e.availableCrops, Error: e.message}
	}
	return errorBody{Error: e.message}
}

// Response bodies. Field order is alphabetical to keep output stable.

type homeResponse struct {
	Endpoints map[string]string `json:"endpoints"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
}

type cropPrediction struct {
	Confidence       []float64 `json:"confidence"`
	RecommendedCrops []string  `json:"recommended_crops"`
}

type cropAnalysis struct {
	Analysis    map[string]agronomy.Category `json:"analysis"`
	Crop        string                       `json:"crop"`
	IdealRanges agronomy.CropRanges          `json:"ideal_ranges"`
}

type yieldPrediction struct {
	Crop           string  `json:"crop"`
	PredictedYield float64 `json:"predicted_yield"`
	Unit           string  `json:"unit"`
}

type healthResponse struct {
	Models map[string]bool `json:"models"`
	Status string          `json:"status"`
}

type cropsResponse struct {
	AvailableCrops []string `json:"available_crops"`
	TotalCrops     int      `json:"total_crops"`
}

// writeJSON writes body with the given status. A body that cannot be encoded
// becomes the generic 500.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: msgInternal})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.status, e.body())
}
