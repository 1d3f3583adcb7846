package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

type fakeCropModel struct {
	classes []string
	proba   []float64
	err     error
	panic   bool
	calls   int
}

func (m *fakeCropModel) Classes() []string { return m.classes }

func (m *fakeCropModel) PredictProba(features []float64) ([]float64, error) {
	m.calls++
	if m.panic {
		panic("boom")
	}
	if len(features) != len(agronomy.FeatureColumns) {
		return nil, errors.NewDimensionError("fake", len(agronomy.FeatureColumns), len(features), 1)
	}
	return m.proba, m.err
}

type fakeYieldModel struct {
	value float64
	got   []float64
	calls int
}

func (m *fakeYieldModel) Predict(features []float64) (float64, error) {
	m.calls++
	m.got = features
	return m.value, nil
}

type fakeEncoder struct {
	classes []string
}

func (e fakeEncoder) Classes() []string { return e.classes }

func (e fakeEncoder) Has(crop string) bool {
	_, err := e.Encode(crop)
	return err == nil
}

func (e fakeEncoder) Encode(crop string) (int, error) {
	for i, c := range e.classes {
		if c == crop {
			return i, nil
		}
	}
	return 0, errors.NewValueError("fakeEncoder", "unseen "+crop)
}

const rangesJSON = `{
	"rice": {
		"nitrogen": {"min": 10, "max": 20}, "phosphorus": {"min": 10, "max": 20},
		"potassium": {"min": 10, "max": 20}, "temperature": {"min": 10, "max": 20},
		"humidity": {"min": 10, "max": 20}, "ph": {"min": 10, "max": 20},
		"rainfall": {"min": 10, "max": 20}
	},
	"maize": {"nitrogen": {"min": 60, "max": 100}},
	"apple": {
		"nitrogen": {"min": 0, "max": 40}, "phosphorus": {"min": 120, "max": 145},
		"potassium": {"min": 195, "max": 205}, "temperature": {"min": 21, "max": 24},
		"humidity": {"min": 90, "max": 95}, "ph": {"min": 5.5, "max": 6.5},
		"rainfall": {"min": 100, "max": 125}
	}
}`

func fullSet(t *testing.T) (*artifact.Set, *fakeYieldModel) {
	t.Helper()
	table, err := agronomy.ParseRangeTable([]byte(rangesJSON))
	require.NoError(t, err)
	yield := &fakeYieldModel{value: 1234.5678}
	return &artifact.Set{
		Crop: &fakeCropModel{
			classes: []string{"apple", "banana", "rice", "maize"},
			proba:   []float64{0.1, 0.4, 0.2, 0.3},
		},
		Yield:   yield,
		Encoder: fakeEncoder{classes: []string{"maize", "rice"}},
		Ranges:  table,
	}, yield
}

func newTestRouter(set *artifact.Set) http.Handler {
	return NewRouter(NewHandlers(set, log.Nop(), nil), nil, log.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHome(t *testing.T) {
	rec, body := do(t, newTestRouter(nil), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Crop Recommendation and Yield Analysis API", body["message"])
	assert.Equal(t, "1.0.0", body["version"])
	eps, ok := body["endpoints"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, eps, 5)
	assert.Equal(t, "GET - Health check endpoint", eps["/health"])
}

func TestPredictCrop(t *testing.T) {
	set, _ := fullSet(t)
	rec, body := do(t, newTestRouter(set), http.MethodPost, "/predict-crop", `{`+validFeatures+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []interface{}{"banana", "maize", "rice"}, body["recommended_crops"])
	confidence := body["confidence"].([]interface{})
	require.Len(t, confidence, 3)
	prev := 1.0
	for _, c := range confidence {
		v := c.(float64)
		assert.True(t, v >= 0 && v <= 1)
		assert.LessOrEqual(t, v, prev)
		prev = v
	}
	assert.Equal(t, []interface{}{0.4, 0.3, 0.2}, confidence)
}

func TestPredictCrop_Errors(t *testing.T) {
	set, _ := fullSet(t)
	tests := []struct {
		name   string
		set    *artifact.Set
		body   string
		status int
		msg    string
	}{
		{"model missing", &artifact.Set{}, `{}`, http.StatusInternalServerError, "Model not loaded"},
		{"missing fields", set, `{"nitrogen": 1}`, http.StatusBadRequest,
			"Missing required fields: ['phosphorus', 'potassium', 'temperature', 'humidity', 'ph', 'rainfall']"},
		{"invalid field", set, `{` + strings.Replace(validFeatures, `"ph": 6.5`, `"ph": "acidic"`, 1) + `}`,
			http.StatusBadRequest, "Invalid data type for field: ph"},
		{"not an object", set, `[1, 2, 3]`, http.StatusBadRequest, "Request body must be a JSON object"},
		{"malformed", set, `{"nitrogen": `, http.StatusBadRequest, "Request body must be a JSON object"},
		{"empty body", set, ``, http.StatusBadRequest, "Request body must be a JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, newTestRouter(tt.set), http.MethodPost, "/predict-crop", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestPredictCrop_InferenceFailure(t *testing.T) {
	set := &artifact.Set{Crop: &fakeCropModel{classes: []string{"a"}, err: errors.New("model exploded")}}
	rec, body := do(t, newTestRouter(set), http.MethodPost, "/predict-crop", `{`+validFeatures+`}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "model exploded", body["error"])

	set = &artifact.Set{Crop: &fakeCropModel{panic: true}}
	rec, body = do(t, newTestRouter(set), http.MethodPost, "/predict-crop", `{`+validFeatures+`}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "panic in PredictCrop: boom", body["error"])
}

func TestTopK(t *testing.T) {
	crops, conf := topK([]string{"a", "b", "c", "d"}, []float64{0.25, 0.25, 0.5, 0}, 3)
	assert.Equal(t, []string{"c", "b", "a"}, crops)
	assert.Equal(t, []float64{0.5, 0.25, 0.25}, conf)

	crops, conf = topK([]string{"a", "b"}, []float64{0.3, 0.7}, 3)
	assert.Equal(t, []string{"b", "a"}, crops)
	assert.Equal(t, []float64{0.7, 0.3}, conf)
}

func TestAnalyzeCrop(t *testing.T) {
	set, _ := fullSet(t)
	req := `{"crop": "RiCe", "nitrogen": 9, "phosphorus": 8.99, "potassium": "21", "temperature": 21.5,
		"humidity": 15, "ph": 10, "rainfall": 20}`
	rec, body := do(t, newTestRouter(set), http.MethodPost, "/analyze-crop", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "rice", body["crop"])
	assert.Equal(t, map[string]interface{}{
		"nitrogen":    "OPTIMAL",
		"phosphorus":  "LOW",
		"potassium":   "OPTIMAL",
		"temperature": "HIGH",
		"humidity":    "OPTIMAL",
		"ph":          "OPTIMAL",
		"rainfall":    "OPTIMAL",
	}, body["analysis"])

	ranges := body["ideal_ranges"].(map[string]interface{})
	assert.Len(t, ranges, 7)
	assert.Equal(t, map[string]interface{}{"min": 10.0, "max": 20.0}, ranges["ph"])
}

func TestAnalyzeCrop_Errors(t *testing.T) {
	set, _ := fullSet(t)

	rec, body := do(t, newTestRouter(set), http.MethodPost, "/analyze-crop", `{"crop": "Wheat", `+validFeatures+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Crop 'wheat' not found in database", body["error"])
	assert.Equal(t, []interface{}{"rice", "maize", "apple"}, body["available_crops"])

	rec, body = do(t, newTestRouter(set), http.MethodPost, "/analyze-crop", `{"crop": 7, `+validFeatures+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid data type for field: crop", body["error"])

	rec, body = do(t, newTestRouter(set), http.MethodPost, "/analyze-crop", `{"crop": "maize", `+validFeatures+`}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "phosphorus")

	rec, body = do(t, newTestRouter(&artifact.Set{}), http.MethodPost, "/analyze-crop", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Ideal ranges data not loaded", body["error"])
}

func TestAnalyzeCrop_EmptyTable(t *testing.T) {
	table, err := agronomy.ParseRangeTable([]byte(`{}`))
	require.NoError(t, err)

	rec, body := do(t, newTestRouter(&artifact.Set{Ranges: table}), http.MethodPost, "/analyze-crop",
		`{"crop": "rice", `+validFeatures+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Crop 'rice' not found in database", body["error"])
	require.Contains(t, body, "available_crops")
	assert.Equal(t, []interface{}{}, body["available_crops"])
}

func TestPredictYield(t *testing.T) {
	set, yield := fullSet(t)
	rec, body := do(t, newTestRouter(set), http.MethodPost, "/predict-yield", `{"crop": "RICE", `+validFeatures+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 1234.57, body["predicted_yield"])
	assert.Equal(t, "rice", body["crop"])
	assert.Equal(t, "kg/hectare", body["unit"])
	assert.Equal(t, []float64{90, 42, 43, 20.8, 82, 6.5, 202.9, 1}, yield.got)
}

func TestPredictYield_Errors(t *testing.T) {
	set, _ := fullSet(t)

	rec, body := do(t, newTestRouter(set), http.MethodPost, "/predict-yield", `{"crop": "apple", `+validFeatures+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Crop 'apple' not found in database", body["error"])
	assert.Equal(t, []interface{}{"maize", "rice"}, body["available_crops"])

	noEncoder := *set
	noEncoder.Encoder = nil
	rec, body = do(t, newTestRouter(&noEncoder), http.MethodPost, "/predict-yield", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Yield model not loaded", body["error"])

	noYield := *set
	noYield.Yield = nil
	rec, body = do(t, newTestRouter(&noYield), http.MethodPost, "/predict-yield", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Yield model not loaded", body["error"])
}

func TestRejectedInput_NoInference(t *testing.T) {
	withCrop := func(crop string) string { return `{"crop": "` + crop + `", ` + validFeatures + `}` }
	invalid := strings.Replace(validFeatures, `"rainfall": 202.9`, `"rainfall": null`, 1)
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"predict-crop missing fields", "/predict-crop", `{"nitrogen": 90}`, http.StatusBadRequest},
		{"predict-crop invalid type", "/predict-crop", `{` + invalid + `}`, http.StatusBadRequest},
		{"analyze-crop missing fields", "/analyze-crop", `{"crop": "rice"}`, http.StatusBadRequest},
		{"analyze-crop invalid type", "/analyze-crop", `{"crop": "rice", ` + invalid + `}`, http.StatusBadRequest},
		{"analyze-crop unknown crop", "/analyze-crop", withCrop("wheat"), http.StatusBadRequest},
		{"predict-yield missing fields", "/predict-yield", `{"crop": "rice"}`, http.StatusBadRequest},
		{"predict-yield invalid type", "/predict-yield", `{"crop": "rice", ` + invalid + `}`, http.StatusBadRequest},
		{"predict-yield unknown crop", "/predict-yield", withCrop("wheat"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, yield := fullSet(t)
			crop := set.Crop.(*fakeCropModel)

			rec, _ := do(t, newTestRouter(set), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Zero(t, crop.calls)
			assert.Zero(t, yield.calls)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1234.57, round2(1234.5678))
	assert.Equal(t, 10.0, round2(10))
	assert.Equal(t, -3.14, round2(-3.14159))
}

func TestHealth(t *testing.T) {
	set, _ := fullSet(t)
	rec, body := do(t, newTestRouter(set), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	drops := map[string]func(s *artifact.Set){
		"crop_model":    func(s *artifact.Set) { s.Crop = nil },
		"yield_model":   func(s *artifact.Set) { s.Yield = nil },
		"label_encoder": func(s *artifact.Set) { s.Encoder = nil },
		"ideal_ranges":  func(s *artifact.Set) { s.Ranges = nil },
	}
	for name, drop := range drops {
		t.Run(name, func(t *testing.T) {
			partial := *set
			drop(&partial)
			rec, body := do(t, newTestRouter(&partial), http.MethodGet, "/health", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "unhealthy", body["status"])
			models := body["models"].(map[string]interface{})
			assert.Equal(t, false, models[name])
			assert.Len(t, models, 4)
		})
	}
}

func TestCrops(t *testing.T) {
	set, _ := fullSet(t)
	rec, body := do(t, newTestRouter(set), http.MethodGet, "/crops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"rice", "maize", "apple"}, body["available_crops"])
	assert.Equal(t, 3.0, body["total_crops"])

	rec, body = do(t, newTestRouter(&artifact.Set{}), http.MethodGet, "/crops", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Data not loaded", body["error"])
}

func TestRouting(t *testing.T) {
	router := newTestRouter(nil)

	rec, body := do(t, router, http.MethodGet, "/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", body["error"])

	rec, body = do(t, router, http.MethodGet, "/predict-crop", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])

	rec, body = do(t, router, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])

	for _, path := range []string{"/", "/health", "/crops"} {
		req := httptest.NewRequest(http.MethodHead, path, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
	rec, _ = do(t, router, http.MethodHead, "/predict-crop", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(nil)

	rec, _ := do(t, router, http.MethodGet, "/health", "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	h := recoveryMiddleware(logger, NewMetrics())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}))

	rec, body := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.True(t, logger.ContainsMessage("panic recovered"))
}
