package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
)

const validFeatures = `"nitrogen": 90, "phosphorus": 42, "potassium": 43, "temperature": 20.8, "humidity": 82, "ph": 6.5, "rainfall": 202.9`

func mustFields(t *testing.T, body string) Fields {
	t.Helper()
	fields, ok := ParseFields([]byte(body))
	require.True(t, ok, body)
	return fields
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"object", `{"a": 1}`, true},
		{"empty object", `{}`, true},
		{"array", `[1, 2]`, false},
		{"string", `"x"`, false},
		{"null", `null`, false},
		{"malformed", `{"a": `, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseFields([]byte(tt.body))
			assert.Equal(t, tt.ok, ok)
		})
	}

	fields := mustFields(t, `{"ph": 5, "ph": 7}`)
	assert.Equal(t, 7.0, fields.Float("ph"))
}

func TestValidate_Valid(t *testing.T) {
	fields := mustFields(t, `{`+validFeatures+`}`)
	valid, msg := Validate(fields, agronomy.RequiredFields(false))
	assert.True(t, valid)
	assert.Equal(t, "Valid", msg)
	assert.Equal(t, []float64{90, 42, 43, 20.8, 82, 6.5, 202.9}, fields.Features())
}

func TestValidate_Missing(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		withCrop bool
		want     string
	}{
		{
			name: "two missing",
			body: `{"nitrogen": 1, "phosphorus": 1, "potassium": 1, "temperature": 1, "humidity": 1}`,
			want: "Missing required fields: ['ph', 'rainfall']",
		},
		{
			name:     "crop missing",
			body:     `{` + validFeatures + `}`,
			withCrop: true,
			want:     "Missing required fields: ['crop']",
		},
		{
			name:     "everything missing",
			body:     `{}`,
			withCrop: true,
			want:     "Missing required fields: ['crop', 'nitrogen', 'phosphorus', 'potassium', 'temperature', 'humidity', 'ph', 'rainfall']",
		},
		{
			name: "missing wins over invalid",
			body: `{"nitrogen": "abc"}`,
			want: "Missing required fields: ['phosphorus', 'potassium', 'temperature', 'humidity', 'ph', 'rainfall']",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := Validate(mustFields(t, tt.body), agronomy.RequiredFields(tt.withCrop))
			assert.False(t, valid)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestValidate_FirstInvalidField(t *testing.T) {
	body := `{"nitrogen": 1, "phosphorus": 1, "potassium": 1, "temperature": "warm", "humidity": null, "ph": 1, "rainfall": 1}`
	valid, msg := Validate(mustFields(t, body), agronomy.RequiredFields(false))
	assert.False(t, valid)
	assert.Equal(t, "Invalid data type for field: temperature", msg)
}

func TestValidate_CropNotTypeChecked(t *testing.T) {
	valid, _ := Validate(mustFields(t, `{"crop": 12, `+validFeatures+`}`), agronomy.RequiredFields(true))
	assert.True(t, valid)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
		ok    bool
	}{
		{"integer", `12`, 12, true},
		{"float", `6.5`, 6.5, true},
		{"negative exponent", `-1.5e-2`, -0.015, true},
		{"numeric string", `"12"`, 12, true},
		{"padded string", `"  20.5\n"`, 20.5, true},
		{"exponent string", `"1e3"`, 1000, true},
		{"signed string", `"+3"`, 3, true},
		{"underscore digits", `"1_000"`, 1000, true},
		{"true", `true`, 1, true},
		{"false", `false`, 0, true},
		{"word", `"abc"`, 0, false},
		{"empty string", `""`, 0, false},
		{"blank string", `"   "`, 0, false},
		{"hex string", `"0x10"`, 0, false},
		{"double sign", `"--1"`, 0, false},
		{"leading underscore", `"_1"`, 0, false},
		{"double underscore", `"1__0"`, 0, false},
		{"null", `null`, 0, false},
		{"array", `[1]`, 0, false},
		{"object", `{"v": 1}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := mustFields(t, `{"v": `+tt.value+`}`)
			got, ok := toFloat(fields["v"])
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}

func TestToFloat_Specials(t *testing.T) {
	fields := mustFields(t, `{"a": "inf", "b": "-Infinity", "c": "NaN", "d": "1e999"}`)

	v, ok := toFloat(fields["a"])
	require.True(t, ok)
	assert.True(t, math.IsInf(v, 1))

	v, ok = toFloat(fields["b"])
	require.True(t, ok)
	assert.True(t, math.IsInf(v, -1))

	v, ok = toFloat(fields["c"])
	require.True(t, ok)
	assert.True(t, math.IsNaN(v))

	v, ok = toFloat(fields["d"])
	require.True(t, ok)
	assert.True(t, math.IsInf(v, 1))
}

func TestPyList(t *testing.T) {
	assert.Equal(t, "[]", pyList(nil))
	assert.Equal(t, "['ph']", pyList([]string{"ph"}))
	assert.Equal(t, "['a', 'b']", pyList([]string{"a", "b"}))
}
