package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// Valid is the message returned with a passing validation.
const Valid = "Valid"

// Fields is a decoded JSON request object. For duplicate keys the last value
// wins.
type Fields map[string]gjson.Result

// ParseFields decodes a request body. ok is false when the body is not a
// JSON object.
func ParseFields(body []byte) (Fields, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, false
	}
	fields := Fields{}
	root.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})
	return fields, true
}

// Validate checks that every required field is present and that every
// required field except the crop name converts to a float. The message names
// all missing fields, or the first field with an invalid value.
func Validate(fields Fields, required []string) (bool, string) {
	var missing []string
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return false, "Missing required fields: " + pyList(missing)
	}

	for _, name := range required {
		if name == agronomy.CropField {
			continue
		}
		if _, ok := toFloat(fields[name]); !ok {
			return false, invalidType(name)
		}
	}
	return true, Valid
}

func invalidType(field string) string {
	return "Invalid data type for field: " + field
}

// Float returns the numeric value of a validated field.
func (f Fields) Float(name string) float64 {
	v, _ := toFloat(f[name])
	return v
}

// Features returns the feature vector in agronomy.FeatureColumns order.
func (f Fields) Features() []float64 {
	out := make([]float64, len(agronomy.FeatureColumns))
	for i, name := range agronomy.FeatureColumns {
		out[i] = f.Float(name)
	}
	return out
}

// toFloat converts a JSON value the way a lenient numeric cast would:
// numbers and booleans convert, as do strings holding a decimal number,
// "inf" or "nan" with optional surrounding whitespace.
func toFloat(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.True:
		return 1, true
	case gjson.False:
		return 0, true
	case gjson.String:
		return parseNumericString(v.Str)
	default:
		return 0, false
	}
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	unsigned := strings.TrimLeft(s, "+-")
	if len(s)-len(unsigned) > 1 {
		return 0, false
	}
	switch strings.ToLower(unsigned) {
	case "inf", "infinity":
		if strings.HasPrefix(s, "-") {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	case "nan":
		return math.NaN(), true
	}
	// strconv also takes hex floats and base prefixes
	if len(unsigned) > 1 && unsigned[0] == '0' && strings.ContainsAny(unsigned[1:2], "xXbBoO") {
		return 0, false
	}
	if strings.Contains(s, "_") {
		if !digitUnderscores(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, "_", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// out of range still yields ±Inf, which is a valid float
		if errors.Is(err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// digitUnderscores reports whether every underscore sits between two digits.
func digitUnderscores(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			continue
		}
		if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// pyList renders names as ['a', 'b'].
func pyList(names []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(name, "'", "\\'"))
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}
