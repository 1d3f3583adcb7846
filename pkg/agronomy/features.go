// Package agronomy holds the domain vocabulary of the crop advisor: the fixed
// soil and climate feature vector, ideal range tables and the LOW / OPTIMAL /
// HIGH classification of a reading against a crop's ideal band.
package agronomy

import "strings"

// CropField is the request field carrying the crop name.
const CropField = "crop"

// FeatureColumns is the feature vector order every model is trained with.
var FeatureColumns = []string{
	"nitrogen",
	"phosphorus",
	"potassium",
	"temperature",
	"humidity",
	"ph",
	"rainfall",
}

// RequiredFields returns the request fields an endpoint needs, with the crop
// name first when withCrop is set.
func RequiredFields(withCrop bool) []string {
	fields := make([]string, 0, len(FeatureColumns)+1)
	if withCrop {
		fields = append(fields, CropField)
	}
	return append(fields, FeatureColumns...)
}

// NormalizeCrop lowercases a crop name before any lookup.
func NormalizeCrop(name string) string {
	return strings.ToLower(name)
}

// datasetAliases maps the column headers of the public crop recommendation
// dataset onto feature names.
var datasetAliases = map[string]string{
	"n": "nitrogen",
	"p": "phosphorus",
	"k": "potassium",
}

// FeatureForColumn resolves a CSV header such as "N" or "Temperature" to a
// feature name. ok is false for columns outside the feature vector.
func FeatureForColumn(column string) (feature string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(column))
	if alias, found := datasetAliases[key]; found {
		return alias, true
	}
	for _, f := range FeatureColumns {
		if f == key {
			return f, true
		}
	}
	return "", false
}
