package agronomy

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// CropRanges maps a feature name to its ideal band for one crop.
type CropRanges map[string]Bounds

// RangeTable maps crop names to their ideal ranges. Crop order follows the
// source document so listings are stable. A loaded table is never mutated.
type RangeTable struct {
	order []string
	crops map[string]CropRanges
}

// NewRangeTable returns an empty table for building with Set.
func NewRangeTable() *RangeTable {
	return &RangeTable{crops: make(map[string]CropRanges)}
}

// ParseRangeTable decodes an ideal_ranges.json document:
//
//	{"rice": {"nitrogen": {"min": 60, "max": 99}, ...}, ...}
//
// Every band must carry numeric min and max values.
func ParseRangeTable(data []byte) (*RangeTable, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.NewValueError("ParseRangeTable", "invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.NewValueError("ParseRangeTable", "top level must be an object of crops")
	}

	table := NewRangeTable()
	var parseErr error
	root.ForEach(func(cropKey, cropValue gjson.Result) bool {
		crop := cropKey.String()
		if !cropValue.IsObject() {
			parseErr = errors.NewValueError("ParseRangeTable", "crop '"+crop+"' must map to an object")
			return false
		}
		ranges := CropRanges{}
		cropValue.ForEach(func(featureKey, band gjson.Result) bool {
			feature := featureKey.String()
			min, max := band.Get("min"), band.Get("max")
			if min.Type != gjson.Number || max.Type != gjson.Number {
				parseErr = errors.NewValueError("ParseRangeTable",
					"crop '"+crop+"' feature '"+feature+"' needs numeric min and max")
				return false
			}
			ranges[feature] = Bounds{Min: min.Float(), Max: max.Float()}
			return true
		})
		if parseErr != nil {
			return false
		}
		table.Set(crop, ranges)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return table, nil
}

// Set stores the ranges of a crop, appending it to the crop order when new.
func (t *RangeTable) Set(crop string, ranges CropRanges) {
	if _, exists := t.crops[crop]; !exists {
		t.order = append(t.order, crop)
	}
	t.crops[crop] = ranges
}

// Lookup returns the ranges of a crop. The name must already be normalized.
func (t *RangeTable) Lookup(crop string) (CropRanges, bool) {
	r, ok := t.crops[crop]
	return r, ok
}

// Crops returns the crop names in document order.
func (t *RangeTable) Crops() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of crops.
func (t *RangeTable) Len() int {
	return len(t.order)
}

// MarshalJSON writes crops in table order and features in feature-vector
// order, followed by any extra features sorted by name.
func (t *RangeTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, crop := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(crop)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		ranges := t.crops[crop]
		buf.WriteByte('{')
		for j, feature := range orderedFeatures(ranges) {
			if j > 0 {
				buf.WriteByte(',')
			}
			fk, err := json.Marshal(feature)
			if err != nil {
				return nil, err
			}
			band, err := json.Marshal(ranges[feature])
			if err != nil {
				return nil, err
			}
			buf.Write(fk)
			buf.WriteByte(':')
			buf.Write(band)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func orderedFeatures(ranges CropRanges) []string {
	out := make([]string, 0, len(ranges))
	known := make(map[string]bool, len(FeatureColumns))
	for _, f := range FeatureColumns {
		known[f] = true
		if _, ok := ranges[f]; ok {
			out = append(out, f)
		}
	}
	var extra []string
	for f := range ranges {
		if !known[f] {
			extra = append(extra, f)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
