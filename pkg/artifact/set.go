// Package artifact loads and saves the trained models the service serves.
//
// The store is a directory of gob encoded estimators plus the ideal range
// table as JSON. Loading is fail-soft: each artifact that cannot be read is
// logged and left nil in the returned Set, and the service keeps running with
// reduced capability.
package artifact

import "github.com/YuminosukeSato/cropadvisor/pkg/agronomy"

// Artifact names as reported by /health.
const (
	CropModelName    = "crop_model"
	YieldModelName   = "yield_model"
	LabelEncoderName = "label_encoder"
	IdealRangesName  = "ideal_ranges"
)

// Names lists the served artifacts in load order.
var Names = []string{CropModelName, YieldModelName, LabelEncoderName, IdealRangesName}

// Set holds the artifacts loaded at startup. A nil field means the artifact
// failed to load. A Set is read-only once built and safe for concurrent use.
type Set struct {
	Crop    CropModel
	Yield   YieldModel
	Encoder CropEncoder
	Ranges  *agronomy.RangeTable
}

// Status reports per artifact whether it is loaded.
func (s *Set) Status() map[string]bool {
	return map[string]bool{
		CropModelName:    s.Crop != nil,
		YieldModelName:   s.Yield != nil,
		LabelEncoderName: s.Encoder != nil,
		IdealRangesName:  s.Ranges != nil,
	}
}

// Healthy is true when every artifact is loaded.
func (s *Set) Healthy() bool {
	for _, loaded := range s.Status() {
		if !loaded {
			return false
		}
	}
	return true
}
