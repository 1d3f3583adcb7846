package agronomy

// Category is the verdict for one reading against an ideal band.
type Category string

const (
	Low     Category = "LOW"
	Optimal Category = "OPTIMAL"
	High    Category = "HIGH"
)

// DefaultTolerance widens an ideal band by 10% of its width on each side.
const DefaultTolerance = 0.1

// Bounds is an ideal [Min, Max] band for one feature.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Categorize compares value with the band [min, max] widened by
// (max-min)*tolerance on each side. Values on a threshold are Optimal.
// A zero-width band has no tolerance, so only the exact value is Optimal.
func Categorize(value, min, max, tolerance float64) Category {
	width := max - min
	lower := min - width*tolerance
	upper := max + width*tolerance

	switch {
	case value < lower:
		return Low
	case value > upper:
		return High
	default:
		return Optimal
	}
}

// Categorize applies Categorize with DefaultTolerance.
func (b Bounds) Categorize(value float64) Category {
	return Categorize(value, b.Min, b.Max, DefaultTolerance)
}
