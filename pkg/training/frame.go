package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// Frame is a CSV table held as strings. Columns are typed on access.
type Frame struct {
	header  []string
	index   map[string]int
	records [][]string
}

// ReadCSVFile reads a CSV file whose first row is the header.
func ReadCSVFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return frame, nil
}

// ReadCSV reads a CSV stream whose first row is the header.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("ReadCSV", "empty data", errors.ErrEmptyData)
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; dup {
			return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("duplicate column %q", name))
		}
		header[i] = name
		index[name] = i
	}
	if len(records) == 1 {
		return nil, errors.NewModelError("ReadCSV", "no data rows", errors.ErrEmptyData)
	}
	return &Frame{header: header, index: index, records: records[1:]}, nil
}

// Columns returns the header in file order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.header))
	copy(out, f.header)
	return out
}

// Len returns the number of data rows.
func (f *Frame) Len() int {
	return len(f.records)
}

// Has reports whether the column exists.
func (f *Frame) Has(column string) bool {
	_, ok := f.index[column]
	return ok
}

func (f *Frame) col(column string) (int, error) {
	i, ok := f.index[column]
	if !ok {
		return 0, errors.NewValueError("Frame", fmt.Sprintf("column %q not found in %v", column, f.header))
	}
	return i, nil
}

// Strings returns a column as raw strings.
func (f *Frame) Strings(column string) ([]string, error) {
	i, err := f.col(column)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f.records))
	for r, rec := range f.records {
		out[r] = strings.TrimSpace(rec[i])
	}
	return out, nil
}

// Floats parses a column as float64.
func (f *Frame) Floats(column string) ([]float64, error) {
	values, err := f.Strings(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for r, s := range values {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.NewValueError("Frame.Floats",
				fmt.Sprintf("column %q row %d: %q is not numeric", column, r+1, s))
		}
		out[r] = v
	}
	return out, nil
}

// IsNumeric reports whether every value of the column parses as a number.
func (f *Frame) IsNumeric(column string) bool {
	_, err := f.Floats(column)
	return err == nil
}

// Matrix assembles the named numeric columns into an n×len(columns) matrix.
func (f *Frame) Matrix(columns []string) (*mat.Dense, error) {
	X := mat.NewDense(f.Len(), len(columns), nil)
	for j, name := range columns {
		values, err := f.Floats(name)
		if err != nil {
			return nil, err
		}
		X.SetCol(j, values)
	}
	return X, nil
}

// FeatureColumns maps every agronomy feature to the CSV column holding it,
// accepting dataset headers such as N, P and K.
func (f *Frame) FeatureColumns(features []string, resolve func(string) (string, bool)) ([]string, error) {
	found := make(map[string]string, len(features))
	for _, column := range f.header {
		if feature, ok := resolve(column); ok {
			if _, dup := found[feature]; !dup {
				found[feature] = column
			}
		}
	}
	out := make([]string, len(features))
	var missing []string
	for i, feature := range features {
		column, ok := found[feature]
		if !ok {
			missing = append(missing, feature)
			continue
		}
		out[i] = column
	}
	if len(missing) > 0 {
		return nil, errors.NewValueError("Frame.FeatureColumns",
			fmt.Sprintf("no column for features %v in %v", missing, f.header))
	}
	return out, nil
}
