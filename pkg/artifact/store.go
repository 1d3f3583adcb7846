package artifact

import (
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/cropadvisor/core/model"
	"github.com/YuminosukeSato/cropadvisor/pkg/agronomy"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
	"github.com/YuminosukeSato/cropadvisor/preprocessing"
	"github.com/YuminosukeSato/cropadvisor/sklearn/ensemble"
)

const (
	gobExt = ".gob"

	// IdealRangesFile is the file name of the ideal range table.
	IdealRangesFile = "ideal_ranges.json"
)

// Store reads and writes artifacts in a models directory.
type Store struct {
	dir    string
	logger log.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{dir: dir, logger: logger.With(log.ComponentKey, "artifact")}
}

// Dir returns the models directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path of a gob artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+gobExt)
}

// Load reads every served artifact. Failures are logged, returned, and leave
// the corresponding Set field nil.
func (s *Store) Load() (*Set, []error) {
	set := &Set{}
	var errs []error

	record := func(name, path string, err error) {
		if err == nil {
			return
		}
		err = errors.NewArtifactError(name, path, err)
		s.logger.Error("artifact load failed", err, log.ArtifactKey, name, log.PathKey, path)
		errs = append(errs, err)
	}

	start := time.Now()
	if crop, err := s.LoadCropModel(); err != nil {
		record(CropModelName, s.Path(CropModelName), err)
	} else {
		set.Crop = crop
	}
	if forest, err := s.LoadYieldModel(); err != nil {
		record(YieldModelName, s.Path(YieldModelName), err)
	} else {
		set.Yield = &YieldRegressor{Forest: forest}
	}
	if enc, err := s.LoadLabelEncoder(LabelEncoderName); err != nil {
		record(LabelEncoderName, s.Path(LabelEncoderName), err)
	} else {
		set.Encoder = Encoder{LabelEncoder: enc}
	}
	rangesPath := filepath.Join(s.dir, IdealRangesFile)
	if table, err := s.LoadRanges(); err != nil {
		record(IdealRangesName, rangesPath, err)
	} else {
		set.Ranges = table
	}

	s.logger.Info("artifacts loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, s.dir,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		"loaded", len(Names)-len(errs),
		"failed", len(errs),
	)
	return set, errs
}

// LoadCropModel reads crop_model.gob.
func (s *Store) LoadCropModel() (*CropClassifier, error) {
	var c CropClassifier
	if err := model.LoadModel(&c, s.Path(CropModelName)); err != nil {
		return nil, err
	}
	if c.Forest == nil || len(c.Labels) == 0 {
		return nil, errors.NewValueError("LoadCropModel", "crop model has no forest or labels")
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadYieldModel reads yield_model.gob.
func (s *Store) LoadYieldModel() (*ensemble.RandomForestRegressor, error) {
	var forest ensemble.RandomForestRegressor
	if err := model.LoadModel(&forest, s.Path(YieldModelName)); err != nil {
		return nil, err
	}
	return &forest, nil
}

// LoadLabelEncoder reads a gob encoded LabelEncoder by artifact name.
func (s *Store) LoadLabelEncoder(name string) (*preprocessing.LabelEncoder, error) {
	enc := preprocessing.NewLabelEncoder()
	if err := model.LoadModel(enc, s.Path(name)); err != nil {
		return nil, err
	}
	return enc, nil
}

// LoadRanges reads ideal_ranges.json.
func (s *Store) LoadRanges() (*agronomy.RangeTable, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IdealRangesFile))
	if err != nil {
		return nil, errors.Wrap(err, "read ideal ranges")
	}
	return agronomy.ParseRangeTable(data)
}

// Save writes v as name.gob, creating the models directory when needed.
func (s *Store) Save(name string, v interface{}) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", s.dir)
	}
	path := s.Path(name)
	if err := model.SaveModel(v, path); err != nil {
		return errors.NewArtifactError(name, path, err)
	}
	s.logger.Info("artifact saved", log.OperationKey, log.OperationSave, log.ArtifactKey, name, log.PathKey, path)
	return nil
}

// SaveRanges writes the ideal range table as JSON.
func (s *Store) SaveRanges(table *agronomy.RangeTable) error {
	data, err := table.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode ideal ranges")
	}
	return s.WriteFile(IdealRangesFile, data)
}

// WriteFile atomically writes a non-gob file (reports, tables, plots) into
// the models directory.
func (s *Store) WriteFile(fileName string, data []byte) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", s.dir)
	}
	path := filepath.Join(s.dir, fileName)
	tmp, err := os.CreateTemp(s.dir, "."+fileName+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "move into %s", path)
	}
	s.logger.Info("file written", log.OperationKey, log.OperationSave, log.PathKey, path)
	return nil
}
