package train

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ironsheep/carpart-tools/internal/imaging"
)

// Target is the regression label of one photo.
type Target [2]float64

// Dataset pairs photo paths with their targets. Photos are decoded through
// a shared cache and converted to (3, InputSize, InputSize) tensors on
// access.
type Dataset struct {
	Files     []string
	Targets   []Target
	InputSize int

	cache *imaging.ImageCache
}

// NewDataset returns an error when files and targets differ in length.
// A nil cache gets an unbounded one.
func NewDataset(files []string, targets []Target, inputSize int, cache *imaging.ImageCache) (*Dataset, error) {
	if len(files) != len(targets) {
		return nil, errors.Errorf("dataset has %d files but %d targets", len(files), len(targets))
	}
	if inputSize <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", inputSize)
	}
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	return &Dataset{Files: files, Targets: targets, InputSize: inputSize, cache: cache}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Files) }

// Get loads sample i as CHW pixel data and its target.
func (d *Dataset) Get(i int) ([]float64, Target, error) {
	if i < 0 || i >= len(d.Files) {
		return nil, Target{}, errors.Errorf("sample %d out of range [0, %d)", i, len(d.Files))
	}
	data, err := imaging.LoadTensorData(d.cache, d.Files[i], d.InputSize)
	if err != nil {
		return nil, Target{}, errors.Wrapf(err, "sample %d", i)
	}
	return data, d.Targets[i], nil
}

// TestSet is a list of unlabeled photos to predict.
type TestSet struct {
	Files     []string
	InputSize int

	cache *imaging.ImageCache
}

// NewTestSet creates a test set. A nil cache gets an unbounded one.
func NewTestSet(files []string, inputSize int, cache *imaging.ImageCache) *TestSet {
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	return &TestSet{Files: files, InputSize: inputSize, cache: cache}
}

// Len returns the number of photos.
func (s *TestSet) Len() int { return len(s.Files) }

// Get loads photo i as CHW pixel data.
func (s *TestSet) Get(i int) ([]float64, error) {
	if i < 0 || i >= len(s.Files) {
		return nil, errors.Errorf("sample %d out of range [0, %d)", i, len(s.Files))
	}
	data, err := imaging.LoadTensorData(s.cache, s.Files[i], s.InputSize)
	return data, errors.Wrapf(err, "sample %d", i)
}

// LoadManifest reads a CSV manifest of "path,t0,t1" rows into a Dataset.
//
// A first row whose target columns are not numeric is treated as a header.
// Lines starting with # are comments. Relative image paths are resolved
// against the manifest's directory.
func LoadManifest(path string, inputSize int, cache *imaging.ImageCache) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	files, targets, err := parseManifest(f, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return NewDataset(files, targets, inputSize, cache)
}

func parseManifest(r io.Reader, baseDir string) ([]string, []Target, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 3

	var (
		files   []string
		targets []Target
	)
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := cr.FieldPos(0)

		var t Target
		ok := true
		for k := 0; k < 2; k++ {
			v, perr := strconv.ParseFloat(strings.TrimSpace(rec[k+1]), 64)
			if perr != nil {
				ok = false
				break
			}
			t[k] = v
		}
		if !ok {
			if row == 0 {
				continue
			}
			return nil, nil, errors.Errorf("line %d: targets %q, %q are not numeric", line, rec[1], rec[2])
		}

		p := strings.TrimSpace(rec[0])
		if p == "" {
			return nil, nil, errors.Errorf("line %d: empty image path", line)
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		files = append(files, p)
		targets = append(targets, t)
	}
	return files, targets, nil
}
