package radar

import (
	"context"
	"runtime"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/carpart-tools/internal/detection"
)

// FrameScore is the selection and scores for one detection file.
type FrameScore struct {
	Path      string              `json:"path"`
	Selection detection.Selection `json:"selection"`
	Scores    Scores              `json:"scores"`
}

// ScoreFile parses one detection file, selects regions and scores them.
func ScoreFile(path string, mode detection.Mode, ideal IdealAreas) (FrameScore, error) {
	sel, err := detection.SelectFile(path, mode)
	if err != nil {
		return FrameScore{}, err
	}
	return FrameScore{Path: path, Selection: sel, Scores: Score(sel, ideal)}, nil
}

// ScoreFrames scores many detection files concurrently.
//
// Frames are independent, so they are processed by up to workers goroutines
// (GOMAXPROCS when workers <= 0). Results keep the order of paths. The first
// failure cancels the remaining work and is returned wrapped with its path.
// Each failing frame is logged at warn level; logger may be nil.
func ScoreFrames(ctx context.Context, paths []string, mode detection.Mode, ideal IdealAreas, workers int, logger *zap.SugaredLogger) ([]FrameScore, error) {
	if err := ideal.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]FrameScore, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fs, err := ScoreFile(path, mode, ideal)
			if err != nil {
				logger.Warnw("frame failed", "path", path, "error", err)
				return errors.Wrapf(err, "frame %s", path)
			}
			results[i] = fs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ClassSummary describes the distribution of one class's score across frames.
type ClassSummary struct {
	Class  string  `json:"class"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary aggregates per-class scores over a sequence of frames.
type Summary struct {
	Frames  int            `json:"frames"`
	Classes []ClassSummary `json:"classes"`
}

// Summarize computes per-class statistics over frame scores. An empty input
// yields a Summary with zero frames and no classes.
func Summarize(frames []FrameScore) (Summary, error) {
	sum := Summary{Frames: len(frames), Classes: []ClassSummary{}}
	if len(frames) == 0 {
		return sum, nil
	}

	for _, c := range detection.Classes() {
		data := make(stats.Float64Data, len(frames))
		for i, f := range frames {
			data[i] = f.Scores[c]
		}

		cs := ClassSummary{Class: c.String()}
		var err error
		if cs.Mean, err = data.Mean(); err != nil {
			return Summary{}, errors.Wrapf(err, "mean of %s", c)
		}
		if cs.Median, err = data.Median(); err != nil {
			return Summary{}, errors.Wrapf(err, "median of %s", c)
		}
		if cs.StdDev, err = data.StandardDeviation(); err != nil {
			return Summary{}, errors.Wrapf(err, "stddev of %s", c)
		}
		if cs.Min, err = data.Min(); err != nil {
			return Summary{}, errors.Wrapf(err, "min of %s", c)
		}
		if cs.Max, err = data.Max(); err != nil {
			return Summary{}, errors.Wrapf(err, "max of %s", c)
		}
		sum.Classes = append(sum.Classes, cs)
	}
	return sum, nil
}

// MeanScores returns the per-class mean as a score vector, suitable for
// charting a whole clip at once.
func (s Summary) MeanScores() Scores {
	var out Scores
	for i, cs := range s.Classes {
		if i < len(out) {
			out[i] = cs.Mean
		}
	}
	return out
}
