package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/carpart-tools/internal/config"
	"github.com/ironsheep/carpart-tools/internal/detection"
	"github.com/ironsheep/carpart-tools/internal/imaging"
	"github.com/ironsheep/carpart-tools/internal/logging"
	"github.com/ironsheep/carpart-tools/internal/nn"
	"github.com/ironsheep/carpart-tools/internal/radar"
	"github.com/ironsheep/carpart-tools/internal/train"
)

// setup loads the configuration named by --config and builds the logger.
func setup(c *cli.Context) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New("carpart", cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// selectMode resolves the --mode flag, falling back to the configured mode.
func selectMode(c *cli.Context, cfg *config.Config) (detection.Mode, error) {
	if m := c.String(flagMode); m != "" {
		return detection.ParseMode(m)
	}
	return cfg.Radar.SelectMode(), nil
}

// RadarAction is the corresponding action for 'radar'.
func RadarAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("radar takes exactly one detections FILE")
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mode, err := selectMode(c, cfg)
	if err != nil {
		return err
	}
	ideal, err := cfg.Radar.Ideal()
	if err != nil {
		return err
	}
	fs, err := radar.ScoreFile(c.Args().First(), mode, ideal)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Class", "X", "Y", "Width", "Height", "Area", "Score"})
	regions := fs.Selection.Regions()
	for _, class := range detection.Classes() {
		r := regions[class]
		t.AppendRow(table.Row{
			class.String(),
			fmt.Sprintf("%.4f", r.X),
			fmt.Sprintf("%.4f", r.Y),
			fmt.Sprintf("%.4f", r.Width),
			fmt.Sprintf("%.4f", r.Height),
			fmt.Sprintf("%.6f", r.Area),
			fmt.Sprintf("%.2f", fs.Scores[class]),
		})
	}
	fmt.Fprintln(c.App.Writer, t.Render())

	if path := c.String(flagChart); path != "" {
		chart := cfg.Radar.Chart
		if title := c.String(flagTitle); title != "" {
			chart.Title = title
		}
		if err := chart.SavePNG(path, fs.Scores); err != nil {
			return err
		}
		logger.Infow("chart written", "path", path, "mode", mode)
	}
	return nil
}

// framePaths expands directories to the detection files they contain,
// sorted by name. Plain file arguments are kept in the given order.
func framePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.txt"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return lo.Uniq(paths), nil
}

// FramesAction is the corresponding action for 'frames'.
func FramesAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("frames needs a directory or detection files")
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	paths, err := framePaths(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no detection files found")
	}
	mode, err := selectMode(c, cfg)
	if err != nil {
		return err
	}
	ideal, err := cfg.Radar.Ideal()
	if err != nil {
		return err
	}

	frames, err := radar.ScoreFrames(c.Context, paths, mode, ideal, cfg.Radar.Workers, logger)
	if err != nil {
		return err
	}
	summary, err := radar.Summarize(frames)
	if err != nil {
		return err
	}
	logger.Debugw("frames scored", "count", len(frames), "mode", mode)

	if c.Bool(flagFrames) {
		ft := table.NewWriter()
		header := table.Row{"Frame"}
		for _, l := range radar.Labels() {
			header = append(header, l)
		}
		ft.AppendHeader(header)
		for _, f := range frames {
			row := table.Row{filepath.Base(f.Path)}
			for _, v := range f.Scores {
				row = append(row, fmt.Sprintf("%.2f", v))
			}
			ft.AppendRow(row)
		}
		fmt.Fprintln(c.App.Writer, ft.Render())
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Class", "Mean", "Median", "StdDev", "Min", "Max"})
	for _, cs := range summary.Classes {
		t.AppendRow(table.Row{
			cs.Class,
			fmt.Sprintf("%.2f", cs.Mean),
			fmt.Sprintf("%.2f", cs.Median),
			fmt.Sprintf("%.2f", cs.StdDev),
			fmt.Sprintf("%.2f", cs.Min),
			fmt.Sprintf("%.2f", cs.Max),
		})
	}
	t.AppendFooter(table.Row{"Frames", summary.Frames})
	fmt.Fprintln(c.App.Writer, t.Render())

	if path := c.String(flagChart); path != "" {
		if err := cfg.Radar.Chart.SavePNG(path, summary.MeanScores()); err != nil {
			return err
		}
		logger.Infow("chart written", "path", path)
	}
	return nil
}

// TrainAction is the corresponding action for 'train'.
func TrainAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cache := train.NewCache(cfg.Train)
	trainSet, err := train.LoadManifest(c.String(flagManifest), cfg.Train.InputSize, cache)
	if err != nil {
		return err
	}
	var testSet *train.Dataset
	if path := c.String(flagTest); path != "" {
		if testSet, err = train.LoadManifest(path, cfg.Train.InputSize, cache); err != nil {
			return err
		}
	}

	trainer, err := train.NewTrainer(cfg.Train, trainSet, testSet, logger)
	if err != nil {
		return err
	}
	trainer.Progress = c.Bool(flagProgress)
	logger.Infow("training",
		"samples", trainSet.Len(),
		"params", trainer.Model.NumParams(),
		"optimizer", cfg.Train.Optimizer,
	)

	epochs := cfg.Train.Epochs
	if c.IsSet(flagEpochs) {
		epochs = c.Int(flagEpochs)
	}
	losses, err := trainer.Train(c.Context, epochs)
	if err != nil {
		return err
	}

	out := c.String(flagOut)
	if err := trainer.Model.SaveFile(out); err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Epoch", "Loss"})
	for i, l := range losses {
		t.AppendRow(table.Row{i + 1, fmt.Sprintf("%.5f", l)})
	}
	if testSet != nil {
		testLoss, err := trainer.Test(c.Context)
		if err != nil {
			return err
		}
		t.AppendFooter(table.Row{"Test", fmt.Sprintf("%.5f", testLoss)})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	logger.Infow("model saved", "path", out)
	return nil
}

// PredictAction is the corresponding action for 'predict'.
func PredictAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("predict needs at least one image")
	}
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	model, err := nn.LoadFile(c.String(flagModel))
	if err != nil {
		return err
	}
	paths := c.Args().Slice()
	cache := imaging.NewBoundedImageCache(cfg.Train.CacheSize)
	preds, err := train.Predict(c.Context, model, train.NewTestSet(paths, model.Topology.InputSize, cache), cfg.Train.BatchSize)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Image", "X", "Y"})
	for i, p := range preds {
		t.AppendRow(table.Row{paths[i], fmt.Sprintf("%.5f", p[0]), fmt.Sprintf("%.5f", p[1])})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// ConfigInitAction is the corresponding action for 'config init'.
func ConfigInitAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("config init takes exactly one FILE")
	}
	path := c.Args().First()
	if _, err := os.Stat(path); err == nil && !c.Bool(flagForce) {
		return errors.Errorf("%s already exists, use --%s to overwrite it", path, flagForce)
	}

	cfg := config.Default()
	if err := cfg.Radar.SpellOutIdeal(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}
