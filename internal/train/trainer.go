package train

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/ironsheep/carpart-tools/internal/config"
	"github.com/ironsheep/carpart-tools/internal/imaging"
	"github.com/ironsheep/carpart-tools/internal/nn"
)

type progress interface {
	Increment() *pterm.ProgressbarPrinter
	Stop() (*pterm.ProgressbarPrinter, error)
}

type progressFactory func(title string, total int) (progress, error)

var defaultProgressFactory progressFactory = func(title string, total int) (progress, error) {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		WithRemoveWhenDone(true).
		WithWriter(os.Stderr).
		Start()
	if err != nil {
		return nil, err
	}
	return bar, nil
}

// Trainer fits a Regressor to a Dataset with an optimizer and a StepLR
// schedule.
type Trainer struct {
	Model     *nn.Regressor
	Optimizer nn.Optimizer
	Scheduler *StepLR
	TrainData *Loader
	TestData  *Loader // may be nil

	// Progress shows a per-epoch progress bar on stderr.
	Progress bool

	logger *zap.SugaredLogger
}

// NewOptimizer builds the optimizer named in the config ("sgd" or "adam").
func NewOptimizer(cfg config.TrainConfig, params []*nn.Param) (nn.Optimizer, error) {
	switch strings.ToLower(cfg.Optimizer) {
	case "sgd", "":
		return nn.NewSGD(params, cfg.LearningRate, cfg.Momentum, cfg.WeightDecay), nil
	case "adam":
		return nn.NewAdam(params, cfg.LearningRate, cfg.WeightDecay), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// TopologyFromConfig extracts the network architecture.
func TopologyFromConfig(cfg config.TrainConfig) nn.Topology {
	return nn.Topology{
		InputSize: cfg.InputSize,
		Channels:  cfg.Channels,
		Pool:      cfg.Pool,
		Hidden:    cfg.Hidden,
		Outputs:   cfg.Outputs,
	}
}

// NewTrainer builds a fresh model, optimizer, scheduler and loaders from
// cfg. testData may be nil.
func NewTrainer(cfg config.TrainConfig, trainData, testData *Dataset, logger *zap.SugaredLogger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if trainData == nil || trainData.Len() == 0 {
		return nil, errors.New("training set is empty")
	}
	top := TopologyFromConfig(cfg)
	if top.Outputs != len(Target{}) {
		return nil, errors.Errorf("model outputs %d values but targets have %d", top.Outputs, len(Target{}))
	}
	model, err := nn.NewRegressor(top, cfg.Seed)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(cfg, model.Params())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	t := &Trainer{
		Model:     model,
		Optimizer: opt,
		Scheduler: NewStepLR(opt, cfg.StepSize, cfg.Gamma),
		TrainData: NewLoader(trainData, cfg.BatchSize, cfg.Shuffle, cfg.Seed),
		logger:    logger,
	}
	if testData != nil && testData.Len() > 0 {
		t.TestData = NewLoader(testData, cfg.BatchSize, false, cfg.Seed)
	}
	return t, nil
}

// NewCache returns the image cache sized by cfg.CacheSize.
func NewCache(cfg config.TrainConfig) *imaging.ImageCache {
	return imaging.NewBoundedImageCache(cfg.CacheSize)
}

// Train runs epochs passes over the training data and returns the mean
// batch loss of each epoch. The scheduler steps once per epoch.
func (t *Trainer) Train(ctx context.Context, epochs int) ([]float64, error) {
	losses := make([]float64, 0, epochs)
	for e := 1; e <= epochs; e++ {
		loss, err := t.trainEpoch(ctx, e)
		if err != nil {
			return losses, errors.Wrapf(err, "epoch %d", e)
		}
		if lr, changed := t.Scheduler.Step(); changed {
			t.logger.Infow("adjusting learning rate", "epoch", e, "lr", lr)
		}
		losses = append(losses, loss)
		t.logger.Infow("epoch finished", "epoch", e, "loss", fmt.Sprintf("%.5f", loss))
	}
	return losses, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int) (float64, error) {
	batches := t.TrainData.Epoch()
	var bar progress
	if t.Progress {
		var err error
		bar, err = defaultProgressFactory(fmt.Sprintf("epoch %d", epoch), len(batches))
		if err != nil {
			t.logger.Debugw("progress bar unavailable", "error", err)
			bar = nil
		}
	}
	if bar != nil {
		defer func() { _, _ = bar.Stop() }()
	}

	var running float64
	for _, idx := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch, err := t.TrainData.Load(ctx, idx)
		if err != nil {
			return 0, err
		}
		out, err := t.Model.Forward(batch.Inputs, true)
		if err != nil {
			return 0, err
		}
		loss, grad, err := nn.MSELoss(out, batch.Targets)
		if err != nil {
			return 0, err
		}
		t.Optimizer.ZeroGrad()
		if err := t.Model.Backward(grad); err != nil {
			return 0, err
		}
		t.Optimizer.Step()
		running += loss
		if bar != nil {
			bar.Increment()
		}
	}
	return running / float64(len(batches)), nil
}

// Test returns the mean batch loss over the test data in evaluation mode.
func (t *Trainer) Test(ctx context.Context) (float64, error) {
	if t.TestData == nil {
		return 0, errors.New("no test data")
	}
	batches := t.TestData.Epoch()
	var total float64
	for _, idx := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch, err := t.TestData.Load(ctx, idx)
		if err != nil {
			return 0, err
		}
		out, err := t.Model.Forward(batch.Inputs, false)
		if err != nil {
			return 0, err
		}
		loss, _, err := nn.MSELoss(out, batch.Targets)
		if err != nil {
			return 0, err
		}
		total += loss
	}
	loss := total / float64(len(batches))
	t.logger.Infow("test finished", "test_loss", fmt.Sprintf("%.5f", loss))
	return loss, nil
}

// Predict runs the model over set and returns one target per photo, in
// input order.
func (t *Trainer) Predict(ctx context.Context, set *TestSet) ([]Target, error) {
	return Predict(ctx, t.Model, set, t.TrainData.BatchSize)
}

// Predict runs model over set in batches of batchSize.
func Predict(ctx context.Context, model *nn.Regressor, set *TestSet, batchSize int) ([]Target, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	if set.InputSize != model.Topology.InputSize {
		return nil, errors.Errorf("test set input size %d does not match model input size %d",
			set.InputSize, model.Topology.InputSize)
	}
	idx := make([]int, set.Len())
	for i := range idx {
		idx[i] = i
	}
	out := make([]Target, 0, set.Len())
	for _, b := range chunk(idx, batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := loadTestBatch(ctx, set, b)
		if err != nil {
			return nil, err
		}
		rows, err := model.Predict(batch.Inputs)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if len(r) < 2 {
				return nil, errors.Errorf("model produced %d outputs, want 2", len(r))
			}
			out = append(out, Target{r[0], r[1]})
		}
	}
	return out, nil
}
