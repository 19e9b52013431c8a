package train

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/ironsheep/carpart-tools/internal/nn"
)

// Batch is a stacked group of samples.
type Batch struct {
	Inputs  *tensor.Dense // (N, 3, S, S)
	Targets *tensor.Dense // (N, 2); nil for unlabeled batches
	Indices []int
}

// Loader groups a dataset into batches, optionally reshuffled every epoch.
// The last batch may be smaller than BatchSize.
type Loader struct {
	Data      *Dataset
	BatchSize int
	Shuffle   bool

	rng *rand.Rand
}

// NewLoader creates a loader. seed fixes the shuffle order.
func NewLoader(d *Dataset, batchSize int, shuffle bool, seed int64) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Loader{Data: d, BatchSize: batchSize, Shuffle: shuffle, rng: rand.New(rand.NewSource(seed))}
}

// NumBatches is the number of batches per epoch.
func (l *Loader) NumBatches() int {
	return (l.Data.Len() + l.BatchSize - 1) / l.BatchSize
}

// Epoch returns the sample indices of each batch for one pass over the
// data.
func (l *Loader) Epoch() [][]int {
	idx := make([]int, l.Data.Len())
	for i := range idx {
		idx[i] = i
	}
	if l.Shuffle {
		l.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return chunk(idx, l.BatchSize)
}

func chunk(idx []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(idx); start += size {
		end := start + size
		if end > len(idx) {
			end = len(idx)
		}
		out = append(out, idx[start:end])
	}
	return out
}

// Load decodes the given samples in parallel and stacks them.
func (l *Loader) Load(ctx context.Context, indices []int) (*Batch, error) {
	s := l.Data.InputSize
	plane := 3 * s * s
	inputs := make([]float64, len(indices)*plane)
	targets := make([]float64, len(indices)*2)

	err := loadParallel(ctx, len(indices), func(k int) error {
		data, t, err := l.Data.Get(indices[k])
		if err != nil {
			return err
		}
		copy(inputs[k*plane:], data)
		targets[2*k], targets[2*k+1] = t[0], t[1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Batch{
		Inputs:  nn.NewTensor(inputs, len(indices), 3, s, s),
		Targets: nn.NewTensor(targets, len(indices), 2),
		Indices: indices,
	}, nil
}

// loadTestBatch stacks unlabeled samples.
func loadTestBatch(ctx context.Context, set *TestSet, indices []int) (*Batch, error) {
	s := set.InputSize
	plane := 3 * s * s
	inputs := make([]float64, len(indices)*plane)
	err := loadParallel(ctx, len(indices), func(k int) error {
		data, err := set.Get(indices[k])
		if err != nil {
			return err
		}
		copy(inputs[k*plane:], data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Batch{Inputs: nn.NewTensor(inputs, len(indices), 3, s, s), Indices: indices}, nil
}

func loadParallel(ctx context.Context, n int, load func(k int) error) error {
	if n == 0 {
		return errors.New("empty batch")
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := 0; k < n; k++ {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return load(k)
		})
	}
	return g.Wait()
}
