package nn

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// InChannels is the number of input planes (RGB).
const InChannels = 3

// Topology describes the regressor architecture.
//
// Each entry of Channels adds a Conv2d(3x3, pad 1), BatchNorm2d, ReLU and
// MaxPool2d(Pool) stage. The feature map is then flattened and passed
// through Linear layers of the Hidden widths (ReLU between them) and a
// final Linear to Outputs.
type Topology struct {
	InputSize int
	Channels  []int
	Pool      int
	Hidden    []int
	Outputs   int
}

// DefaultTopology maps a 256x256 RGB image to a 2-vector through
// 3-64-128-256-256 convolutions and a 256-256-64-16-2 linear stack.
func DefaultTopology() Topology {
	return Topology{
		InputSize: 256,
		Channels:  []int{64, 128, 256, 256},
		Pool:      4,
		Hidden:    []int{256, 64, 16},
		Outputs:   2,
	}
}

// FeatureSide is the spatial side left after every pooling stage.
func (t Topology) FeatureSide() int {
	side := t.InputSize
	for range t.Channels {
		side /= t.Pool
	}
	return side
}

// Features is the flattened feature count fed to the first Linear layer.
func (t Topology) Features() int {
	if len(t.Channels) == 0 {
		return 0
	}
	side := t.FeatureSide()
	return t.Channels[len(t.Channels)-1] * side * side
}

// Validate checks that the topology produces a non-empty feature map.
func (t Topology) Validate() error {
	if t.InputSize <= 0 || t.Pool < 1 || t.Outputs <= 0 || len(t.Channels) == 0 {
		return errors.Errorf("invalid topology %+v", t)
	}
	for _, c := range append(append([]int(nil), t.Channels...), t.Hidden...) {
		if c <= 0 {
			return errors.Errorf("invalid topology %+v: widths must be positive", t)
		}
	}
	if t.FeatureSide() < 1 {
		return errors.Errorf("input size %d vanishes after %d pooling stages of %d",
			t.InputSize, len(t.Channels), t.Pool)
	}
	return nil
}

// Regressor is a convolutional network mapping (N, 3, S, S) images to
// (N, Outputs) vectors.
//
// A Regressor is not safe for concurrent use: Forward caches activations
// for Backward.
type Regressor struct {
	Topology Topology
	layers   []Layer
}

// NewRegressor builds a regressor with weights drawn from seed.
func NewRegressor(top Topology, seed int64) (*Regressor, error) {
	if err := top.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))

	var layers []Layer
	in := InChannels
	for _, c := range top.Channels {
		layers = append(layers,
			NewConv2d(in, c, rng),
			NewBatchNorm2d(c),
			&ReLU{},
			&MaxPool2d{Size: top.Pool},
		)
		in = c
	}
	layers = append(layers, &Flatten{})

	features := top.Features()
	for _, h := range top.Hidden {
		layers = append(layers, NewLinear(features, h, rng), &ReLU{})
		features = h
	}
	layers = append(layers, NewLinear(features, top.Outputs, rng))

	return &Regressor{Topology: top, layers: layers}, nil
}

// Layers returns the layers in evaluation order.
func (r *Regressor) Layers() []Layer {
	return r.layers
}

// Forward runs the network. train selects batch statistics in BatchNorm2d
// layers and enables Backward.
func (r *Regressor) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	shape := x.Shape()
	s := r.Topology.InputSize
	if len(shape) != 4 || shape[1] != InChannels || shape[2] != s || shape[3] != s {
		return nil, errors.Errorf("regressor expects input shape (N, %d, %d, %d), got %v", InChannels, s, s, shape)
	}
	out := x
	for i, l := range r.layers {
		var err error
		out, err = l.Forward(out, train)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
	}
	return out, nil
}

// Backward propagates dL/dy through every layer, accumulating parameter
// gradients.
func (r *Regressor) Backward(grad *tensor.Dense) error {
	g := grad
	for i := len(r.layers) - 1; i >= 0; i-- {
		var err error
		g, err = r.layers[i].Backward(g)
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	return nil
}

// Predict runs the network in evaluation mode and returns one output row
// per sample.
func (r *Regressor) Predict(x *tensor.Dense) ([][]float64, error) {
	out, err := r.Forward(x, false)
	if err != nil {
		return nil, err
	}
	data, n, f, err := dims2(out, "predict")
	if err != nil {
		return nil, err
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = append([]float64(nil), data[i*f:(i+1)*f]...)
	}
	return rows, nil
}

// Params returns every trainable parameter in layer order.
func (r *Regressor) Params() []*Param {
	var ps []*Param
	for _, l := range r.layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

// NumParams counts trainable scalars.
func (r *Regressor) NumParams() int {
	n := 0
	for _, p := range r.Params() {
		n += len(p.Value)
	}
	return n
}

func (r *Regressor) buffers() [][]float64 {
	var bs [][]float64
	for _, l := range r.layers {
		if b, ok := l.(buffered); ok {
			bs = append(bs, b.Buffers()...)
		}
	}
	return bs
}

func (r *Regressor) String() string {
	var sb strings.Builder
	sb.WriteString("Regressor(\n")
	for i, l := range r.layers {
		fmt.Fprintf(&sb, "  (%d): %v\n", i, l)
	}
	sb.WriteString(")")
	return sb.String()
}
