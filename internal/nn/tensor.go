package nn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// NewTensor wraps data in a float64 tensor of the given shape. The slice is
// used as backing storage, not copied.
func NewTensor(data []float64, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Zeros returns a zero-filled float64 tensor.
func Zeros(shape ...int) *tensor.Dense {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return NewTensor(make([]float64, n), shape...)
}

// Float64s returns the backing slice of a float64 tensor.
func Float64s(t *tensor.Dense) ([]float64, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("expected float64 tensor, got %v", t.Dtype())
	}
	return data, nil
}

// dims4 validates an (N, C, H, W) tensor and returns its data and sizes.
func dims4(t *tensor.Dense, layer string) ([]float64, int, int, int, int, error) {
	data, err := Float64s(t)
	if err != nil {
		return nil, 0, 0, 0, 0, errors.Wrap(err, layer)
	}
	shape := t.Shape()
	if len(shape) != 4 {
		return nil, 0, 0, 0, 0, errors.Errorf("%s: expected (N, C, H, W) input, got shape %v", layer, shape)
	}
	return data, shape[0], shape[1], shape[2], shape[3], nil
}

// dims2 validates an (N, F) tensor and returns its data and sizes.
func dims2(t *tensor.Dense, layer string) ([]float64, int, int, error) {
	data, err := Float64s(t)
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, layer)
	}
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, 0, 0, errors.Errorf("%s: expected (N, F) input, got shape %v", layer, shape)
	}
	return data, shape[0], shape[1], nil
}

// Param is a trainable parameter together with its accumulated gradient.
type Param struct {
	Name  string
	Shape []int
	Value []float64
	Grad  []float64
}

func newParam(name string, shape ...int) *Param {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Value: make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}
