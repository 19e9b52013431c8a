package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Layer is one differentiable stage of a network.
//
// Forward caches whatever Backward needs, so Backward must follow the
// Forward call whose output it differentiates. Backward accumulates into
// the parameter gradients and returns the gradient with respect to the
// layer input.
type Layer interface {
	Forward(x *tensor.Dense, train bool) (*tensor.Dense, error)
	Backward(grad *tensor.Dense) (*tensor.Dense, error)
	Params() []*Param
}

// buffered is implemented by layers holding non-trainable state that must
// be persisted with the model.
type buffered interface {
	Buffers() [][]float64
}

const (
	convKernel = 3
	convPad    = 1
)

func uniformInit(p *Param, bound float64, rng *rand.Rand) {
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * bound
	}
}

// Conv2d is a 3x3 convolution with stride 1 and zero padding 1, so the
// spatial size is preserved.
type Conv2d struct {
	In, Out int
	Weight  *Param // (Out, In, 3, 3)
	Bias    *Param // (Out)

	input *tensor.Dense
}

// NewConv2d creates a convolution initialised uniformly in
// ±1/sqrt(In*9).
func NewConv2d(in, out int, rng *rand.Rand) *Conv2d {
	l := &Conv2d{
		In:     in,
		Out:    out,
		Weight: newParam("conv.weight", out, in, convKernel, convKernel),
		Bias:   newParam("conv.bias", out),
	}
	bound := 1 / math.Sqrt(float64(in*convKernel*convKernel))
	uniformInit(l.Weight, bound, rng)
	uniformInit(l.Bias, bound, rng)
	return l
}

func (l *Conv2d) String() string { return fmt.Sprintf("Conv2d(%d, %d, k=3, pad=1)", l.In, l.Out) }

// im2col unrolls the 3x3 neighbourhood of every pixel of one sample into a
// (c*9, h*w) matrix.
func im2col(x []float64, c, h, w int, col []float64) {
	hw := h * w
	for ci := 0; ci < c; ci++ {
		plane := x[ci*hw : (ci+1)*hw]
		for ky := 0; ky < convKernel; ky++ {
			for kx := 0; kx < convKernel; kx++ {
				row := col[((ci*convKernel+ky)*convKernel+kx)*hw:][:hw]
				for y := 0; y < h; y++ {
					iy := y + ky - convPad
					for xx := 0; xx < w; xx++ {
						ix := xx + kx - convPad
						if iy < 0 || iy >= h || ix < 0 || ix >= w {
							row[y*w+xx] = 0
							continue
						}
						row[y*w+xx] = plane[iy*w+ix]
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatters column gradients back onto
// the input planes, accumulating into dx.
func col2im(col []float64, c, h, w int, dx []float64) {
	hw := h * w
	for ci := 0; ci < c; ci++ {
		plane := dx[ci*hw : (ci+1)*hw]
		for ky := 0; ky < convKernel; ky++ {
			for kx := 0; kx < convKernel; kx++ {
				row := col[((ci*convKernel+ky)*convKernel+kx)*hw:][:hw]
				for y := 0; y < h; y++ {
					iy := y + ky - convPad
					if iy < 0 || iy >= h {
						continue
					}
					for xx := 0; xx < w; xx++ {
						ix := xx + kx - convPad
						if ix < 0 || ix >= w {
							continue
						}
						plane[iy*w+ix] += row[y*w+xx]
					}
				}
			}
		}
	}
}

// Forward computes the convolution of an (N, In, H, W) batch.
func (l *Conv2d) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	data, n, c, h, w, err := dims4(x, "conv2d")
	if err != nil {
		return nil, err
	}
	if c != l.In {
		return nil, errors.Errorf("conv2d: expected %d input channels, got %d", l.In, c)
	}
	if n == 0 || h == 0 || w == 0 {
		return nil, errors.Errorf("conv2d: empty input shape %v", x.Shape())
	}
	hw := h * w
	k := l.In * convKernel * convKernel
	out := make([]float64, n*l.Out*hw)
	weight := mat.NewDense(l.Out, k, l.Weight.Value)
	col := make([]float64, k*hw)
	for i := 0; i < n; i++ {
		im2col(data[i*c*hw:(i+1)*c*hw], c, h, w, col)
		dst := out[i*l.Out*hw : (i+1)*l.Out*hw]
		mat.NewDense(l.Out, hw, dst).Mul(weight, mat.NewDense(k, hw, col))
		for o := 0; o < l.Out; o++ {
			floats.AddConst(l.Bias.Value[o], dst[o*hw:(o+1)*hw])
		}
	}
	l.input = x
	return NewTensor(out, n, l.Out, h, w), nil
}

// Backward accumulates weight and bias gradients and returns dL/dx.
func (l *Conv2d) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if l.input == nil {
		return nil, errors.New("conv2d: backward called before forward")
	}
	g, n, oc, h, w, err := dims4(grad, "conv2d backward")
	if err != nil {
		return nil, err
	}
	data, _ := Float64s(l.input)
	in := l.input.Shape().Clone()
	if n != in[0] || oc != l.Out || h != in[2] || w != in[3] {
		return nil, errors.Errorf("conv2d backward: gradient shape %v does not match output of input %v", grad.Shape(), in)
	}

	hw := h * w
	k := l.In * convKernel * convKernel
	weight := mat.NewDense(l.Out, k, l.Weight.Value)
	dWeight := mat.NewDense(l.Out, k, l.Weight.Grad)
	col := make([]float64, k*hw)
	colM := mat.NewDense(k, hw, col)
	dcol := mat.NewDense(k, hw, nil)
	var dw mat.Dense
	dx := make([]float64, len(data))
	for i := 0; i < n; i++ {
		im2col(data[i*l.In*hw:(i+1)*l.In*hw], l.In, h, w, col)
		gi := g[i*l.Out*hw : (i+1)*l.Out*hw]
		gm := mat.NewDense(l.Out, hw, gi)

		dw.Mul(gm, colM.T())
		dWeight.Add(dWeight, &dw)
		for o := 0; o < l.Out; o++ {
			l.Bias.Grad[o] += floats.Sum(gi[o*hw : (o+1)*hw])
		}

		dcol.Mul(weight.T(), gm)
		col2im(dcol.RawMatrix().Data, l.In, h, w, dx[i*l.In*hw:(i+1)*l.In*hw])
	}
	return NewTensor(dx, in...), nil
}

// Params returns the weight and bias.
func (l *Conv2d) Params() []*Param { return []*Param{l.Weight, l.Bias} }

// BatchNorm2d normalises each channel over the batch and spatial axes.
//
// In training mode it uses batch statistics (biased variance) and updates
// running estimates with the unbiased variance. In evaluation mode it uses
// the running estimates.
type BatchNorm2d struct {
	C        int
	Momentum float64
	Eps      float64
	Gamma    *Param
	Beta     *Param

	RunningMean []float64
	RunningVar  []float64

	shape   tensor.Shape
	xhat    []float64
	invStd  []float64
	batched bool
}

// NewBatchNorm2d creates a batch norm with momentum 0.1 and eps 1e-5.
func NewBatchNorm2d(c int) *BatchNorm2d {
	l := &BatchNorm2d{
		C:           c,
		Momentum:    0.1,
		Eps:         1e-5,
		Gamma:       newParam("bn.weight", c),
		Beta:        newParam("bn.bias", c),
		RunningMean: make([]float64, c),
		RunningVar:  make([]float64, c),
	}
	for i := 0; i < c; i++ {
		l.Gamma.Value[i] = 1
		l.RunningVar[i] = 1
	}
	return l
}

func (l *BatchNorm2d) String() string { return fmt.Sprintf("BatchNorm2d(%d)", l.C) }

// Forward normalises an (N, C, H, W) batch.
func (l *BatchNorm2d) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	data, n, c, h, w, err := dims4(x, "batchnorm2d")
	if err != nil {
		return nil, err
	}
	if c != l.C {
		return nil, errors.Errorf("batchnorm2d: expected %d channels, got %d", l.C, c)
	}
	hw := h * w
	m := n * hw
	if m == 0 {
		return nil, errors.Errorf("batchnorm2d: empty input shape %v", x.Shape())
	}

	out := make([]float64, len(data))
	xhat := make([]float64, len(data))
	invStd := make([]float64, c)
	for ch := 0; ch < c; ch++ {
		var mean, variance float64
		if train {
			for i := 0; i < n; i++ {
				mean += floats.Sum(data[(i*c+ch)*hw : (i*c+ch+1)*hw])
			}
			mean /= float64(m)
			for i := 0; i < n; i++ {
				for _, v := range data[(i*c+ch)*hw : (i*c+ch+1)*hw] {
					variance += (v - mean) * (v - mean)
				}
			}
			variance /= float64(m)

			unbiased := variance
			if m > 1 {
				unbiased = variance * float64(m) / float64(m-1)
			}
			l.RunningMean[ch] = (1-l.Momentum)*l.RunningMean[ch] + l.Momentum*mean
			l.RunningVar[ch] = (1-l.Momentum)*l.RunningVar[ch] + l.Momentum*unbiased
		} else {
			mean = l.RunningMean[ch]
			variance = l.RunningVar[ch]
		}

		inv := 1 / math.Sqrt(variance+l.Eps)
		invStd[ch] = inv
		gamma, beta := l.Gamma.Value[ch], l.Beta.Value[ch]
		for i := 0; i < n; i++ {
			base := (i*c + ch) * hw
			for j := 0; j < hw; j++ {
				xh := (data[base+j] - mean) * inv
				xhat[base+j] = xh
				out[base+j] = gamma*xh + beta
			}
		}
	}

	l.shape = x.Shape().Clone()
	l.xhat = xhat
	l.invStd = invStd
	l.batched = train
	return NewTensor(out, l.shape...), nil
}

// Backward accumulates gamma and beta gradients and returns dL/dx.
func (l *BatchNorm2d) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if l.xhat == nil {
		return nil, errors.New("batchnorm2d: backward called before forward")
	}
	g, err := Float64s(grad)
	if err != nil {
		return nil, errors.Wrap(err, "batchnorm2d backward")
	}
	if !grad.Shape().Eq(l.shape) {
		return nil, errors.Errorf("batchnorm2d backward: gradient shape %v, want %v", grad.Shape(), l.shape)
	}
	n, c, hw := l.shape[0], l.shape[1], l.shape[2]*l.shape[3]
	m := float64(n * hw)

	dx := make([]float64, len(g))
	for ch := 0; ch < c; ch++ {
		var sumDy, sumDyXhat float64
		for i := 0; i < n; i++ {
			base := (i*c + ch) * hw
			for j := 0; j < hw; j++ {
				sumDy += g[base+j]
				sumDyXhat += g[base+j] * l.xhat[base+j]
			}
		}
		l.Gamma.Grad[ch] += sumDyXhat
		l.Beta.Grad[ch] += sumDy

		scale := l.Gamma.Value[ch] * l.invStd[ch]
		for i := 0; i < n; i++ {
			base := (i*c + ch) * hw
			for j := 0; j < hw; j++ {
				if l.batched {
					dx[base+j] = scale / m * (m*g[base+j] - sumDy - l.xhat[base+j]*sumDyXhat)
				} else {
					dx[base+j] = scale * g[base+j]
				}
			}
		}
	}
	return NewTensor(dx, l.shape...), nil
}

// Params returns gamma and beta.
func (l *BatchNorm2d) Params() []*Param { return []*Param{l.Gamma, l.Beta} }

// Buffers returns the running mean and variance.
func (l *BatchNorm2d) Buffers() [][]float64 { return [][]float64{l.RunningMean, l.RunningVar} }

// ReLU is the rectified linear unit.
type ReLU struct {
	shape tensor.Shape
	mask  []bool
}

func (l *ReLU) String() string { return "ReLU()" }

// Forward applies max(0, x) element-wise.
func (l *ReLU) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	data, err := Float64s(x)
	if err != nil {
		return nil, errors.Wrap(err, "relu")
	}
	out := make([]float64, len(data))
	mask := make([]bool, len(data))
	for i, v := range data {
		if v > 0 {
			out[i] = v
			mask[i] = true
		}
	}
	l.shape = x.Shape().Clone()
	l.mask = mask
	return NewTensor(out, l.shape...), nil
}

// Backward passes the gradient through where the input was positive.
func (l *ReLU) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	g, err := Float64s(grad)
	if err != nil {
		return nil, errors.Wrap(err, "relu backward")
	}
	if len(g) != len(l.mask) {
		return nil, errors.Errorf("relu backward: gradient has %d elements, want %d", len(g), len(l.mask))
	}
	dx := make([]float64, len(g))
	for i, keep := range l.mask {
		if keep {
			dx[i] = g[i]
		}
	}
	return NewTensor(dx, l.shape...), nil
}

// Params returns nil.
func (l *ReLU) Params() []*Param { return nil }

// MaxPool2d takes the maximum over non-overlapping Size x Size windows.
// Trailing rows and columns that do not fill a window are dropped.
type MaxPool2d struct {
	Size int

	shape  tensor.Shape
	argmax []int
}

func (l *MaxPool2d) String() string { return fmt.Sprintf("MaxPool2d(%d)", l.Size) }

// Forward pools an (N, C, H, W) batch.
func (l *MaxPool2d) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	data, n, c, h, w, err := dims4(x, "maxpool2d")
	if err != nil {
		return nil, err
	}
	oh, ow := h/l.Size, w/l.Size
	if oh == 0 || ow == 0 {
		return nil, errors.Errorf("maxpool2d: input %dx%d smaller than window %d", h, w, l.Size)
	}

	out := make([]float64, n*c*oh*ow)
	argmax := make([]int, len(out))
	for p := 0; p < n*c; p++ {
		in := p * h * w
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				best := in + oy*l.Size*w + ox*l.Size
				for ky := 0; ky < l.Size; ky++ {
					for kx := 0; kx < l.Size; kx++ {
						idx := in + (oy*l.Size+ky)*w + ox*l.Size + kx
						if data[idx] > data[best] {
							best = idx
						}
					}
				}
				o := (p*oh+oy)*ow + ox
				out[o] = data[best]
				argmax[o] = best
			}
		}
	}
	l.shape = x.Shape().Clone()
	l.argmax = argmax
	return NewTensor(out, n, c, oh, ow), nil
}

// Backward routes each gradient to the input element that won its window.
func (l *MaxPool2d) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	g, err := Float64s(grad)
	if err != nil {
		return nil, errors.Wrap(err, "maxpool2d backward")
	}
	if len(g) != len(l.argmax) {
		return nil, errors.Errorf("maxpool2d backward: gradient has %d elements, want %d", len(g), len(l.argmax))
	}
	dx := make([]float64, l.shape.TotalSize())
	for o, idx := range l.argmax {
		dx[idx] += g[o]
	}
	return NewTensor(dx, l.shape...), nil
}

// Params returns nil.
func (l *MaxPool2d) Params() []*Param { return nil }

// Flatten reshapes (N, C, H, W) to (N, C*H*W). A batch of one stays a
// batch of one.
type Flatten struct {
	shape tensor.Shape
}

func (l *Flatten) String() string { return "Flatten()" }

// Forward reshapes without copying.
func (l *Flatten) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	data, n, c, h, w, err := dims4(x, "flatten")
	if err != nil {
		return nil, err
	}
	l.shape = x.Shape().Clone()
	return NewTensor(data, n, c*h*w), nil
}

// Backward restores the 4-D shape.
func (l *Flatten) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	g, err := Float64s(grad)
	if err != nil {
		return nil, errors.Wrap(err, "flatten backward")
	}
	if len(g) != l.shape.TotalSize() {
		return nil, errors.Errorf("flatten backward: gradient has %d elements, want %d", len(g), l.shape.TotalSize())
	}
	return NewTensor(g, l.shape...), nil
}

// Params returns nil.
func (l *Flatten) Params() []*Param { return nil }

// Linear is a fully connected layer y = x W^T + b.
type Linear struct {
	In, Out int
	Weight  *Param // (Out, In)
	Bias    *Param // (Out)

	input *tensor.Dense
}

// NewLinear creates a fully connected layer initialised uniformly in
// ±1/sqrt(In).
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		In:     in,
		Out:    out,
		Weight: newParam("linear.weight", out, in),
		Bias:   newParam("linear.bias", out),
	}
	bound := 1 / math.Sqrt(float64(in))
	uniformInit(l.Weight, bound, rng)
	uniformInit(l.Bias, bound, rng)
	return l
}

func (l *Linear) String() string { return fmt.Sprintf("Linear(%d, %d)", l.In, l.Out) }

// Forward maps an (N, In) batch to (N, Out).
func (l *Linear) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	data, n, f, err := dims2(x, "linear")
	if err != nil {
		return nil, err
	}
	if f != l.In {
		return nil, errors.Errorf("linear: expected %d input features, got %d", l.In, f)
	}
	if n == 0 {
		return nil, errors.New("linear: empty batch")
	}
	out := make([]float64, n*l.Out)
	y := mat.NewDense(n, l.Out, out)
	y.Mul(mat.NewDense(n, l.In, data), mat.NewDense(l.Out, l.In, l.Weight.Value).T())
	for i := 0; i < n; i++ {
		floats.Add(out[i*l.Out:(i+1)*l.Out], l.Bias.Value)
	}
	l.input = x
	return NewTensor(out, n, l.Out), nil
}

// Backward accumulates weight and bias gradients and returns dL/dx.
func (l *Linear) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if l.input == nil {
		return nil, errors.New("linear: backward called before forward")
	}
	g, n, o, err := dims2(grad, "linear backward")
	if err != nil {
		return nil, err
	}
	data, _ := Float64s(l.input)
	if o != l.Out || n*l.In != len(data) {
		return nil, errors.Errorf("linear backward: gradient shape %v does not match input %v", grad.Shape(), l.input.Shape())
	}

	gm := mat.NewDense(n, l.Out, g)
	x := mat.NewDense(n, l.In, data)

	var dw mat.Dense
	dw.Mul(gm.T(), x)
	dWeight := mat.NewDense(l.Out, l.In, l.Weight.Grad)
	dWeight.Add(dWeight, &dw)
	for i := 0; i < n; i++ {
		floats.Add(l.Bias.Grad, g[i*l.Out:(i+1)*l.Out])
	}

	dx := make([]float64, n*l.In)
	mat.NewDense(n, l.In, dx).Mul(gm, mat.NewDense(l.Out, l.In, l.Weight.Value))
	return NewTensor(dx, n, l.In), nil
}

// Params returns the weight and bias.
func (l *Linear) Params() []*Param { return []*Param{l.Weight, l.Bias} }
