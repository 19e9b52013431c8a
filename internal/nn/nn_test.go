package nn

import (
	"bytes"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"
)

func tinyTopology() Topology {
	return Topology{InputSize: 4, Channels: []int{2}, Pool: 2, Hidden: []int{3}, Outputs: 2}
}

func randomTensor(rng *rand.Rand, shape ...int) *tensor.Dense {
	t := Zeros(shape...)
	data, _ := Float64s(t)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return t
}

func TestTopology(t *testing.T) {
	top := DefaultTopology()
	test.That(t, top.Validate(), test.ShouldBeNil)
	test.That(t, top.FeatureSide(), test.ShouldEqual, 1)
	test.That(t, top.Features(), test.ShouldEqual, 256)

	top.InputSize = 128
	test.That(t, top.Validate(), test.ShouldNotBeNil)

	bad := tinyTopology()
	bad.Hidden = []int{0}
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
}

func TestRegressorLayout(t *testing.T) {
	r, err := NewRegressor(DefaultTopology(), 1)
	test.That(t, err, test.ShouldBeNil)
	// 4 conv stages of 4 layers, flatten, 3 hidden Linear+ReLU, output Linear.
	test.That(t, len(r.Layers()), test.ShouldEqual, 4*4+1+3*2+1)
	test.That(t, r.String(), test.ShouldContainSubstring, "Conv2d(3, 64, k=3, pad=1)")
	test.That(t, r.String(), test.ShouldContainSubstring, "Linear(16, 2)")

	lin := r.Layers()[len(r.Layers())-1].(*Linear)
	test.That(t, lin.In, test.ShouldEqual, 16)
	test.That(t, lin.Out, test.ShouldEqual, 2)
}

func TestForwardShapes(t *testing.T) {
	r, err := NewRegressor(tinyTopology(), 1)
	test.That(t, err, test.ShouldBeNil)
	rng := rand.New(rand.NewSource(2))

	out, err := r.Forward(randomTensor(rng, 3, 3, 4, 4), true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, []int(out.Shape()), test.ShouldResemble, []int{3, 2})

	// A batch of one keeps its batch axis.
	rows, err := r.Predict(randomTensor(rng, 1, 3, 4, 4))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(rows), test.ShouldEqual, 1)
	test.That(t, len(rows[0]), test.ShouldEqual, 2)

	_, err = r.Forward(randomTensor(rng, 1, 3, 8, 8), false)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "input shape")
	_, err = r.Forward(randomTensor(rng, 1, 1, 4, 4), false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSeedIsDeterministic(t *testing.T) {
	a, err := NewRegressor(tinyTopology(), 7)
	test.That(t, err, test.ShouldBeNil)
	b, err := NewRegressor(tinyTopology(), 7)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Params()[0].Value, test.ShouldResemble, b.Params()[0].Value)
}

func TestMSELoss(t *testing.T) {
	pred := NewTensor([]float64{1, 2, 3, 4}, 2, 2)
	target := NewTensor([]float64{1, 0, 3, 0}, 2, 2)
	loss, grad, err := MSELoss(pred, target)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loss, test.ShouldEqual, 5.0)
	g, _ := Float64s(grad)
	test.That(t, g, test.ShouldResemble, []float64{0, 1, 0, 2})

	_, _, err = MSELoss(pred, NewTensor([]float64{1, 2}, 1, 2))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMaxPoolForwardBackward(t *testing.T) {
	x := NewTensor([]float64{
		1, 5, 2, 0,
		3, 4, 8, 1,
		0, 0, 1, 1,
		9, 0, 1, 2,
	}, 1, 1, 4, 4)
	pool := &MaxPool2d{Size: 2}
	out, err := pool.Forward(x, true)
	test.That(t, err, test.ShouldBeNil)
	data, _ := Float64s(out)
	test.That(t, data, test.ShouldResemble, []float64{5, 8, 9, 2})

	dx, err := pool.Backward(NewTensor([]float64{1, 2, 3, 4}, 1, 1, 2, 2))
	test.That(t, err, test.ShouldBeNil)
	g, _ := Float64s(dx)
	test.That(t, g, test.ShouldResemble, []float64{
		0, 1, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 0,
		3, 0, 0, 4,
	})

	_, err = (&MaxPool2d{Size: 8}).Forward(x, true)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConvIdentityKernel(t *testing.T) {
	conv := NewConv2d(1, 1, rand.New(rand.NewSource(1)))
	for i := range conv.Weight.Value {
		conv.Weight.Value[i] = 0
	}
	conv.Weight.Value[4] = 1 // centre tap
	conv.Bias.Value[0] = 0.5

	x := NewTensor([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	out, err := conv.Forward(x, false)
	test.That(t, err, test.ShouldBeNil)
	data, _ := Float64s(out)
	test.That(t, data, test.ShouldResemble, []float64{1.5, 2.5, 3.5, 4.5, 5.5, 6.5, 7.5, 8.5, 9.5})
}

func TestBatchNormStatistics(t *testing.T) {
	bn := NewBatchNorm2d(1)
	x := NewTensor([]float64{1, 2, 3, 4}, 2, 1, 1, 2)
	out, err := bn.Forward(x, true)
	test.That(t, err, test.ShouldBeNil)
	data, _ := Float64s(out)

	var mean float64
	for _, v := range data {
		mean += v
	}
	test.That(t, mean/4, test.ShouldAlmostEqual, 0, 1e-9)
	// mean 2.5, unbiased var 5/3.
	test.That(t, bn.RunningMean[0], test.ShouldAlmostEqual, 0.25, 1e-12)
	test.That(t, bn.RunningVar[0], test.ShouldAlmostEqual, 0.9+0.1*5.0/3.0, 1e-12)

	// Evaluation uses the running estimates.
	out, err = bn.Forward(NewTensor([]float64{0.25}, 1, 1, 1, 1), false)
	test.That(t, err, test.ShouldBeNil)
	data, _ = Float64s(out)
	test.That(t, data[0], test.ShouldAlmostEqual, 0, 1e-9)
}

// numericGrad estimates dL/dv[j] by central differences.
func numericGrad(t *testing.T, r *Regressor, x, y *tensor.Dense, v []float64, j int) float64 {
	t.Helper()
	const h = 1e-5
	orig := v[j]
	lossAt := func(val float64) float64 {
		v[j] = val
		out, err := r.Forward(x, true)
		test.That(t, err, test.ShouldBeNil)
		loss, _, err := MSELoss(out, y)
		test.That(t, err, test.ShouldBeNil)
		return loss
	}
	plus := lossAt(orig + h)
	minus := lossAt(orig - h)
	v[j] = orig
	return (plus - minus) / (2 * h)
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	r, err := NewRegressor(tinyTopology(), 3)
	test.That(t, err, test.ShouldBeNil)
	rng := rand.New(rand.NewSource(4))
	x := randomTensor(rng, 4, 3, 4, 4)
	y := randomTensor(rng, 4, 2)

	out, err := r.Forward(x, true)
	test.That(t, err, test.ShouldBeNil)
	_, grad, err := MSELoss(out, y)
	test.That(t, err, test.ShouldBeNil)
	for _, p := range r.Params() {
		p.ZeroGrad()
	}
	test.That(t, r.Backward(grad), test.ShouldBeNil)

	for _, p := range r.Params() {
		analytic := append([]float64(nil), p.Grad...)
		for _, j := range []int{0, len(p.Value) / 2, len(p.Value) - 1} {
			want := numericGrad(t, r, x, y, p.Value, j)
			tol := 1e-5 + 1e-3*math.Abs(want)
			if math.Abs(analytic[j]-want) > tol {
				t.Errorf("%s[%d]: analytic %v, numeric %v", p.Name, j, analytic[j], want)
			}
		}
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	for _, name := range []string{"sgd", "adam"} {
		t.Run(name, func(t *testing.T) {
			r, err := NewRegressor(tinyTopology(), 5)
			test.That(t, err, test.ShouldBeNil)
			var opt Optimizer = NewSGD(r.Params(), 0.02, 0.5, 0)
			if name == "adam" {
				opt = NewAdam(r.Params(), 0.01, 0)
			}

			rng := rand.New(rand.NewSource(6))
			x := randomTensor(rng, 8, 3, 4, 4)
			y := randomTensor(rng, 8, 2)

			var first, last float64
			for step := 0; step < 60; step++ {
				out, err := r.Forward(x, true)
				test.That(t, err, test.ShouldBeNil)
				loss, grad, err := MSELoss(out, y)
				test.That(t, err, test.ShouldBeNil)
				if step == 0 {
					first = loss
				}
				last = loss
				opt.ZeroGrad()
				test.That(t, r.Backward(grad), test.ShouldBeNil)
				opt.Step()
			}
			test.That(t, last, test.ShouldBeLessThan, first)
		})
	}
}

func TestSGDMomentumAndDecay(t *testing.T) {
	p := newParam("w", 1)
	p.Value[0] = 1
	opt := NewSGD([]*Param{p}, 0.1, 0.9, 0)

	p.Grad[0] = 1
	opt.Step()
	test.That(t, p.Value[0], test.ShouldAlmostEqual, 0.9, 1e-12)
	opt.Step()
	test.That(t, p.Value[0], test.ShouldAlmostEqual, 0.71, 1e-12)

	opt.ZeroGrad()
	test.That(t, p.Grad[0], test.ShouldEqual, 0.0)

	q := newParam("w", 1)
	q.Value[0] = 2
	NewSGD([]*Param{q}, 0.5, 0, 0.1).Step()
	test.That(t, q.Value[0], test.ShouldAlmostEqual, 1.9, 1e-12)

	opt.SetLearningRate(0.05)
	test.That(t, opt.LearningRate(), test.ShouldEqual, 0.05)
}

func TestAdamFirstStep(t *testing.T) {
	p := newParam("w", 2)
	p.Grad[0], p.Grad[1] = 3, -0.5
	opt := NewAdam([]*Param{p}, 0.01, 0)
	opt.Step()
	test.That(t, p.Value[0], test.ShouldAlmostEqual, -0.01, 1e-6)
	test.That(t, p.Value[1], test.ShouldAlmostEqual, 0.01, 1e-6)
}

func TestSaveLoad(t *testing.T) {
	r, err := NewRegressor(tinyTopology(), 8)
	test.That(t, err, test.ShouldBeNil)
	rng := rand.New(rand.NewSource(9))
	// One training pass moves the running statistics away from their defaults.
	_, err = r.Forward(randomTensor(rng, 4, 3, 4, 4), true)
	test.That(t, err, test.ShouldBeNil)

	x := randomTensor(rng, 2, 3, 4, 4)
	want, err := r.Predict(x)
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, r.Save(&buf), test.ShouldBeNil)
	loaded, err := Load(&buf)
	test.That(t, err, test.ShouldBeNil)
	got, err := loaded.Predict(x)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, want)

	path := filepath.Join(t.TempDir(), "model.gob")
	test.That(t, r.SaveFile(path), test.ShouldBeNil)
	fromFile, err := LoadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromFile.Topology, test.ShouldResemble, r.Topology)

	_, err = Load(bytes.NewReader([]byte("not a model")))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBackwardBeforeForward(t *testing.T) {
	_, err := NewLinear(2, 2, rand.New(rand.NewSource(1))).Backward(Zeros(1, 2))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewConv2d(1, 1, rand.New(rand.NewSource(1))).Backward(Zeros(1, 1, 2, 2))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewBatchNorm2d(1).Backward(Zeros(1, 1, 2, 2))
	test.That(t, err, test.ShouldNotBeNil)
}
