package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	ZeroGrad()
	Step()
	LearningRate() float64
	SetLearningRate(lr float64)
}

func zeroGrad(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// SGD is stochastic gradient descent with optional momentum and L2 weight
// decay. The first step seeds the momentum buffer with the gradient.
type SGD struct {
	params      []*Param
	lr          float64
	momentum    float64
	weightDecay float64
	velocity    [][]float64
}

// NewSGD creates an SGD optimizer over params.
func NewSGD(params []*Param, lr, momentum, weightDecay float64) *SGD {
	return &SGD{params: params, lr: lr, momentum: momentum, weightDecay: weightDecay}
}

// ZeroGrad clears every parameter gradient.
func (o *SGD) ZeroGrad() { zeroGrad(o.params) }

// LearningRate returns the current step size.
func (o *SGD) LearningRate() float64 { return o.lr }

// SetLearningRate changes the step size.
func (o *SGD) SetLearningRate(lr float64) { o.lr = lr }

// Step applies one update.
func (o *SGD) Step() {
	if o.momentum != 0 && o.velocity == nil {
		o.velocity = make([][]float64, len(o.params))
	}
	g := []float64(nil)
	for i, p := range o.params {
		g = append(g[:0], p.Grad...)
		if o.weightDecay != 0 {
			floats.AddScaled(g, o.weightDecay, p.Value)
		}
		if o.momentum != 0 {
			if o.velocity[i] == nil {
				o.velocity[i] = append([]float64(nil), g...)
			} else {
				floats.Scale(o.momentum, o.velocity[i])
				floats.Add(o.velocity[i], g)
			}
			g = append(g[:0], o.velocity[i]...)
		}
		floats.AddScaled(p.Value, -o.lr, g)
	}
}

// Adam implements the Adam optimizer with bias correction and optional L2
// weight decay.
type Adam struct {
	params      []*Param
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	t           int
	m, v        [][]float64
}

// NewAdam creates an Adam optimizer with betas (0.9, 0.999) and eps 1e-8.
func NewAdam(params []*Param, lr, weightDecay float64) *Adam {
	a := &Adam{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: weightDecay,
		m:           make([][]float64, len(params)),
		v:           make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.Value))
		a.v[i] = make([]float64, len(p.Value))
	}
	return a
}

// ZeroGrad clears every parameter gradient.
func (o *Adam) ZeroGrad() { zeroGrad(o.params) }

// LearningRate returns the current step size.
func (o *Adam) LearningRate() float64 { return o.lr }

// SetLearningRate changes the step size.
func (o *Adam) SetLearningRate(lr float64) { o.lr = lr }

// Step applies one update.
func (o *Adam) Step() {
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, p := range o.params {
		m, v := o.m[i], o.v[i]
		for j, g := range p.Grad {
			if o.weightDecay != 0 {
				g += o.weightDecay * p.Value[j]
			}
			m[j] = o.beta1*m[j] + (1-o.beta1)*g
			v[j] = o.beta2*v[j] + (1-o.beta2)*g*g
			p.Value[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.eps)
		}
	}
}
