package train

import (
	"math"

	"github.com/ironsheep/carpart-tools/internal/nn"
)

// StepLR decays the optimizer learning rate by Gamma every StepSize epochs:
//
//	lr = base * Gamma^floor(epoch / StepSize)
type StepLR struct {
	StepSize int
	Gamma    float64

	opt   nn.Optimizer
	base  float64
	epoch int
}

// NewStepLR captures the optimizer's current rate as the base rate.
func NewStepLR(opt nn.Optimizer, stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma, opt: opt, base: opt.LearningRate()}
}

// Step advances one epoch and updates the optimizer. It reports the new
// rate and whether it changed.
func (s *StepLR) Step() (float64, bool) {
	s.epoch++
	lr := s.base * math.Pow(s.Gamma, float64(s.epoch/s.StepSize))
	changed := lr != s.opt.LearningRate()
	s.opt.SetLearningRate(lr)
	return lr, changed
}

// Epoch returns the number of completed steps.
func (s *StepLR) Epoch() int { return s.epoch }
