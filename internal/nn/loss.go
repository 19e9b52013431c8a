package nn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// MSELoss returns the mean squared error between pred and target together
// with dL/dpred.
func MSELoss(pred, target *tensor.Dense) (float64, *tensor.Dense, error) {
	p, err := Float64s(pred)
	if err != nil {
		return 0, nil, errors.Wrap(err, "mse prediction")
	}
	t, err := Float64s(target)
	if err != nil {
		return 0, nil, errors.Wrap(err, "mse target")
	}
	if !pred.Shape().Eq(target.Shape()) {
		return 0, nil, errors.Errorf("mse: prediction shape %v does not match target shape %v", pred.Shape(), target.Shape())
	}
	if len(p) == 0 {
		return 0, nil, errors.New("mse: empty batch")
	}

	n := float64(len(p))
	grad := make([]float64, len(p))
	var loss float64
	for i := range p {
		d := p[i] - t[i]
		loss += d * d
		grad[i] = 2 * d / n
	}
	return loss / n, NewTensor(grad, pred.Shape().Clone()...), nil
}
