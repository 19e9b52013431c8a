// Package nn implements the small convolutional regressor that estimates a
// photo's shooting angle.
//
// The network is a fixed stack of Conv2d, BatchNorm2d, ReLU and MaxPool2d
// stages followed by a Linear stack, described by a Topology. Activations
// are gorgonia tensors in (N, C, H, W) or (N, F) layout; the matrix work
// (im2col convolution, fully connected products) runs on gonum.
//
// # Training Step
//
//	out, err := model.Forward(batch, true)
//	loss, grad, err := nn.MSELoss(out, targets)
//	opt.ZeroGrad()
//	err = model.Backward(grad)
//	opt.Step()
//
// Backward must follow the Forward call it differentiates; layers cache
// their inputs between the two.
//
// # Persistence
//
// Save and Load use encoding/gob and carry the topology, the parameters and
// the BatchNorm running statistics, so a loaded model predicts exactly like
// the saved one.
package nn
