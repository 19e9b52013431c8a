// Package train fits the shooting-angle regressor to labeled car photos.
//
// A Dataset pairs photo paths with 2-value targets, usually read from a CSV
// manifest:
//
//	path,angle_x,angle_y
//	front/0001.jpg,0.12,-0.40
//	front/0002.jpg,0.08,-0.35
//
// Photos are resized to the configured input size and converted to RGB
// tensors. A Loader groups samples into batches (decoding them in
// parallel) and the Trainer runs the usual loop: forward, MSE loss,
// backward, optimizer step, with a StepLR schedule applied once per epoch.
//
// Epoch losses, test loss and learning-rate changes are logged through
// zap. Set Trainer.Progress to draw a progress bar on stderr.
package train
