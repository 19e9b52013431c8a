package nn

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
)

const snapshotVersion = 1

type snapshot struct {
	Version  int
	Topology Topology
	Params   [][]float64
	Buffers  [][]float64
}

// Save writes the topology, the parameters and the BatchNorm running
// statistics to w.
func (r *Regressor) Save(w io.Writer) error {
	snap := snapshot{Version: snapshotVersion, Topology: r.Topology}
	for _, p := range r.Params() {
		snap.Params = append(snap.Params, p.Value)
	}
	snap.Buffers = r.buffers()
	return errors.Wrap(gob.NewEncoder(w).Encode(&snap), "encoding model")
}

// Load reads a model written by Save.
func Load(rd io.Reader) (*Regressor, error) {
	var snap snapshot
	if err := gob.NewDecoder(rd).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decoding model")
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported model version %d", snap.Version)
	}
	r, err := NewRegressor(snap.Topology, 0)
	if err != nil {
		return nil, errors.Wrap(err, "model topology")
	}

	params := r.Params()
	if len(params) != len(snap.Params) {
		return nil, errors.Errorf("model has %d parameter tensors, want %d", len(snap.Params), len(params))
	}
	for i, p := range params {
		if len(snap.Params[i]) != len(p.Value) {
			return nil, errors.Errorf("parameter %d (%s) has %d values, want %d", i, p.Name, len(snap.Params[i]), len(p.Value))
		}
		copy(p.Value, snap.Params[i])
	}

	bufs := r.buffers()
	if len(bufs) != len(snap.Buffers) {
		return nil, errors.Errorf("model has %d buffers, want %d", len(snap.Buffers), len(bufs))
	}
	for i, b := range bufs {
		if len(snap.Buffers[i]) != len(b) {
			return nil, errors.Errorf("buffer %d has %d values, want %d", i, len(snap.Buffers[i]), len(b))
		}
		copy(b, snap.Buffers[i])
	}
	return r, nil
}

// SaveFile writes the model to path.
func (r *Regressor) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating model file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.Save(f)
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Regressor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := Load(f)
	return r, errors.Wrapf(err, "loading %s", path)
}
