package flat

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
)

const magic = "flatnet/1"

// MaxNeurons bounds every layer of a decoded network.
const MaxNeurons = 1 << 20

// ErrTooLarge is returned by Decode for a layer above MaxNeurons.
var ErrTooLarge = errors.New("flat network layer is too large")

// Save saves the network to a file using gob encoding.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	if err := n.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load loads a network from a file written by Save.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return Decode(file)
}

// Encode writes the topology and the weight vector to w.
func (n *Network) Encode(w io.Writer) error {
	encoder := gob.NewEncoder(w)
	desc := n.Description()

	if err := encoder.Encode(magic); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}

	// Write number of layers
	if err := encoder.Encode(int32(len(desc.Layers))); err != nil {
		return errors.Wrap(err, "failed to encode layer count")
	}

	for i, l := range desc.Layers {
		if err := encoder.Encode(l); err != nil {
			return errors.Wrapf(err, "failed to encode layer %d", i)
		}
	}

	if err := encoder.Encode(desc.Weights); err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	return nil
}

// Decode reads a network written by Encode.
func Decode(r io.Reader) (*Network, error) {
	decoder := gob.NewDecoder(r)

	var header string
	if err := decoder.Decode(&header); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	if header != magic {
		return nil, errors.Errorf("unsupported network format %q", header)
	}

	var numLayers int32
	if err := decoder.Decode(&numLayers); err != nil {
		return nil, errors.Wrap(err, "failed to read layer count")
	}
	if numLayers < 0 || numLayers > 1<<16 {
		return nil, errors.Errorf("invalid layer count %d", numLayers)
	}

	desc := Description{Layers: make([]LayerDef, numLayers)}
	for i := range desc.Layers {
		if err := decoder.Decode(&desc.Layers[i]); err != nil {
			return nil, errors.Wrapf(err, "failed to read layer %d", i)
		}
	}

	if err := decoder.Decode(&desc.Weights); err != nil {
		return nil, errors.Wrap(err, "failed to read weights")
	}
	if desc.Weights == nil {
		// gob decodes an empty slice as nil
		desc.Weights = []float64{}
	}
	if err := checkDecoded(desc); err != nil {
		return nil, err
	}

	return New(desc)
}

// checkDecoded matches the topology against the decoded weight vector before
// anything is allocated for it.
func checkDecoded(desc Description) error {
	want := 0
	for i, l := range desc.Layers {
		if l.Neurons > MaxNeurons {
			return errors.Wrapf(ErrTooLarge, "layer %d has %d neurons", i, l.Neurons)
		}
		if l.Neurons <= 0 {
			return errors.Wrapf(ErrEmptyTopology, "layer %d has %d neurons", i, l.Neurons)
		}
		if i > 0 {
			want += l.Neurons + l.Neurons*desc.Layers[i-1].Neurons
		}
	}
	if want != len(desc.Weights) {
		return errors.Wrapf(ErrWeightCount, "topology needs %d weights, file has %d", want, len(desc.Weights))
	}
	return nil
}
