// Package data provides indexable training sets of (input, ideal) vector pairs.
package data

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when a vector length does not match the declared size.
	ErrShape = errors.New("data shape mismatch")

	// ErrIndex is returned for a record index outside [0, Count()).
	ErrIndex = errors.New("record index out of range")

	// ErrEmpty is returned when a dataset would hold no records.
	ErrEmpty = errors.New("dataset is empty")
)

// Pair is one training example. Its slices are owned by the caller and are
// overwritten by Indexable.Record.
type Pair struct {
	Input []float64
	Ideal []float64
}

// NewPair allocates a pair sized for a dataset.
func NewPair(inputSize, idealSize int) *Pair {
	return &Pair{
		Input: make([]float64, inputSize),
		Ideal: make([]float64, idealSize),
	}
}

// Indexable is a fixed-width, randomly accessible training set.
type Indexable interface {
	// Count returns the number of records.
	Count() int

	// Record copies the record at index into pair.
	Record(index int, pair *Pair) error

	// InputSize returns the length of every input vector.
	InputSize() int

	// IdealSize returns the length of every ideal vector.
	IdealSize() int
}

// Basic is an in-memory dataset backed by two dense matrices, one row per record.
type Basic struct {
	input *mat.Dense
	ideal *mat.Dense
}

// NewBasic copies input and ideal rows into a new dataset.
// Every input row must have the same length, and likewise every ideal row.
func NewBasic(input, ideal [][]float64) (*Basic, error) {
	if len(input) == 0 {
		return nil, ErrEmpty
	}
	if len(input) != len(ideal) {
		return nil, errors.Wrapf(ErrShape, "%d input rows, %d ideal rows", len(input), len(ideal))
	}

	inputSize, idealSize := len(input[0]), len(ideal[0])
	if inputSize == 0 || idealSize == 0 {
		return nil, errors.Wrap(ErrShape, "zero width rows")
	}

	in := mat.NewDense(len(input), inputSize, nil)
	id := mat.NewDense(len(ideal), idealSize, nil)
	for i := range input {
		if len(input[i]) != inputSize {
			return nil, errors.Wrapf(ErrShape, "input row %d has %d values, want %d", i, len(input[i]), inputSize)
		}
		if len(ideal[i]) != idealSize {
			return nil, errors.Wrapf(ErrShape, "ideal row %d has %d values, want %d", i, len(ideal[i]), idealSize)
		}
		in.SetRow(i, input[i])
		id.SetRow(i, ideal[i])
	}

	return &Basic{input: in, ideal: id}, nil
}

// Count returns the number of records.
func (b *Basic) Count() int {
	r, _ := b.input.Dims()
	return r
}

// InputSize returns the input width.
func (b *Basic) InputSize() int {
	_, c := b.input.Dims()
	return c
}

// IdealSize returns the ideal width.
func (b *Basic) IdealSize() int {
	_, c := b.ideal.Dims()
	return c
}

// Record copies row index into pair.
func (b *Basic) Record(index int, pair *Pair) error {
	if index < 0 || index >= b.Count() {
		return errors.Wrapf(ErrIndex, "index %d, count %d", index, b.Count())
	}
	if len(pair.Input) != b.InputSize() || len(pair.Ideal) != b.IdealSize() {
		return errors.Wrapf(ErrShape, "pair is %d/%d, dataset is %d/%d",
			len(pair.Input), len(pair.Ideal), b.InputSize(), b.IdealSize())
	}
	copy(pair.Input, b.input.RawRowView(index))
	copy(pair.Ideal, b.ideal.RawRowView(index))
	return nil
}

// Inputs returns the input matrix. Rows are records.
func (b *Basic) Inputs() *mat.Dense {
	return b.input
}

// Ideals returns the ideal matrix. Rows are records.
func (b *Basic) Ideals() *mat.Dense {
	return b.ideal
}

// Normalize performs min-max normalization on the input columns.
// Constant columns become 0.
func (b *Basic) Normalize() {
	rows, cols := b.input.Dims()
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, b.input)
		lo, hi := col[0], col[0]
		for _, v := range col {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		diff := hi - lo
		for i := 0; i < rows; i++ {
			if diff != 0 {
				b.input.Set(i, j, (col[i]-lo)/diff)
			} else {
				b.input.Set(i, j, 0)
			}
		}
	}
}

// Split splits the dataset at ratio (0.0 to 1.0) into train and test views
// sharing the underlying storage. Both sides must receive at least one row.
func (b *Basic) Split(ratio float64) (*Basic, *Basic, error) {
	n := b.Count()
	idx := int(float64(n) * ratio)
	if idx <= 0 || idx >= n {
		return nil, nil, errors.Wrapf(ErrEmpty, "split %.2f of %d rows", ratio, n)
	}

	train := &Basic{
		input: b.input.Slice(0, idx, 0, b.InputSize()).(*mat.Dense),
		ideal: b.ideal.Slice(0, idx, 0, b.IdealSize()).(*mat.Dense),
	}
	test := &Basic{
		input: b.input.Slice(idx, n, 0, b.InputSize()).(*mat.Dense),
		ideal: b.ideal.Slice(idx, n, 0, b.IdealSize()).(*mat.Dense),
	}
	return train, test, nil
}

// Slices is a dataset over caller-owned rows. Row widths are not validated
// until they are read, so a malformed row surfaces as ErrShape from Record.
type Slices struct {
	Samples [][]float64
	Labels  [][]float64

	inputSize int
	idealSize int
}

// NewSlices creates a dataset over rows with the declared widths. Every
// sample needs a label row.
func NewSlices(samples, labels [][]float64, inputSize, idealSize int) (*Slices, error) {
	if len(samples) != len(labels) {
		return nil, errors.Wrapf(ErrShape, "%d samples, %d labels", len(samples), len(labels))
	}
	if inputSize <= 0 || idealSize <= 0 {
		return nil, errors.Wrapf(ErrShape, "declared widths %d/%d", inputSize, idealSize)
	}
	return &Slices{
		Samples:   samples,
		Labels:    labels,
		inputSize: inputSize,
		idealSize: idealSize,
	}, nil
}

// Count returns the number of samples.
func (s *Slices) Count() int {
	return len(s.Samples)
}

// InputSize returns the declared input width.
func (s *Slices) InputSize() int { return s.inputSize }

// IdealSize returns the declared ideal width.
func (s *Slices) IdealSize() int { return s.idealSize }

// Record copies row index into pair.
func (s *Slices) Record(index int, pair *Pair) error {
	if index < 0 || index >= s.Count() {
		return errors.Wrapf(ErrIndex, "index %d, count %d", index, s.Count())
	}
	if index >= len(s.Labels) {
		return errors.Wrapf(ErrShape, "record %d has no label row", index)
	}
	in, id := s.Samples[index], s.Labels[index]
	if len(in) != s.inputSize || len(pair.Input) != s.inputSize {
		return errors.Wrapf(ErrShape, "record %d input has %d values, want %d", index, len(in), s.inputSize)
	}
	if len(id) != s.idealSize || len(pair.Ideal) != s.idealSize {
		return errors.Wrapf(ErrShape, "record %d ideal has %d values, want %d", index, len(id), s.idealSize)
	}
	copy(pair.Input, in)
	copy(pair.Ideal, id)
	return nil
}

// Subset is a half-open index range [Low, High) over another dataset.
type Subset struct {
	Source    Indexable
	Low, High int
}

// Count returns High - Low.
func (s Subset) Count() int { return s.High - s.Low }

// InputSize returns the source input width.
func (s Subset) InputSize() int { return s.Source.InputSize() }

// IdealSize returns the source ideal width.
func (s Subset) IdealSize() int { return s.Source.IdealSize() }

// Record reads record Low+index from the source.
func (s Subset) Record(index int, pair *Pair) error {
	if index < 0 || index >= s.Count() {
		return errors.Wrapf(ErrIndex, "index %d, subset count %d", index, s.Count())
	}
	return s.Source.Record(s.Low+index, pair)
}
