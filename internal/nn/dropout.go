package nn

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Dropout randomly zeroes elements with probability p during training,
// scaling the survivors by 1/(1-p) (inverted dropout). In evaluation
// mode it is the identity.
type Dropout[B tensor.Backend] struct {
	p        float64
	training bool
}

// NewDropout creates a dropout module. p must be in [0, 1).
func NewDropout[B tensor.Backend](p float64) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %v must be in [0, 1)", p))
	}
	return &Dropout[B]{p: p}
}

// Forward applies dropout in training mode and is the identity otherwise.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}

	out := input.Clone()
	data := out.Data()
	scale := float32(1.0 / (1.0 - d.p))
	for i := range data {
		if tensor.RandFloat64() < d.p {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}
	return out
}

// Parameters returns an empty slice; dropout is stateless.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map.
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for dropout.
func (d *Dropout[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// Train enables the dropout mask.
func (d *Dropout[B]) Train() {
	d.training = true
}

// Eval disables the dropout mask.
func (d *Dropout[B]) Eval() {
	d.training = false
}
