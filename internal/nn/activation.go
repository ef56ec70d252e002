package nn

import (
	"fmt"
	"strings"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

type actKind int

const (
	actReLU actKind = iota
	actLeakyReLU
	actSigmoid
	actTanh
)

// Activation is an element-wise activation module selected by name,
// so network configurations can specify activations as strings.
type Activation[B tensor.Backend] struct {
	kind          actKind
	name          string
	negativeSlope float64
}

// NewActivation creates an activation module from its configuration name.
// Supported names (case-insensitive): RELU, LEAKYRELU, SIGMOID, TANH.
func NewActivation[B tensor.Backend](name string) (*Activation[B], error) {
	switch strings.ToUpper(name) {
	case "RELU":
		return &Activation[B]{kind: actReLU, name: "RELU"}, nil
	case "LEAKYRELU":
		return &Activation[B]{kind: actLeakyReLU, name: "LEAKYRELU", negativeSlope: 0.01}, nil
	case "SIGMOID":
		return &Activation[B]{kind: actSigmoid, name: "SIGMOID"}, nil
	case "TANH":
		return &Activation[B]{kind: actTanh, name: "TANH"}, nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}

// Forward applies the activation element-wise.
func (a *Activation[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	var raw *tensor.RawTensor
	switch a.kind {
	case actReLU:
		raw = backend.ReLU(input.Raw())
	case actLeakyReLU:
		raw = backend.LeakyReLU(input.Raw(), a.negativeSlope)
	case actSigmoid:
		raw = backend.Sigmoid(input.Raw())
	case actTanh:
		raw = backend.Tanh(input.Raw())
	default:
		panic(fmt.Sprintf("activation: unknown kind %d", a.kind))
	}
	return tensor.New[float32, B](raw, backend)
}

// Parameters returns an empty slice; activations are stateless.
func (a *Activation[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map; activations carry no state.
func (a *Activation[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for activations.
func (a *Activation[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// Train is a no-op.
func (a *Activation[B]) Train() {}

// Eval is a no-op.
func (a *Activation[B]) Eval() {}

// String returns the activation name.
func (a *Activation[B]) String() string {
	return a.name
}
