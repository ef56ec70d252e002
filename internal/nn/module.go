// Package nn implements the neural network building blocks used by the
// generative networks in this library.
//
// The blocks are:
//   - Module interface: base interface for all NN components
//   - Parameter: named trainable tensors
//   - Conv, ConvTranspose: N-dimensional convolution layers (1-3 spatial dims)
//   - Activation, Dropout, ADN: the pieces of a convolution block
//   - ResidualUnit: the residual block of the autoencoder stacks
//   - EMAQuantizer: vector-quantization codebook with EMA updates
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// parameters return an empty slice.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter names to raw tensors for
	// serialization. Nested parameters use dotted prefixes.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads parameters from a state dictionary.
	// Shapes must match the module's current parameters.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// Train puts the module in training mode (dropout active,
	// EMA codebook updates enabled).
	Train()

	// Eval puts the module in evaluation mode.
	Eval()
}

// mergeStateDict copies child entries into dst under "prefix.name" keys.
func mergeStateDict(dst map[string]*tensor.RawTensor, prefix string, child map[string]*tensor.RawTensor) {
	for name, raw := range child {
		dst[prefix+"."+name] = raw
	}
}

// subStateDict extracts the entries under "prefix." with the prefix stripped.
func subStateDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	p := prefix + "."
	for name, raw := range stateDict {
		if len(name) > len(p) && name[:len(p)] == p {
			sub[name[len(p):]] = raw
		}
	}
	return sub
}

// loadParam copies a state dict entry into a parameter tensor.
func loadParam[B tensor.Backend](stateDict map[string]*tensor.RawTensor, name string, p *Parameter[B]) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("state dict missing parameter %q", name)
	}
	if err := p.Tensor().Raw().CopyFrom(raw); err != nil {
		return fmt.Errorf("parameter %q: %w", name, err)
	}
	return nil
}
