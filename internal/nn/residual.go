package nn

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// ResidualUnit is the residual block of the autoencoder stacks:
// a kernel-3 convolution with activation/dropout, a second kernel-3
// convolution, then ReLU over the sum with the input. Both convolutions
// preserve spatial size (padding 1) and channel count.
type ResidualUnit[B tensor.Backend] struct {
	conv1 *Conv[B]
	adn   *ADN[B]
	conv2 *Conv[B]

	backend B
}

// NewResidualUnit creates a residual unit over channels channels.
func NewResidualUnit[B tensor.Backend](
	spatialDims, channels int,
	ordering string,
	act *Activation[B],
	dropoutP float64,
	backend B,
) (*ResidualUnit[B], error) {
	adn, err := NewADN(ordering, act, dropoutP)
	if err != nil {
		return nil, fmt.Errorf("residual unit: %w", err)
	}
	return &ResidualUnit[B]{
		conv1:   NewConv(spatialDims, channels, channels, 3, 1, 1, 1, true, backend),
		adn:     adn,
		conv2:   NewConv(spatialDims, channels, channels, 3, 1, 1, 1, true, backend),
		backend: backend,
	}, nil
}

// Forward computes ReLU(x + conv2(adn(conv1(x)))).
func (r *ResidualUnit[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	branch := r.conv2.Forward(r.adn.Forward(r.conv1.Forward(input)))
	sum := input.Add(branch)
	return tensor.New[float32, B](r.backend.ReLU(sum.Raw()), r.backend)
}

// Parameters returns all trainable parameters.
func (r *ResidualUnit[B]) Parameters() []*Parameter[B] {
	return append(r.conv1.Parameters(), r.conv2.Parameters()...)
}

// StateDict returns the parameters of both convolutions.
func (r *ResidualUnit[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	mergeStateDict(sd, "conv1", r.conv1.StateDict())
	mergeStateDict(sd, "conv2", r.conv2.StateDict())
	return sd
}

// LoadStateDict loads the parameters of both convolutions.
func (r *ResidualUnit[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := r.conv1.LoadStateDict(subStateDict(stateDict, "conv1")); err != nil {
		return fmt.Errorf("residual unit: %w", err)
	}
	if err := r.conv2.LoadStateDict(subStateDict(stateDict, "conv2")); err != nil {
		return fmt.Errorf("residual unit: %w", err)
	}
	return nil
}

// Train propagates training mode.
func (r *ResidualUnit[B]) Train() {
	r.adn.Train()
}

// Eval propagates evaluation mode.
func (r *ResidualUnit[B]) Eval() {
	r.adn.Eval()
}
