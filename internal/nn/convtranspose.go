package nn

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// ConvTranspose is an N-dimensional transposed convolutional layer,
// the upsampling counterpart of Conv.
//
// Input shape:  [batch, in_channels, *spatial]
// Weight shape: [in_channels, out_channels, *kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, *out] with
//
//	out_i = (spatial_i-1)*stride - 2*padding + dilation*(kernel-1) + 1 + outputPadding
//
// With stride 2, kernel 4, padding 1 and no output padding the layer
// exactly doubles spatial size, mirroring the matching Conv downsampling.
type ConvTranspose[B tensor.Backend] struct {
	spatialDims   int
	inChannels    int
	outChannels   int
	kernelSize    int
	stride        int
	dilation      int
	padding       int
	outputPadding int
	useBias       bool

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConvTranspose creates a new N-dimensional transposed convolutional
// layer with Xavier initialized weights and zero bias.
func NewConvTranspose[B tensor.Backend](
	spatialDims, inChannels, outChannels int,
	kernelSize, stride, dilation, padding, outputPadding int,
	useBias bool,
	backend B,
) *ConvTranspose[B] {
	if spatialDims < 1 || spatialDims > 3 {
		panic(fmt.Sprintf("convtranspose: spatial dims must be 1-3, got %d", spatialDims))
	}
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("convtranspose: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || dilation <= 0 {
		panic(fmt.Sprintf("convtranspose: invalid kernel=%d stride=%d dilation=%d", kernelSize, stride, dilation))
	}
	if padding < 0 || outputPadding < 0 || outputPadding >= stride {
		panic(fmt.Sprintf("convtranspose: invalid padding=%d outputPadding=%d (stride %d)", padding, outputPadding, stride))
	}

	weightShape := tensor.Shape{inChannels, outChannels}
	kernelVolume := 1
	for i := 0; i < spatialDims; i++ {
		weightShape = append(weightShape, kernelSize)
		kernelVolume *= kernelSize
	}

	fanIn := inChannels * kernelVolume
	fanOut := outChannels * kernelVolume
	weightParam := NewParameter("convtranspose.weight", Xavier(fanIn, fanOut, weightShape, backend))

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("convtranspose.bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &ConvTranspose[B]{
		spatialDims:   spatialDims,
		inChannels:    inChannels,
		outChannels:   outChannels,
		kernelSize:    kernelSize,
		stride:        stride,
		dilation:      dilation,
		padding:       padding,
		outputPadding: outputPadding,
		useBias:       useBias,
		weight:        weightParam,
		bias:          biasParam,
		backend:       backend,
	}
}

// Forward performs the forward pass.
func (c *ConvTranspose[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != c.spatialDims+2 {
		panic(fmt.Sprintf("convtranspose: expected %dD input [N,C,*S], got %dD", c.spatialDims+2, len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("convtranspose: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	var biasRaw *tensor.RawTensor
	if c.useBias {
		biasRaw = c.bias.Tensor().Raw()
	}

	outputRaw := c.backend.ConvTransposeND(
		input.Raw(),
		c.weight.Tensor().Raw(),
		biasRaw,
		repeat(c.stride, c.spatialDims),
		repeat(c.dilation, c.spatialDims),
		repeat(c.padding, c.spatialDims),
		repeat(c.outputPadding, c.spatialDims),
	)

	return tensor.New[float32, B](outputRaw, c.backend)
}

// Parameters returns all trainable parameters.
func (c *ConvTranspose[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns the layer parameters.
func (c *ConvTranspose[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
	}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict loads the layer parameters.
func (c *ConvTranspose[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadParam(stateDict, "weight", c.weight); err != nil {
		return fmt.Errorf("convtranspose: %w", err)
	}
	if c.useBias {
		if err := loadParam(stateDict, "bias", c.bias); err != nil {
			return fmt.Errorf("convtranspose: %w", err)
		}
	}
	return nil
}

// Train is a no-op; transposed convolution behaves identically in both modes.
func (c *ConvTranspose[B]) Train() {}

// Eval is a no-op.
func (c *ConvTranspose[B]) Eval() {}

// String returns a string representation of the layer.
func (c *ConvTranspose[B]) String() string {
	return fmt.Sprintf("ConvTranspose(dims=%d, in=%d, out=%d, kernel=%d, stride=%d, padding=%d, outputPadding=%d, bias=%v)",
		c.spatialDims, c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.outputPadding, c.useBias)
}
