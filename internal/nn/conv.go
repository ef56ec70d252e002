package nn

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Conv is an N-dimensional convolutional layer (1-3 spatial dims).
//
// Input shape:  [batch, in_channels, *spatial]
// Weight shape: [out_channels, in_channels, *kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, *out] with
//
//	out_i = (spatial_i + 2*padding - dilation*(kernel-1) - 1) / stride + 1
//
// Kernel size, stride, dilation and padding are isotropic: the same value
// applies to every spatial dimension, which is how the autoencoder
// configurations specify their per-level tuples.
//
// Example:
//
//	// 2D conv: 1 channel -> 8 channels, 4x4 kernel, stride 2, padding 1
//	conv := nn.NewConv(2, 1, 8, 4, 2, 1, 1, true, backend)
//	input := tensor.Zeros[float32](tensor.Shape{2, 1, 64, 64}, backend)
//	output := conv.Forward(input) // [2, 8, 32, 32]
type Conv[B tensor.Backend] struct {
	spatialDims int
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	dilation    int
	padding     int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConv creates a new N-dimensional convolutional layer with Xavier
// initialized weights and zero bias.
//
// Panics on invalid geometry; callers constructing layers from user
// configuration validate first.
func NewConv[B tensor.Backend](
	spatialDims, inChannels, outChannels int,
	kernelSize, stride, dilation, padding int,
	useBias bool,
	backend B,
) *Conv[B] {
	if spatialDims < 1 || spatialDims > 3 {
		panic(fmt.Sprintf("conv: spatial dims must be 1-3, got %d", spatialDims))
	}
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || dilation <= 0 {
		panic(fmt.Sprintf("conv: invalid kernel=%d stride=%d dilation=%d", kernelSize, stride, dilation))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv: invalid padding %d", padding))
	}

	weightShape := tensor.Shape{outChannels, inChannels}
	kernelVolume := 1
	for i := 0; i < spatialDims; i++ {
		weightShape = append(weightShape, kernelSize)
		kernelVolume *= kernelSize
	}

	fanIn := inChannels * kernelVolume
	fanOut := outChannels * kernelVolume
	weightParam := NewParameter("conv.weight", Xavier(fanIn, fanOut, weightShape, backend))

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("conv.bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &Conv[B]{
		spatialDims: spatialDims,
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		dilation:    dilation,
		padding:     padding,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *Conv[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != c.spatialDims+2 {
		panic(fmt.Sprintf("conv: expected %dD input [N,C,*S], got %dD", c.spatialDims+2, len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	var biasRaw *tensor.RawTensor
	if c.useBias {
		biasRaw = c.bias.Tensor().Raw()
	}

	outputRaw := c.backend.ConvND(
		input.Raw(),
		c.weight.Tensor().Raw(),
		biasRaw,
		repeat(c.stride, c.spatialDims),
		repeat(c.dilation, c.spatialDims),
		repeat(c.padding, c.spatialDims),
	)

	return tensor.New[float32, B](outputRaw, c.backend)
}

// Parameters returns all trainable parameters.
func (c *Conv[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns the layer parameters.
func (c *Conv[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
	}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict loads the layer parameters.
func (c *Conv[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadParam(stateDict, "weight", c.weight); err != nil {
		return fmt.Errorf("conv: %w", err)
	}
	if c.useBias {
		if err := loadParam(stateDict, "bias", c.bias); err != nil {
			return fmt.Errorf("conv: %w", err)
		}
	}
	return nil
}

// Train is a no-op; convolution behaves identically in both modes.
func (c *Conv[B]) Train() {}

// Eval is a no-op.
func (c *Conv[B]) Eval() {}

// OutChannels returns the number of output channels.
func (c *Conv[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv[B]) InChannels() int {
	return c.inChannels
}

// String returns a string representation of the layer.
func (c *Conv[B]) String() string {
	return fmt.Sprintf("Conv(dims=%d, in=%d, out=%d, kernel=%d, stride=%d, dilation=%d, padding=%d, bias=%v)",
		c.spatialDims, c.inChannels, c.outChannels, c.kernelSize, c.stride, c.dilation, c.padding, c.useBias)
}

// repeat returns a slice of n copies of v.
func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
