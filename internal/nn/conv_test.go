package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadHGY/GenerativeModels/internal/backend/cpu"
	"github.com/chadHGY/GenerativeModels/internal/nn"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

func testBackend() *cpu.CPUBackend {
	return cpu.New()
}

func fromSlice[T tensor.DType](t *testing.T, data []T, shape tensor.Shape, backend *cpu.CPUBackend) *tensor.Tensor[T, *cpu.CPUBackend] {
	t.Helper()
	out, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return out
}

func TestConvOutputShapes(t *testing.T) {
	backend := testBackend()

	tests := []struct {
		name    string
		dims    int
		kernel  int
		stride  int
		padding int
		input   tensor.Shape
		want    tensor.Shape
	}{
		{"1d downsample", 1, 4, 2, 1, tensor.Shape{2, 3, 16}, tensor.Shape{2, 8, 8}},
		{"2d downsample", 2, 4, 2, 1, tensor.Shape{2, 3, 16, 16}, tensor.Shape{2, 8, 8, 8}},
		{"3d downsample", 3, 4, 2, 1, tensor.Shape{1, 3, 8, 8, 8}, tensor.Shape{1, 8, 4, 4, 4}},
		{"2d same size", 2, 3, 1, 1, tensor.Shape{2, 3, 16, 16}, tensor.Shape{2, 8, 16, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := nn.NewConv(tt.dims, 3, 8, tt.kernel, tt.stride, 1, tt.padding, true, backend)
			input := tensor.Zeros[float32](tt.input, backend)
			output := conv.Forward(input)
			assert.Equal(t, tt.want, output.Shape())
		})
	}
}

func TestConvForwardWithLoadedWeights(t *testing.T) {
	backend := testBackend()

	// 1x1 kernel with weight 2 and bias 1 computes 2x+1.
	conv := nn.NewConv(1, 1, 1, 1, 1, 1, 0, true, backend)
	err := conv.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": fromSlice(t, []float32{2}, tensor.Shape{1, 1, 1}, backend).Raw(),
		"bias":   fromSlice(t, []float32{1}, tensor.Shape{1}, backend).Raw(),
	})
	require.NoError(t, err)

	input := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{1, 1, 3}, backend)
	output := conv.Forward(input)
	assert.Equal(t, []float32{3, 5, 7}, output.Data())
}

func TestConvChannelMismatchPanics(t *testing.T) {
	backend := testBackend()
	conv := nn.NewConv(2, 3, 8, 3, 1, 1, 1, true, backend)
	input := tensor.Zeros[float32](tensor.Shape{1, 4, 8, 8}, backend)

	assert.Panics(t, func() {
		conv.Forward(input)
	})
}

func TestConvInvalidGeometryPanics(t *testing.T) {
	backend := testBackend()

	assert.Panics(t, func() {
		nn.NewConv(4, 1, 1, 3, 1, 1, 1, true, backend)
	})
	assert.Panics(t, func() {
		nn.NewConv(2, 1, 1, 0, 1, 1, 1, true, backend)
	})
	assert.Panics(t, func() {
		nn.NewConv(2, 1, 1, 3, 1, 1, -1, true, backend)
	})
}

func TestConvStateDictRoundTrip(t *testing.T) {
	backend := testBackend()

	src := nn.NewConv(2, 2, 4, 3, 1, 1, 1, true, backend)
	dst := nn.NewConv(2, 2, 4, 3, 1, 1, 1, true, backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	input := tensor.Randn[float32](tensor.Shape{1, 2, 8, 8}, backend)
	assert.Equal(t, src.Forward(input).Data(), dst.Forward(input).Data())
}

func TestConvWithoutBias(t *testing.T) {
	backend := testBackend()

	conv := nn.NewConv(1, 1, 1, 1, 1, 1, 0, false, backend)
	require.Len(t, conv.Parameters(), 1)

	sd := conv.StateDict()
	_, hasBias := sd["bias"]
	assert.False(t, hasBias)
}
