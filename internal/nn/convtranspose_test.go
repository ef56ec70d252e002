package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadHGY/GenerativeModels/internal/nn"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

func TestConvTransposeOutputShapes(t *testing.T) {
	backend := testBackend()

	tests := []struct {
		name      string
		dims      int
		kernel    int
		stride    int
		padding   int
		outputPad int
		input     tensor.Shape
		want      tensor.Shape
	}{
		{"1d upsample", 1, 4, 2, 1, 0, tensor.Shape{2, 8, 8}, tensor.Shape{2, 3, 16}},
		{"2d upsample", 2, 4, 2, 1, 0, tensor.Shape{2, 8, 8, 8}, tensor.Shape{2, 3, 16, 16}},
		{"3d upsample", 3, 4, 2, 1, 0, tensor.Shape{1, 8, 4, 4, 4}, tensor.Shape{1, 3, 8, 8, 8}},
		{"2d output padding", 2, 4, 2, 1, 1, tensor.Shape{1, 8, 8, 8}, tensor.Shape{1, 3, 17, 17}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := nn.NewConvTranspose(tt.dims, 8, 3, tt.kernel, tt.stride, 1, tt.padding, tt.outputPad, true, backend)
			input := tensor.Zeros[float32](tt.input, backend)
			output := conv.Forward(input)
			assert.Equal(t, tt.want, output.Shape())
		})
	}
}

func TestConvTransposeMirrorsConvDownsampling(t *testing.T) {
	backend := testBackend()

	// Stride-2 kernel-4 padding-1 halves; its transpose restores the size.
	down := nn.NewConv(2, 1, 4, 4, 2, 1, 1, true, backend)
	up := nn.NewConvTranspose(2, 4, 1, 4, 2, 1, 1, 0, true, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 1, 32, 32}, backend)
	latent := down.Forward(input)
	require.Equal(t, tensor.Shape{2, 4, 16, 16}, latent.Shape())

	restored := up.Forward(latent)
	assert.Equal(t, input.Shape(), restored.Shape())
}

func TestConvTransposeForwardWithLoadedWeights(t *testing.T) {
	backend := testBackend()

	conv := nn.NewConvTranspose(1, 1, 1, 1, 1, 1, 0, 0, true, backend)
	err := conv.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": fromSlice(t, []float32{3}, tensor.Shape{1, 1, 1}, backend).Raw(),
		"bias":   fromSlice(t, []float32{-1}, tensor.Shape{1}, backend).Raw(),
	})
	require.NoError(t, err)

	input := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{1, 1, 3}, backend)
	output := conv.Forward(input)
	assert.Equal(t, []float32{2, 5, 8}, output.Data())
}

func TestConvTransposeInvalidOutputPaddingPanics(t *testing.T) {
	backend := testBackend()

	assert.Panics(t, func() {
		// Output padding must stay below the stride.
		nn.NewConvTranspose(2, 1, 1, 4, 2, 1, 1, 2, true, backend)
	})
}
