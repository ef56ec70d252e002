package nets

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadHGY/GenerativeModels/internal/backend/cpu"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

func repeatTuple(tuple []int, n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = append([]int(nil), tuple...)
	}
	return out
}

// gridConfig mirrors the standard halving/doubling architecture used
// across the shape tests.
func gridConfig(spatialDims, inChannels, numLevels, embeddingDim int) VQVAEConfig {
	return VQVAEConfig{
		SpatialDims:          spatialDims,
		InChannels:           inChannels,
		OutChannels:          inChannels,
		NumLevels:            numLevels,
		DownsampleParameters: repeatTuple([]int{2, 4, 1, 1}, numLevels),
		UpsampleParameters:   repeatTuple([]int{2, 4, 1, 1, 0}, numLevels),
		NumResLayers:         1,
		NumChannels:          8,
		NumEmbeddings:        256,
		EmbeddingDim:         embeddingDim,
		EmbeddingInit:        "normal",
		CommitmentCost:       0.25,
		Decay:                0.5,
		Epsilon:              1e-5,
		ADNOrdering:          "NDA",
		Dropout:              0.1,
		Act:                  "RELU",
	}
}

// latentConfig is the 4-level architecture with a 16x total downsampling
// factor used by the latent-space shape tests.
func latentConfig() VQVAEConfig {
	return gridConfig(2, 1, 4, 32)
}

func TestVQVAEForwardShape(t *testing.T) {
	backend := cpu.New()

	for _, spatialDims := range []int{2, 3} {
		for _, numLevels := range []int{2, 4} {
			for _, embeddingDim := range []int{16, 64} {
				for _, batch := range []int{1, 3} {
					for _, channels := range []int{1, 3} {
						for _, spatial := range []int{64, 256} {
							name := fmt.Sprintf("%dd_levels%d_dim%d_batch%d_ch%d_size%d",
								spatialDims, numLevels, embeddingDim, batch, channels, spatial)
							t.Run(name, func(t *testing.T) {
								if spatialDims == 3 && spatial == 256 {
									t.Skip("3D 256^3 inputs need more memory than CI offers")
								}
								if testing.Short() && (spatialDims == 3 || spatial == 256) {
									t.Skip("skipping large case in short mode")
								}

								net, err := NewVQVAE(gridConfig(spatialDims, channels, numLevels, embeddingDim), backend)
								require.NoError(t, err)
								net.Eval()

								inputShape := tensor.Shape{batch, channels}
								for i := 0; i < spatialDims; i++ {
									inputShape = append(inputShape, spatial)
								}

								input := tensor.Randn[float32](inputShape, backend)
								reconstruction, loss := net.Forward(input)

								assert.Equal(t, inputShape, reconstruction.Shape())
								require.Equal(t, tensor.Shape{1}, loss.Shape())
								assert.GreaterOrEqual(t, loss.Data()[0], float32(0))
							})
						}
					}
				}
			}
		}
	}
}

func TestVQVAELevelUpsampleDownsampleDifference(t *testing.T) {
	backend := cpu.New()

	config := gridConfig(3, 1, 3, 32)
	config.DownsampleParameters = repeatTuple([]int{2, 4, 1, 1}, 2)
	config.UpsampleParameters = repeatTuple([]int{2, 4, 1, 1, 0}, 4)

	_, err := NewVQVAE(config, backend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downsample")
}

func TestVQVAEConfigValidation(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*VQVAEConfig)
	}{
		{"bad spatial dims", func(c *VQVAEConfig) { c.SpatialDims = 4 }},
		{"zero in channels", func(c *VQVAEConfig) { c.InChannels = 0 }},
		{"zero levels", func(c *VQVAEConfig) { c.NumLevels = 0 }},
		{"short downsample tuple", func(c *VQVAEConfig) { c.DownsampleParameters[0] = []int{2, 4, 1} }},
		{"short upsample tuple", func(c *VQVAEConfig) { c.UpsampleParameters[0] = []int{2, 4, 1, 1} }},
		{"negative res layers", func(c *VQVAEConfig) { c.NumResLayers = -1 }},
		{"zero channels", func(c *VQVAEConfig) { c.NumChannels = 0 }},
		{"zero embeddings", func(c *VQVAEConfig) { c.NumEmbeddings = 0 }},
		{"bad adn ordering", func(c *VQVAEConfig) { c.ADNOrdering = "XYZ" }},
		{"dropout out of range", func(c *VQVAEConfig) { c.Dropout = 1.0 }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			config := gridConfig(2, 1, 2, 16)
			tt.mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestVQVAERejectsUnknownActivation(t *testing.T) {
	backend := cpu.New()
	config := gridConfig(2, 1, 2, 16)
	config.Act = "SWISH"
	_, err := NewVQVAE(config, backend)
	assert.Error(t, err)
}

func TestVQVAERejectsUnknownEmbeddingInit(t *testing.T) {
	backend := cpu.New()
	config := gridConfig(2, 1, 2, 16)
	config.EmbeddingInit = "orthogonal"
	_, err := NewVQVAE(config, backend)
	assert.Error(t, err)
}

func TestVQVAEEncodeShape(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 256x256 encode in short mode")
	}
	backend := cpu.New()

	net, err := NewVQVAE(latentConfig(), backend)
	require.NoError(t, err)
	net.Eval()

	latent := net.Encode(tensor.Randn[float32](tensor.Shape{2, 1, 256, 256}, backend))
	assert.Equal(t, tensor.Shape{2, 32, 16, 16}, latent.Shape())
}

func TestVQVAEIndexQuantizeShape(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 256x256 index quantize in short mode")
	}
	backend := cpu.New()

	net, err := NewVQVAE(latentConfig(), backend)
	require.NoError(t, err)
	net.Eval()

	indices := net.IndexQuantize(tensor.Randn[float32](tensor.Shape{2, 1, 256, 256}, backend))
	assert.Equal(t, tensor.Shape{2, 16, 16}, indices.Shape())

	for _, idx := range indices.Data() {
		require.GreaterOrEqual(t, idx, int64(0))
		require.Less(t, idx, int64(256))
	}
}

func TestVQVAEDecodeShape(t *testing.T) {
	backend := cpu.New()

	net, err := NewVQVAE(latentConfig(), backend)
	require.NoError(t, err)
	net.Eval()

	output := net.Decode(tensor.Randn[float32](tensor.Shape{2, 32, 16, 16}, backend))
	assert.Equal(t, tensor.Shape{2, 1, 256, 256}, output.Shape())
}

func TestVQVAEDecodeSamplesShape(t *testing.T) {
	backend := cpu.New()

	net, err := NewVQVAE(latentConfig(), backend)
	require.NoError(t, err)
	net.Eval()

	indices := tensor.RandInt(tensor.Shape{2, 16, 16}, 0, 256, backend)
	output := net.DecodeSamples(indices)
	assert.Equal(t, tensor.Shape{2, 1, 256, 256}, output.Shape())
}

func TestVQVAEOutputActivation(t *testing.T) {
	backend := cpu.New()

	config := gridConfig(2, 1, 2, 16)
	config.OutputAct = "SIGMOID"
	net, err := NewVQVAE(config, backend)
	require.NoError(t, err)
	net.Eval()

	reconstruction, _ := net.Forward(tensor.Randn[float32](tensor.Shape{1, 1, 16, 16}, backend))
	for _, v := range reconstruction.Data() {
		require.Greater(t, v, float32(0))
		require.Less(t, v, float32(1))
	}
}

func TestVQVAESaveLoadReproducesOutput(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "vqvae.gm")

	src, err := NewVQVAE(gridConfig(2, 1, 2, 16), backend)
	require.NoError(t, err)
	src.Eval()
	require.NoError(t, src.Save(path, true))

	loaded, err := LoadVQVAE(path, backend)
	require.NoError(t, err)
	loaded.Eval()

	assert.Equal(t, src.Config(), loaded.Config())

	input := tensor.Randn[float32](tensor.Shape{1, 1, 32, 32}, backend)
	srcOut, srcLoss := src.Forward(input)
	loadedOut, loadedLoss := loaded.Forward(input)

	assert.Equal(t, srcOut.Data(), loadedOut.Data())
	assert.Equal(t, srcLoss.Data(), loadedLoss.Data())
}

func TestVQVAEStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	src, err := NewVQVAE(gridConfig(3, 1, 2, 16), backend)
	require.NoError(t, err)
	dst, err := NewVQVAE(gridConfig(3, 1, 2, 16), backend)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	src.Eval()
	dst.Eval()

	input := tensor.Randn[float32](tensor.Shape{1, 1, 16, 16, 16}, backend)
	srcOut, _ := src.Forward(input)
	dstOut, _ := dst.Forward(input)
	assert.Equal(t, srcOut.Data(), dstOut.Data())
}

func TestVQVAETrainUpdatesCodebook(t *testing.T) {
	backend := cpu.New()

	net, err := NewVQVAE(gridConfig(2, 1, 2, 16), backend)
	require.NoError(t, err)
	net.Train()

	before := append([]float32(nil), net.StateDict()["quantizer.embedding"].AsFloat32()...)
	net.Forward(tensor.Randn[float32](tensor.Shape{2, 1, 32, 32}, backend))
	after := net.StateDict()["quantizer.embedding"].AsFloat32()

	assert.NotEqual(t, before, after)
}

func TestVQVAEParametersCoverAllLayers(t *testing.T) {
	backend := cpu.New()

	net, err := NewVQVAE(gridConfig(2, 1, 2, 16), backend)
	require.NoError(t, err)

	// 2 encoder convs, 2 encoder res units with 2 convs each, to_latent,
	// from_latent, 2 decoder res units, 2 decoder convs, all weight+bias,
	// plus the codebook embedding.
	wantParams := (2+4+1+1+4+2)*2 + 1
	assert.Len(t, net.Parameters(), wantParams)
}
