// Copyright 2025 The GenerativeModels Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nets provides complete generative network architectures
// assembled from the nn building blocks.
package nets

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/chadHGY/GenerativeModels/internal/nn"
	"github.com/chadHGY/GenerativeModels/internal/serialization"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// VQVAEConfig describes a VQVAE architecture.
//
// DownsampleParameters holds one (stride, kernel, dilation, padding) tuple
// per level; UpsampleParameters one (stride, kernel, dilation, padding,
// output padding) tuple per level. Both must have exactly NumLevels entries.
type VQVAEConfig struct {
	SpatialDims          int     `yaml:"spatial_dims"`
	InChannels           int     `yaml:"in_channels"`
	OutChannels          int     `yaml:"out_channels"`
	NumLevels            int     `yaml:"num_levels"`
	DownsampleParameters [][]int `yaml:"downsample_parameters"`
	UpsampleParameters   [][]int `yaml:"upsample_parameters"`
	NumResLayers         int     `yaml:"num_res_layers"`
	NumChannels          int     `yaml:"num_channels"`
	NumEmbeddings        int     `yaml:"num_embeddings"`
	EmbeddingDim         int     `yaml:"embedding_dim"`
	EmbeddingInit        string  `yaml:"embedding_init"`
	CommitmentCost       float32 `yaml:"commitment_cost"`
	Decay                float32 `yaml:"decay"`
	Epsilon              float32 `yaml:"epsilon"`
	ADNOrdering          string  `yaml:"adn_ordering"`
	Dropout              float64 `yaml:"dropout"`
	Act                  string  `yaml:"act"`
	OutputAct            string  `yaml:"output_act,omitempty"`
}

// DefaultVQVAEConfig returns a 2D configuration with three halving levels
// and the standard EMA codebook hyperparameters.
func DefaultVQVAEConfig() VQVAEConfig {
	return VQVAEConfig{
		SpatialDims:          2,
		InChannels:           1,
		OutChannels:          1,
		NumLevels:            3,
		DownsampleParameters: [][]int{{2, 4, 1, 1}, {2, 4, 1, 1}, {2, 4, 1, 1}},
		UpsampleParameters:   [][]int{{2, 4, 1, 1, 0}, {2, 4, 1, 1, 0}, {2, 4, 1, 1, 0}},
		NumResLayers:         3,
		NumChannels:          96,
		NumEmbeddings:        32,
		EmbeddingDim:         64,
		EmbeddingInit:        nn.EmbeddingInitNormal,
		CommitmentCost:       0.25,
		Decay:                0.5,
		Epsilon:              1e-5,
		ADNOrdering:          "NDA",
		Dropout:              0.0,
		Act:                  "RELU",
	}
}

// Validate checks the configuration for structural consistency.
func (c *VQVAEConfig) Validate() error {
	if c.SpatialDims < 1 || c.SpatialDims > 3 {
		return fmt.Errorf("vqvae config: spatial_dims must be 1-3, got %d", c.SpatialDims)
	}
	if c.InChannels <= 0 || c.OutChannels <= 0 {
		return fmt.Errorf("vqvae config: invalid channels in=%d out=%d", c.InChannels, c.OutChannels)
	}
	if c.NumLevels <= 0 {
		return fmt.Errorf("vqvae config: num_levels must be positive, got %d", c.NumLevels)
	}
	if len(c.DownsampleParameters) != c.NumLevels {
		return fmt.Errorf("vqvae config: %d downsample parameter tuples for %d levels",
			len(c.DownsampleParameters), c.NumLevels)
	}
	if len(c.UpsampleParameters) != c.NumLevels {
		return fmt.Errorf("vqvae config: %d upsample parameter tuples for %d levels",
			len(c.UpsampleParameters), c.NumLevels)
	}
	for i, p := range c.DownsampleParameters {
		if len(p) != 4 {
			return fmt.Errorf("vqvae config: downsample tuple %d must be (stride, kernel, dilation, padding), got %v", i, p)
		}
	}
	for i, p := range c.UpsampleParameters {
		if len(p) != 5 {
			return fmt.Errorf("vqvae config: upsample tuple %d must be (stride, kernel, dilation, padding, output_padding), got %v", i, p)
		}
	}
	if c.NumResLayers < 0 {
		return fmt.Errorf("vqvae config: num_res_layers must be non-negative, got %d", c.NumResLayers)
	}
	if c.NumChannels <= 0 {
		return fmt.Errorf("vqvae config: num_channels must be positive, got %d", c.NumChannels)
	}
	if c.NumEmbeddings <= 0 || c.EmbeddingDim <= 0 {
		return fmt.Errorf("vqvae config: invalid codebook size %dx%d", c.NumEmbeddings, c.EmbeddingDim)
	}
	if err := nn.ValidateADNOrdering(c.ADNOrdering); err != nil {
		return fmt.Errorf("vqvae config: %w", err)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("vqvae config: dropout %v must be in [0, 1)", c.Dropout)
	}
	return nil
}

// encoderLevel is one downsampling stage: a strided convolution with its
// activation/dropout block followed by the residual stack.
type encoderLevel[B tensor.Backend] struct {
	conv *nn.Conv[B]
	adn  *nn.ADN[B]
	res  []*nn.ResidualUnit[B]
}

// decoderLevel is one upsampling stage: the residual stack followed by a
// transposed convolution. adn is nil on the final level.
type decoderLevel[B tensor.Backend] struct {
	res  []*nn.ResidualUnit[B]
	conv *nn.ConvTranspose[B]
	adn  *nn.ADN[B]
}

// VQVAE is a vector-quantized variational autoencoder.
//
// The encoder downsamples the input through NumLevels strided convolution
// stages into an EmbeddingDim-channel latent, the EMA quantizer snaps each
// latent position to its nearest codebook vector, and the decoder mirrors
// the encoder with transposed convolutions back to OutChannels.
type VQVAE[B tensor.Backend] struct {
	config VQVAEConfig

	encoder    []encoderLevel[B]
	toLatent   *nn.Conv[B]
	quantizer  *nn.EMAQuantizer[B]
	fromLatent *nn.Conv[B]
	decodeADN  *nn.ADN[B]
	decoder    []decoderLevel[B]
	outputAct  *nn.Activation[B]

	backend B
}

// NewVQVAE builds a VQVAE from its configuration.
func NewVQVAE[B tensor.Backend](config VQVAEConfig, backend B) (*VQVAE[B], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	act, err := nn.NewActivation[B](config.Act)
	if err != nil {
		return nil, fmt.Errorf("vqvae: %w", err)
	}

	var outputAct *nn.Activation[B]
	if config.OutputAct != "" {
		outputAct, err = nn.NewActivation[B](config.OutputAct)
		if err != nil {
			return nil, fmt.Errorf("vqvae: output activation: %w", err)
		}
	}

	newResStack := func() ([]*nn.ResidualUnit[B], error) {
		res := make([]*nn.ResidualUnit[B], config.NumResLayers)
		for i := range res {
			res[i], err = nn.NewResidualUnit(config.SpatialDims, config.NumChannels, config.ADNOrdering, act, config.Dropout, backend)
			if err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	v := &VQVAE[B]{config: config, backend: backend}

	inChannels := config.InChannels
	for level := 0; level < config.NumLevels; level++ {
		p := config.DownsampleParameters[level]
		stride, kernel, dilation, padding := p[0], p[1], p[2], p[3]

		adn, err := nn.NewADN(config.ADNOrdering, act, config.Dropout)
		if err != nil {
			return nil, fmt.Errorf("vqvae: encoder level %d: %w", level, err)
		}
		res, err := newResStack()
		if err != nil {
			return nil, fmt.Errorf("vqvae: encoder level %d: %w", level, err)
		}

		v.encoder = append(v.encoder, encoderLevel[B]{
			conv: nn.NewConv(config.SpatialDims, inChannels, config.NumChannels, kernel, stride, dilation, padding, true, backend),
			adn:  adn,
			res:  res,
		})
		inChannels = config.NumChannels
	}

	// Project to and from the quantized latent space with size-preserving
	// convolutions.
	v.toLatent = nn.NewConv(config.SpatialDims, config.NumChannels, config.EmbeddingDim, 3, 1, 1, 1, true, backend)
	v.fromLatent = nn.NewConv(config.SpatialDims, config.EmbeddingDim, config.NumChannels, 3, 1, 1, 1, true, backend)

	v.decodeADN, err = nn.NewADN(config.ADNOrdering, act, config.Dropout)
	if err != nil {
		return nil, fmt.Errorf("vqvae: %w", err)
	}

	for level := 0; level < config.NumLevels; level++ {
		p := config.UpsampleParameters[level]
		stride, kernel, dilation, padding, outputPadding := p[0], p[1], p[2], p[3], p[4]

		outChannels := config.NumChannels
		var adn *nn.ADN[B]
		if level == config.NumLevels-1 {
			outChannels = config.OutChannels
		} else {
			adn, err = nn.NewADN(config.ADNOrdering, act, config.Dropout)
			if err != nil {
				return nil, fmt.Errorf("vqvae: decoder level %d: %w", level, err)
			}
		}

		res, err := newResStack()
		if err != nil {
			return nil, fmt.Errorf("vqvae: decoder level %d: %w", level, err)
		}

		v.decoder = append(v.decoder, decoderLevel[B]{
			res:  res,
			conv: nn.NewConvTranspose(config.SpatialDims, config.NumChannels, outChannels, kernel, stride, dilation, padding, outputPadding, true, backend),
			adn:  adn,
		})
	}

	v.outputAct = outputAct

	v.quantizer, err = nn.NewEMAQuantizer(
		config.SpatialDims, config.NumEmbeddings, config.EmbeddingDim,
		config.CommitmentCost, config.Decay, config.Epsilon,
		config.EmbeddingInit, backend,
	)
	if err != nil {
		return nil, fmt.Errorf("vqvae: %w", err)
	}

	return v, nil
}

// Config returns the configuration the network was built from.
func (v *VQVAE[B]) Config() VQVAEConfig {
	return v.config
}

// Encode maps an input [N, InChannels, *S] to a continuous latent
// [N, EmbeddingDim, *S / total downsampling].
func (v *VQVAE[B]) Encode(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := x
	for _, level := range v.encoder {
		out = level.conv.Forward(out)
		out = level.adn.Forward(out)
		for _, res := range level.res {
			out = res.Forward(out)
		}
	}
	return v.toLatent.Forward(out)
}

// Quantize snaps a continuous latent to the codebook, returning the
// quantized latent, the commitment loss and the codebook indices.
func (v *VQVAE[B]) Quantize(z *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B], *tensor.Tensor[int64, B]) {
	return v.quantizer.Quantize(z)
}

// IndexQuantize maps an input straight to discrete codebook indices
// [N, *S / total downsampling].
func (v *VQVAE[B]) IndexQuantize(x *tensor.Tensor[float32, B]) *tensor.Tensor[int64, B] {
	_, _, indices := v.quantizer.Quantize(v.Encode(x))
	return indices
}

// Decode maps a latent [N, EmbeddingDim, *S] back to an output
// [N, OutChannels, *S * total upsampling].
func (v *VQVAE[B]) Decode(z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := v.fromLatent.Forward(z)
	out = v.decodeADN.Forward(out)
	for _, level := range v.decoder {
		for _, res := range level.res {
			out = res.Forward(out)
		}
		out = level.conv.Forward(out)
		if level.adn != nil {
			out = level.adn.Forward(out)
		}
	}
	if v.outputAct != nil {
		out = v.outputAct.Forward(out)
	}
	return out
}

// DecodeSamples reconstructs an output from discrete codebook indices.
func (v *VQVAE[B]) DecodeSamples(indices *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	return v.Decode(v.quantizer.Embed(indices))
}

// Forward runs the full autoencoder pass and returns the reconstruction
// together with the quantization loss.
func (v *VQVAE[B]) Forward(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	quantized, loss, _ := v.Quantize(v.Encode(x))
	return v.Decode(quantized), loss
}

// Parameters returns all trainable parameters.
func (v *VQVAE[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, level := range v.encoder {
		params = append(params, level.conv.Parameters()...)
		for _, res := range level.res {
			params = append(params, res.Parameters()...)
		}
	}
	params = append(params, v.toLatent.Parameters()...)
	params = append(params, v.quantizer.Parameters()...)
	params = append(params, v.fromLatent.Parameters()...)
	for _, level := range v.decoder {
		for _, res := range level.res {
			params = append(params, res.Parameters()...)
		}
		params = append(params, level.conv.Parameters()...)
	}
	return params
}

// StateDict returns all parameters and codebook state keyed by dotted path.
func (v *VQVAE[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for i, level := range v.encoder {
		merge(sd, fmt.Sprintf("encoder.%d.conv", i), level.conv.StateDict())
		for j, res := range level.res {
			merge(sd, fmt.Sprintf("encoder.%d.res.%d", i, j), res.StateDict())
		}
	}
	merge(sd, "to_latent", v.toLatent.StateDict())
	merge(sd, "quantizer", v.quantizer.StateDict())
	merge(sd, "from_latent", v.fromLatent.StateDict())
	for i, level := range v.decoder {
		for j, res := range level.res {
			merge(sd, fmt.Sprintf("decoder.%d.res.%d", i, j), res.StateDict())
		}
		merge(sd, fmt.Sprintf("decoder.%d.conv", i), level.conv.StateDict())
	}
	return sd
}

// LoadStateDict loads all parameters and codebook state.
func (v *VQVAE[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, level := range v.encoder {
		if err := level.conv.LoadStateDict(sub(stateDict, fmt.Sprintf("encoder.%d.conv", i))); err != nil {
			return fmt.Errorf("vqvae: %w", err)
		}
		for j, res := range level.res {
			if err := res.LoadStateDict(sub(stateDict, fmt.Sprintf("encoder.%d.res.%d", i, j))); err != nil {
				return fmt.Errorf("vqvae: %w", err)
			}
		}
	}
	if err := v.toLatent.LoadStateDict(sub(stateDict, "to_latent")); err != nil {
		return fmt.Errorf("vqvae: %w", err)
	}
	if err := v.quantizer.LoadStateDict(sub(stateDict, "quantizer")); err != nil {
		return fmt.Errorf("vqvae: %w", err)
	}
	if err := v.fromLatent.LoadStateDict(sub(stateDict, "from_latent")); err != nil {
		return fmt.Errorf("vqvae: %w", err)
	}
	for i, level := range v.decoder {
		for j, res := range level.res {
			if err := res.LoadStateDict(sub(stateDict, fmt.Sprintf("decoder.%d.res.%d", i, j))); err != nil {
				return fmt.Errorf("vqvae: %w", err)
			}
		}
		if err := level.conv.LoadStateDict(sub(stateDict, fmt.Sprintf("decoder.%d.conv", i))); err != nil {
			return fmt.Errorf("vqvae: %w", err)
		}
	}
	return nil
}

// Train puts the network in training mode: dropout active and EMA
// codebook updates enabled.
func (v *VQVAE[B]) Train() {
	for _, level := range v.encoder {
		level.adn.Train()
		for _, res := range level.res {
			res.Train()
		}
	}
	v.quantizer.Train()
	v.decodeADN.Train()
	for _, level := range v.decoder {
		for _, res := range level.res {
			res.Train()
		}
		if level.adn != nil {
			level.adn.Train()
		}
	}
}

// Eval puts the network in evaluation mode.
func (v *VQVAE[B]) Eval() {
	for _, level := range v.encoder {
		level.adn.Eval()
		for _, res := range level.res {
			res.Eval()
		}
	}
	v.quantizer.Eval()
	v.decodeADN.Eval()
	for _, level := range v.decoder {
		for _, res := range level.res {
			res.Eval()
		}
		if level.adn != nil {
			level.adn.Eval()
		}
	}
}

const configMetadataKey = "vqvae_config"

// Save writes the network weights and configuration to a .gm file.
// The configuration travels in the header metadata so Load can rebuild
// the architecture without external information.
func (v *VQVAE[B]) Save(path string, compress bool) error {
	configYAML, err := yaml.Marshal(v.config)
	if err != nil {
		return fmt.Errorf("vqvae: marshal config: %w", err)
	}
	return serialization.SaveStateDict(path, v.StateDict(), serialization.WriteOptions{
		ModelType: "VQVAE",
		Metadata:  map[string]string{configMetadataKey: string(configYAML)},
		Compress:  compress,
	})
}

// LoadVQVAE rebuilds a VQVAE from a .gm file written by Save.
func LoadVQVAE[B tensor.Backend](path string, backend B) (*VQVAE[B], error) {
	model, err := serialization.LoadStateDict(path)
	if err != nil {
		return nil, err
	}

	configYAML, ok := model.Header.Metadata[configMetadataKey]
	if !ok {
		return nil, fmt.Errorf("vqvae: %s does not carry a network configuration", path)
	}
	var config VQVAEConfig
	if err := yaml.Unmarshal([]byte(configYAML), &config); err != nil {
		return nil, fmt.Errorf("vqvae: parse config: %w", err)
	}

	v, err := NewVQVAE(config, backend)
	if err != nil {
		return nil, err
	}
	if err := v.LoadStateDict(model.StateDict()); err != nil {
		return nil, err
	}
	return v, nil
}

func merge(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

func sub(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	p := prefix + "."
	for name, raw := range stateDict {
		if len(name) > len(p) && name[:len(p)] == p {
			out[name[len(p):]] = raw
		}
	}
	return out
}
