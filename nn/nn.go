// Copyright 2025 The GenerativeModels Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public neural network building blocks:
// convolution layers, activations, residual units and the EMA vector
// quantizer the generative networks are assembled from.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv(2, 1, 8, 4, 2, 1, 1, true, backend)
//	out := conv.Forward(tensor.Zeros[float32](tensor.Shape{2, 1, 64, 64}, backend))
package nn

import (
	"github.com/chadHGY/GenerativeModels/internal/nn"
	"github.com/chadHGY/GenerativeModels/internal/serialization"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter wrapping an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Conv is an N-dimensional convolutional layer (1-3 spatial dims).
type Conv[B tensor.Backend] = nn.Conv[B]

// NewConv creates an N-dimensional convolutional layer.
func NewConv[B tensor.Backend](
	spatialDims, inChannels, outChannels int,
	kernelSize, stride, dilation, padding int,
	useBias bool,
	backend B,
) *Conv[B] {
	return nn.NewConv(spatialDims, inChannels, outChannels, kernelSize, stride, dilation, padding, useBias, backend)
}

// ConvTranspose is an N-dimensional transposed convolutional layer.
type ConvTranspose[B tensor.Backend] = nn.ConvTranspose[B]

// NewConvTranspose creates an N-dimensional transposed convolutional layer.
func NewConvTranspose[B tensor.Backend](
	spatialDims, inChannels, outChannels int,
	kernelSize, stride, dilation, padding, outputPadding int,
	useBias bool,
	backend B,
) *ConvTranspose[B] {
	return nn.NewConvTranspose(spatialDims, inChannels, outChannels, kernelSize, stride, dilation, padding, outputPadding, useBias, backend)
}

// Activation is an element-wise activation selected by name.
type Activation[B tensor.Backend] = nn.Activation[B]

// NewActivation creates an activation from its configuration name.
// Supported names (case-insensitive): RELU, LEAKYRELU, SIGMOID, TANH.
func NewActivation[B tensor.Backend](name string) (*Activation[B], error) {
	return nn.NewActivation[B](name)
}

// Dropout randomly zeroes elements during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout module with drop probability p in [0, 1).
func NewDropout[B tensor.Backend](p float64) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// ADN applies activation and dropout in a configurable order.
type ADN[B tensor.Backend] = nn.ADN[B]

// NewADN creates an activation/dropout block with the given ordering.
func NewADN[B tensor.Backend](ordering string, act *Activation[B], dropoutP float64) (*ADN[B], error) {
	return nn.NewADN(ordering, act, dropoutP)
}

// ValidateADNOrdering reports whether an ADN ordering string is valid.
func ValidateADNOrdering(ordering string) error {
	return nn.ValidateADNOrdering(ordering)
}

// ResidualUnit is the residual block of the autoencoder stacks.
type ResidualUnit[B tensor.Backend] = nn.ResidualUnit[B]

// NewResidualUnit creates a channel-preserving residual unit.
func NewResidualUnit[B tensor.Backend](
	spatialDims, channels int,
	ordering string,
	act *Activation[B],
	dropoutP float64,
	backend B,
) (*ResidualUnit[B], error) {
	return nn.NewResidualUnit(spatialDims, channels, ordering, act, dropoutP, backend)
}

// EMAQuantizer is a vector-quantization codebook with EMA updates.
type EMAQuantizer[B tensor.Backend] = nn.EMAQuantizer[B]

// Embedding initialization names accepted by NewEMAQuantizer.
const (
	EmbeddingInitNormal         = nn.EmbeddingInitNormal
	EmbeddingInitKaimingUniform = nn.EmbeddingInitKaimingUniform
)

// NewEMAQuantizer creates an EMA vector-quantization codebook.
func NewEMAQuantizer[B tensor.Backend](
	spatialDims, numEmbeddings, embeddingDim int,
	commitmentCost, decay, epsilon float32,
	embeddingInit string,
	backend B,
) (*EMAQuantizer[B], error) {
	return nn.NewEMAQuantizer(spatialDims, numEmbeddings, embeddingDim, commitmentCost, decay, epsilon, embeddingInit, backend)
}

// Save writes a module's state dictionary to a .gm file.
func Save[B tensor.Backend](path string, m Module[B], modelType string) error {
	return serialization.SaveStateDict(path, m.StateDict(), serialization.WriteOptions{ModelType: modelType})
}

// Load reads a .gm file and loads its state dictionary into a module.
// The module must already have the matching architecture.
func Load[B tensor.Backend](path string, m Module[B]) error {
	model, err := serialization.LoadStateDict(path)
	if err != nil {
		return err
	}
	return m.LoadStateDict(model.StateDict())
}
