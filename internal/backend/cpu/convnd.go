package cpu

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/parallel"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// ConvND performs convolution over 1, 2 or 3 spatial dimensions.
//
// Input shape:  [N, C_in, *S]
// Kernel shape: [C_out, C_in, *K]
// Bias shape:   [C_out] or nil
// Output shape: [N, C_out, *O] with
//
//	O_i = (S_i + 2*padding_i - dilation_i*(K_i-1) - 1) / stride_i + 1
//
// The kernel walks every output position and gathers the dot product of the
// receptive field; out-of-bounds taps read as zero (implicit zero padding).
// Work is parallelized over batch and output channels.
func (cpu *CPUBackend) ConvND(input, kernel, bias *tensor.RawTensor, stride, dilation, padding []int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	rank := len(inputShape) - 2
	if rank < 1 || rank > 3 {
		panic(fmt.Sprintf("convnd: input must be [N,C,*S] with 1-3 spatial dims, got shape %v", inputShape))
	}
	if len(kernelShape) != rank+2 {
		panic(fmt.Sprintf("convnd: kernel rank %d does not match input rank %d", len(kernelShape), len(inputShape)))
	}
	if len(stride) != rank || len(dilation) != rank || len(padding) != rank {
		panic(fmt.Sprintf("convnd: stride/dilation/padding must have %d entries", rank))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("convnd: input channels %d != kernel channels %d", inputShape[1], kernelShape[1]))
	}
	if bias != nil && (len(bias.Shape()) != 1 || bias.Shape()[0] != kernelShape[0]) {
		panic(fmt.Sprintf("convnd: bias shape %v does not match %d output channels", bias.Shape(), kernelShape[0]))
	}

	batch := inputShape[0]
	cIn := inputShape[1]
	cOut := kernelShape[0]
	inSpatial := []int(inputShape[2:])
	kSpatial := []int(kernelShape[2:])

	outSpatial := make([]int, rank)
	for r := 0; r < rank; r++ {
		if stride[r] <= 0 || dilation[r] <= 0 || padding[r] < 0 {
			panic(fmt.Sprintf("convnd: invalid stride=%v dilation=%v padding=%v", stride, dilation, padding))
		}
		outSpatial[r] = (inSpatial[r]+2*padding[r]-dilation[r]*(kSpatial[r]-1)-1)/stride[r] + 1
		if outSpatial[r] <= 0 {
			panic(fmt.Sprintf("convnd: non-positive output size %d in dim %d (input %v, kernel %v, stride %v, padding %v)",
				outSpatial[r], r, inSpatial, kSpatial, stride, padding))
		}
	}

	outShape := append(tensor.Shape{batch, cOut}, outSpatial...)
	out := mustNewRaw(outShape, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		var biasData []float32
		if bias != nil {
			biasData = bias.AsFloat32()
		}
		convND(out.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), biasData,
			batch, cIn, cOut, inSpatial, kSpatial, outSpatial, stride, dilation, padding, cpu.par)
	case tensor.Float64:
		var biasData []float64
		if bias != nil {
			biasData = bias.AsFloat64()
		}
		convND(out.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), biasData,
			batch, cIn, cOut, inSpatial, kSpatial, outSpatial, stride, dilation, padding, cpu.par)
	default:
		panic(fmt.Sprintf("convnd: unsupported dtype %s", input.DType()))
	}

	return out
}

func convND[F float32 | float64](
	outData, inData, kData []F, biasData []F,
	batch, cIn, cOut int,
	inSpatial, kSpatial, outSpatial, stride, dilation, padding []int,
	par parallel.Config,
) {
	rank := len(inSpatial)
	inStrides := spatialStrides(inSpatial)
	prodIn := inStrides[0] * inSpatial[0]
	prodK := 1
	for _, k := range kSpatial {
		prodK *= k
	}
	prodOut := 1
	for _, o := range outSpatial {
		prodOut *= o
	}

	// Precompute kernel tap coordinates scaled by dilation.
	kOffsets := make([]int, prodK*rank)
	decomposeAll(kOffsets, kSpatial, rank)
	for kp := 0; kp < prodK; kp++ {
		for r := 0; r < rank; r++ {
			kOffsets[kp*rank+r] *= dilation[r]
		}
	}

	parallel.ForBatchChannels(batch, cOut, func(n, oc int) {
		oCoord := make([]int, rank)
		outBase := (n*cOut + oc) * prodOut
		kBase := oc * cIn * prodK
		inBatchBase := n * cIn * prodIn

		for op := 0; op < prodOut; op++ {
			decompose(oCoord, op, outSpatial)
			var sum F
			if biasData != nil {
				sum = biasData[oc]
			}
			for ic := 0; ic < cIn; ic++ {
				inChanBase := inBatchBase + ic*prodIn
				kChanBase := kBase + ic*prodK
			taps:
				for kp := 0; kp < prodK; kp++ {
					inFlat := inChanBase
					for r := 0; r < rank; r++ {
						c := oCoord[r]*stride[r] - padding[r] + kOffsets[kp*rank+r]
						if c < 0 || c >= inSpatial[r] {
							continue taps
						}
						inFlat += c * inStrides[r]
					}
					sum += inData[inFlat] * kData[kChanBase+kp]
				}
			}
			outData[outBase+op] = sum
		}
	}, par)
}

// spatialStrides returns row-major strides for a spatial shape.
func spatialStrides(spatial []int) []int {
	strides := make([]int, len(spatial))
	strides[len(spatial)-1] = 1
	for i := len(spatial) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * spatial[i+1]
	}
	return strides
}

// decompose splits a flat row-major index into per-dimension coordinates.
func decompose(coord []int, flat int, shape []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		coord[i] = flat % shape[i]
		flat /= shape[i]
	}
}

// decomposeAll fills coords[i*rank:(i+1)*rank] with the coordinates of flat
// index i over shape.
func decomposeAll(coords []int, shape []int, rank int) {
	n := len(coords) / rank
	tmp := make([]int, rank)
	for i := 0; i < n; i++ {
		decompose(tmp, i, shape)
		copy(coords[i*rank:(i+1)*rank], tmp)
	}
}
