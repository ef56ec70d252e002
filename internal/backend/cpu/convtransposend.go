package cpu

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/parallel"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// ConvTransposeND performs transposed convolution (deconvolution) over
// 1, 2 or 3 spatial dimensions.
//
// Input shape:  [N, C_in, *S]
// Kernel shape: [C_in, C_out, *K]
// Bias shape:   [C_out] or nil
// Output shape: [N, C_out, *O] with
//
//	O_i = (S_i-1)*stride_i - 2*padding_i + dilation_i*(K_i-1) + 1 + outputPadding_i
//
// The implementation is gather-style: for every output position it collects
// the input positions whose strided scatter lands there. This keeps each
// output element owned by a single goroutine, so the batch/output-channel
// loop can run in parallel without write conflicts.
func (cpu *CPUBackend) ConvTransposeND(input, kernel, bias *tensor.RawTensor, stride, dilation, padding, outputPadding []int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	rank := len(inputShape) - 2
	if rank < 1 || rank > 3 {
		panic(fmt.Sprintf("convtransposend: input must be [N,C,*S] with 1-3 spatial dims, got shape %v", inputShape))
	}
	if len(kernelShape) != rank+2 {
		panic(fmt.Sprintf("convtransposend: kernel rank %d does not match input rank %d", len(kernelShape), len(inputShape)))
	}
	if len(stride) != rank || len(dilation) != rank || len(padding) != rank || len(outputPadding) != rank {
		panic(fmt.Sprintf("convtransposend: stride/dilation/padding/outputPadding must have %d entries", rank))
	}
	if inputShape[1] != kernelShape[0] {
		panic(fmt.Sprintf("convtransposend: input channels %d != kernel channels %d", inputShape[1], kernelShape[0]))
	}
	if bias != nil && (len(bias.Shape()) != 1 || bias.Shape()[0] != kernelShape[1]) {
		panic(fmt.Sprintf("convtransposend: bias shape %v does not match %d output channels", bias.Shape(), kernelShape[1]))
	}

	batch := inputShape[0]
	cIn := inputShape[1]
	cOut := kernelShape[1]
	inSpatial := []int(inputShape[2:])
	kSpatial := []int(kernelShape[2:])

	outSpatial := make([]int, rank)
	for r := 0; r < rank; r++ {
		if stride[r] <= 0 || dilation[r] <= 0 || padding[r] < 0 {
			panic(fmt.Sprintf("convtransposend: invalid stride=%v dilation=%v padding=%v", stride, dilation, padding))
		}
		if outputPadding[r] < 0 || outputPadding[r] >= stride[r] {
			panic(fmt.Sprintf("convtransposend: output padding %d must be in [0, stride %d)", outputPadding[r], stride[r]))
		}
		outSpatial[r] = (inSpatial[r]-1)*stride[r] - 2*padding[r] + dilation[r]*(kSpatial[r]-1) + 1 + outputPadding[r]
		if outSpatial[r] <= 0 {
			panic(fmt.Sprintf("convtransposend: non-positive output size %d in dim %d", outSpatial[r], r))
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
		convTransposeND(out.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), biasData,
			batch, cIn, cOut, inSpatial, kSpatial, outSpatial, stride, dilation, padding, cpu.par)
	case tensor.Float64:
		var biasData []float64
		if bias != nil {
			biasData = bias.AsFloat64()
		}
		convTransposeND(out.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), biasData,
			batch, cIn, cOut, inSpatial, kSpatial, outSpatial, stride, dilation, padding, cpu.par)
	default:
		panic(fmt.Sprintf("convtransposend: unsupported dtype %s", input.DType()))
	}

	return out
}

func convTransposeND[F float32 | float64](
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

	kCoords := make([]int, prodK*rank)
	decomposeAll(kCoords, kSpatial, rank)

	parallel.ForBatchChannels(batch, cOut, func(n, oc int) {
		oCoord := make([]int, rank)
		outBase := (n*cOut + oc) * prodOut
		inBatchBase := n * cIn * prodIn

		for op := 0; op < prodOut; op++ {
			decompose(oCoord, op, outSpatial)
			var sum F
			if biasData != nil {
				sum = biasData[oc]
			}
		taps:
			for kp := 0; kp < prodK; kp++ {
				// Invert the scatter: o = q*stride - padding + k*dilation,
				// so q = (o + padding - k*dilation) / stride, exactly.
				inFlat := 0
				for r := 0; r < rank; r++ {
					num := oCoord[r] + padding[r] - kCoords[kp*rank+r]*dilation[r]
					if num < 0 || num%stride[r] != 0 {
						continue taps
					}
					q := num / stride[r]
					if q >= inSpatial[r] {
						continue taps
					}
					inFlat += q * inStrides[r]
				}
				for ic := 0; ic < cIn; ic++ {
					w := kData[(ic*cOut+oc)*prodK+kp]
					sum += inData[inBatchBase+ic*prodIn+inFlat] * w
				}
			}
			outData[outBase+op] = sum
		}
	}, par)
}
