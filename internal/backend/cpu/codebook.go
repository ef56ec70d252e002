package cpu

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/parallel"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// SquaredDistance computes pairwise squared L2 distances between the rows
// of a [M, D] and b [K, D], producing a [M, K] matrix.
//
// This is the nearest-codebook search primitive of the vector quantizer.
// Row norms of b are hoisted out of the inner loop so each pairwise entry
// costs one dot product.
func (cpu *CPUBackend) SquaredDistance(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("squareddistance: expected 2D operands, got %v and %v", aShape, bShape))
	}
	if aShape[1] != bShape[1] {
		panic(fmt.Sprintf("squareddistance: feature dims differ: %d vs %d", aShape[1], bShape[1]))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("squareddistance: float32 required, got %s and %s", a.DType(), b.DType()))
	}

	m, d, k := aShape[0], aShape[1], bShape[0]
	out := mustNewRaw(tensor.Shape{m, k}, tensor.Float32, cpu.device)

	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	// ||b_j||^2 terms, shared across all rows of a.
	bNorms := make([]float32, k)
	for j := 0; j < k; j++ {
		var norm float32
		row := bData[j*d : (j+1)*d]
		for _, v := range row {
			norm += v * v
		}
		bNorms[j] = norm
	}

	parallel.For(m, func(i int) {
		aRow := aData[i*d : (i+1)*d]
		var aNorm float32
		for _, v := range aRow {
			aNorm += v * v
		}
		for j := 0; j < k; j++ {
			bRow := bData[j*d : (j+1)*d]
			var dot float32
			for l := 0; l < d; l++ {
				dot += aRow[l] * bRow[l]
			}
			// ||a-b||^2 = ||a||^2 - 2ab + ||b||^2; clamp tiny negatives
			// from cancellation.
			dist := aNorm - 2*dot + bNorms[j]
			if dist < 0 {
				dist = 0
			}
			outData[i*k+j] = dist
		}
	}, cpu.par)

	return out
}

// ArgminRows returns the per-row argmin of a [M, K] matrix as int64 [M].
// Ties resolve to the lowest index.
func (cpu *CPUBackend) ArgminRows(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("argminrows: expected 2D input, got %v", shape))
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("argminrows: float32 required, got %s", x.DType()))
	}

	m, k := shape[0], shape[1]
	out := mustNewRaw(tensor.Shape{m}, tensor.Int64, cpu.device)

	xData, outData := x.AsFloat32(), out.AsInt64()
	parallel.For(m, func(i int) {
		row := xData[i*k : (i+1)*k]
		best := 0
		bestVal := row[0]
		for j := 1; j < k; j++ {
			if row[j] < bestVal {
				best = j
				bestVal = row[j]
			}
		}
		outData[i] = int64(best)
	}, cpu.par)

	return out
}

// Embedding gathers rows of weight [K, D] by int64 indices, producing a
// tensor shaped indices.Shape() + [D].
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [K,D], got %v", wShape))
	}
	if weight.DType() != tensor.Float32 {
		panic(fmt.Sprintf("embedding: float32 weight required, got %s", weight.DType()))
	}
	if indices.DType() != tensor.Int64 {
		panic(fmt.Sprintf("embedding: int64 indices required, got %s", indices.DType()))
	}

	k, d := wShape[0], wShape[1]
	outShape := append(indices.Shape().Clone(), d)
	out := mustNewRaw(outShape, tensor.Float32, cpu.device)

	wData, idxData, outData := weight.AsFloat32(), indices.AsInt64(), out.AsFloat32()
	for i, idx := range idxData {
		if idx < 0 || idx >= int64(k) {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, k))
		}
		copy(outData[i*d:(i+1)*d], wData[idx*int64(d):(idx+1)*int64(d)])
	}

	return out
}
