// Package cpu implements the pure-Go CPU compute backend.
package cpu

import (
	"fmt"

	"github.com/chadHGY/GenerativeModels/internal/parallel"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// CPUBackend is a pure-Go implementation of tensor.Backend.
//
// Heavy loops (convolutions, codebook distances) are chunked across
// goroutines using the parallel package; everything else runs inline.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// NewSequential creates a CPU backend with parallelism disabled.
// Useful for deterministic profiling and debugging.
func NewSequential() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.Config{Enabled: false},
	}
}

// NewWithWorkers creates a CPU backend that parallelizes across n worker
// goroutines. n < 2 disables parallelism.
func NewWithWorkers(n int) *CPUBackend {
	if n < 2 {
		return NewSequential()
	}
	cfg := parallel.DefaultConfig()
	cfg.Enabled = true
	cfg.NumWorkers = n
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "cpu"
}

// Workers returns the number of goroutines used for parallel loops,
// or 1 when parallelism is disabled.
func (cpu *CPUBackend) Workers() int {
	if !cpu.par.Enabled {
		return 1
	}
	return cpu.par.NumWorkers
}

// Device returns the backend device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Reshape returns a view of the tensor with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return t.WithShape(newShape)
}

// Permute reorders tensor dimensions according to axes.
//
// axes must be a permutation of [0, rank). The result is materialized
// in contiguous row-major order.
func (cpu *CPUBackend) Permute(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	oldShape := t.Shape()
	if len(axes) != len(oldShape) {
		panic(fmt.Sprintf("permute: got %d axes for rank-%d tensor", len(axes), len(oldShape)))
	}
	seen := make([]bool, len(axes))
	newShape := make(tensor.Shape, len(axes))
	for i, ax := range axes {
		if ax < 0 || ax >= len(oldShape) || seen[ax] {
			panic(fmt.Sprintf("permute: invalid axes %v for shape %v", axes, oldShape))
		}
		seen[ax] = true
		newShape[i] = oldShape[ax]
	}

	out := mustNewRaw(newShape, t.DType(), cpu.device)
	switch t.DType() {
	case tensor.Float32:
		permuteData(out.AsFloat32(), t.AsFloat32(), oldShape, newShape, axes)
	case tensor.Float64:
		permuteData(out.AsFloat64(), t.AsFloat64(), oldShape, newShape, axes)
	case tensor.Int64:
		permuteData(out.AsInt64(), t.AsInt64(), oldShape, newShape, axes)
	default:
		panic(fmt.Sprintf("permute: unsupported dtype %s", t.DType()))
	}
	return out
}

func permuteData[E any](dst, src []E, oldShape, newShape tensor.Shape, axes []int) {
	oldStrides := oldShape.ComputeStrides()
	newStrides := newShape.ComputeStrides()
	idx := make([]int, len(newShape))
	for flat := range dst {
		rem := flat
		for i := range idx {
			idx[i] = rem / newStrides[i]
			rem %= newStrides[i]
		}
		srcFlat := 0
		for i, ax := range axes {
			srcFlat += idx[i] * oldStrides[ax]
		}
		dst[flat] = src[srcFlat]
	}
}

// mustNewRaw allocates a RawTensor or panics.
// Backend ops validate shapes before allocating, so failure here is a bug.
func mustNewRaw(shape tensor.Shape, dtype tensor.DataType, device tensor.Device) *tensor.RawTensor {
	raw, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("cpu: failed to allocate tensor: %v", err))
	}
	return raw
}
