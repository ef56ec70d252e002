package tensor

import (
	"math"
	"math/rand"
	"sync"
)

// Random tensor creation draws from a shared source so Seed can make
// weight initialization reproducible across the whole library.
// math/rand (not crypto/rand) is intentional for ML workloads.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // G404: math/rand is fine for sampling
)

// Seed makes subsequent random tensor creation deterministic.
func Seed(seed int64) {
	rngMu.Lock()
	rng = rand.New(rand.NewSource(seed)) //nolint:gosec // G404: math/rand is fine for sampling
	rngMu.Unlock()
}

// RandFloat64 draws a uniform value in [0, 1) from the shared source.
// Layer code uses it for weight initialization and dropout masks so a
// single Seed call covers the whole library.
func RandFloat64() float64 {
	return randFloat64()
}

func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

func randFloat32() float32 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float32()
}

func randInt63n(n int64) int64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Int63n(n)
}

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	dtype := inferDataType(dummy)

	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case int64:
		one = int64(1)
	}

	for i := range data {
		data[i] = one.(T)
	}
	return t
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with random values from a normal distribution (mean=0, std=1).
// Uses the Box-Muller transform. Only works with float types.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := 0; i < len(dataF32); i += 2 {
			u1 := randFloat64()
			u2 := randFloat64()
			z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
			z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
			dataF32[i] = float32(z0)
			if i+1 < len(dataF32) {
				dataF32[i+1] = float32(z1)
			}
		}
	case float64:
		dataF64 := any(data).([]float64)
		for i := 0; i < len(dataF64); i += 2 {
			u1 := randFloat64()
			u2 := randFloat64()
			z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
			z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
			dataF64[i] = z0
			if i+1 < len(dataF64) {
				dataF64[i+1] = z1
			}
		}
	default:
		panic("Randn requires a float tensor type")
	}
	return t
}

// Rand creates a tensor with random values from a uniform distribution U(0, 1).
// Only works with float types.
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := range dataF32 {
			dataF32[i] = randFloat32()
		}
	case float64:
		dataF64 := any(data).([]float64)
		for i := range dataF64 {
			dataF64[i] = randFloat64()
		}
	default:
		panic("Rand requires a float tensor type")
	}
	return t
}

// RandInt creates an int64 tensor with uniform random values in [low, high).
// Used for sampling discrete codebook indices.
func RandInt[B Backend](shape Shape, low, high int64, b B) *Tensor[int64, B] {
	if high <= low {
		panic("RandInt requires high > low")
	}
	t := Zeros[int64, B](shape, b)
	data := t.Data()
	span := high - low
	for i := range data {
		data[i] = low + randInt63n(span)
	}
	return t
}
