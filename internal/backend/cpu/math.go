package cpu

import (
	"fmt"
	"math"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Element-wise binary ops require identical shapes. Broadcasting is not
// part of the backend contract; layers reshape or fold bias explicitly.

// Add performs element-wise addition.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

func (cpu *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", name, a.Shape(), b.Shape()))
	}

	out := mustNewRaw(a.Shape(), a.DType(), cpu.device)
	switch a.DType() {
	case tensor.Float32:
		ad, bd, od := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
		for i := range od {
			od[i] = f32(ad[i], bd[i])
		}
	case tensor.Float64:
		ad, bd, od := a.AsFloat64(), b.AsFloat64(), out.AsFloat64()
		for i := range od {
			od[i] = f64(ad[i], bd[i])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return out
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("addscalar", x, scalar,
		func(v, s float32) float32 { return v + s },
		func(v, s float64) float64 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("mulscalar", x, scalar,
		func(v, s float32) float32 { return v * s },
		func(v, s float64) float64 { return v * s })
}

func (cpu *CPUBackend) scalarOp(
	name string,
	x *tensor.RawTensor,
	scalar any,
	f32 func(v, s float32) float32,
	f64 func(v, s float64) float64,
) *tensor.RawTensor {
	out := mustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		s, ok := toFloat64(scalar)
		if !ok {
			panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
		}
		xd, od := x.AsFloat32(), out.AsFloat32()
		sf := float32(s)
		for i := range od {
			od[i] = f32(xd[i], sf)
		}
	case tensor.Float64:
		s, ok := toFloat64(scalar)
		if !ok {
			panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
		}
		xd, od := x.AsFloat64(), out.AsFloat64()
		for i := range od {
			od[i] = f64(xd[i], s)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return out
}

func toFloat64(scalar any) (float64, bool) {
	switch s := scalar.(type) {
	case float32:
		return float64(s), true
	case float64:
		return s, true
	case int:
		return float64(s), true
	case int32:
		return float64(s), true
	case int64:
		return float64(s), true
	default:
		return 0, false
	}
}

// Sum returns the total sum of all elements as a [1]-shaped tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := mustNewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		// Accumulate in float64 to limit rounding drift on large volumes.
		var sum float64
		for _, v := range x.AsFloat32() {
			sum += float64(v)
		}
		out.AsFloat32()[0] = float32(sum)
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		out.AsFloat64()[0] = sum
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return out
}

// Mean returns the mean of all elements as a [1]-shaped tensor.
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	out := cpu.Sum(x)
	n := float64(x.NumElements())
	switch out.DType() {
	case tensor.Float32:
		out.AsFloat32()[0] = float32(float64(out.AsFloat32()[0]) / n)
	case tensor.Float64:
		out.AsFloat64()[0] /= n
	}
	return out
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x,
		func(v float32) float32 {
			if v < 0 {
				return 0
			}
			return v
		},
		func(v float64) float64 {
			if v < 0 {
				return 0
			}
			return v
		})
}

// LeakyReLU applies x for x >= 0 and negativeSlope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, negativeSlope float64) *tensor.RawTensor {
	slope32 := float32(negativeSlope)
	return cpu.unaryOp("leakyrelu", x,
		func(v float32) float32 {
			if v < 0 {
				return slope32 * v
			}
			return v
		},
		func(v float64) float64 {
			if v < 0 {
				return negativeSlope * v
			}
			return v
		})
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sigmoid", x,
		func(v float32) float32 { return float32(1.0 / (1.0 + math.Exp(float64(-v)))) },
		func(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) })
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("tanh", x,
		func(v float32) float32 { return float32(math.Tanh(float64(v))) },
		func(v float64) float64 { return math.Tanh(v) })
}

func (cpu *CPUBackend) unaryOp(
	name string,
	x *tensor.RawTensor,
	f32 func(v float32) float32,
	f64 func(v float64) float64,
) *tensor.RawTensor {
	out := mustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		xd, od := x.AsFloat32(), out.AsFloat32()
		for i := range od {
			od[i] = f32(xd[i])
		}
	case tensor.Float64:
		xd, od := x.AsFloat64(), out.AsFloat64()
		for i := range od {
			od[i] = f64(xd[i])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return out
}
