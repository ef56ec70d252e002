package tensor

// mockBackend is a minimal Backend used by the package tests.
// Only the ops the tensor-level tests exercise are implemented;
// everything else panics. Real computation lives in backend/cpu.
type mockBackend struct{}

func newMockBackend() *mockBackend { return &mockBackend{} }

func (m *mockBackend) Add(a, b *RawTensor) *RawTensor {
	out := a.Clone()
	od, bd := out.AsFloat32(), b.AsFloat32()
	for i := range od {
		od[i] += bd[i]
	}
	return out
}

func (m *mockBackend) Sub(a, b *RawTensor) *RawTensor {
	out := a.Clone()
	od, bd := out.AsFloat32(), b.AsFloat32()
	for i := range od {
		od[i] -= bd[i]
	}
	return out
}

func (m *mockBackend) Mul(a, b *RawTensor) *RawTensor {
	out := a.Clone()
	od, bd := out.AsFloat32(), b.AsFloat32()
	for i := range od {
		od[i] *= bd[i]
	}
	return out
}

func (m *mockBackend) Div(a, b *RawTensor) *RawTensor {
	out := a.Clone()
	od, bd := out.AsFloat32(), b.AsFloat32()
	for i := range od {
		od[i] /= bd[i]
	}
	return out
}

func (m *mockBackend) AddScalar(x *RawTensor, scalar any) *RawTensor {
	out := x.Clone()
	od := out.AsFloat32()
	s := scalar.(float32)
	for i := range od {
		od[i] += s
	}
	return out
}

func (m *mockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	out := x.Clone()
	od := out.AsFloat32()
	s := scalar.(float32)
	for i := range od {
		od[i] *= s
	}
	return out
}

func (m *mockBackend) ConvND(_, _, _ *RawTensor, _, _, _ []int) *RawTensor {
	panic("mockBackend: ConvND not implemented")
}

func (m *mockBackend) ConvTransposeND(_, _, _ *RawTensor, _, _, _, _ []int) *RawTensor {
	panic("mockBackend: ConvTransposeND not implemented")
}

func (m *mockBackend) ReLU(_ *RawTensor) *RawTensor { panic("mockBackend: ReLU not implemented") }
func (m *mockBackend) LeakyReLU(_ *RawTensor, _ float64) *RawTensor {
	panic("mockBackend: LeakyReLU not implemented")
}
func (m *mockBackend) Sigmoid(_ *RawTensor) *RawTensor { panic("mockBackend: Sigmoid not implemented") }
func (m *mockBackend) Tanh(_ *RawTensor) *RawTensor    { panic("mockBackend: Tanh not implemented") }

func (m *mockBackend) Sum(x *RawTensor) *RawTensor {
	out, _ := NewRaw(Shape{1}, Float32, CPU)
	var sum float32
	for _, v := range x.AsFloat32() {
		sum += v
	}
	out.AsFloat32()[0] = sum
	return out
}

func (m *mockBackend) Mean(x *RawTensor) *RawTensor {
	out := m.Sum(x)
	out.AsFloat32()[0] /= float32(x.NumElements())
	return out
}

func (m *mockBackend) SquaredDistance(_, _ *RawTensor) *RawTensor {
	panic("mockBackend: SquaredDistance not implemented")
}

func (m *mockBackend) ArgminRows(_ *RawTensor) *RawTensor {
	panic("mockBackend: ArgminRows not implemented")
}

func (m *mockBackend) Embedding(_, _ *RawTensor) *RawTensor {
	panic("mockBackend: Embedding not implemented")
}

func (m *mockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	return t.WithShape(newShape)
}

func (m *mockBackend) Permute(t *RawTensor, axes ...int) *RawTensor {
	// Naive permute, sufficient for tests.
	oldShape := t.Shape()
	newShape := make(Shape, len(axes))
	for i, ax := range axes {
		newShape[i] = oldShape[ax]
	}
	out, err := NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(err)
	}
	src, dst := t.AsFloat32(), out.AsFloat32()
	oldStrides := oldShape.ComputeStrides()
	newStrides := newShape.ComputeStrides()
	idx := make([]int, len(newShape))
	for flat := 0; flat < len(dst); flat++ {
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
	return out
}

func (m *mockBackend) Name() string   { return "mock" }
func (m *mockBackend) Device() Device { return CPU }

// Compile-time check.
var _ Backend = (*mockBackend)(nil)
