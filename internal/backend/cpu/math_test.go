package cpu

import (
	"math"
	"testing"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

func TestElementwise(t *testing.T) {
	backend := New()

	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, []float32{4, 3, 2, 1}, tensor.Shape{2, 2})

	sum := backend.Add(a, b).AsFloat32()
	diff := backend.Sub(a, b).AsFloat32()
	prod := backend.Mul(a, b).AsFloat32()

	for i := 0; i < 4; i++ {
		if sum[i] != 5 {
			t.Errorf("add[%d]: expected 5, got %.0f", i, sum[i])
		}
	}
	if diff[0] != -3 || diff[3] != 3 {
		t.Errorf("sub wrong: %v", diff)
	}
	if prod[1] != 6 || prod[2] != 6 {
		t.Errorf("mul wrong: %v", prod)
	}
}

func TestElementwise_ShapeMismatch(t *testing.T) {
	backend := New()

	a := fromSlice(t, []float32{1, 2}, tensor.Shape{2})
	b := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})

	defer func() {
		if recover() == nil {
			t.Error("expected panic for shape mismatch")
		}
	}()
	backend.Add(a, b)
}

func TestScalarOps(t *testing.T) {
	backend := New()

	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})

	scaled := backend.MulScalar(x, float32(2)).AsFloat32()
	shifted := backend.AddScalar(x, float32(-1)).AsFloat32()

	if scaled[2] != 6 {
		t.Errorf("mulscalar: expected 6, got %.0f", scaled[2])
	}
	if shifted[0] != 0 {
		t.Errorf("addscalar: expected 0, got %.0f", shifted[0])
	}
}

func TestActivations(t *testing.T) {
	backend := New()

	x := fromSlice(t, []float32{-2, 0, 2}, tensor.Shape{3})

	relu := backend.ReLU(x).AsFloat32()
	if relu[0] != 0 || relu[1] != 0 || relu[2] != 2 {
		t.Errorf("relu wrong: %v", relu)
	}

	leaky := backend.LeakyReLU(x, 0.1).AsFloat32()
	if math.Abs(float64(leaky[0]+0.2)) > 1e-6 || leaky[2] != 2 {
		t.Errorf("leakyrelu wrong: %v", leaky)
	}

	sig := backend.Sigmoid(x).AsFloat32()
	if math.Abs(float64(sig[1]-0.5)) > 1e-6 {
		t.Errorf("sigmoid(0): expected 0.5, got %f", sig[1])
	}

	tanh := backend.Tanh(x).AsFloat32()
	if tanh[1] != 0 {
		t.Errorf("tanh(0): expected 0, got %f", tanh[1])
	}
	if math.Abs(float64(tanh[2]-float32(math.Tanh(2)))) > 1e-6 {
		t.Errorf("tanh(2) wrong: %f", tanh[2])
	}
}

func TestSumMean(t *testing.T) {
	backend := New()

	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	sum := backend.Sum(x)
	if !sum.Shape().Equal(tensor.Shape{1}) {
		t.Fatalf("sum shape: expected [1], got %v", sum.Shape())
	}
	if sum.AsFloat32()[0] != 10 {
		t.Errorf("sum: expected 10, got %.0f", sum.AsFloat32()[0])
	}

	mean := backend.Mean(x)
	if mean.AsFloat32()[0] != 2.5 {
		t.Errorf("mean: expected 2.5, got %f", mean.AsFloat32()[0])
	}
}

func TestPermute(t *testing.T) {
	backend := New()

	// [2,3] -> transpose -> [3,2]
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	out := backend.Permute(x, 1, 0)

	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", out.Shape())
	}
	want := []float32{1, 4, 2, 5, 3, 6}
	got := out.AsFloat32()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("out[%d]: expected %.0f, got %.0f", i, want[i], got[i])
		}
	}
}

func TestPermute_ChannelsLast(t *testing.T) {
	backend := New()

	// The quantizer moves [N,C,H,W] to [N,H,W,C] and back.
	x, _ := tensor.NewRaw(tensor.Shape{2, 3, 4, 5}, tensor.Float32, tensor.CPU)
	data := x.AsFloat32()
	for i := range data {
		data[i] = float32(i)
	}

	moved := backend.Permute(x, 0, 2, 3, 1)
	if !moved.Shape().Equal(tensor.Shape{2, 4, 5, 3}) {
		t.Fatalf("expected shape [2 4 5 3], got %v", moved.Shape())
	}

	back := backend.Permute(moved, 0, 3, 1, 2)
	if !back.Shape().Equal(x.Shape()) {
		t.Fatalf("round trip shape: expected %v, got %v", x.Shape(), back.Shape())
	}
	got := back.AsFloat32()
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("round trip value mismatch at %d: %v vs %v", i, got[i], data[i])
		}
	}
}

func TestReshape(t *testing.T) {
	backend := New()

	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	out := backend.Reshape(x, tensor.Shape{3, 2})
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", out.Shape())
	}
	// Reshape is a view, data order unchanged.
	if out.AsFloat32()[1] != 2 {
		t.Errorf("expected 2, got %.0f", out.AsFloat32()[1])
	}
}
