package tensor

import "testing"

func TestFromSlice(t *testing.T) {
	backend := newMockBackend()

	data := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(data, Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	if !x.Shape().Equal(Shape{2, 3}) {
		t.Errorf("expected shape [2 3], got %v", x.Shape())
	}
	if x.DType() != Float32 {
		t.Errorf("expected float32, got %s", x.DType())
	}
	if x.At(1, 2) != 6 {
		t.Errorf("expected x[1,2]=6, got %v", x.At(1, 2))
	}
}

func TestFromSlice_SizeMismatch(t *testing.T) {
	backend := newMockBackend()

	_, err := FromSlice([]float32{1, 2, 3}, Shape{2, 3}, backend)
	if err == nil {
		t.Error("expected error for mismatched slice length")
	}
}

func TestCreation(t *testing.T) {
	backend := newMockBackend()

	z := Zeros[float32](Shape{3, 3}, backend)
	for _, v := range z.Data() {
		if v != 0 {
			t.Fatalf("Zeros produced non-zero value %v", v)
		}
	}

	o := Ones[float32](Shape{3, 3}, backend)
	for _, v := range o.Data() {
		if v != 1 {
			t.Fatalf("Ones produced value %v", v)
		}
	}

	f := Full[float32](Shape{2}, 3.5, backend)
	if f.Data()[0] != 3.5 || f.Data()[1] != 3.5 {
		t.Errorf("Full produced %v", f.Data())
	}
}

func TestRandn_Statistics(t *testing.T) {
	backend := newMockBackend()

	x := Randn[float32](Shape{10000}, backend)

	var sum, sumSq float64
	for _, v := range x.Data() {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(x.NumElements())
	mean := sum / n
	variance := sumSq/n - mean*mean

	if mean < -0.1 || mean > 0.1 {
		t.Errorf("Randn mean too far from 0: %f", mean)
	}
	if variance < 0.8 || variance > 1.2 {
		t.Errorf("Randn variance too far from 1: %f", variance)
	}
}

func TestSeed_ReproducibleDraws(t *testing.T) {
	backend := newMockBackend()

	Seed(42)
	a := Randn[float32](Shape{64}, backend)
	i := RandInt(Shape{16}, 0, 256, backend)

	Seed(42)
	b := Randn[float32](Shape{64}, backend)
	j := RandInt(Shape{16}, 0, 256, backend)

	for k := range a.Data() {
		if a.Data()[k] != b.Data()[k] {
			t.Fatalf("Randn[%d] differs after reseeding: %v vs %v", k, a.Data()[k], b.Data()[k])
		}
	}
	for k := range i.Data() {
		if i.Data()[k] != j.Data()[k] {
			t.Fatalf("RandInt[%d] differs after reseeding: %d vs %d", k, i.Data()[k], j.Data()[k])
		}
	}
}

func TestRandInt_Range(t *testing.T) {
	backend := newMockBackend()

	x := RandInt(Shape{1000}, 0, 256, backend)
	for _, v := range x.Data() {
		if v < 0 || v >= 256 {
			t.Fatalf("RandInt produced out-of-range value %d", v)
		}
	}
}

func TestTensor_Arithmetic(t *testing.T) {
	backend := newMockBackend()

	a, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)
	b, _ := FromSlice([]float32{10, 20, 30, 40}, Shape{2, 2}, backend)

	sum := a.Add(b)
	want := []float32{11, 22, 33, 44}
	for i, v := range sum.Data() {
		if v != want[i] {
			t.Errorf("Add[%d]: expected %v, got %v", i, want[i], v)
		}
	}

	scaled := a.MulScalar(2)
	if scaled.Data()[3] != 8 {
		t.Errorf("MulScalar: expected 8, got %v", scaled.Data()[3])
	}
}

func TestTensor_ReshapePermute(t *testing.T) {
	backend := newMockBackend()

	a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)

	r := a.Reshape(3, 2)
	if !r.Shape().Equal(Shape{3, 2}) {
		t.Errorf("expected [3 2], got %v", r.Shape())
	}

	p := a.Permute(1, 0)
	if !p.Shape().Equal(Shape{3, 2}) {
		t.Errorf("expected [3 2], got %v", p.Shape())
	}
	// Transpose of [[1,2,3],[4,5,6]] is [[1,4],[2,5],[3,6]].
	if p.At(0, 1) != 4 || p.At(2, 0) != 3 {
		t.Errorf("permute values wrong: %v", p.Data())
	}
}

func TestRaw_CopyFrom(t *testing.T) {
	backend := newMockBackend()

	a := Zeros[float32](Shape{2, 2}, backend)
	b, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)

	if err := a.Raw().CopyFrom(b.Raw()); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	if a.Data()[3] != 4 {
		t.Errorf("expected 4, got %v", a.Data()[3])
	}

	c := Zeros[float32](Shape{4}, backend)
	if err := c.Raw().CopyFrom(b.Raw()); err == nil {
		t.Error("expected shape mismatch error")
	}

	d := Zeros[int64](Shape{2, 2}, backend)
	if err := d.Raw().CopyFrom(b.Raw()); err == nil {
		t.Error("expected dtype mismatch error")
	}
}
