package quality

import (
	"math"
	"testing"
)

func TestPSNRSSIMMapNeedsTwoPoints(t *testing.T) {
	m := NewPSNRSSIMMap()
	m.Add(30, 0.9)
	if _, ok := m.Predict(30); ok {
		t.Errorf("expected prediction to fail with a single point")
	}
}

func TestPSNRSSIMMapLinearInterpolation(t *testing.T) {
	m := NewPSNRSSIMMap()
	m.Add(30, 0.90)
	m.Add(40, 1.00)
	m.Add(35, 0.95) // inserted out of order; Add must keep it sorted

	got, ok := m.Predict(32.5)
	if !ok {
		t.Fatal("expected prediction to succeed")
	}
	want := 0.925 // halfway between 30->0.90 and 35->0.95
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Predict(32.5) = %v, want %v", got, want)
	}
}

func TestPSNRSSIMMapClampsOutsideRange(t *testing.T) {
	m := NewPSNRSSIMMap()
	m.Add(30, 0.90)
	m.Add(40, 1.00)

	low, _ := m.Predict(0)
	if low != 0.90 {
		t.Errorf("expected clamp to first point below range, got %v", low)
	}
	high, _ := m.Predict(100)
	if high != 1.00 {
		t.Errorf("expected clamp to last point above range, got %v", high)
	}
}

func TestSampleStrideBoundaries(t *testing.T) {
	cases := []struct {
		secs float64
		want int
	}{
		{0, 1},
		{60, 1},
		{60.1, 3},
		{300, 3},
		{300.1, 10},
		{1800, 10},
		{1800.1, 0},
	}
	for _, c := range cases {
		if got := SampleStride(c.secs); got != c.want {
			t.Errorf("SampleStride(%v) = %d, want %d", c.secs, got, c.want)
		}
	}
}

func TestSkipMSSSIMMatchesStrideZero(t *testing.T) {
	if !SkipMSSSIM(2000) {
		t.Errorf("expected MS-SSIM skipped beyond 1800s")
	}
	if SkipMSSSIM(100) {
		t.Errorf("expected MS-SSIM not skipped at 100s")
	}
}

func TestSampledFrameIndices(t *testing.T) {
	idx := SampledFrameIndices(10, 3)
	want := []int{0, 3, 6, 9}
	if len(idx) != len(want) {
		t.Fatalf("got %v, want %v", idx, want)
	}
	for i := range want {
		if idx[i] != want[i] {
			t.Fatalf("got %v, want %v", idx, want)
		}
	}
}
