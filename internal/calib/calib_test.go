package calib

import "testing"

func TestNoAnchorsUsesStaticFallback(t *testing.T) {
	m := New()
	crf, conf := m.PredictCPUCRF(24)
	if crf != 24+StaticFallbackOffset {
		t.Errorf("expected fallback offset, got crf=%v", crf)
	}
	if conf != 0.5 {
		t.Errorf("expected confidence 0.5, got %v", conf)
	}
}

func TestOneAnchorUsesTableLookup(t *testing.T) {
	m := New()
	// ratio 0.6 -> offset 4.0
	m.AddAnchor(NewAnchor(20, 1000, 600))
	crf, conf := m.PredictCPUCRF(20)
	if crf != 24 {
		t.Errorf("expected crf=24, got %v", crf)
	}
	if conf != 0.75 {
		t.Errorf("expected confidence 0.75, got %v", conf)
	}
}

func TestTwoAnchorsInterpolate(t *testing.T) {
	m := New()
	m.AddAnchor(NewAnchor(18, 1000, 750)) // ratio 0.75 -> offset 3.5
	m.AddAnchor(NewAnchor(22, 1000, 950)) // ratio 0.95 -> offset 2.5
	crf, conf := m.PredictCPUCRF(20)      // midpoint
	want := 20 + (3.5+2.5)/2
	if crf != want {
		t.Errorf("expected interpolated crf=%v, got %v", want, crf)
	}
	if conf != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", conf)
	}
}

func TestThreeAnchorsCapped(t *testing.T) {
	m := New()
	for _, crf := range AnchorCRFs {
		if !m.AddAnchor(NewAnchor(crf, 1000, 800)) {
			t.Fatalf("expected anchor at crf=%v to be accepted", crf)
		}
	}
	if m.AddAnchor(NewAnchor(30, 1000, 800)) {
		t.Errorf("expected fourth anchor to be rejected")
	}
	if m.AnchorCount() != 3 {
		t.Errorf("expected 3 anchors, got %d", m.AnchorCount())
	}
}

func TestOffsetTableBreakpoints(t *testing.T) {
	tbl := DefaultOffsetTable()
	cases := []struct {
		ratio float64
		want  float64
	}{
		{0.5, 4.0},
		{0.69, 4.0},
		{0.70, 3.5},
		{0.79, 3.5},
		{0.80, 3.0},
		{0.89, 3.0},
		{0.90, 2.5},
		{1.0, 2.5},
	}
	for _, c := range cases {
		if got := tbl.Lookup(c.ratio); got != c.want {
			t.Errorf("Lookup(%v) = %v, want %v", c.ratio, got, c.want)
		}
	}
}

func TestExtrapolationClampsToEndpoints(t *testing.T) {
	m := New()
	m.AddAnchor(NewAnchor(18, 1000, 750))
	m.AddAnchor(NewAnchor(22, 1000, 950))

	crfLow, _ := m.PredictCPUCRF(10)
	if crfLow != 10+3.5 {
		t.Errorf("expected low extrapolation to clamp to first anchor's offset, got %v", crfLow)
	}
	crfHigh, _ := m.PredictCPUCRF(40)
	if crfHigh != 40+2.5 {
		t.Errorf("expected high extrapolation to clamp to last anchor's offset, got %v", crfHigh)
	}
}
