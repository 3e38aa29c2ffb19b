package quality

import "sort"

// PSNRSSIMPoint is one observed (PSNR, SSIM) pair collected during a run.
type PSNRSSIMPoint struct {
	PSNR float64
	SSIM float64
}

// PSNRSSIMMap is the ordered sequence of observed points used to predict
// SSIM from a cheaper PSNR measurement when transparency data is
// requested mid-search. This is advisory only and must never be used as
// a search objective, since the linear approximation is unreliable
// outside the observed range.
type PSNRSSIMMap struct {
	points []PSNRSSIMPoint
}

// NewPSNRSSIMMap creates an empty mapping.
func NewPSNRSSIMMap() *PSNRSSIMMap {
	return &PSNRSSIMMap{}
}

// Add records a new observed point, keeping the sequence sorted by PSNR.
func (m *PSNRSSIMMap) Add(psnr, ssim float64) {
	m.points = append(m.points, PSNRSSIMPoint{PSNR: psnr, SSIM: ssim})
	sort.Slice(m.points, func(i, j int) bool { return m.points[i].PSNR < m.points[j].PSNR })
}

// Len returns the number of recorded points.
func (m *PSNRSSIMMap) Len() int { return len(m.points) }

// Predict linearly interpolates an SSIM estimate for the given PSNR.
// Requires at least two points; returns (0, false) otherwise. Outside
// the observed range the nearest endpoint's SSIM is returned rather than
// extrapolating, which drifts badly past the sampled region.
func (m *PSNRSSIMMap) Predict(psnr float64) (float64, bool) {
	n := len(m.points)
	if n < 2 {
		return 0, false
	}

	if psnr <= m.points[0].PSNR {
		return m.points[0].SSIM, true
	}
	if psnr >= m.points[n-1].PSNR {
		return m.points[n-1].SSIM, true
	}

	for i := 0; i < n-1; i++ {
		lo, hi := m.points[i], m.points[i+1]
		if psnr >= lo.PSNR && psnr <= hi.PSNR {
			if hi.PSNR == lo.PSNR {
				return lo.SSIM, true
			}
			t := (psnr - lo.PSNR) / (hi.PSNR - lo.PSNR)
			return lo.SSIM + t*(hi.SSIM-lo.SSIM), true
		}
	}
	return m.points[n-1].SSIM, true
}
