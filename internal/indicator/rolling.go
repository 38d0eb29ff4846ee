package indicator

import "tritrend/internal/model"

// rollingMean computes a trailing arithmetic mean with the given window
// over values. Index i is defined for i >= window-1; earlier indices
// are NaN. Uses a running sum over a circular buffer so the pass is
// O(n) regardless of window size.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		for i := range out {
			out[i] = model.Undefined()
		}
		return out
	}
	buf := make([]float64, window)
	var sum float64
	for i, v := range values {
		idx := i % window
		if i >= window {
			sum -= buf[idx]
		}
		buf[idx] = v
		sum += v
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = model.Undefined()
		}
	}
	return out
}

// olsSlopes computes, per index, the ordinary least-squares slope of
// values over the trailing window, divided by the window length. Least
// squares is used instead of a finite difference to dampen single-bar
// noise. Windows containing any undefined value yield NaN.
func olsSlopes(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		for i := range out {
			out[i] = model.Undefined()
		}
		return out
	}

	// x = 0..window-1 is fixed, so its moments are constants.
	n := float64(window)
	sumX := n * (n - 1) / 2
	sumXX := n * (n - 1) * (2*n - 1) / 6
	denom := n*sumXX - sumX*sumX

	for i := range values {
		out[i] = model.Undefined()
		if i < window-1 {
			continue
		}
		start := i - window + 1
		ok := true
		var sumY, sumXY float64
		for j := 0; j < window; j++ {
			y := values[start+j]
			if !model.Defined(y) {
				ok = false
				break
			}
			sumY += y
			sumXY += float64(j) * y
		}
		if !ok {
			continue
		}
		slope := (n*sumXY - sumX*sumY) / denom
		out[i] = slope / n
	}
	return out
}
