package hrrcore

import "sort"

// SmoothSignal removes sensor artifacts from a per-second HR trace: a median
// filter strips spike outliers while keeping the step edge at the true peak,
// then a centered moving average removes residual beat-to-beat jitter without
// flattening the decay shape the curve fit needs. Edges are padded with the
// nearest value. Input shorter than either kernel is returned as a copy,
// unchanged.
func SmoothSignal(values []float64, cfg Config) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) < cfg.MedianWindow || len(values) < cfg.AvgWindow {
		return out
	}
	return movingAverage(medianFilter(out, cfg.MedianWindow), cfg.AvgWindow)
}

func medianFilter(values []float64, window int) []float64 {
	if window <= 1 {
		return values
	}
	half := window / 2
	out := make([]float64, len(values))
	buf := make([]float64, 0, window)
	for i := range values {
		buf = buf[:0]
		for j := i - half; j <= i+half; j++ {
			buf = append(buf, values[clampIndex(j, len(values))])
		}
		out[i] = medianOf(buf)
	}
	return out
}

func movingAverage(values []float64, window int) []float64 {
	if window <= 1 {
		return values
	}
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		sum := 0.0
		for j := i - half; j <= i-half+window-1; j++ {
			sum += values[clampIndex(j, len(values))]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// medianOf sorts its argument in place.
func medianOf(buf []float64) float64 {
	sort.Float64s(buf)
	mid := len(buf) / 2
	if len(buf)%2 == 1 {
		return buf[mid]
	}
	return (buf[mid-1] + buf[mid]) / 2
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
