package dsp

// EstimatePitch finds the lag in [minLag, maxLag] sample frames at which the
// tail of mono best matches itself one lag earlier. The comparison window
// is maxLag frames long, shortened when mono holds fewer than 2*maxLag frames.
// Ties resolve to the shorter lag. Returns the lag and its normalized
// correlation; a lag of 0 means mono is too short to estimate.
func EstimatePitch(mono []float32, minLag, maxLag int) (int, float64) {
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > len(mono)/2 {
		maxLag = len(mono) / 2
	}
	if maxLag < minLag {
		return 0, 0
	}

	n := len(mono)
	window := maxLag
	tail := mono[n-window:]

	bestLag, bestCorr := minLag, -2.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := normalizedCorrelation(tail, mono[n-window-lag:n-lag])
		if corr > bestCorr+1e-9 {
			bestLag, bestCorr = lag, corr
		}
	}
	return bestLag, bestCorr
}

// bestSpliceLag searches lag in [minLag, maxLag] maximizing the similarity of
// mono[0:lag] and mono[lag:2*lag]. Silent segments are treated as perfectly
// similar at the longest lag.
func bestSpliceLag(mono []float32, minLag, maxLag int) (int, float64) {
	if meanSquare(mono[:2*maxLag]) < lowEnergy {
		return maxLag, 1
	}
	bestLag, bestCorr := minLag, -2.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := normalizedCorrelation(mono[:lag], mono[lag:2*lag])
		if corr > bestCorr+1e-9 {
			bestLag, bestCorr = lag, corr
		}
	}
	return bestLag, bestCorr
}
