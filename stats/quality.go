package stats

// Quality is a coarse assessment of receive conditions.
type Quality int

const (
	// QualityExcellent indicates < 1% loss and < 20ms jitter
	QualityExcellent Quality = iota
	// QualityGood indicates < 3% loss and < 40ms jitter
	QualityGood
	// QualityFair indicates < 5% loss and < 80ms jitter
	QualityFair
	// QualityPoor indicates anything worse
	QualityPoor
)

// String returns human-readable quality description.
func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// Quality grades the snapshot. Loss and jitter are graded separately and the
// worse grade wins.
func (s Snapshot) Quality() Quality {
	loss := s.LossRate * 100
	lossQ := QualityPoor
	switch {
	case loss < 1:
		lossQ = QualityExcellent
	case loss < 3:
		lossQ = QualityGood
	case loss < 5:
		lossQ = QualityFair
	}

	jitterQ := QualityPoor
	switch {
	case s.JitterMs < 20:
		jitterQ = QualityExcellent
	case s.JitterMs < 40:
		jitterQ = QualityGood
	case s.JitterMs < 80:
		jitterQ = QualityFair
	}

	if lossQ > jitterQ {
		return lossQ
	}
	return jitterQ
}
