package inconsistency

// Counts are the sufficient statistics for comparing a predicted set against
// a ground-truth set.
type Counts struct {
	// ClsTP counts predictions equal to a truth item in location and type.
	ClsTP int `json:"cls_tp"`
	// TP counts predicted index pairs present among the truth index pairs.
	TP int `json:"tp"`
	// FP counts predicted index pairs absent from the truth.
	FP int `json:"fp"`
	// FN counts truth index pairs that were not predicted.
	FN int `json:"fn"`
}

// Compare computes Counts for pred against truth.
func Compare(pred, truth Set) Counts {
	var c Counts
	for item := range pred {
		if truth.Has(item) {
			c.ClsTP++
		}
	}

	predPairs := pred.Pairs()
	truthPairs := truth.Pairs()
	for p := range predPairs {
		if _, ok := truthPairs[p]; ok {
			c.TP++
		} else {
			c.FP++
		}
	}
	for p := range truthPairs {
		if _, ok := predPairs[p]; !ok {
			c.FN++
		}
	}
	return c
}

// Add returns the element-wise sum.
func (c Counts) Add(other Counts) Counts {
	return Counts{
		ClsTP: c.ClsTP + other.ClsTP,
		TP:    c.TP + other.TP,
		FP:    c.FP + other.FP,
		FN:    c.FN + other.FN,
	}
}

// Precision is TP / (TP + FP), or 0 without predictions.
func (c Counts) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall is TP / (TP + FN), or 0 without truth items.
func (c Counts) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// ClassificationPrecision is ClsTP / TP, or 0 when nothing was located.
func (c Counts) ClassificationPrecision() float64 {
	return ratio(c.ClsTP, c.TP)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
