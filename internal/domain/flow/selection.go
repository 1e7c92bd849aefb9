package flow

import "math/rand/v2"

// NoInconsistency is returned when a record has no transition to corrupt.
const NoInconsistency = -1

// NewRunRand returns the run-scoped generator used for inconsistency selection.
// The same seed always yields the same sequence of selections.
func NewRunRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SelectInconsistencyIndex picks the zero-based transition that is
// intentionally inconsistent. An explicit override always wins, then an
// integral index embedded in the record, then a uniform draw from rng over
// 0..len(steps)-2. Records with a single step yield NoInconsistency.
func SelectInconsistencyIndex(rec *Record, override *int, rng *rand.Rand) int {
	if override != nil {
		return *override
	}
	if rec == nil {
		return NoInconsistency
	}
	if rec.InconsistencyIndex != nil {
		return *rec.InconsistencyIndex
	}
	if len(rec.Steps) <= 1 {
		return NoInconsistency
	}
	return rng.IntN(len(rec.Steps) - 1)
}
