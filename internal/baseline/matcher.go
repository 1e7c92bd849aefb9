// Package baseline provides deterministic default implementations of the
// matcher and checker ports. They are geometric and textual heuristics meant
// to make the tool usable end to end; any other ports.Matcher or
// ports.Checker can replace them.
package baseline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/inconsistency"
	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

// DefaultMinScore is the lowest pair similarity the matcher accepts.
const DefaultMinScore = 0.1

// Matcher pairs widgets greedily by a blend of box overlap and text similarity.
type Matcher struct {
	// TextWeight in [0, 1] is the share of the similarity taken by text.
	TextWeight float64
	// MinScore drops candidate pairs below this similarity.
	MinScore float64
}

// NewMatcher returns a matcher with the given text weight.
func NewMatcher(textWeight float64) *Matcher {
	return &Matcher{TextWeight: textWeight, MinScore: DefaultMinScore}
}

type candidate struct {
	i, j  int
	score float64
}

// Match implements ports.Matcher. Every widget of a and b appears in exactly
// one returned pair; unmatched widgets are paired with inconsistency.Absent.
func (m *Matcher) Match(ctx context.Context, a, b *screen.Screen) ([]inconsistency.Pair, float64, time.Duration, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}

	var cands []candidate
	for i, wa := range a.Widgets {
		for j, wb := range b.Widgets {
			s := m.similarity(wa, wb)
			if s >= m.MinScore && s > 0 {
				cands = append(cands, candidate{i: i, j: j, score: s})
			}
		}
	}
	sort.SliceStable(cands, func(x, y int) bool {
		if cands[x].score != cands[y].score {
			return cands[x].score > cands[y].score
		}
		if cands[x].i != cands[y].i {
			return cands[x].i < cands[y].i
		}
		return cands[x].j < cands[y].j
	})

	usedA := make([]bool, len(a.Widgets))
	usedB := make([]bool, len(b.Widgets))
	var pairs []inconsistency.Pair
	var total float64
	for _, c := range cands {
		if usedA[c.i] || usedB[c.j] {
			continue
		}
		usedA[c.i], usedB[c.j] = true, true
		pairs = append(pairs, inconsistency.Pair{Index1: c.i, Index2: c.j})
		total += c.score
	}
	sort.Slice(pairs, func(x, y int) bool { return pairs[x].Index1 < pairs[y].Index1 })

	for i, used := range usedA {
		if !used {
			pairs = append(pairs, inconsistency.Pair{Index1: i, Index2: inconsistency.Absent})
		}
	}
	for j, used := range usedB {
		if !used {
			pairs = append(pairs, inconsistency.Pair{Index1: inconsistency.Absent, Index2: j})
		}
	}

	score := 1.0
	if n := max(len(a.Widgets), len(b.Widgets)); n > 0 {
		score = total / float64(n)
	}
	return pairs, score, time.Since(start), nil
}

func (m *Matcher) similarity(a, b screen.Widget) float64 {
	geo := a.Bounds.IoU(b.Bounds)
	if m.TextWeight <= 0 {
		return geo
	}
	return (1-m.TextWeight)*geo + m.TextWeight*TextSimilarity(a.Text, b.Text)
}

// TextSimilarity is the normalized edit similarity of two labels. Two empty
// labels carry no textual evidence and score 0.
func TextSimilarity(a, b string) float64 {
	a, b = normalizeText(a), normalizeText(b)
	if a == "" && b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
