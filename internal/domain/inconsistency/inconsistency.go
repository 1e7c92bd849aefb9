// Package inconsistency models typed discrepancies between two screens and the
// counts used to derive precision and recall.
package inconsistency

import (
	"fmt"
	"sort"
)

// Type classifies an inconsistency. The taxonomy is closed.
type Type string

const (
	// Missing marks a mock widget with no counterpart on the real screen.
	Missing Type = "missing"
	// Spurious marks a real widget with no counterpart on the mock screen.
	Spurious Type = "spurious"
	// BBox marks a matched pair whose geometry drifted.
	BBox Type = "bbox"
	// Text marks a matched pair whose recognized text differs.
	Text Type = "text"
	// WidgetType marks a matched pair whose widget class differs.
	WidgetType Type = "type"
)

// Absent is the index used when one side of a pair has no widget.
const Absent = -1

// Types lists every member of the taxonomy in a stable order.
func Types() []Type {
	return []Type{Missing, Spurious, BBox, Text, WidgetType}
}

// Valid reports whether t belongs to the taxonomy.
func (t Type) Valid() bool {
	switch t {
	case Missing, Spurious, BBox, Text, WidgetType:
		return true
	}
	return false
}

// Pair links widget Index1 of the first screen to widget Index2 of the second.
type Pair struct {
	Index1 int `json:"index1"`
	Index2 int `json:"index2"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%d, %d)", p.Index1, p.Index2)
}

// Inconsistency is a typed discrepancy located by a widget pair.
type Inconsistency struct {
	Index1 int  `json:"index1"`
	Index2 int  `json:"index2"`
	Type   Type `json:"type"`
}

// Pair drops the type, keeping only the location.
func (i Inconsistency) Pair() Pair {
	return Pair{Index1: i.Index1, Index2: i.Index2}
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("(%d, %d, %s)", i.Index1, i.Index2, i.Type)
}

// Set is an unordered collection of unique inconsistencies.
type Set map[Inconsistency]struct{}

// NewSet builds a set from the given items.
func NewSet(items ...Inconsistency) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts an inconsistency.
func (s Set) Add(item Inconsistency) {
	s[item] = struct{}{}
}

// Has reports membership.
func (s Set) Has(item Inconsistency) bool {
	_, ok := s[item]
	return ok
}

// Pairs projects the set onto its index pairs.
func (s Set) Pairs() map[Pair]struct{} {
	out := make(map[Pair]struct{}, len(s))
	for item := range s {
		out[item.Pair()] = struct{}{}
	}
	return out
}

// Filter returns the subset satisfying keep.
func (s Set) Filter(keep func(Inconsistency) bool) Set {
	out := make(Set, len(s))
	for item := range s {
		if keep(item) {
			out.Add(item)
		}
	}
	return out
}

// Sorted returns the items ordered by index1, index2, then type.
func (s Set) Sorted() []Inconsistency {
	out := make([]Inconsistency, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Index1 != out[b].Index1 {
			return out[a].Index1 < out[b].Index1
		}
		if out[a].Index2 != out[b].Index2 {
			return out[a].Index2 < out[b].Index2
		}
		return out[a].Type < out[b].Type
	})
	return out
}
