// Package boundary implements the VeriBound interval algebra: named
// category bands over a numeric domain, the well-formedness checks that
// prove a band set classifies every value exactly once, and classification
// itself.
//
// Interval semantics: a value v belongs to band i when
// lower <= v < upper; the last band in sorted order is closed at its upper
// end so the top of the domain stays classifiable. A shared endpoint
// between two touching bands therefore classifies into the higher band.
//
// A Set is immutable after Build and safe for concurrent use. All
// operations are deterministic: identical inputs yield identical results.
package boundary

import (
	"math"
	"sort"
	"strconv"
)

// Boundary is one category band: the half-open interval [Lower, Upper)
// labeled with Category. Lower == Upper is legal and denotes a degenerate
// band that only matches when it is the last band of a set.
type Boundary struct {
	Lower    float64
	Upper    float64
	Category string
}

// New validates and returns a single boundary.
func New(lower, upper float64, category string) (Boundary, error) {
	b := Boundary{Lower: lower, Upper: upper, Category: category}
	if err := b.validate(); err != nil {
		return Boundary{}, err
	}
	return b, nil
}

func (b Boundary) validate() error {
	if math.IsNaN(b.Lower) || math.IsInf(b.Lower, 0) || math.IsNaN(b.Upper) || math.IsInf(b.Upper, 0) {
		return newError(KindMalformed, "VB-BND-003", "boundary bounds must be finite")
	}
	if b.Lower > b.Upper {
		return newError(KindMalformed, "VB-BND-001",
			"boundary lower bound "+fmtFloat(b.Lower)+" exceeds upper bound "+fmtFloat(b.Upper))
	}
	if b.Category == "" {
		return newError(KindMalformed, "VB-BND-002", "boundary category must be non-empty")
	}
	if b.Category == UnclassifiedLabel {
		return newError(KindMalformed, "VB-BND-004",
			"boundary category "+strconv.Quote(UnclassifiedLabel)+" is reserved")
	}
	return nil
}

// Set is an ordered collection of boundaries: sorted by Lower ascending,
// ties broken by Upper ascending, remaining ties by declaration order.
type Set struct {
	bands []Boundary
}

// Build validates each boundary and returns the sorted set.
//
// The input slice is copied; callers may mutate their slice afterwards
// without affecting the set.
func Build(bands []Boundary) (*Set, error) {
	out := make([]Boundary, len(bands))
	copy(out, bands)
	for _, b := range out {
		if err := b.validate(); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Lower != out[j].Lower {
			return out[i].Lower < out[j].Lower
		}
		return out[i].Upper < out[j].Upper
	})
	return &Set{bands: out}, nil
}

// Len returns the number of boundaries in the set.
func (s *Set) Len() int { return len(s.bands) }

// Boundaries returns a copy of the sorted boundaries.
func (s *Set) Boundaries() []Boundary {
	out := make([]Boundary, len(s.bands))
	copy(out, s.bands)
	return out
}

// contains reports whether the band at index i contains v under the set's
// interval semantics. Classification and the soundness check share this
// predicate so they can never disagree.
func (s *Set) contains(i int, v float64) bool {
	b := s.bands[i]
	if v < b.Lower {
		return false
	}
	if v < b.Upper {
		return true
	}
	return i == len(s.bands)-1 && v == b.Upper
}

// Outcome is the result of classifying a single value.
type Outcome struct {
	Value float64
	// Category is the matched band's category; empty when unclassified.
	Category string
	// Index is the matched band's position in sorted order, or -1.
	Index int
	// Classified reports whether any band contained the value.
	Classified bool
}

// Label returns the category name, or "Unclassified" when no band matched.
// The literal is reserved: Build never accepts it as a category, so an
// unclassified outcome cannot collide with a configured band.
func (o Outcome) Label() string {
	if o.Classified {
		return o.Category
	}
	return UnclassifiedLabel
}

// UnclassifiedLabel is the reserved label for values outside every band.
const UnclassifiedLabel = "Unclassified"

// Classify returns the first band in sorted order that contains v.
//
// No match is a normal outcome, not an error; callers that treat it as
// terminal wrap it via UnclassifiedError (see the compliance package).
func (s *Set) Classify(v float64) Outcome {
	for i := range s.bands {
		if s.contains(i, v) {
			return Outcome{Value: v, Category: s.bands[i].Category, Index: i, Classified: true}
		}
	}
	return Outcome{Value: v, Index: -1}
}

// UnclassifiedError returns the structured error for a value no band
// contains, for callers operating under strict handling.
func UnclassifiedError(v float64) error {
	return newError(KindUnclassified, "VB-CLS-201",
		"value "+fmtFloat(v)+" is not contained in any boundary")
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
