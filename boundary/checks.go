package boundary

// Check is an explicit, named well-formedness check.
//
// ID must be stable across versions.
// Apply must be deterministic and side-effect free.
type Check struct {
	ID    string
	Name  string
	Apply func(*Set) error
}

func (c Check) apply(s *Set) error {
	if c.Apply == nil {
		return newError(KindInternal, "VB-INTERNAL-001", "nil check Apply")
	}
	return c.Apply(s)
}

// CheckMutualExclusion verifies no two boundaries overlap: in sorted order
// every adjacent pair satisfies bands[i].Upper <= bands[i+1].Lower.
// Touching endpoints are legal. Empty and single-boundary sets pass
// trivially.
func (s *Set) CheckMutualExclusion() error {
	for i := 0; i+1 < len(s.bands); i++ {
		a, b := s.bands[i], s.bands[i+1]
		if a.Upper > b.Lower {
			return newError(KindInvalid, "VB-SET-101",
				"boundaries overlap: ["+fmtFloat(a.Lower)+", "+fmtFloat(a.Upper)+") "+a.Category+
					" and ["+fmtFloat(b.Lower)+", "+fmtFloat(b.Upper)+") "+b.Category)
		}
	}
	return nil
}

// CheckCompleteCoverage verifies the set spans the whole domain
// [lo, hi]: the first boundary starts at or below lo and the last ends at
// or above hi. An empty set never covers anything.
//
// This check sees only the outer bounds. Interior gaps surface through
// the soundness probes; Verify's default probes land on every band edge
// for exactly that reason.
func (s *Set) CheckCompleteCoverage(lo, hi float64) error {
	if len(s.bands) == 0 {
		return newError(KindInvalid, "VB-SET-102", "empty boundary set covers nothing")
	}
	if first := s.bands[0]; first.Lower > lo {
		return newError(KindInvalid, "VB-SET-103",
			"coverage gap below "+fmtFloat(first.Lower)+": domain starts at "+fmtFloat(lo))
	}
	if last := s.bands[len(s.bands)-1]; last.Upper < hi {
		return newError(KindInvalid, "VB-SET-104",
			"coverage gap above "+fmtFloat(last.Upper)+": domain ends at "+fmtFloat(hi))
	}
	return nil
}

// CheckSoundness verifies exactly one boundary contains v, using the same
// membership predicate as Classify.
func (s *Set) CheckSoundness(v float64) error {
	count := 0
	for i := range s.bands {
		if s.contains(i, v) {
			count++
		}
	}
	switch count {
	case 1:
		return nil
	case 0:
		return newError(KindInvalid, "VB-SET-105",
			"no boundary contains probe value "+fmtFloat(v))
	default:
		return newError(KindInvalid, "VB-SET-106",
			"multiple boundaries contain probe value "+fmtFloat(v))
	}
}

// Finding is the outcome of one named check.
type Finding struct {
	CheckID string
	Name    string
	Passed  bool
	// Detail carries the failure message; empty on pass.
	Detail string
}

// Report is the deterministic record of a full well-formedness run.
// Findings appear in check-execution order.
type Report struct {
	Findings []Finding
}

// Passed reports whether every finding passed.
func (r *Report) Passed() bool {
	for _, f := range r.Findings {
		if !f.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed findings in order.
func (r *Report) Failures() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if !f.Passed {
			out = append(out, f)
		}
	}
	return out
}

// Err returns a BoundarySetInvalid error summarizing the first failure,
// or nil when the report passed.
func (r *Report) Err() error {
	for _, f := range r.Findings {
		if !f.Passed {
			return newError(KindInvalid, f.CheckID, f.Detail)
		}
	}
	return nil
}

// Verify runs the three well-formedness checks in fixed order and returns
// a report with one finding per check plus one per soundness probe.
//
// When no probes are supplied, Verify probes every band midpoint and every
// band's upper edge, which exercises the membership predicate at the
// points where classification could plausibly double- or zero-match.
//
// A failed report means the set must not be used for classification.
func (s *Set) Verify(lo, hi float64, probes ...float64) *Report {
	if len(probes) == 0 {
		probes = s.defaultProbes()
	}

	checks := []Check{
		{ID: "VB-CHK-EXCLUSION", Name: "mutual exclusion", Apply: func(s *Set) error {
			return s.CheckMutualExclusion()
		}},
		{ID: "VB-CHK-COVERAGE", Name: "complete coverage", Apply: func(s *Set) error {
			return s.CheckCompleteCoverage(lo, hi)
		}},
	}
	for _, p := range probes {
		p := p
		checks = append(checks, Check{
			ID:   "VB-CHK-SOUNDNESS",
			Name: "classification soundness at " + fmtFloat(p),
			Apply: func(s *Set) error {
				return s.CheckSoundness(p)
			},
		})
	}

	rep := &Report{}
	for _, c := range checks {
		f := Finding{CheckID: c.ID, Name: c.Name, Passed: true}
		if err := c.apply(s); err != nil {
			f.Passed = false
			f.Detail = err.Error()
			if id := RuleID(err); id != "" {
				f.CheckID = id
			}
		}
		rep.Findings = append(rep.Findings, f)
	}
	return rep
}

// defaultProbes covers each band's midpoint and every upper edge. Upper
// edges are where classification can go wrong: a touching edge must
// belong to exactly the next band, and an edge bordering an interior gap
// belongs to nothing, which the outer-bounds coverage check cannot see.
func (s *Set) defaultProbes() []float64 {
	var probes []float64
	for _, b := range s.bands {
		if b.Lower < b.Upper {
			probes = append(probes, b.Lower+(b.Upper-b.Lower)/2)
		}
		probes = append(probes, b.Upper)
	}
	return probes
}
