// Package report composes the VeriBound pipeline: a domain computation's
// results are classified against a verified boundary policy, sealed,
// persisted, reloaded, and re-verified.
//
// Stage order is fixed: input → computed → sealed → persisted → reloaded →
// verified. Each stage either completes and hands off or fails terminally
// for that run; nothing is retried, since every failure here (bad input,
// unsound policy, digest mismatch) is deterministic and will not resolve
// on retry.
package report

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dhwcmoore/veribound-mvp/basel"
	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/compliance"
	"github.com/dhwcmoore/veribound-mvp/seal"
)

// Stage names a pipeline checkpoint. A Run records the last stage it
// completed.
type Stage string

const (
	StageInput     Stage = "input"
	StageComputed  Stage = "computed"
	StageSealed    Stage = "sealed"
	StagePersisted Stage = "persisted"
	StageReloaded  Stage = "reloaded"
	StageVerified  Stage = "verified"
)

// Pipeline holds the validated classification context. Construct it with
// New, which proves the boundary policy before any classification can
// happen; a Pipeline whose policy failed verification is never returned.
type Pipeline struct {
	set       *boundary.Set
	mode      compliance.Mode
	persister Persister
}

// New verifies the boundary set over [lo, hi] and returns a pipeline bound
// to it. A set that fails any well-formedness check is a hard
// configuration error: no pipeline is returned and nothing downstream can
// classify or seal against the unsound policy.
func New(set *boundary.Set, lo, hi float64, mode compliance.Mode, persister Persister) (*Pipeline, error) {
	if set == nil {
		return nil, newError(ErrPolicyInvalid, StageInput, "nil boundary set", nil)
	}
	if persister == nil {
		return nil, newError(ErrInternal, StageInput, "nil persister", nil)
	}
	rep := set.Verify(lo, hi)
	if err := rep.Err(); err != nil {
		return nil, newError(ErrPolicyInvalid, StageInput, "boundary policy failed verification", err)
	}
	return &Pipeline{set: set, mode: mode, persister: persister}, nil
}

// Run is the record of one pipeline invocation. Stage is the last
// checkpoint completed; on error the Run is still returned so callers can
// see how far it got and what exists on disk.
type Run struct {
	ID       string
	Stage    Stage
	Results  *basel.Results
	Outcome  boundary.Outcome
	Record   *seal.Record
	Location string
	Verdict  seal.Verdict
}

// RunBasel executes the full pipeline over raw capital adequacy input
// bytes: validate and compute, classify the ratio, seal the results,
// persist the sealed record, reload it from storage, and verify the seal
// over what was actually stored.
//
// An invalid input or an unclassifiable value (under strict compliance)
// aborts before sealing: an unsealed, invalid result is never persisted.
func (p *Pipeline) RunBasel(input []byte) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Stage: StageInput}

	in, err := basel.ParseInput(input)
	if err != nil {
		return run, newError(ErrInvalidInput, StageInput, "invalid computation input", err)
	}
	results, err := basel.Compute(in)
	if err != nil {
		return run, newError(ErrInvalidInput, StageInput, "computation rejected input", err)
	}
	run.Results = results
	run.Stage = StageComputed

	outcome := p.set.Classify(results.RatioPercent())
	outcome, err = compliance.Judge(p.mode, outcome)
	if err != nil {
		return run, newError(ErrUnclassified, StageComputed, "value not contained in any boundary", err)
	}
	run.Outcome = outcome
	results.Category = outcome.Label()

	rec, err := seal.Seal(results)
	if err != nil {
		return run, newError(ErrSeal, StageComputed, "sealing failed", err)
	}
	run.Record = rec
	run.Stage = StageSealed

	encoded, err := seal.EncodeRecord(rec)
	if err != nil {
		return run, newError(ErrSeal, StageSealed, "record encoding failed", err)
	}
	location, err := p.persister.Save("record-"+run.ID+".json", encoded)
	if err != nil {
		return run, newError(ErrPersist, StageSealed, "persisting sealed record failed", err)
	}
	run.Location = location
	run.Stage = StagePersisted

	stored, err := p.persister.Load(location)
	if err != nil {
		return run, newError(ErrReload, StagePersisted, "reloading sealed record failed", err)
	}
	reloaded, err := seal.ParseRecord(stored)
	if err != nil {
		return run, newError(ErrReload, StagePersisted, "stored record is malformed", err)
	}
	run.Stage = StageReloaded

	run.Verdict = seal.Verify(reloaded)
	if !run.Verdict.OK {
		return run, newError(ErrSealMismatch, StageReloaded, run.Verdict.Message, nil)
	}
	run.Stage = StageVerified
	return run, nil
}

// Classify exposes the pipeline's classification without sealing, for
// callers that only need the category. The policy was verified at
// construction, so this is safe for any number of concurrent calls.
func (p *Pipeline) Classify(v float64) (boundary.Outcome, error) {
	out := p.set.Classify(v)
	out, err := compliance.Judge(p.mode, out)
	if err != nil {
		return out, newError(ErrUnclassified, StageComputed, "value not contained in any boundary", err)
	}
	return out, nil
}

// IsCode reports whether err is (or wraps) a *CodedError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *CodedError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}
