package report

import (
	"golang.org/x/sync/errgroup"

	"github.com/dhwcmoore/veribound-mvp/seal"
)

// SealBatch seals independent payloads concurrently. Sealing is a pure
// function over immutable inputs, so the batch needs no coordination
// beyond the slice indices; output order matches input order.
//
// On the first failure the remaining work still runs to completion, but
// only the error is returned: a batch is all-or-nothing, never a partial
// set of sealed records.
func SealBatch(payloads []any) ([]*seal.Record, error) {
	out := make([]*seal.Record, len(payloads))
	var g errgroup.Group
	for i, p := range payloads {
		i, p := i, p
		g.Go(func() error {
			rec, err := seal.Seal(p)
			if err != nil {
				return newError(ErrSeal, StageSealed, "sealing batch payload failed", err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
