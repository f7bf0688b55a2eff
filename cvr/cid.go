package cvr

import (
	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

// CID computes the CIDv1 (raw codec, SHA-256) of canonical CVR bytes.
// Input is canonicalized first so the CID is refused for malformed
// documents rather than minted over garbage.
func CID(cvrBytes []byte) (string, error) {
	canonical, err := CanonicalizeCVR(cvrBytes)
	if err != nil {
		return "", err
	}
	return cidutil.CIDv1RawSHA256(canonical), nil
}

// RenderWithCID renders a CVR and returns both the canonical bytes and
// their CID.
func RenderWithCID(rep *boundary.Report, policyCID string, domainLower, domainUpper float64, opts RenderOptions) ([]byte, string, error) {
	out := Render(rep, policyCID, domainLower, domainUpper, opts)
	id, err := CID(out)
	if err != nil {
		return nil, "", err
	}
	return out, id, nil
}

// RenderSignedWithCID renders a signed CVR and returns both the canonical
// bytes and their CID.
func RenderSignedWithCID(rep *boundary.Report, policyCID string, domainLower, domainUpper float64, opts RenderOptions) ([]byte, string, error) {
	out, err := RenderSigned(rep, policyCID, domainLower, domainUpper, opts)
	if err != nil {
		return nil, "", err
	}
	id, err := CID(out)
	if err != nil {
		return nil, "", err
	}
	return out, id, nil
}
