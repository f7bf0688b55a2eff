package cvr

import "github.com/dhwcmoore/veribound-mvp/boundary"

// Document pairs canonical CVR bytes with their CID.
type Document struct {
	Bytes []byte
	CID   string
}

// NewDocumentFromBytes canonicalizes input and wraps it as a Document.
func NewDocumentFromBytes(input []byte) (*Document, error) {
	canonical, err := CanonicalizeCVR(input)
	if err != nil {
		return nil, err
	}
	id, err := CID(canonical)
	if err != nil {
		return nil, err
	}
	return &Document{Bytes: canonical, CID: id}, nil
}

// RenderDocument renders a report directly into a Document.
func RenderDocument(rep *boundary.Report, policyCID string, domainLower, domainUpper float64, opts RenderOptions) (*Document, error) {
	out, id, err := RenderWithCID(rep, policyCID, domainLower, domainUpper, opts)
	if err != nil {
		return nil, err
	}
	return &Document{Bytes: out, CID: id}, nil
}
