package bdl

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

// Render produces the canonical byte representation of a policy: META
// keys sorted, DOMAIN fields in fixed order, bands in declaration order.
// Render output always parses back under Parse.
func Render(p *Policy) []byte {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\nMETA\n")
	keys := make([]string, 0, len(p.Meta))
	for k := range p.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(p.Meta[k])
		b.WriteString("\n")
	}
	b.WriteString("\nDOMAIN\n")
	b.WriteString("Lower: ")
	b.WriteString(fmtNum(p.Domain.Lower))
	b.WriteString("\nUpper: ")
	b.WriteString(fmtNum(p.Domain.Upper))
	b.WriteString("\n")
	if p.Domain.Unit != "" {
		b.WriteString("Unit: ")
		b.WriteString(p.Domain.Unit)
		b.WriteString("\n")
	}
	b.WriteString("\nBANDS\n")
	for i, band := range p.Bands {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Band:\n  Lower: ")
		b.WriteString(fmtNum(band.Lower))
		b.WriteString("\n  Upper: ")
		b.WriteString(fmtNum(band.Upper))
		b.WriteString("\n  Category: ")
		b.WriteString(band.Category)
		b.WriteString("\n")
	}
	b.WriteString(postamble)
	b.WriteString("\n")
	return []byte(b.String())
}

// PolicyCID returns the CIDv1 identity of a policy's exact bytes.
func PolicyCID(data []byte) string {
	return cidutil.CIDv1RawSHA256(data)
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
