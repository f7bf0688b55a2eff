// Package bdl implements parsing for the Boundary Definition Language
// (BDL), the policy format that declares named category bands over a
// numeric domain.
package bdl

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/compliance"
)

// SpecID is the format identifier a policy's META section must declare.
const SpecID = "veribound-bdl-1"

const (
	preamble  = "-----BEGIN VERIBOUND BOUNDARY POLICY-----"
	postamble = "-----END VERIBOUND BOUNDARY POLICY-----"
)

type Policy struct {
	Meta   map[string]string
	Domain Domain
	// Bands in declaration order. Order matters: it is the final
	// tie-break when bands share identical bounds.
	Bands []Band
}

type Domain struct {
	Lower float64
	Upper float64
	Unit  string
}

type Band struct {
	Lower    float64
	Upper    float64
	Category string
}

// Parse parses a BDL policy from bytes.
//
// Byte rules are strict: no BOM, LF line endings only, no trailing
// whitespace, preamble on the first line. Structural rules are permissive
// where a default is safe; ParseStrict adds the well-formedness proof.
func Parse(data []byte) (*Policy, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for _, line := range lines {
		if n := len(line); n > 0 && (line[n-1] == ' ' || line[n-1] == '\t') {
			return nil, errors.New("trailing whitespace forbidden")
		}
	}
	if lines[0] != preamble {
		return nil, errors.New("missing BDL preamble")
	}
	last := len(lines) - 1
	for last > 0 && lines[last] == "" {
		last--
	}
	if lines[last] != postamble {
		return nil, errors.New("missing BDL postamble")
	}
	body := lines[1:last]

	p := &Policy{Meta: make(map[string]string)}
	var section string
	domainSeen := make(map[string]bool)

	i := 0
	for i < len(body) {
		line := strings.TrimSpace(body[i])
		if line == "" {
			i++
			continue
		}
		switch line {
		case "META", "DOMAIN", "BANDS":
			section = line
			i++
			continue
		}
		switch section {
		case "META":
			k, v, ok := splitField(line)
			if !ok {
				return nil, fmt.Errorf("malformed META line %q", line)
			}
			if _, dup := p.Meta[k]; dup {
				return nil, fmt.Errorf("duplicate META key %q", k)
			}
			p.Meta[k] = v
			i++
		case "DOMAIN":
			k, v, ok := splitField(line)
			if !ok {
				return nil, fmt.Errorf("malformed DOMAIN line %q", line)
			}
			if domainSeen[k] {
				return nil, fmt.Errorf("duplicate DOMAIN field %q", k)
			}
			switch k {
			case "Lower", "Upper":
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid DOMAIN %s: %q", k, v)
				}
				if k == "Lower" {
					p.Domain.Lower = f
				} else {
					p.Domain.Upper = f
				}
			case "Unit":
				p.Domain.Unit = v
			default:
				return nil, fmt.Errorf("unknown DOMAIN field %q", k)
			}
			domainSeen[k] = true
			i++
		case "BANDS":
			if line != "Band:" {
				return nil, fmt.Errorf("expected Band: block, got %q", line)
			}
			i++
			var b Band
			var haveLower, haveUpper, haveCategory bool
			for i < len(body) {
				l := strings.TrimSpace(body[i])
				if l == "" || l == "Band:" {
					break
				}
				k, v, ok := splitField(l)
				if !ok {
					return nil, fmt.Errorf("malformed Band line %q", l)
				}
				switch k {
				case "Lower":
					f, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return nil, fmt.Errorf("invalid Band Lower: %q", v)
					}
					b.Lower, haveLower = f, true
				case "Upper":
					f, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return nil, fmt.Errorf("invalid Band Upper: %q", v)
					}
					b.Upper, haveUpper = f, true
				case "Category":
					b.Category, haveCategory = v, true
				default:
					return nil, fmt.Errorf("unknown Band field %q", k)
				}
				i++
			}
			if !haveLower || !haveUpper || !haveCategory {
				return nil, errors.New("Band block missing Lower, Upper, or Category")
			}
			p.Bands = append(p.Bands, b)
		default:
			return nil, fmt.Errorf("content outside any section: %q", line)
		}
	}

	if p.Meta["Spec"] != SpecID {
		return nil, fmt.Errorf("META Spec must be %s", SpecID)
	}
	if !domainSeen["Lower"] || !domainSeen["Upper"] {
		return nil, errors.New("DOMAIN missing Lower or Upper")
	}
	if p.Domain.Lower > p.Domain.Upper {
		return nil, errors.New("DOMAIN Lower exceeds Upper")
	}
	return p, nil
}

// ParseStrict parses a policy and additionally requires it to prove
// well-formedness over its own declared domain: mutual exclusion,
// complete coverage, and classification soundness must all pass.
func ParseStrict(data []byte) (*Policy, error) {
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	rep, err := p.Verify()
	if err != nil {
		return nil, err
	}
	if !rep.Passed() {
		f := rep.Failures()[0]
		return nil, fmt.Errorf("policy failed well-formedness: %s", f.Detail)
	}
	return p, nil
}

// ParseWithCompliance parses with the given compliance mode: Strict maps
// to ParseStrict, Permissive to Parse.
func ParseWithCompliance(data []byte, mode compliance.Mode) (*Policy, error) {
	if mode == compliance.Strict {
		return ParseStrict(data)
	}
	return Parse(data)
}

// BuildSet validates the declared bands and builds the sorted set.
func (p *Policy) BuildSet() (*boundary.Set, error) {
	bands := make([]boundary.Boundary, 0, len(p.Bands))
	for _, b := range p.Bands {
		nb, err := boundary.New(b.Lower, b.Upper, b.Category)
		if err != nil {
			return nil, err
		}
		bands = append(bands, nb)
	}
	return boundary.Build(bands)
}

// Verify builds the band set and runs the well-formedness checks over the
// policy's declared domain.
func (p *Policy) Verify() (*boundary.Report, error) {
	set, err := p.BuildSet()
	if err != nil {
		return nil, err
	}
	return set.Verify(p.Domain.Lower, p.Domain.Upper), nil
}

func splitField(line string) (key, value string, ok bool) {
	kv := strings.SplitN(line, ": ", 2)
	if len(kv) != 2 || kv[0] == "" {
		return "", "", false
	}
	return kv[0], kv[1], true
}
