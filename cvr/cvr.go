// Package cvr implements the Canonical Verification Report (CVR), the
// evidence format that binds a boundary policy's well-formedness findings
// to the policy they were produced from.
package cvr

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dhwcmoore/veribound-mvp/boundary"
)

const (
	Preamble  = "-----BEGIN VERIBOUND VERIFICATION REPORT-----"
	Postamble = "-----END VERIBOUND VERIFICATION REPORT-----"
)

type RenderOptions struct {
	EngineID   string
	VerifiedAt time.Time // informational only; zero means omit

	// Optional CVR supersession.
	// If set, the CVR asserts it supersedes a prior CVR identified by CID.
	SupersedesCVRCID string

	// Optional CVR signing. If PrivateKey is set, the output will include a
	// populated CRYPTO section with Signature computed over the CVR bytes
	// excluding the Signature: line.
	EngineKey  string
	PrivateKey ed25519.PrivateKey
}

// Render produces a canonical CVR document binding a well-formedness
// report to the policy it judged. Sections are always present and
// ordering is deterministic; check records keep execution order, which is
// itself deterministic.
func Render(rep *boundary.Report, policyCID string, domainLower, domainUpper float64, opts RenderOptions) []byte {
	engineID := opts.EngineID
	if engineID == "" {
		engineID = "veribound-engine-reference"
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString("\n")

	// META
	sb.WriteString("META\n")
	metaLines := []string{
		"Engine-ID: " + engineID,
		"Spec: veribound-cvr-1",
		"Version: 1",
	}
	if !opts.VerifiedAt.IsZero() {
		metaLines = append(metaLines, "Verified-At: "+opts.VerifiedAt.UTC().Format(time.RFC3339))
	}
	if opts.SupersedesCVRCID != "" {
		metaLines = append(metaLines, "Supersedes-CVR-CID: "+opts.SupersedesCVRCID)
	}
	sort.Strings(metaLines)
	for _, l := range metaLines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	// INPUTS
	sb.WriteString("INPUTS\n")
	sb.WriteString("Policy-CID: ")
	sb.WriteString(policyCID)
	sb.WriteString("\n\n")

	// RESULT
	sb.WriteString("RESULT\n")
	outcome := "Failed"
	if rep.Passed() {
		outcome = "Passed"
	}
	resultLines := []string{
		"Checks-Failed: " + strconv.Itoa(len(rep.Failures())),
		"Checks-Total: " + strconv.Itoa(len(rep.Findings)),
		"Domain-Lower: " + fmtNum(domainLower),
		"Domain-Upper: " + fmtNum(domainUpper),
		"Outcome: " + outcome,
	}
	sort.Strings(resultLines)
	for _, l := range resultLines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	// CHECKS
	sb.WriteString("CHECKS\n")
	for _, f := range rep.Findings {
		sb.WriteString("Check-ID: ")
		sb.WriteString(f.CheckID)
		sb.WriteString("\nName: ")
		sb.WriteString(f.Name)
		sb.WriteString("\nPassed: ")
		if f.Passed {
			sb.WriteString("true\n")
		} else {
			sb.WriteString("false\n")
		}
		if f.Detail != "" {
			sb.WriteString("Detail: ")
			sb.WriteString(f.Detail)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	// CRYPTO (empty unless signing was requested)
	sb.WriteString("CRYPTO\n")
	cryptoLines := []string{}
	if opts.EngineKey != "" {
		cryptoLines = append(cryptoLines,
			"Engine-Key: "+opts.EngineKey,
			"Hash-Alg: sha256",
			"Signature-Alg: ed25519",
			"Signature: 0",
		)
	}
	sort.Strings(cryptoLines)
	for _, l := range cryptoLines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(Postamble)
	sb.WriteString("\n")
	out := []byte(sb.String())

	if len(opts.PrivateKey) > 0 && opts.EngineKey != "" {
		sig, err := signCVR(out, opts.PrivateKey)
		if err == nil {
			out = []byte(strings.Replace(string(out), "Signature: 0", "Signature: "+sig, 1))
		}
	}

	return out
}

// RenderSigned renders a CVR with a required ed25519 signature.
//
// Unlike Render, this fails explicitly if signing cannot be performed or
// the produced signature does not verify.
func RenderSigned(rep *boundary.Report, policyCID string, domainLower, domainUpper float64, opts RenderOptions) ([]byte, error) {
	if opts.EngineKey == "" || len(opts.PrivateKey) == 0 {
		return nil, errors.New("signing requires EngineKey and PrivateKey")
	}
	out := Render(rep, policyCID, domainLower, domainUpper, opts)
	ok, err := VerifySignature(out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("rendered CVR is unsigned")
	}
	return out, nil
}

func signCVR(cvrBytes []byte, privateKey ed25519.PrivateKey) (string, error) {
	scope, err := cvrSignatureScope(cvrBytes)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(scope)
	sig := ed25519.Sign(privateKey, digest[:])
	return base64.StdEncoding.EncodeToString(sig), nil
}

func cvrSignatureScope(cvrBytes []byte) ([]byte, error) {
	lines := strings.Split(string(cvrBytes), "\n")
	var out []string
	removed := false
	for _, l := range lines {
		if strings.HasPrefix(l, "Signature: ") {
			if removed {
				return nil, errors.New("multiple Signature lines")
			}
			removed = true
			continue
		}
		out = append(out, l)
	}
	if !removed {
		return nil, errors.New("missing Signature line")
	}
	return []byte(strings.Join(out, "\n")), nil
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
