// Command veribound is the boundary classification and seal verification
// CLI.
//
// Exit codes:
//
//	0  success
//	2  verification-domain failure (seal mismatch, malformed record,
//	   invalid input, unsound boundary policy)
//	1  usage errors and operational I/O failures
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/attest"
	"github.com/dhwcmoore/veribound-mvp/basel"
	"github.com/dhwcmoore/veribound-mvp/bdl"
	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/cidutil"
	"github.com/dhwcmoore/veribound-mvp/compliance"
	"github.com/dhwcmoore/veribound-mvp/cvr"
	"github.com/dhwcmoore/veribound-mvp/keys"
	"github.com/dhwcmoore/veribound-mvp/report"
	"github.com/dhwcmoore/veribound-mvp/seal"
	"github.com/dhwcmoore/veribound-mvp/storage"
	"github.com/dhwcmoore/veribound-mvp/storage/bundle"
	"github.com/dhwcmoore/veribound-mvp/storage/casconfig"
	"github.com/dhwcmoore/veribound-mvp/storage/casregistry"
	"github.com/dhwcmoore/veribound-mvp/storage/grpcvault"

	// Storage backends register themselves with casregistry.
	_ "github.com/dhwcmoore/veribound-mvp/storage/ipfs"
	_ "github.com/dhwcmoore/veribound-mvp/storage/localfs"
	_ "github.com/dhwcmoore/veribound-mvp/storage/memcas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 1
	}

	switch args[0] {
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "check":
		return cmdCheck(args[1:], out, errOut)
	case "classify":
		return cmdClassify(args[1:], out, errOut)
	case "seal":
		return cmdSeal(args[1:], out, errOut)
	case "record-cid":
		return cmdRecordCID(args[1:], out, errOut)
	case "attest":
		return cmdAttest(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "vault":
		return cmdVault(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "veribound: boundary classification and seal verification CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  veribound verify <sealed-record-file>")
	fmt.Fprintln(w, "  veribound verify basel [--policy <file.bdl>] [--mode permissive|strict] [--out-dir <dir>] <input.json>")
	fmt.Fprintln(w, "  veribound check --policy <file.bdl> [--engine-id <id>] [signer flags]")
	fmt.Fprintln(w, "  veribound classify [--policy <file.bdl>] [--mode permissive|strict] <value>")
	fmt.Fprintln(w, "  veribound seal <results.json>")
	fmt.Fprintln(w, "  veribound record-cid <file>")
	fmt.Fprintln(w, "  veribound attest --subject <CID> --description <text> --type <t> (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>) [--claim Key=Value ...]")
	fmt.Fprintln(w, "  veribound key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  veribound key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  veribound key list")
	fmt.Fprintln(w, "  veribound key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  veribound vault put (--target <addr> | --config <cas.json> | --backend <name>) <file>")
	fmt.Fprintln(w, "  veribound vault get (--target <addr> | --config <cas.json> | --backend <name>) <CID>")
	fmt.Fprintln(w, "  veribound vault verify (--target <addr> | --config <cas.json> | --backend <name>) <CID>")
	fmt.Fprintln(w, "  veribound bundle export (--config <cas.json> | --backend <name>) --out <file> [--label name=CID ...] <CID> [...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - verify basel runs the full pipeline: validate, compute, classify,")
	fmt.Fprintln(w, "    seal, persist, reload, verify")
	fmt.Fprintln(w, "  - without --policy, the built-in Basel III CET1 reference bands apply")
	fmt.Fprintln(w, "  - the seal hash proves integrity only; attest adds authenticity")
	fmt.Fprintln(w, "  - keys are stored under ~/.veribound/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - vault verify with --target asks the vault daemon to verify the")
	fmt.Fprintln(w, "    record it actually holds")
}

// loadPolicySet loads a boundary set and its domain either from a BDL
// policy file or from the built-in reference bands.
func loadPolicySet(policyPath string, mode compliance.Mode) (*boundary.Set, float64, float64, error) {
	if policyPath == "" {
		set, err := boundary.Build(basel.ReferencePolicy())
		if err != nil {
			return nil, 0, 0, err
		}
		return set, basel.ReferenceDomainLower, basel.ReferenceDomainUpper, nil
	}
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read policy: %w", err)
	}
	policy, err := bdl.ParseWithCompliance(data, mode)
	if err != nil {
		return nil, 0, 0, err
	}
	set, err := policy.BuildSet()
	if err != nil {
		return nil, 0, 0, err
	}
	return set, policy.Domain.Lower, policy.Domain.Upper, nil
}

func parseModeFlag(s string, errOut io.Writer) (compliance.Mode, bool) {
	mode, ok := compliance.ParseMode(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		fmt.Fprintln(errOut, "invalid --mode (expected permissive or strict)")
	}
	return mode, ok
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) > 0 && args[0] == "basel" {
		return cmdVerifyBasel(args[1:], out, errOut)
	}

	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound verify <sealed-record-file>")
		return 1
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}

	verdict, err := seal.VerifyBytes(data)
	if err != nil {
		fmt.Fprintf(errOut, "malformed sealed record: %v\n", err)
		return 2
	}
	fmt.Fprintf(out, "%s\n", verdict.Message)
	fmt.Fprintf(out, "Stored-Hash: %s\n", verdict.StoredHash)
	if verdict.ComputedHash != "" {
		fmt.Fprintf(out, "Computed-Hash: %s\n", verdict.ComputedHash)
	}
	if !verdict.OK {
		return 2
	}
	return 0
}

func cmdVerifyBasel(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify basel", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var policyPath string
	var modeStr string
	var outDir string
	fs.StringVar(&policyPath, "policy", "", "Boundary policy file (default: built-in reference bands)")
	fs.StringVar(&modeStr, "mode", "", "Compliance mode: permissive or strict")
	fs.StringVar(&outDir, "out-dir", "", "Directory for the persisted sealed record (default: temp dir)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound verify basel [--policy <file.bdl>] [--mode permissive|strict] [--out-dir <dir>] <input.json>")
		return 1
	}

	mode, ok := parseModeFlag(modeStr, errOut)
	if !ok {
		return 1
	}
	set, lo, hi, err := loadPolicySet(policyPath, mode)
	if err != nil {
		fmt.Fprintf(errOut, "invalid policy: %v\n", err)
		return 2
	}

	if outDir == "" {
		outDir, err = os.MkdirTemp("", "veribound-records-")
		if err != nil {
			fmt.Fprintf(errOut, "temp dir: %v\n", err)
			return 1
		}
	}

	pipeline, err := report.New(set, lo, hi, mode, report.FilePersister{Dir: outDir})
	if err != nil {
		fmt.Fprintf(errOut, "unsound boundary policy: %v\n", err)
		return 2
	}

	input, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}

	runRec, err := pipeline.RunBasel(input)
	if err != nil {
		fmt.Fprintf(errOut, "pipeline failed at %s: %v\n", runRec.Stage, err)
		if report.IsCode(err, report.ErrPersist) ||
			report.IsCode(err, report.ErrReload) ||
			report.IsCode(err, report.ErrInternal) {
			return 1
		}
		return 2
	}

	fmt.Fprintf(out, "Run-ID: %s\n", runRec.ID)
	fmt.Fprintf(out, "CET1-Ratio: %s%%\n", strconv.FormatFloat(runRec.Results.RatioPercent(), 'g', -1, 64))
	fmt.Fprintf(out, "Status: %s\n", runRec.Results.Status)
	fmt.Fprintf(out, "Category: %s\n", runRec.Outcome.Label())
	fmt.Fprintf(out, "Seal-Hash: %s\n", runRec.Record.SealHash)
	fmt.Fprintf(out, "Record: %s\n", runRec.Location)
	fmt.Fprintf(out, "%s\n", runRec.Verdict.Message)
	return 0
}

func cmdCheck(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var policyPath string
	var engineID string
	var seedHex string
	var signerName string
	var signerRole string
	var keyFile string
	fs.StringVar(&policyPath, "policy", "", "Boundary policy file")
	fs.StringVar(&engineID, "engine-id", "", "Engine-ID recorded in the verification report")
	fs.StringVar(&seedHex, "seed-hex", "", "Sign the report with an ed25519 seed (64 hex chars)")
	fs.StringVar(&signerName, "signer", "", "Sign the report with a stored key by name")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Sign the report with a seed file created by 'veribound key'")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if policyPath == "" {
		fmt.Fprintln(errOut, "missing --policy")
		return 1
	}
	data, err := os.ReadFile(policyPath)
	if err != nil {
		fmt.Fprintf(errOut, "read policy: %v\n", err)
		return 1
	}
	policy, err := bdl.Parse(data)
	if err != nil {
		fmt.Fprintf(errOut, "invalid policy: %v\n", err)
		return 2
	}
	rep, err := policy.Verify()
	if err != nil {
		fmt.Fprintf(errOut, "invalid policy: %v\n", err)
		return 2
	}

	opts := cvr.RenderOptions{EngineID: engineID}
	if seedHex != "" || signerName != "" || keyFile != "" {
		ks, kerr := keys.CreateKeyStore("")
		if kerr != nil {
			fmt.Fprintf(errOut, "keys: %v\n", kerr)
			return 1
		}
		seed, serr := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
		if serr != nil {
			fmt.Fprintf(errOut, "invalid signer: %v\n", serr)
			return 1
		}
		priv := ed25519.NewKeyFromSeed(seed)
		opts.PrivateKey = priv
		opts.EngineKey = cvr.EngineKeyField(priv.Public().(ed25519.PublicKey))
	}

	cvrBytes, cvrCID, err := cvr.RenderSignedWithCID(rep, bdl.PolicyCID(data), policy.Domain.Lower, policy.Domain.Upper, opts)
	if err != nil {
		fmt.Fprintf(errOut, "render report: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "CVR-CID: %s\n", cvrCID)
	_, _ = out.Write(cvrBytes)
	if !rep.Passed() {
		return 2
	}
	return 0
}

func cmdClassify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var policyPath string
	var modeStr string
	fs.StringVar(&policyPath, "policy", "", "Boundary policy file (default: built-in reference bands)")
	fs.StringVar(&modeStr, "mode", "", "Compliance mode: permissive or strict")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound classify [--policy <file.bdl>] [--mode permissive|strict] <value>")
		return 1
	}
	value, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		fmt.Fprintf(errOut, "invalid value %q: %v\n", fs.Arg(0), err)
		return 1
	}

	mode, ok := parseModeFlag(modeStr, errOut)
	if !ok {
		return 1
	}
	set, lo, hi, err := loadPolicySet(policyPath, mode)
	if err != nil {
		fmt.Fprintf(errOut, "invalid policy: %v\n", err)
		return 2
	}
	if rep := set.Verify(lo, hi); !rep.Passed() {
		fmt.Fprintf(errOut, "unsound boundary policy: %v\n", rep.Err())
		return 2
	}

	outcome, err := compliance.Judge(mode, set.Classify(value))
	if err != nil {
		fmt.Fprintf(errOut, "classify: %v\n", err)
		return 2
	}
	fmt.Fprintf(out, "%s\n", outcome.Label())
	return 0
}

func cmdSeal(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound seal <results.json>")
		return 1
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	rec, err := seal.SealJSON(data)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 2
	}
	encoded, err := seal.EncodeRecord(rec)
	if err != nil {
		fmt.Fprintf(errOut, "encode record: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Seal-Hash: %s\n", rec.SealHash)
	_, _ = out.Write(encoded)
	return 0
}

func cmdRecordCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("record-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound record-cid <file>")
		return 1
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cidutil.CIDv1RawSHA256(data))
	return 0
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var subjectCID string
	var description string
	var seedHex string
	var signerName string
	var signerRole string
	var keyFile string
	var claimType string
	var role string
	var claimsKV stringList
	var printIssuerKey bool

	fs.StringVar(&subjectCID, "subject", "", "Subject CID (sealed record or policy)")
	fs.StringVar(&description, "description", "", "Subject description")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'veribound key init')")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, optionally use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file created by 'veribound key init/derive'")
	fs.StringVar(&claimType, "type", "", "Core claim Type (e.g. verification, approval)")
	fs.StringVar(&role, "role", "", "Core claim Role")
	fs.Var(&claimsKV, "claim", "Claim key/value as Key=Value (repeatable)")
	fs.BoolVar(&printIssuerKey, "print-issuer-key", true, "Print Issuer-Key to stderr")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if subjectCID == "" {
		fmt.Fprintln(errOut, "missing --subject")
		return 1
	}
	if description == "" {
		fmt.Fprintln(errOut, "missing --description")
		return 1
	}
	if seedHex == "" && signerName == "" && keyFile == "" {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex, --signer, or --key-file")
		return 1
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return 1
	}
	if signerName != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --signer cannot be combined with --key-file")
		return 1
	}

	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 1
	}
	priv := ed25519.NewKeyFromSeed(seed)
	issuerKey := keys.GenerateIssuerKeyFromSeed(seed)
	if printIssuerKey {
		fmt.Fprintf(errOut, "Issuer-Key: %s\n", issuerKey)
	}

	claims, err := parseKVClaims(claimsKV)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --claim: %v\n", err)
		return 1
	}
	if claimType != "" {
		if existing := claims["Type"]; existing != "" && existing != claimType {
			fmt.Fprintf(errOut, "conflicting Type: --type=%q vs --claim Type=%q\n", claimType, existing)
			return 1
		}
		claims["Type"] = claimType
	}
	if role != "" {
		if existing := claims["Role"]; existing != "" && existing != role {
			fmt.Fprintf(errOut, "conflicting Role: --role=%q vs --claim Role=%q\n", role, existing)
			return 1
		}
		claims["Role"] = role
	}
	if claims["Type"] == "" {
		fmt.Fprintln(errOut, "missing required claim: Type (use --type ... or --claim Type=...)")
		return 1
	}

	doc := attest.Document{
		Meta:    map[string]string{"Spec": "veribound-att-1", "Version": "1"},
		Subject: map[string]string{"CID": subjectCID, "Description": description},
		Claims:  claims,
		Crypto: map[string]string{
			"Hash-Alg":      "sha256",
			"Issuer-Key":    issuerKey,
			"Signature":     "0",
			"Signature-Alg": "ed25519",
		},
	}

	pre, err := attest.Render(doc)
	if err != nil {
		fmt.Fprintf(errOut, "render pre: %v\n", err)
		return 1
	}
	parsed, err := attest.Parse(pre)
	if err != nil {
		fmt.Fprintf(errOut, "parse pre: %v\n", err)
		return 1
	}

	doc.Crypto["Signature"] = keys.SignEd25519SHA256(parsed.SignedBytes(), priv)
	finalBytes, err := attest.Render(doc)
	if err != nil {
		fmt.Fprintf(errOut, "render final: %v\n", err)
		return 1
	}
	finalAtt, err := attest.Parse(finalBytes)
	if err != nil {
		fmt.Fprintf(errOut, "parse final: %v\n", err)
		return 1
	}
	if err := finalAtt.Verify(); err != nil {
		fmt.Fprintf(errOut, "verify final: %v\n", err)
		return 2
	}
	if err := attest.ValidateCoreClaims(finalAtt); err != nil {
		fmt.Fprintf(errOut, "invalid core claims: %v\n", err)
		return 2
	}

	attCID, err := finalAtt.CID()
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Attestation-CID: %s\n", attCID)
	_, _ = out.Write(finalBytes)
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 1
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 1
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "veribound key: minimal local key management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  veribound key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  veribound key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  veribound key list")
	fmt.Fprintln(w, "  veribound key export --name <name> [--role <role>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool
	fs.StringVar(&name, "name", "", "Key name (directory under ~/.veribound/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible setups)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 1
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 1
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 1
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	issuerKey, rootPath, err := ks.InitializeRootKey(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", issuerKey)
	fmt.Fprintf(out, "Stored at: %s\n", rootPath)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var role string
	var force bool
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. analyst, auditor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 1
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 1
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 1
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 1
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	issuerKey, rolePath, err := ks.DeriveKeyFromRole(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", issuerKey)
	fmt.Fprintf(out, "Stored at: %s\n", rolePath)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var role string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (if set, exports derived role key)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 1
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 1
	}
	if role != "" {
		if err := keys.CheckRole(role); err != nil {
			fmt.Fprintf(errOut, "invalid --role: %v\n", err)
			return 1
		}
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	issuerKey, err := ks.ExportKey(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, issuerKey)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Identifier)
		for _, r := range e.Permissions {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}

// vaultConn selects where vault subcommands store and fetch records:
// a running vault daemon (--target), a multi-backend CAS config file
// (--config), or a directly opened registry backend (--backend).
type vaultConn struct {
	target     string
	configPath string
	backend    string
	timeout    time.Duration
}

func addVaultFlags(fs *flag.FlagSet) *vaultConn {
	vc := &vaultConn{}
	fs.StringVar(&vc.target, "target", "", "veribound-vaultd gRPC address (e.g. 127.0.0.1:7777)")
	fs.StringVar(&vc.configPath, "config", "", "CAS config JSON (multi-backend)")
	fs.StringVar(&vc.backend, "backend", "", "Storage backend to open directly (see backend flags)")
	fs.DurationVar(&vc.timeout, "timeout", 30*time.Second, "Per-RPC timeout when using --target")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
	return vc
}

// open returns the selected CAS. The gRPC client is returned separately
// when --target is in use, so verify can ask the daemon rather than
// re-verifying client-side.
func (vc *vaultConn) open(errOut io.Writer) (storage.CAS, func() error, *grpcvault.Client, bool) {
	selected := 0
	for _, s := range []string{vc.target, vc.configPath, vc.backend} {
		if s != "" {
			selected++
		}
	}
	if selected != 1 {
		fmt.Fprintln(errOut, "select exactly one of --target, --config, --backend")
		return nil, nil, nil, false
	}

	switch {
	case vc.target != "":
		client, err := grpcvault.Dial(vc.target, grpcvault.DialOptions{})
		if err != nil {
			fmt.Fprintf(errOut, "dial %s: %v\n", vc.target, err)
			return nil, nil, nil, false
		}
		client.Timeout = vc.timeout
		return client, client.Close, client, true
	case vc.configPath != "":
		cfg, err := casconfig.LoadFile(vc.configPath)
		if err != nil {
			fmt.Fprintf(errOut, "load --config: %v\n", err)
			return nil, nil, nil, false
		}
		cas, closer, err := cfg.Open(casregistry.UsageCLI, "")
		if err != nil {
			fmt.Fprintf(errOut, "open storage: %v\n", err)
			return nil, nil, nil, false
		}
		return cas, closer, nil, true
	default:
		cas, closer, err := casregistry.Open(vc.backend, casregistry.UsageCLI)
		if err != nil {
			fmt.Fprintf(errOut, "open backend %s: %v\n", vc.backend, err)
			return nil, nil, nil, false
		}
		return cas, closer, nil, true
	}
}

func cmdVault(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: veribound vault <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, verify")
		return 1
	}
	switch args[0] {
	case "put":
		return cmdVaultPut(args[1:], out, errOut)
	case "get":
		return cmdVaultGet(args[1:], out, errOut)
	case "verify":
		return cmdVaultVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown vault subcommand: %s\n", args[0])
		return 1
	}
}

func cmdVaultPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	vc := addVaultFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound vault put (--target <addr> | --config <cas.json> | --backend <name>) <file>")
		return 1
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}

	cas, closer, _, ok := vc.open(errOut)
	if !ok {
		return 1
	}
	defer func() { _ = closer() }()

	id, err := cas.Put(data)
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdVaultGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	vc := addVaultFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound vault get (--target <addr> | --config <cas.json> | --backend <name>) <CID>")
		return 1
	}
	id, err := cid.Decode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid CID: %v\n", err)
		return 1
	}

	cas, closer, _, ok := vc.open(errOut)
	if !ok {
		return 1
	}
	defer func() { _ = closer() }()

	data, err := cas.Get(id)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	_, _ = out.Write(data)
	return 0
}

func cmdVaultVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("vault verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	vc := addVaultFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: veribound vault verify (--target <addr> | --config <cas.json> | --backend <name>) <CID>")
		return 1
	}
	id, err := cid.Decode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid CID: %v\n", err)
		return 1
	}

	cas, closer, client, ok := vc.open(errOut)
	if !ok {
		return 1
	}
	defer func() { _ = closer() }()

	var verdict seal.Verdict
	if client != nil {
		verdict, err = client.VerifyRecord(id)
	} else {
		verdict, err = storage.VerifyRecord(cas, id)
	}
	if err != nil {
		if storage.IsNotFound(err) {
			fmt.Fprintf(errOut, "verify: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 2
	}
	fmt.Fprintf(out, "%s\n", verdict.Message)
	fmt.Fprintf(out, "Stored-Hash: %s\n", verdict.StoredHash)
	if verdict.ComputedHash != "" {
		fmt.Fprintf(out, "Computed-Hash: %s\n", verdict.ComputedHash)
	}
	if !verdict.OK {
		return 2
	}
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: veribound bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export")
		return 1
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 1
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var outPath string
	var labelsKV stringList
	vc := addVaultFlags(fs)
	fs.StringVar(&outPath, "out", "", "Output bundle file (TAR)")
	fs.Var(&labelsKV, "label", "Bundle label as name=CID (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: veribound bundle export (--config <cas.json> | --backend <name>) --out <file> [--label name=CID ...] <CID> [...]")
		return 1
	}

	ids := make([]cid.Cid, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := cid.Decode(arg)
		if err != nil {
			fmt.Fprintf(errOut, "invalid CID %q: %v\n", arg, err)
			return 1
		}
		ids = append(ids, id)
	}

	labels := make(map[string]cid.Cid, len(labelsKV))
	for _, kv := range labelsKV {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			fmt.Fprintf(errOut, "invalid --label %q (expected name=CID)\n", kv)
			return 1
		}
		id, err := cid.Decode(value)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --label CID %q: %v\n", value, err)
			return 1
		}
		labels[name] = id
	}

	cas, closer, _, ok := vc.open(errOut)
	if !ok {
		return 1
	}
	defer func() { _ = closer() }()

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
		return 1
	}
	if err := bundle.Export(f, cas, ids, bundle.ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "close %s: %v\n", outPath, err)
		return 1
	}
	fmt.Fprintf(out, "Exported %d block(s) to %s\n", len(ids), outPath)
	return 0
}

func parseKVClaims(items []string) (map[string]string, error) {
	claims := make(map[string]string)
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		if !ok {
			return nil, fmt.Errorf("expected Key=Value, got %q", it)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("empty key in %q", it)
		}
		if _, exists := claims[k]; exists {
			return nil, fmt.Errorf("duplicate claim key %q", k)
		}
		claims[k] = v
	}
	return claims, nil
}
