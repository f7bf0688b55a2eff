// Package bundle exports and imports audit bundles: deterministic TAR
// archives carrying sealed records, boundary policies, and verification
// reports for offline hand-off to a third-party auditor.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/cidutil"
	"github.com/dhwcmoore/veribound-mvp/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

// epoch0 normalizes TAR mod times so bundle bytes carry no wall-clock.
var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata mapping names to CIDs
	// (e.g. "record/2026-q3" or "policy/basel-cet1").
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes a deterministic TAR bundle containing the blocks for the
// given CIDs: entries in lexicographic CID order under blocks/, headers
// normalized, optionally followed by index.json.
//
// Every exported block is re-hashed and compared against its CID, so a
// corrupted store surfaces at export time, not at the auditor's desk.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}
	ordered, err := dedupeAndSort(ids)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	blocks := make([]indexBlock, 0, len(ordered))
	for _, id := range ordered {
		n, err := exportBlock(tw, cas, id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: id.String(), Size: n})
	}

	if opts.IncludeIndex {
		if err := writeIndex(tw, blocks, opts.Labels); err != nil {
			_ = tw.Close()
			return err
		}
	}
	return tw.Close()
}

func dedupeAndSort(ids []cid.Cid) ([]cid.Cid, error) {
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	ordered := make([]cid.Cid, 0, len(uniq))
	for _, id := range uniq {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })
	return ordered, nil
}

func exportBlock(tw *tar.Writer, cas storage.CAS, id cid.Cid) (int, error) {
	b, err := cas.Get(id)
	if err != nil {
		return 0, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return 0, err
	}
	if got.String() != id.String() {
		return 0, storage.ErrCIDMismatch
	}
	if err := writeFile(tw, "blocks/"+id.String(), b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func writeIndex(tw *tar.Writer, blocks []indexBlock, labels map[string]cid.Cid) error {
	idx := indexJSON{
		Version:   FormatVersion,
		CIDCodec:  "raw",
		Multihash: "sha2-256",
		Blocks:    blocks,
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("bundle: empty label key")
		}
		id := labels[name]
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		idx.Labels = append(idx.Labels, indexLabel{Name: name, CID: id.String()})
	}

	// indexJSON is structs and slices only, so encoding/json output is
	// already deterministic.
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", append(b, '\n'))
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Import reads a bundle from r and imports all blocks into cas.
//
// Default behavior is fail-closed: unknown entries cause an error.
// Use ImportWithOptions to allow ignoring unknown entries.
func Import(r io.Reader, cas storage.CAS) error {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions reads a bundle from r and imports all blocks into
// cas. A block is accepted only when its bytes hash to the CID in its
// entry name and the store files it under the same CID.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		// Non-authoritative metadata.
		if name == "index.json" || strings.HasPrefix(name, "manifests/") {
			_, _ = io.Copy(io.Discard, tr)
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return storage.ErrInvalidCID
		}
		if _, dup := seen[id.String()]; dup {
			return fmt.Errorf("bundle: duplicate block entry: %s", id.String())
		}
		seen[id.String()] = struct{}{}

		if err := importBlock(tr, cas, id); err != nil {
			return err
		}
	}
}

func importBlock(tr *tar.Reader, cas storage.CAS, id cid.Cid) error {
	payload, err := io.ReadAll(tr)
	if err != nil {
		return err
	}
	got, err := cidutil.CIDv1RawSHA256CID(payload)
	if err != nil {
		return err
	}
	if got.String() != id.String() {
		return storage.ErrCIDMismatch
	}
	putID, err := cas.Put(payload)
	if err != nil {
		return err
	}
	if putID.String() != id.String() {
		return storage.ErrCIDMismatch
	}
	return nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanTarPath normalizes an entry path and rejects anything that could
// escape the bundle root.
func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
