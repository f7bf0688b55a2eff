package report

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/dhwcmoore/veribound-mvp/storage"
)

// Persister is the narrow effect boundary the pipeline persists through.
// Save returns a location usable with Load; the pipeline treats it as
// opaque. Implementations must hand back the stored bytes bit-for-bit:
// any whitespace or key reordering on the way through breaks seal
// verification, which is exactly what the reload-and-verify stage exists
// to catch.
type Persister interface {
	Save(name string, data []byte) (location string, err error)
	Load(location string) ([]byte, error)
}

// FilePersister writes records into a directory, one file per record.
type FilePersister struct {
	Dir string
}

// Save writes atomically: a temp file in the same directory, fsync, then
// rename. A crash mid-write leaves no partial record under the final name.
func (p FilePersister) Save(name string, data []byte) (string, error) {
	if p.Dir == "" {
		return "", errors.New("report: FilePersister has no directory")
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", err
	}
	final := filepath.Join(p.Dir, name)

	tmp, err := os.CreateTemp(p.Dir, name+".tmp-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	return final, nil
}

func (p FilePersister) Load(location string) ([]byte, error) {
	return os.ReadFile(location)
}

// CASPersister persists records into a content-addressed evidence store.
// Locations are CID strings, so the reload stage re-checks byte identity
// for free.
type CASPersister struct {
	CAS storage.CAS
}

func (p CASPersister) Save(name string, data []byte) (string, error) {
	_ = name // content-addressed: the CID is the name
	if p.CAS == nil {
		return "", errors.New("report: CASPersister has no CAS")
	}
	id, err := p.CAS.Put(data)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (p CASPersister) Load(location string) ([]byte, error) {
	if p.CAS == nil {
		return nil, errors.New("report: CASPersister has no CAS")
	}
	id, err := cid.Decode(location)
	if err != nil {
		return nil, storage.ErrInvalidCID
	}
	return p.CAS.Get(id)
}
