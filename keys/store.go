package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is the local signer store behind the veribound CLI: Ed25519
// seeds on disk, one directory per root key, role keys derived from the
// root seed.
//
// Layout under Directory:
//
//	<name>/root.key          hex seed, 0600
//	<name>/roles/<role>.key  derived hex seed, 0600
//
// The store is a convenience for attesting from a workstation; it is not
// part of the verification protocol.
type KeyStore struct {
	Directory string
}

// KeyEntry describes one stored root key and the roles derived from it.
type KeyEntry struct {
	Identifier  string
	Permissions []string
}

// GetDefaultDirectory returns ~/.veribound/keys.
func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".veribound", "keys"), nil
}

// CreateKeyStore opens a store rooted at directory, defaulting to
// GetDefaultDirectory. The directory is created lazily on first write.
func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) getRootKeyFilePath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) getRoleKeyFilePath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".key")
}

// checkToken restricts names that become path components. Anything
// outside [A-Za-z0-9_-] is rejected so a name can never escape the store
// directory.
func checkToken(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid character %q in %s", r, kind)
		}
	}
	return nil
}

// CheckKeyName validates a root key name.
func CheckKeyName(identifier string) error {
	return checkToken("identifier", identifier)
}

// CheckRole validates a role name.
func CheckRole(role string) error {
	return checkToken("role", role)
}

// ParseSeedHex decodes a 32-byte Ed25519 seed from hex, tolerating
// surrounding whitespace and an 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeedToFile(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	// O_EXCL unless the caller explicitly forces: silently replacing a
	// seed would orphan every attestation signed with the old key.
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeedFromFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitializeRootKey stores seed as a new root key and returns its issuer
// key string and file path.
func (ks *KeyStore) InitializeRootKey(identifier string, seed []byte, overwrite bool) (issuerKey string, filePath string, err error) {
	if err := CheckKeyName(identifier); err != nil {
		return "", "", err
	}
	filePath = ks.getRootKeyFilePath(identifier)
	if err := ks.saveSeedToFile(filePath, seed, overwrite); err != nil {
		return "", "", err
	}
	return GenerateIssuerKeyFromSeed(seed), filePath, nil
}

// DeriveKeyFromRole derives and stores a role key from the named root
// key. Derivation is deterministic, so re-deriving after deleting the
// file yields the same key.
func (ks *KeyStore) DeriveKeyFromRole(from, role string, overwrite bool) (issuerKey string, filePath string, err error) {
	if err := CheckKeyName(from); err != nil {
		return "", "", err
	}
	if err := CheckRole(role); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.loadSeedFromFile(ks.getRootKeyFilePath(from))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	filePath = ks.getRoleKeyFilePath(from, role)
	if err := ks.saveSeedToFile(filePath, roleSeed, overwrite); err != nil {
		return "", "", err
	}
	return GenerateIssuerKeyFromSeed(roleSeed), filePath, nil
}

// ExportKey returns the issuer key string for a stored root key, or for
// its derived role key when role is non-empty. The seed itself never
// leaves the store.
func (ks *KeyStore) ExportKey(identifier string, role string) (string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return "", err
	}
	path := ks.getRootKeyFilePath(identifier)
	if role != "" {
		if err := CheckRole(role); err != nil {
			return "", err
		}
		path = ks.getRoleKeyFilePath(identifier, role)
	}
	seed, err := ks.loadSeedFromFile(path)
	if err != nil {
		return "", err
	}
	return GenerateIssuerKeyFromSeed(seed), nil
}

// LoadSeed resolves a signer from exactly one of an inline hex seed, a
// stored key name (optionally with a role), or a seed file path. Callers
// enforce that the sources are not combined.
func (ks *KeyStore) LoadSeed(seedHex, signerName, signerRole, keyFile string) ([]byte, error) {
	switch {
	case seedHex != "":
		return ParseSeedHex(seedHex)
	case keyFile != "":
		return ks.loadSeedFromFile(keyFile)
	case signerName != "":
		if err := CheckKeyName(signerName); err != nil {
			return nil, err
		}
		if signerRole == "" {
			return ks.loadSeedFromFile(ks.getRootKeyFilePath(signerName))
		}
		if err := CheckRole(signerRole); err != nil {
			return nil, err
		}
		return ks.loadSeedFromFile(ks.getRoleKeyFilePath(signerName, signerRole))
	default:
		return nil, errors.New("no signer provided")
	}
}

// ListKeys enumerates stored root keys and their derived roles, both
// sorted. A store directory that does not exist yet lists as empty.
func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var result []KeyEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result = append(result, KeyEntry{
			Identifier:  entry.Name(),
			Permissions: ks.listRoles(entry.Name()),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identifier < result[j].Identifier })
	return result, nil
}

func (ks *KeyStore) listRoles(identifier string) []string {
	roleEntries, err := os.ReadDir(filepath.Join(ks.Directory, identifier, "roles"))
	if err != nil {
		return nil
	}
	var roles []string
	for _, e := range roleEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".key") {
			continue
		}
		roles = append(roles, strings.TrimSuffix(e.Name(), ".key"))
	}
	sort.Strings(roles)
	return roles
}
