// Package casconfig loads the multi-backend evidence-store configuration:
// which backends to open, with what settings, and whether writes go to the
// first backend or replicate to all of them.
package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dhwcmoore/veribound-mvp/storage"
	"github.com/dhwcmoore/veribound-mvp/storage/casregistry"
)

// Config describes how to open one or more CAS backends via casregistry.
//
// Callers still need to link desired backend plugins via blank imports.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to all backends and require CID equality (see storage.ReplicatingCAS)
//
// Example:
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name":"localfs", "config":{"localfs-dir":"/var/lib/veribound/vault"}},
//	    {"name":"ipfs", "config":{"ipfs-bin":"ipfs"}}
//	  ]
//	}
//
// Config values are backend-specific; keys mirror the backend's CLI flag
// names.
type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name is the casregistry backend name to open (e.g. "grpc", "localfs", "mem").
	Name string `json:"name"`
	// ID is an optional stable alias used for identification and per-backend CID maps.
	// If empty, Name is used.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

// id is the effective identifier for a backend entry.
func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// LoadFile reads a JSON store config from path and validates it.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks structural requirements: at least one backend, named
// backends, unique effective IDs, and a known write policy.
func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if _, dup := seen[b.id()]; dup {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	if c.WritePolicy != "" && c.WritePolicy != "first" && c.WritePolicy != "all" {
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
	return nil
}

// reorderPreferred moves the backend matching name or ID to the front,
// keeping the relative order of the rest.
func reorderPreferred(backends []BackendConfig, preferred string) ([]BackendConfig, error) {
	out := append([]BackendConfig(nil), backends...)
	if preferred == "" {
		return out, nil
	}
	for i, b := range out {
		if b.Name != preferred && b.ID != preferred {
			continue
		}
		front := out[i]
		copy(out[1:i+1], out[:i])
		out[0] = front
		return out, nil
	}
	return nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
}

// Open opens a CAS per config.
//
// If preferredBackend is non-empty, backends are reordered so preferredBackend
// is first (and thus used for writes when WritePolicy=="first").
func (c Config) Open(usage casregistry.Usage, preferredBackend string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	ordered, err := reorderPreferred(c.Backends, preferredBackend)
	if err != nil {
		return nil, nil, err
	}

	var named []storage.NamedCAS
	var closers []func() error
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == "all" {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	fallback := make([]storage.CAS, 0, len(named))
	for _, n := range named {
		fallback = append(fallback, n.CAS)
	}
	return storage.MultiCAS{Adapters: fallback}, closeAll, nil
}
