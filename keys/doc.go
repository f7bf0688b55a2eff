// Package keys provides the key management helpers used by the VeriBound
// engine: issuer-key formatting, deterministic role-seed derivation, and a
// local filesystem key store.
//
// Stable:
//   - Pure, deterministic primitives for issuer-key formatting and role-seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage and convenience helpers (KeyStore and related functions).
//     These are local-first utilities and are not part of the long-term protocol contract.
package keys
