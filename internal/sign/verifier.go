// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package sign implements the Signature Verifier: checking a detached
// signature over a manifest digest against a configured public key.
package sign

import (
	"bytes"
	"crypto"
	"fmt"
	"os"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"
	digest "github.com/opencontainers/go-digest"

	"github.com/otaflux/otaflux/internal/firmware"
)

// Verifier checks a detached signature over an OCI manifest digest
// against a PEM-encoded public key. It is disabled by default: a
// Verifier constructed with an empty key path always accepts, matching
// §4.2's "disabled unless cosign-pub-key-path is set" contract.
type Verifier struct {
	verifier signature.Verifier
}

// NewVerifier loads the PEM public key at path and builds a Verifier
// around it. An empty path returns a disabled Verifier whose Verify
// always succeeds. Both ECDSA and Ed25519 keys are supported, the same
// two key families the teacher's internal/lkm keygen produces for its
// own (JWT-based) attestation scheme.
func NewVerifier(path string) (*Verifier, error) {
	if path == "" {
		return &Verifier{}, nil
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, firmware.InvalidConfigError(fmt.Errorf("reading cosign public key %q: %w", path, err))
	}

	pub, err := cryptoutils.UnmarshalPEMToPublicKey(pemBytes)
	if err != nil {
		return nil, firmware.InvalidConfigError(fmt.Errorf("parsing cosign public key %q: %w", path, err))
	}

	v, err := signature.LoadVerifier(pub, crypto.SHA256)
	if err != nil {
		return nil, firmware.InvalidConfigError(fmt.Errorf("loading verifier for %q: %w", path, err))
	}

	return &Verifier{verifier: v}, nil
}

// Enabled reports whether a public key was configured.
func (v *Verifier) Enabled() bool {
	return v.verifier != nil
}

// Verify checks sig as a detached signature over manifestDigest's string
// form. It is a no-op success when the Verifier is disabled. On
// rejection it returns firmware.ErrSignatureInvalid.
func (v *Verifier) Verify(manifestDigest digest.Digest, sig []byte) error {
	if !v.Enabled() {
		return nil
	}

	message := bytes.NewReader([]byte(manifestDigest.String()))
	if err := v.verifier.VerifySignature(bytes.NewReader(sig), message); err != nil {
		return fmt.Errorf("%w: %v", firmware.ErrSignatureInvalid, err)
	}
	return nil
}
