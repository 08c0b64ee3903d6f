package cryptoutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SigningInput reproduces the exact bytes a signature is computed over:
// the JSON serialisation of data concatenated with the decimal string of
// counter. Both signer and verifier MUST derive this the same way.
func SigningInput(data json.RawMessage, counter uint64) []byte {
	counterStr := fmt.Sprintf("%d", counter)
	buf := make([]byte, 0, len(data)+len(counterStr))
	buf = append(buf, data...)
	buf = append(buf, counterStr...)
	return buf
}

// Sign produces an RSA-PSS/SHA-256 signature (maximum salt length) over
// serialize(data)+counter, base64-encoded for wire transmission.
func Sign(priv *rsa.PrivateKey, data json.RawMessage, counter uint64) (string, error) {
	digest := sha256.Sum256(SigningInput(data, counter))
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("sign envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks an RSA-PSS/SHA-256 signature against a single candidate
// public key.
func Verify(pub *rsa.PublicKey, data json.RawMessage, counter uint64, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	digest := sha256.Sum256(SigningInput(data, counter))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	}); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// VerifyAny checks a signature against a set of candidate public keys,
// as spec.md §4.1 requires: accept if any one verifies. It returns the
// index of the first key that verifies, or -1 with ErrNoKeyVerifies.
func VerifyAny(candidates []*rsa.PublicKey, data json.RawMessage, counter uint64, signatureB64 string) (int, error) {
	for i, pub := range candidates {
		if err := Verify(pub, data, counter, signatureB64); err == nil {
			return i, nil
		}
	}
	return -1, ErrNoKeyVerifies
}
