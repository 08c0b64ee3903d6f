package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// SymmKeyBytes is the length of the fresh AES-GCM key generated per
// private chat message (128 bits, per spec.md §4.1).
const SymmKeyBytes = 16

// NonceBytes is the length of the fresh GCM nonce generated per message.
const NonceBytes = 12

// GenerateSymmetricKey returns a fresh random AES-128 key.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}
	return key, nil
}

// GenerateNonce returns a fresh random GCM nonce.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}

// Seal encrypts plaintext with AES-GCM under key and nonce, returning
// ciphertext with the authentication tag appended (as crypto/cipher
// does).
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts and authenticates ciphertext with AES-GCM under key and
// nonce. Authentication failure means "not for me" per spec.md §4.1 and
// is returned as a plain error for the caller to treat as a silent drop.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// WrapKey encrypts a symmetric key for one recipient with RSA-OAEP/
// SHA-256.
func WrapKey(pub *rsa.PublicKey, symmKey []byte) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, symmKey, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap symmetric key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey decrypts an RSA-OAEP/SHA-256-wrapped symmetric key. Padding
// or key mismatch errors are expected for "not addressed to me" wraps
// and MUST be treated as silent by the caller (spec.md §4.1 trial
// decryption).
func UnwrapKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap symmetric key: %w", err)
	}
	return key, nil
}

// TrialDecrypt attempts to unwrap each candidate wrapped key with priv,
// then open ciphertext with the recovered key and nonce. It tries every
// candidate in order and returns on the first that both unwraps and
// authenticates; all intermediate failures are silent, matching
// spec.md's trial decryption semantics.
func TrialDecrypt(priv *rsa.PrivateKey, wrappedKeysB64 []string, nonceB64, ciphertextB64 string) ([]byte, bool) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, false
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, false
	}

	for _, wrappedB64 := range wrappedKeysB64 {
		wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
		if err != nil {
			continue
		}
		symmKey, err := UnwrapKey(priv, wrapped)
		if err != nil {
			continue
		}
		plaintext, err := Open(symmKey, nonce, ciphertext)
		if err != nil {
			continue
		}
		return plaintext, true
	}
	return nil, false
}
