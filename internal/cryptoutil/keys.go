// Package cryptoutil implements the envelope cryptography: RSA-2048
// keypairs, RSA-PSS signing, RSA-OAEP key wrap, AES-GCM sealing, and
// fingerprinting. Adapted from the teacher's RS256 keypair helper, with
// the signature and wrap schemes replaced by the PSS/OAEP pair this
// protocol requires.
package cryptoutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// KeyBits is the RSA modulus size used for every generated keypair.
const KeyBits = 2048

// ErrNoKeyVerifies is returned when a signature does not verify against
// any key in a candidate set.
var ErrNoKeyVerifies = errors.New("cryptoutil: signature does not verify against any candidate key")

// KeyPair holds an RSA private key and its derived public key.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// GenerateKeyPair creates a fresh RSA-2048 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// PublicKeyPEM returns the public key PKIX-encoded and PEM-wrapped.
func PublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// ParsePublicKeyPEM parses a PEM-wrapped PKIX-encoded RSA public key.
func ParsePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("decode public key pem: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}

// PrivateKeyPEM returns the private key PKCS#8-encoded and PEM-wrapped.
func PrivateKeyPEM(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// ParsePrivateKeyPEM parses a PEM-wrapped PKCS#8-encoded RSA private key.
func ParsePrivateKeyPEM(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("decode private key pem: no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

// SaveKeyPair writes the private and public keys as sibling PEM files,
// e.g. "client.pem" and "client.pub.pem".
func SaveKeyPair(kp *KeyPair, privatePath, publicPath string) error {
	privPEM, err := PrivateKeyPEM(kp.Private)
	if err != nil {
		return err
	}
	pubPEM, err := PublicKeyPEM(kp.Public)
	if err != nil {
		return err
	}
	if err := os.WriteFile(privatePath, []byte(privPEM), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(publicPath, []byte(pubPEM), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}

// LoadKeyPair reads a keypair back from sibling PEM files.
func LoadKeyPair(privatePath, publicPath string) (*KeyPair, error) {
	privData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	priv, err := ParsePrivateKeyPEM(string(privData))
	if err != nil {
		return nil, err
	}

	if publicPath == "" {
		return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
	}
	pubData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := ParsePublicKeyPEM(string(pubData))
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// Fingerprint is base64(SHA-256(base64-PEM(public_key))), the compact
// signer/participant identifier used throughout the wire payloads.
func Fingerprint(pub *rsa.PublicKey) (string, error) {
	pemStr, err := PublicKeyPEM(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(pemStr))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}
