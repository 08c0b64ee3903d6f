package cryptoutil

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.NotNil(t, kp.Private)
	assert.NotNil(t, kp.Public)
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	pemStr, err := PublicKeyPEM(kp.Public)
	require.NoError(t, err)

	parsed, err := ParsePublicKeyPEM(pemStr)
	require.NoError(t, err)
	assert.Equal(t, kp.Public.N, parsed.N)
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	pemStr, err := PrivateKeyPEM(kp.Private)
	require.NoError(t, err)

	parsed, err := ParsePrivateKeyPEM(pemStr)
	require.NoError(t, err)
	assert.Equal(t, kp.Private.D, parsed.D)
}

func TestSaveLoadKeyPair(t *testing.T) {
	dir := t.TempDir()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	privPath := dir + "/key.pem"
	pubPath := dir + "/key.pub.pem"
	require.NoError(t, SaveKeyPair(kp, privPath, pubPath))

	loaded, err := LoadKeyPair(privPath, pubPath)
	require.NoError(t, err)
	assert.Equal(t, kp.Private.D, loaded.Private.D)
}

func TestFingerprintDeterministic(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	fp1, err := Fingerprint(kp.Public)
	require.NoError(t, err)
	fp2, err := Fingerprint(kp.Public)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.NotEmpty(t, fp1)
}

func TestFingerprintDiffersAcrossKeys(t *testing.T) {
	kp1, _ := GenerateKeyPair()
	kp2, _ := GenerateKeyPair()

	fp1, err := Fingerprint(kp1.Public)
	require.NoError(t, err)
	fp2, err := Fingerprint(kp2.Public)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func TestSignThenVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	data := json.RawMessage(`{"type":"public_chat","sender":"fp","message":"hi"}`)
	sig, err := Sign(kp.Private, data, 1)
	require.NoError(t, err)

	err = Verify(kp.Public, data, 1, sig)
	assert.NoError(t, err)
}

func TestVerifyRejectsTamperedCounter(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	data := json.RawMessage(`{"type":"public_chat"}`)
	sig, err := Sign(kp.Private, data, 1)
	require.NoError(t, err)

	err = Verify(kp.Public, data, 2, sig)
	assert.Error(t, err)
}

func TestVerifyAnyFindsCorrectKey(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)

	data := json.RawMessage(`{"type":"hello"}`)
	sig, err := Sign(kp2.Private, data, 5)
	require.NoError(t, err)

	idx, err := VerifyAny([]*rsa.PublicKey{kp1.Public, kp2.Public}, data, 5, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestVerifyAnyRejectsWhenNoneMatch(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)
	kp3, err := GenerateKeyPair()
	require.NoError(t, err)

	data := json.RawMessage(`{"type":"hello"}`)
	sig, err := Sign(kp2.Private, data, 5)
	require.NoError(t, err)

	_, err = VerifyAny([]*rsa.PublicKey{kp1.Public, kp3.Public}, data, 5, sig)
	assert.ErrorIs(t, err, ErrNoKeyVerifies)
}

func TestSealThenOpen(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	nonce, err := GenerateNonce()
	require.NoError(t, err)

	plaintext := []byte(`{"participants":["fpA","fpB"],"message":"secret"}`)
	ciphertext, err := Seal(key, nonce, plaintext)
	require.NoError(t, err)

	recovered, err := Open(key, nonce, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key1, _ := GenerateSymmetricKey()
	key2, _ := GenerateSymmetricKey()
	nonce, _ := GenerateNonce()

	ciphertext, err := Seal(key1, nonce, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(key2, nonce, ciphertext)
	assert.Error(t, err)
}

func TestWrapUnwrapKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	symmKey, err := GenerateSymmetricKey()
	require.NoError(t, err)

	wrapped, err := WrapKey(kp.Public, symmKey)
	require.NoError(t, err)

	unwrapped, err := UnwrapKey(kp.Private, wrapped)
	require.NoError(t, err)
	assert.Equal(t, symmKey, unwrapped)
}

func TestTrialDecryptFindsRecipientWrap(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)
	bystander, err := GenerateKeyPair()
	require.NoError(t, err)

	symmKey, err := GenerateSymmetricKey()
	require.NoError(t, err)
	nonce, err := GenerateNonce()
	require.NoError(t, err)

	plaintext := []byte(`{"participants":["fpSender","fpRecipient"],"message":"secret"}`)
	ciphertext, err := Seal(symmKey, nonce, plaintext)
	require.NoError(t, err)

	wrappedBystander, err := WrapKey(bystander.Public, symmKey)
	require.NoError(t, err)
	wrappedRecipient, err := WrapKey(recipient.Public, symmKey)
	require.NoError(t, err)

	wrappedKeys := []string{
		base64.StdEncoding.EncodeToString(wrappedBystander),
		base64.StdEncoding.EncodeToString(wrappedRecipient),
	}

	recovered, ok := TrialDecrypt(
		recipient.Private,
		wrappedKeys,
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
	)
	require.True(t, ok)
	assert.Equal(t, plaintext, recovered)
}

func TestTrialDecryptNotForMe(t *testing.T) {
	outsider, err := GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	symmKey, _ := GenerateSymmetricKey()
	nonce, _ := GenerateNonce()
	ciphertext, _ := Seal(symmKey, nonce, []byte("secret"))

	wrappedRecipient, _ := WrapKey(recipient.Public, symmKey)
	wrappedKeys := []string{base64.StdEncoding.EncodeToString(wrappedRecipient)}

	_, ok := TrialDecrypt(
		outsider.Private,
		wrappedKeys,
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
	)
	assert.False(t, ok)
}
