package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"PrivChat/tools/errs"
)

// AlgorithmAES256 is the algorithm tag written alongside every payload.
const AlgorithmAES256 = "AES-256"

// payloadSeparator joins hex(iv) and base64(ciphertext) in the stored form.
const payloadSeparator = ":"

// Cipher encrypts messages for storage with a per-pair key derived from the
// process-wide secret.
type Cipher struct {
	secret string
}

func NewCipher(secret string) *Cipher {
	return &Cipher{secret: secret}
}

// deriveKey hashes "secret-sender-recipient" in that exact concatenation
// order. The order matters: keys for (A,B) and (B,A) differ, so decryption
// must replay the literal sender/receiver pair recorded on the message, not
// the ordering implied by who is asking. Already-persisted ciphertext depends
// on this, so it stays as an explicit contract rather than being symmetrized.
func (c *Cipher) deriveKey(senderID, recipientID string) []byte {
	sum := sha256.Sum256([]byte(c.secret + "-" + senderID + "-" + recipientID))
	return sum[:]
}

// Encrypt produces hex(iv) + ":" + base64(ciphertext) with a fresh random IV
// per message, AES-256-CBC, PKCS#7 padding. Failures come back as the
// ErrEncryption sentinel; no partial payload is ever returned.
func (c *Cipher) Encrypt(plaintext, senderID, recipientID string) (string, error) {
	key := c.deriveKey(senderID, recipientID)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errs.ErrEncryption.WrapMsg("new cipher", "err", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", errs.ErrEncryption.WrapMsg("read iv", "err", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + payloadSeparator + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt is the inverse of Encrypt. senderID/recipientID must be the literal
// (message.sender, message.receiver) pair used at write time. A malformed
// payload (missing separator, bad encodings, bad padding) returns the
// ErrDecryption sentinel; callers treat the message as undeliverable and log
// it rather than surfacing ciphertext.
func (c *Cipher) Decrypt(payload, senderID, recipientID string) (string, error) {
	if payload == "" || !strings.Contains(payload, payloadSeparator) {
		return "", errs.ErrDecryption.WrapMsg("invalid format")
	}

	parts := strings.SplitN(payload, payloadSeparator, 2)
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", errs.ErrDecryption.WrapMsg("bad iv")
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", errs.ErrDecryption.WrapMsg("bad ciphertext")
	}

	key := c.deriveKey(senderID, recipientID)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errs.ErrDecryption.WrapMsg("new cipher", "err", err)
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	unpadded, err := pkcs7Unpad(pt, aes.BlockSize)
	if err != nil {
		return "", errs.ErrDecryption.WrapMsg("bad padding")
	}
	return string(unpadded), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errs.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errs.New("invalid pad byte")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errs.New("inconsistent padding")
		}
	}
	return b[:len(b)-n], nil
}
