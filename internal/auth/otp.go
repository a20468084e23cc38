package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const otpIssuer = "CampAuth"

// otpValidateOpts pins codes to the current 30-second window. No skew: a
// code from the previous or next window is rejected.
var otpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      0,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateOTPSecret creates a fresh base32 shared secret (20 bytes of
// entropy) for the given account.
func GenerateOTPSecret(account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: account,
		SecretSize:  20,
	})
	if err != nil {
		return "", fmt.Errorf("error generating OTP secret: %w", err)
	}
	return key.Secret(), nil
}

// ValidateOTPCode checks a submitted code against the shared secret for the
// 30-second window containing t.
func ValidateOTPCode(secret, code string, t time.Time) (bool, error) {
	return totp.ValidateCustom(code, secret, t, otpValidateOpts)
}

// SealSecret encrypts a shared secret for storage using AES-256-GCM. The
// nonce is prepended to the ciphertext and the whole value base64-encoded.
func SealSecret(key []byte, secret string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenSecret reverses SealSecret.
func OpenSecret(key []byte, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("sealed secret too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
