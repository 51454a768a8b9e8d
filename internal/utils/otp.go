package utils

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// OTPConfig holds configuration for phone one-time codes
type OTPConfig struct {
	Digits     otp.Digits
	Algorithm  otp.Algorithm
	SecretSize uint
}

// DefaultOTPConfig returns the default OTP configuration
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		Digits:     otp.DigitsSix,
		Algorithm:  otp.AlgorithmSHA1,
		SecretSize: 20,
	}
}

// GenerateOTPSecret generates a new base32 secret for deriving one-time codes
func GenerateOTPSecret(config OTPConfig) (string, error) {
	secret := make([]byte, config.SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate OTP secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), nil
}

// GenerateOTPCode derives the counter-based one-time code for a user secret.
// The counter advances on every issued code so a code can never be replayed
// across issuances.
func GenerateOTPCode(config OTPConfig, secret string, counter uint64) (string, error) {
	code, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    config.Digits,
		Algorithm: config.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP code: %w", err)
	}
	return code, nil
}

// ValidateOTPCode checks a submitted code against the secret and counter
func ValidateOTPCode(config OTPConfig, code, secret string, counter uint64) bool {
	valid, err := hotp.ValidateCustom(code, counter, secret, hotp.ValidateOpts{
		Digits:    config.Digits,
		Algorithm: config.Algorithm,
	})
	return err == nil && valid
}
