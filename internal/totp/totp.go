// Package totp implements RFC 6238 time-based one-time passwords with the
// parameters used by common authenticator apps: 30-second period, 6 digits,
// HMAC-SHA1. It also builds otpauth:// provisioning URIs for enrollment.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
)

const (
	// Period is the code validity window in seconds.
	Period = 30
	// Digits is the code length.
	Digits = 6
	// SecretBytes is the raw entropy of a generated shared secret
	// (160 bits, matching the SHA-1 block recommendation of RFC 4226).
	SecretBytes = 20
	// DefaultSkew is the clock-skew tolerance in periods accepted on each
	// side of the current one.
	DefaultSkew = 1
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecretKey returns a new random shared secret, base32-encoded
// without padding, as expected by authenticator apps.
func GenerateSecretKey() string {
	return b32.EncodeToString(common.GenerateRandByteArray(SecretBytes))
}

// GenerateCode computes the TOTP code for the given base32 secret at time t.
func GenerateCode(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	counter := uint64(t.Unix() / Period)
	return hotp(key, counter), nil
}

// Validate reports whether code matches the secret at time t, accepting
// DefaultSkew periods of clock drift on either side. The comparison is
// constant-time per candidate window.
func Validate(secret, code string, t time.Time) (bool, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}
	if len(code) != Digits {
		return false, nil
	}

	counter := t.Unix() / Period
	for delta := int64(-DefaultSkew); delta <= DefaultSkew; delta++ {
		candidate := hotp(key, uint64(counter+delta))
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// ProvisioningURI builds the otpauth:// URI that authenticator apps consume
// during enrollment. The label is "issuer:account"; the secret travels in
// plaintext here, so the URI must only ever be shown to the enrolling user.
func ProvisioningURI(secret, account, issuer string) string {
	label := url.PathEscape(issuer + ":" + account)
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", fmt.Sprintf("%d", Digits))
	params.Set("period", fmt.Sprintf("%d", Period))
	return "otpauth://totp/" + label + "?" + params.Encode()
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(secret, "="))
	key, err := b32.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid base32 secret: %w", err)
	}
	return key, nil
}

// hotp implements RFC 4226 dynamic truncation over an 8-byte counter.
func hotp(key []byte, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, value%1_000_000)
}
