package secrets

import (
	"encoding/base64"
	"fmt"
)

// KeySize is the required decoded length of an encryption key: 32 bytes,
// AES-256.
const KeySize = 32

// Material holds every externally resolved secret the server needs. It is
// built once at startup and treated as immutable afterwards, so concurrent
// reads need no synchronization.
type Material struct {
	// DBPassword is the credential-store access secret. Not key material,
	// but resolved through the same precedence.
	DBPassword string
	// MFAKey encrypts TOTP secrets at rest.
	MFAKey []byte
	// CredentialKey encrypts stored site credentials. Independent from
	// MFAKey so compromise of one does not expose the other.
	CredentialKey []byte
}

// Load resolves all required secrets through r. Any unresolved or malformed
// value is returned as an error; the caller is expected to treat it as
// fatal.
func Load(r *Resolver) (*Material, error) {
	dbPassword, err := r.Resolve(NameDBPassword)
	if err != nil {
		return nil, err
	}

	mfaKey, err := resolveKey(r, NameMFAKey)
	if err != nil {
		return nil, err
	}

	credentialKey, err := resolveKey(r, NameCredentialKey)
	if err != nil {
		return nil, err
	}

	return &Material{
		DBPassword:    dbPassword,
		MFAKey:        mfaKey,
		CredentialKey: credentialKey,
	}, nil
}

func resolveKey(r *Resolver, name string) ([]byte, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	key, err := DecodeKey(v)
	if err != nil {
		return nil, fmt.Errorf("secret %q: %w", name, err)
	}
	return key, nil
}

// DecodeKey parses a base64url-encoded (padded or raw) 32-byte key.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64url: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}
