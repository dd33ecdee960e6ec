// Package common defines shared helpers and sentinel errors used across
// the PassVault server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Authentication errors (wrong password or wrong/expired OTP code).
	// Deliberately does not say which part was wrong.
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors (malformed identity token, malformed request shape).
	ErrorValidation = errors.New("validation error")

	// Envelope decryption failures: malformed token, failed authentication
	// tag, or a key change since encryption.
	ErrorDecryption = errors.New("decryption error")

	// Startup errors: required key material could not be resolved from any
	// source. The process must refuse to serve.
	ErrorSecretUnresolved = errors.New("secret unresolved")
)
