// Package models defines the persisted schema structs shared by
// repositories and services.
package models

import "time"

// User is an account row. Username is globally unique and immutable after
// creation. MFASecret holds the envelope-encrypted TOTP seed and is empty
// while MFA is disabled; MFAEnabled flips to true only after the user has
// proven possession of a working authenticator.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	MFASecret    string
	MFAEnabled   bool
	CreatedAt    time.Time
}

// MFAPending reports whether a secret was provisioned but not yet verified.
func (u *User) MFAPending() bool {
	return u.MFASecret != "" && !u.MFAEnabled
}
