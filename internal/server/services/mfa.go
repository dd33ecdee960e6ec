package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passvault/internal/totp"
)

// MfaService drives the per-user TOTP state machine:
//
//	Disabled -> Setup -> PendingVerification -> Verify -> Enabled -> Disable -> Disabled
//
// The shared secret is written encrypted-at-rest during Setup, before the
// user has verified, so the provisioning URI (which needs the plaintext
// secret) can be issued exactly once. The enabled flag only flips after a
// correct code proves the authenticator works, which prevents lockout from
// an unscanned QR code.
//
// Mutating operations run inside a transaction so the state checked is the
// state mutated, even under concurrent requests for the same user.
type MfaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      *cryptox.Cipher
	issuer      string
	now         func() time.Time
}

// NewMfaService constructs an MfaService. cipher must be built from the
// MFA-secret key, which is resolved independently from the credential key.
func NewMfaService(db *sql.DB, m repomanager.RepositoryManager, cipher *cryptox.Cipher, issuer string) *MfaService {
	return &MfaService{db: db, repomanager: m, cipher: cipher, issuer: issuer, now: time.Now}
}

// Setup provisions a new shared secret for the user and returns the
// otpauth:// provisioning URI. It fails with ErrorConflict when a secret is
// already present, whether pending or enabled: a pending enrollment can only
// be completed via Verify, never re-issued.
func (s *MfaService) Setup(ctx context.Context, username string) (string, error) {
	var uri string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		user, err := repo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user.MFAEnabled || user.MFAPending() {
			return common.ErrorConflict
		}

		secret := totp.GenerateSecretKey()
		ciphertext, err := s.cipher.EncryptString(secret)
		if err != nil {
			return fmt.Errorf("error encrypting mfa secret: %w", err)
		}
		if err := repo.SetMFASecret(ctx, username, ciphertext); err != nil {
			return err
		}

		// The URI carries the plaintext secret; it exists only in this
		// response, never in storage or logs.
		uri = totp.ProvisioningURI(secret, username, s.issuer)
		return nil
	})
	if err != nil {
		return "", err
	}
	return uri, nil
}

// Verify validates code against the pending (or already enabled) secret and
// enables MFA. A wrong code is ErrorUnauthorized and leaves all state
// untouched; verifying an already enabled account is idempotent.
func (s *MfaService) Verify(ctx context.Context, username, code string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		user, err := repo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user.MFASecret == "" {
			return common.ErrorConflict
		}

		if err := s.validateCode(user, code); err != nil {
			return err
		}

		if !user.MFAEnabled {
			return repo.SetMFAEnabled(ctx, username, true)
		}
		return nil
	})
}

// Disable validates code and, on success, erases the stored secret and the
// enabled flag. It is only valid from the Enabled state.
func (s *MfaService) Disable(ctx context.Context, username, code string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		user, err := repo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if !user.MFAEnabled || user.MFASecret == "" {
			return common.ErrorConflict
		}

		if err := s.validateCode(user, code); err != nil {
			return err
		}

		return repo.ClearMFA(ctx, username)
	})
}

// CheckLoginOTP performs the read-only OTP step of a login. No state
// transition happens regardless of outcome.
func (s *MfaService) CheckLoginOTP(ctx context.Context, username, code string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return common.ErrorConflict
	}
	return s.validateCode(user, code)
}

// validateCode decrypts the stored secret and checks code against the
// current time window with the standard skew tolerance.
func (s *MfaService) validateCode(user *models.User, code string) error {
	secret, err := s.cipher.DecryptString(user.MFASecret)
	if err != nil {
		// Tampered ciphertext or rotated key; surfaced as-is, never treated
		// as plaintext.
		return err
	}
	ok, err := totp.Validate(secret, code, s.now())
	if err != nil {
		return common.ErrorInternal
	}
	if !ok {
		return common.ErrorUnauthorized
	}
	return nil
}
