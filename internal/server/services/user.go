// Package services contains server-side business logic. This file implements
// UserService, which handles registration, password login, and the
// password-authenticated MFA status check.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/auth"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
)

// LoginResult is the outcome of the password step of a login. When the
// account has MFA enabled, MFARequired is true and Token is empty; the
// client must follow up with the OTP step. Otherwise Token carries the
// identity token.
type LoginResult struct {
	Username    string
	MFARequired bool
	Token       string
}

// UserService provides account-level operations: Register, Login and
// MfaStatus.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
}

// NewUserService constructs a UserService over the given repositories and
// password hasher.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher) *UserService {
	return &UserService{db: db, repomanager: m, hasher: hasher}
}

// Register hashes the password and creates the user. A taken username is
// common.ErrorConflict; the storage-layer unique index is the authoritative
// check, so concurrent duplicate registrations collapse to one winner.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{Username: username, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login performs the password step. An unknown user is ErrorNotFound, a bad
// password ErrorUnauthorized. When MFA is enabled no token is issued.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if user.MFAEnabled {
		return &LoginResult{Username: user.Username, MFARequired: true}, nil
	}

	return &LoginResult{
		Username: user.Username,
		Token:    auth.EncodeToken(username, password),
	}, nil
}

// MfaStatusResult reports whether MFA is enabled for an account. SetupDate
// is the account creation time and is only meaningful while Enabled is true;
// it stays zero otherwise.
type MfaStatusResult struct {
	Enabled   bool
	SetupDate time.Time
}

// MfaStatus returns the MFA state after re-verifying the password.
func (s *UserService) MfaStatus(ctx context.Context, username, password string) (*MfaStatusResult, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	res := &MfaStatusResult{Enabled: user.MFAEnabled}
	if user.MFAEnabled {
		res.SetupDate = user.CreatedAt
	}
	return res, nil
}

func (s *UserService) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		// Structurally broken stored hash: data-integrity failure, not a
		// credential failure.
		return nil, common.ErrorInternal
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}
