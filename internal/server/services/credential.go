package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
)

// DecryptFailedPlaceholder replaces the password of a List entry whose
// ciphertext no longer decrypts. The failure is downgraded on purpose: one
// corrupt entry must not hide the rest of the vault.
const DecryptFailedPlaceholder = "<decryption error>"

// VaultEntry is one decrypted credential as returned to the client.
type VaultEntry struct {
	Site     string
	Account  string
	Password string
}

// CredentialService performs encrypt-on-write / decrypt-on-read operations
// for per-site stored credentials. Plaintext passwords exist only within the
// scope of a single call.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      *cryptox.Cipher
}

// NewCredentialService constructs a CredentialService. cipher must be built
// from the stored-credential key, independent from the MFA key.
func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, cipher *cryptox.Cipher) *CredentialService {
	return &CredentialService{db: db, repomanager: m, cipher: cipher}
}

// Add encrypts the password and stores it under (owner, site, account).
// A duplicate tuple is ErrorConflict, enforced by the storage unique index.
func (s *CredentialService) Add(ctx context.Context, owner, site, account, password string) (*models.Credential, error) {
	ciphertext, err := s.cipher.EncryptString(password)
	if err != nil {
		return nil, fmt.Errorf("error encrypting credential: %w", err)
	}

	repo := s.repomanager.Credentials(s.db)
	cred, err := repo.Create(ctx, &models.Credential{
		Owner:   owner,
		Site:    site,
		Account: account,
		Secret:  ciphertext,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating credential: %w", err)
	}
	return cred, nil
}

// List returns every credential of owner with passwords decrypted. Entries
// whose ciphertext fails authentication come back with
// DecryptFailedPlaceholder instead of aborting the whole response.
func (s *CredentialService) List(ctx context.Context, owner string) ([]VaultEntry, error) {
	repo := s.repomanager.Credentials(s.db)
	rows, err := repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("error listing credentials: %w", err)
	}

	entries := make([]VaultEntry, 0, len(rows))
	for _, row := range rows {
		password, err := s.cipher.DecryptString(row.Secret)
		if err != nil {
			password = DecryptFailedPlaceholder
		}
		entries = append(entries, VaultEntry{Site: row.Site, Account: row.Account, Password: password})
	}
	return entries, nil
}

// Delete removes the unique matching entry; ErrorNotFound when absent.
func (s *CredentialService) Delete(ctx context.Context, owner, site, account string) error {
	repo := s.repomanager.Credentials(s.db)
	return repo.Delete(ctx, owner, site, account)
}

// DeleteAll removes every entry of owner and returns the count removed.
// Zero is a valid result, not an error.
func (s *CredentialService) DeleteAll(ctx context.Context, owner string) (int64, error) {
	repo := s.repomanager.Credentials(s.db)
	return repo.DeleteAllByOwner(ctx, owner)
}
