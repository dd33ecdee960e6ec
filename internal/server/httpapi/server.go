// Package httpapi exposes the server services over a small JSON HTTP API.
// The route and payload contract is frozen: existing clients depend on the
// exact paths and field names, so handlers translate between that contract
// and the service layer without reshaping it.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/services"
)

// UserService is the account-level surface the API depends on.
type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	MfaStatus(ctx context.Context, username, password string) (*services.MfaStatusResult, error)
}

// MfaService is the TOTP surface the API depends on.
type MfaService interface {
	Setup(ctx context.Context, username string) (string, error)
	Verify(ctx context.Context, username, code string) error
	Disable(ctx context.Context, username, code string) error
	CheckLoginOTP(ctx context.Context, username, code string) error
}

// CredentialService is the vault surface the API depends on.
type CredentialService interface {
	Add(ctx context.Context, owner, site, account, password string) (*models.Credential, error)
	List(ctx context.Context, owner string) ([]services.VaultEntry, error)
	Delete(ctx context.Context, owner, site, account string) error
	DeleteAll(ctx context.Context, owner string) (int64, error)
}

type Server struct {
	address     string
	logger      logging.Logger
	users       UserService
	mfa         MfaService
	credentials CredentialService
}

func NewServer(a string, l logging.Logger, us UserService, ms MfaService, cs CredentialService) *Server {
	return &Server{
		address:     a,
		logger:      l.With("module", "http_server"),
		users:       us,
		mfa:         ms,
		credentials: cs,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error shutting down HTTP server", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
