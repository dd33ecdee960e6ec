// Package server initializes and runs the main application server.
// It resolves secret material, connects to storage, runs migrations,
// wires the services and starts the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/secrets"
	"github.com/dmitrijs2005/passvault/internal/server/auth"
	"github.com/dmitrijs2005/passvault/internal/server/config"
	"github.com/dmitrijs2005/passvault/internal/server/httpapi"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passvault/internal/server/services"
)

type App struct {
	config            *config.Config
	logger            logging.Logger
	db                *sql.DB
	userService       *services.UserService
	mfaService        *services.MfaService
	credentialService *services.CredentialService
}

// NewApp resolves secret material and builds the full service graph. Any
// error here is a startup failure: the process must not begin serving
// without its key material and storage.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	s := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(s)

	resolver := secrets.NewResolver(cfg.SecretsRuntimeDir, cfg.SecretsLocalDir)
	material, err := secrets.Load(resolver)
	if err != nil {
		return nil, fmt.Errorf("secret resolution error: %w", err)
	}

	logger.Info(ctx, "Connecting to database",
		"host", cfg.DBHost, "port", cfg.DBPort, "user", cfg.DBUser, "db", cfg.DBName)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(cfg.DBUser), url.QueryEscape(material.DBPassword),
		cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	mfaCipher, err := cryptox.New(material.MFAKey)
	if err != nil {
		return nil, fmt.Errorf("mfa cipher init error: %w", err)
	}
	credentialCipher, err := cryptox.New(material.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("credential cipher init error: %w", err)
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	us := services.NewUserService(db, rm, hasher)
	ms := services.NewMfaService(db, rm, mfaCipher, cfg.TOTPIssuer)
	cs := services.NewCredentialService(db, rm, credentialCipher)

	return &App{
		config:            cfg,
		logger:            logger,
		db:                db,
		userService:       us,
		mfaService:        ms,
		credentialService: cs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddr, app.logger,
		app.userService, app.mfaService, app.credentialService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
}
