// Package server wires configuration, storage, the verification key and the
// services together and runs the HTTP API until a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/server/config"
	"github.com/dmitrijs2005/gophqms/internal/server/evidence"
	"github.com/dmitrijs2005/gophqms/internal/server/httpapi"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophqms/internal/server/services"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/dmitrijs2005/gophqms/internal/workflow"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keys        signature.KeyConfig
	services    httpapi.Services
}

func NewApp(c *config.Config) (*App, error) {

	logger, err := logging.New(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	// parsed once; the verifier never sees the raw configuration
	keys, err := signature.ParsePublicKeyPEM([]byte(c.VerificationPublicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("verification key error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	store := evidence.NewS3Store(evidence.Settings{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	validator := workflow.NewValidator(workflow.NewRegistry())
	verifier := signature.NewVerifier(keys)

	svc := httpapi.Services{
		Records:   services.NewRecordService(db, rm, validator, store, logger),
		Integrity: services.NewIntegrityService(db, rm, verifier, logger),
		Ledger:    services.NewLedgerService(db, rm, logger),
		Workflow:  services.NewWorkflowService(db, rm, validator, store, logger),
		Esign:     services.NewEsignService(db, rm, validator, store, logger),
		Actors:    services.NewActorService(db, rm, c, logger),
	}

	return &App{config: c, logger: logger, db: db, repomanager: rm, keys: keys, services: svc}, nil
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
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.services, app.config.SecretKey, app.config.ShutdownTimeout)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the database and serves until ctx is cancelled or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	if app.keys.Configured() {
		app.logger.Info(ctx, "verification key loaded", "algorithm", app.keys.Algorithm(), "fingerprint", app.keys.Fingerprint())
	} else {
		app.logger.Warn(ctx, "no verification key configured; every signature artifact will verify as INVALID")
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return nil
}
