// Package cli wires the stores, the backup engine and the lifecycle services
// together and dispatches tenantadmin commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/admin/config"
	"github.com/dmitrijs2005/tenantadmin/internal/backup"
	"github.com/dmitrijs2005/tenantadmin/internal/claims"
	"github.com/dmitrijs2005/tenantadmin/internal/confirm"
	"github.com/dmitrijs2005/tenantadmin/internal/database"
	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
	"github.com/dmitrijs2005/tenantadmin/internal/storage"
	"github.com/dmitrijs2005/tenantadmin/internal/tenants"
	"github.com/juju/clock"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitPrecondition = 2
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	out      io.Writer
	prompter confirm.Prompter
	clock    clock.Clock

	engine  *backup.Engine
	tenants *tenants.Service
	claims  *claims.Service

	closer io.Closer
}

// Stores are the backends an App runs against.
type Stores struct {
	Directory directory.Store
	Identity  identity.Store
	Storage   storage.Adapter
}

// NewApp opens the directory database and the storage backend named in c.
// Progress logs go to stderr, results to stdout.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewHandlerLogger(os.Stderr, c.LogJSON, c.Verbose)

	db, dialect, err := database.Open(ctx, c.Driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	store, err := storage.New(ctx, c.StorageOptions())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app := newApp(c, Stores{
		Directory: directory.NewSQLStore(db, dialect),
		Identity:  identity.NewSQLStore(db, dialect),
		Storage:   store,
	}, logger, os.Stdout, confirm.NewTerminal(), clock.WallClock)
	app.closer = db
	return app, nil
}

func newApp(c *config.Config, s Stores, logger logging.Logger, out io.Writer, p confirm.Prompter, clk clock.Clock) *App {
	return &App{
		config:   c,
		logger:   logger,
		out:      out,
		prompter: p,
		clock:    clk,
		engine: backup.New(backup.Deps{
			Directory:   s.Directory,
			Identity:    s.Identity,
			Storage:     s.Storage,
			Clock:       clk,
			Logger:      logger,
			Prompter:    p,
			Environment: c.Environment(),
		}),
		tenants: tenants.New(tenants.Deps{
			Directory: s.Directory,
			Identity:  s.Identity,
			Clock:     clk,
			Logger:    logger,
		}),
		claims: claims.New(s.Identity, logger),
	}
}

func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *App) now() time.Time {
	return a.clock.Now()
}
