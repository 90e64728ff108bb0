package main

import (
	"context"
	"database/sql"
	"io"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/config"
	"taskflow-sync-server/internal/logging"
	"taskflow-sync-server/internal/repository"
	"taskflow-sync-server/internal/repository/sqlite"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// app holds the process-wide resources every command needs.
type app struct {
	cfg       *config.Config
	codec     codec.Codec
	couch     *kivik.Client
	ledgerDB  *sql.DB
	logCloser io.Closer

	users       repository.UserRepository
	teams       repository.TeamRepository
	changeLog   repository.ChangeLogRepository
	sharedTasks repository.SharedTaskRepository
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, err
	}

	couch, err := repository.Connect(cfg.Database.URL())
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		codec:     codec.New(),
		couch:     couch,
		logCloser: logCloser,
		users:     repository.NewUserRepository(couch, cfg.Database.Name),
		teams:     repository.NewTeamRepository(couch, cfg.Database.Name),
	}

	switch cfg.Ledger.Driver {
	case config.LedgerDriverSQLite:
		db, err := sqlite.Open(cfg.Ledger.SQLitePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ledgerDB = db
		a.changeLog = sqlite.NewChangeLog(db)
		a.sharedTasks = sqlite.NewSharedTasks(db)
	default:
		a.changeLog = repository.NewChangeLogRepository(couch, cfg.Database.Name)
		a.sharedTasks = repository.NewSharedTaskRepository(couch, cfg.Database.Name)
	}

	log.WithFields(log.Fields{
		"couchdb": cfg.Database.Host + ":" + cfg.Database.Port,
		"db":      cfg.Database.Name,
		"ledger":  cfg.Ledger.Driver,
	}).Debug("storage configured")

	return a, nil
}

// ensureSchema prepares the CouchDB database and its indexes. The SQLite
// ledger applies its schema when opened.
func (a *app) ensureSchema(ctx context.Context) error {
	if err := repository.EnsureDatabase(ctx, a.couch, a.cfg.Database.Name); err != nil {
		return err
	}
	return repository.EnsureIndexes(ctx, a.couch, a.cfg.Database.Name)
}

func (a *app) Close() {
	if a.ledgerDB != nil {
		if err := a.ledgerDB.Close(); err != nil {
			log.WithError(err).Warn("failed to close ledger database")
		}
	}
	if a.couch != nil {
		if err := a.couch.Close(); err != nil {
			log.WithError(err).Warn("failed to close CouchDB client")
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
