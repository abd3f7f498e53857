package database

import (
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pkgerrors "github.com/pkg/errors"
)

type MigrationConfig struct {
	// Folder overrides the embedded migrations with *.sql files on disk
	Folder       string
	Version      uint
	Force        int
	AutoRollback bool
}

// Migrator applies the gym sync schema
type Migrator struct {
	embedded fs.FS
	config   MigrationConfig
	logger   ectologger.Logger
}

func NewMigrator(logger ectologger.Logger, embedded fs.FS, config MigrationConfig) *Migrator {
	return &Migrator{embedded: embedded, config: config, logger: logger}
}

// migrateLog routes golang-migrate output through ectologger
type migrateLog struct {
	ectologger.Logger
}

func (l migrateLog) Verbose() bool { return true }

func (l migrateLog) Printf(format string, v ...any) {
	l.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (m *Migrator) source() (source.Driver, error) {
	migrations := m.embedded
	if m.config.Folder != "" {
		if _, err := os.Stat(m.config.Folder); err != nil {
			return nil, pkgerrors.Wrapf(err, "migration folder %s", m.config.Folder)
		}
		migrations = os.DirFS(m.config.Folder)
	}
	return iofs.New(migrations, ".")
}

// Up migrates db to the configured version, or the latest when none is set.
// A failed migration leaves the service unstartable, rolled back to the prior version when AutoRollback is on.
func (m *Migrator) Up(db *sql.DB, databaseName string) error {
	src, err := m.source()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open migrations")
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create postgres migration driver")
	}
	mg, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create migrator")
	}
	mg.Log = migrateLog{m.logger}

	if m.config.Force != 0 {
		if err := mg.Force(m.config.Force); err != nil {
			return pkgerrors.Wrapf(err, "failed to force version %d", m.config.Force)
		}
	}

	before, _, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		m.logger.WithError(err).Warn("Could not read schema version")
	}

	start := time.Now()
	if m.config.Version != 0 {
		err = mg.Migrate(m.config.Version)
	} else {
		err = mg.Up()
	}

	switch {
	case err == nil:
		after, _, _ := mg.Version()
		m.logger.WithFields(map[string]any{"from": before, "to": after, "took": time.Since(start)}).Info("Schema migrated")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.WithField("version", before).Info("Schema up to date")
		return nil
	case strings.Contains(err.Error(), "no migration found for version"):
		// the database is ahead of this build, usually after a deploy rollback
		latest, latestErr := latestVersion(src)
		if latestErr != nil {
			return pkgerrors.Wrap(latestErr, "failed to find latest migration")
		}
		m.logger.Warnf("Schema version %d is unknown to this build, forcing %d", before, latest)
		return mg.Force(int(latest))
	}

	m.logger.WithError(err).Error("Migration failed")
	m.rollback(mg, before)
	return err
}

func (m *Migrator) rollback(mg *migrate.Migrate, before uint) {
	if !m.config.AutoRollback {
		return
	}
	version, dirty, err := mg.Version()
	if err != nil || !dirty {
		return
	}
	if before == 0 && version > 0 {
		before = version - 1
	}
	m.logger.Warnf("Schema dirty at version %d, forcing %d", version, before)
	if err := mg.Force(int(before)); err != nil {
		m.logger.WithError(err).Errorf("Failed to force version %d", before)
	}
}

func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}
