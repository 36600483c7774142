package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// DefaultDir is where the SQL files live relative to the working directory.
const DefaultDir = "migrations"

const versionTable = "darecoin_schema_version"

var versionPrefix = regexp.MustCompile(`^0*([0-9]+)_`)

// RunMigrations applies every pending migration from DefaultDir.
func RunMigrations(databaseURL string) error {
	return RunMigrationsFrom(databaseURL, DefaultDir)
}

// RunMigrationsFrom is RunMigrations with an explicit directory. A database
// that already carries the ledger tables but no version table is baselined to
// the newest file first, so a schema loaded by hand is not re-created.
func RunMigrationsFrom(databaseURL, dir string) error {
	m, sqlDB, err := open(databaseURL, dir)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	defer m.Close()

	if err := baseline(sqlDB, m, dir); err != nil {
		log.Printf("[MIGRATE] baseline skipped: %v", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("[MIGRATE] schema at version %d (dirty=%v)", version, dirty)
	return nil
}

// Version reports the applied schema version without migrating.
func Version(databaseURL, dir string) (uint, bool, error) {
	m, sqlDB, err := open(databaseURL, dir)
	if err != nil {
		return 0, false, err
	}
	defer sqlDB.Close()
	defer m.Close()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func open(databaseURL, dir string) (*migrate.Migrate, *sql.DB, error) {
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("database URL is empty")
	}
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open DB: %w", err)
	}
	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: versionTable})
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, sqlDB, nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var ok bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)`, name).Scan(&ok)
	return ok, err
}

func baseline(db *sql.DB, m *migrate.Migrate, dir string) error {
	for _, t := range []string{"users", "accounts", "dares"} {
		ok, err := tableExists(db, t)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	tracked, err := tableExists(db, versionTable)
	if err != nil || tracked {
		return err
	}
	latest := latestVersion(dir)
	if latest == 0 {
		return nil
	}
	log.Printf("[MIGRATE] existing schema without %s, forcing version %d", versionTable, latest)
	return m.Force(int(latest))
}

// latestVersion returns the highest numeric prefix among files in dir.
func latestVersion(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var latest int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sub := versionPrefix.FindStringSubmatch(e.Name())
		if sub == nil {
			continue
		}
		if v, err := strconv.ParseInt(sub[1], 10, 64); err == nil && v > latest {
			latest = v
		}
	}
	return latest
}
