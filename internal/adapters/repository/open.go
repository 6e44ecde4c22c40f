package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/creatorboard/pkg/logger"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open builds the store named by driver. SQL stores are migrated before return.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	cfg := newSettings(opts)
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(opts...), nil
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
	if driver == DriverSQLite && !sqliteInMemory(dsn) {
		dsn = withPragmas(dsn, "journal_mode(WAL)", "busy_timeout(5000)")
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStore, driver, err)
	}
	if driver == DriverSQLite {
		// One writer connection; an in-memory database also serves reads
		// through it so every query sees the same data.
		db.SetMaxOpenConns(1)
	}
	s := NewSQLStore(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == DriverSQLite && !sqliteInMemory(dsn) {
		// WAL lets this pool read committed data while a write is open.
		rdb, err := sqlx.ConnectContext(ctx, driver, withPragmas(dsn, "query_only(1)"))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: open %s reader: %v", ErrStore, driver, err)
		}
		rdb.SetMaxOpenConns(sqliteReaders)
		s.rdb = rdb
	}
	cfg.log.Info(ctx, "store opened", logger.String("driver", driver))
	return s, nil
}

const sqliteReaders = 4

func sqliteInMemory(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withPragmas appends modernc.org/sqlite _pragma parameters to dsn.
func withPragmas(dsn string, pragmas ...string) string {
	for _, p := range pragmas {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + p
	}
	return dsn
}
