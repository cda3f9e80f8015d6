// Package export dumps a frozen entity model into a relational database.
// DuckDB targets are bulk loaded through the Appender API; SQLite and
// Postgres targets use prepared inserts inside one transaction.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/inodb/mirus/internal/mirbase"
)

// ErrUnknownDriver is returned for an unsupported database driver name.
var ErrUnknownDriver = errors.New("unknown export driver")

// Driver names a database/sql driver supported as an export target.
type Driver string

// Supported drivers.
const (
	DuckDB   Driver = "duckdb"
	SQLite   Driver = "sqlite"
	Postgres Driver = "pgx"
)

// ParseDriver validates a driver name. "postgres" is accepted as an alias
// of "pgx".
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(s)); d {
	case DuckDB, SQLite, Postgres:
		return d, nil
	case "postgres", "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDriver, s)
}

// fileBacked reports whether the DSN of d is a filesystem path.
func (d Driver) fileBacked() bool {
	return d == DuckDB || d == SQLite
}

// Counts holds the number of rows written per table.
type Counts map[string]int

// Total returns the number of rows written across all tables.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Exporter writes stores into one database.
type Exporter struct {
	db     *sql.DB
	driver Driver
	logger *zap.Logger
}

// Open connects to the target database. For DuckDB and SQLite the DSN is a
// file path, created with its parent directories when missing; an empty
// DuckDB path selects an in-memory database.
func Open(ctx context.Context, driver Driver, dsn string) (*Exporter, error) {
	if _, err := ParseDriver(string(driver)); err != nil {
		return nil, err
	}
	if driver.fileBacked() && dsn != "" && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == SQLite {
		// every pooled connection would otherwise see its own :memory: database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Exporter{db: db, driver: driver, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger for export progress.
func (x *Exporter) SetLogger(logger *zap.Logger) {
	x.logger = logger
}

// Close closes the database connection.
func (x *Exporter) Close() error {
	return x.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (x *Exporter) DB() *sql.DB {
	return x.db
}

// Driver returns the target driver.
func (x *Exporter) Driver() Driver {
	return x.driver
}

// Write replaces the export tables with the contents of store.
func (x *Exporter) Write(ctx context.Context, store *mirbase.Store) (Counts, error) {
	if err := x.resetSchema(ctx); err != nil {
		return nil, fmt.Errorf("reset schema: %w", err)
	}

	counts := make(Counts, len(tables))
	for _, t := range tables {
		rows := t.rows(store)
		var err error
		if x.driver == DuckDB {
			err = x.appendRows(ctx, t.name, rows)
		} else {
			err = x.insertRows(ctx, t, rows)
		}
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", t.name, err)
		}
		counts[t.name] = len(rows)
		x.logger.Debug("exported table",
			zap.String("driver", string(x.driver)),
			zap.String("table", t.name),
			zap.Int("rows", len(rows)))
	}
	x.logger.Info("export complete",
		zap.String("driver", string(x.driver)),
		zap.Int("rows", counts.Total()))
	return counts, nil
}

// Count returns the number of rows currently in table.
func (x *Exporter) Count(ctx context.Context, table string) (int, error) {
	if _, ok := tableByName(table); !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (x *Exporter) resetSchema(ctx context.Context) error {
	// children first so Postgres never sees a dangling reference
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := x.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i].name); err != nil {
			return err
		}
	}
	for _, t := range tables {
		if _, err := x.db.ExecContext(ctx, t.ddl()); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}
	return nil
}

// insertRows writes rows with a prepared statement inside one transaction.
func (x *Exporter) insertRows(ctx context.Context, t table, rows [][]any) (err error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, t.insert(x.placeholder))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return tx.Commit()
}

func (x *Exporter) placeholder(i int) string {
	if x.driver == Postgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}
