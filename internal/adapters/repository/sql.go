package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/lib/pq"              // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite driver

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

const pingTimeout = 10 * time.Second

// SQLStore is a ledger store on a relational database. Events are never
// updated or deleted; the marks table holds the first event id per
// (identity, course, date) and backs the upsert policy.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  logger.Logger

	insertEvent string
	insertMark  string
	scanEvents  string
}

// OpenSQLStore opens driver (postgres, sqlite or mysql) at dsn and migrates
// the schema unless WithAutoMigrate(false) is given.
func OpenSQLStore(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	o := defaultSQLOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("ledger-store")
	}

	db, err := sql.Open(d.driverName, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(o.maxOpenConns)
		db.SetMaxIdleConns(o.maxIdleConns)
	}
	db.SetConnMaxLifetime(o.connLifetime)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	if o.migrate {
		if err := migrateUp(db, d, "migrations/"+d.name, ledgerMigrationsTable); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &SQLStore{
		db:      db,
		dialect: d,
		logger:  o.logger,
		insertEvent: d.rebind(`INSERT INTO attendance_events
			(event_id, identity_id, course_id, event_date, ts_unix_nano, source)
			VALUES (?, ?, ?, ?, ?, ?)`),
		insertMark: d.rebind(d.insertIgnore + ` attendance_marks
			(identity_id, course_id, event_date, event_id)
			VALUES (?, ?, ?, ?)` + d.onConflictIgnore),
		scanEvents: d.rebind(`SELECT event_id, identity_id, course_id, event_date, ts_unix_nano, source
			FROM attendance_events
			WHERE course_id = ? AND event_date = ?
			ORDER BY seq`),
	}
	s.logger.Info(ctx, "ledger store opened", logger.String("driver", d.name))
	return s, nil
}

// Migrate applies pending ledger migrations.
func (s *SQLStore) Migrate() error {
	return migrateUp(s.db, s.dialect, "migrations/"+s.dialect.name, ledgerMigrationsTable)
}

// DB exposes the pool for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// Append stores ev and records its key if it is the first of the day.
func (s *SQLStore) Append(ctx context.Context, ev model.AttendanceEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.insertMark, ev.IdentityID, ev.CourseID, ev.Date, ev.ID); err != nil {
			return fmt.Errorf("insert mark: %w", err)
		}
		return s.execInsertEvent(ctx, tx, ev)
	})
}

// AppendIfAbsent stores ev only when no event with its key exists.
func (s *SQLStore) AppendIfAbsent(ctx context.Context, ev model.AttendanceEvent) (bool, error) {
	written := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.insertMark, ev.IdentityID, ev.CourseID, ev.Date, ev.ID)
		if err != nil {
			return fmt.Errorf("insert mark: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		written = true
		return s.execInsertEvent(ctx, tx, ev)
	})
	if err != nil {
		return false, err
	}
	return written, nil
}

func (s *SQLStore) execInsertEvent(ctx context.Context, tx *sql.Tx, ev model.AttendanceEvent) error {
	_, err := tx.ExecContext(ctx, s.insertEvent,
		ev.ID, ev.IdentityID, ev.CourseID, ev.Date, ev.Timestamp.UnixNano(), ev.Source)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Scan visits the events of course on date in append order.
func (s *SQLStore) Scan(ctx context.Context, courseID, date string, fn func(model.AttendanceEvent) bool) error {
	if s.db == nil {
		return ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, s.scanEvents, courseID, date)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.AttendanceEvent
		var nanos int64
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &ev.CourseID, &ev.Date, &nanos, &ev.Source); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.Unix(0, nanos).UTC()
		if !fn(ev) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}
