package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the SQL differences between supported databases.
type dialect struct {
	// name is the configuration name and migrations directory.
	name string
	// driverName is the database/sql driver.
	driverName string
	// numbered placeholders ($1) instead of ?.
	numbered bool
	// insertIgnore prefixes an INSERT that silently skips duplicate keys.
	insertIgnore string
	// onConflictIgnore is appended to the same INSERT.
	onConflictIgnore string
}

var dialects = map[string]dialect{
	"postgres": {
		name:             "postgres",
		driverName:       "postgres",
		numbered:         true,
		insertIgnore:     "INSERT INTO",
		onConflictIgnore: " ON CONFLICT DO NOTHING",
	},
	"sqlite": {
		name:         "sqlite",
		driverName:   "sqlite3",
		insertIgnore: "INSERT OR IGNORE INTO",
	},
	"mysql": {
		name:         "mysql",
		driverName:   "mysql",
		insertIgnore: "INSERT IGNORE INTO",
	},
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	case "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "mysql", "mariadb":
		return dialects["mysql"], nil
	}
	return dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
}

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dsn adds the options every connection of the dialect needs.
func (d dialect) dsn(dsn string) string {
	if d.name != "sqlite" || strings.Contains(dsn, "?") || dsn == ":memory:" {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000"
}
