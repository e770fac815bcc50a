// Package database opens the SQL stores a deletion ledger can live in and
// hides the differences between the SQLite and PostgreSQL drivers.
package database

import (
	"strconv"
	"strings"
)

// Driver identifies a ledger storage backend.
type Driver string

const (
	// DriverJSON is a plain JSON file, the default ledger.
	DriverJSON Driver = "json"
	// DriverSQLite is a local SQLite database file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is a PostgreSQL server.
	DriverPostgres Driver = "postgres"
)

func (d Driver) String() string {
	return string(d)
}

// IsSQL reports whether the driver is served through a Connection.
func (d Driver) IsSQL() bool {
	return d == DriverSQLite || d == DriverPostgres
}

// DetectDriver picks a backend from a location string. Anything that is not
// recognisably SQLite or PostgreSQL is treated as a JSON file path.
func DetectDriver(url string) Driver {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return DriverSQLite
	default:
		return DriverJSON
	}
}

// SQLitePath strips the scheme from a SQLite location.
func SQLitePath(url string) string {
	return strings.TrimPrefix(url, "sqlite://")
}

// Rebind rewrites "?" placeholders into the form the driver expects.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
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
