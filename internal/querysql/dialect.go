package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax and collation rules.
type Dialect int

const (
	// SQLite uses ? placeholders and COLLATE BINARY ordering.
	SQLite Dialect = iota
	// Postgres uses $n placeholders; ordering uses the column collation.
	Postgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Rebind rewrites ? placeholders for the dialect. The compiler never emits
// string literals, so every ? is a placeholder.
func (d Dialect) Rebind(sql string) string {
	if d != Postgres {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

// orderSuffix returns the collation clause appended to ORDER BY terms.
func (d Dialect) orderSuffix() string {
	if d == SQLite {
		return " COLLATE BINARY"
	}
	return ""
}
