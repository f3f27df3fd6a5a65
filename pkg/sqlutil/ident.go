// Package sqlutil builds driver specific SQL fragments.
package sqlutil

import (
	"fmt"
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z0-9_\.]+$`)

// QuoteIdent validates and quotes an SQL identifier (optionally schema-qualified)
// according to the target driver. It supports dot-separated identifiers like schema.table.
// Drivers: pgx/postgres -> "name", mysql/mariadb/sqlite -> `name`, mssql -> [name].
func QuoteIdent(driver, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty identifier")
	}
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier: %s", name)
	}
	parts := strings.Split(name, ".")

	quote := func(s string) string {
		switch driver {
		case "pgx", "postgres":
			return "\"" + s + "\""
		case "mysql", "mariadb", "sqlite":
			return "`" + s + "`"
		case "mssql", "sqlserver":
			return "[" + s + "]"
		default:
			return "\"" + s + "\""
		}
	}

	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, "."), nil
}

// Placeholder returns a placeholder suitable for the driver and 1-based index.
func Placeholder(driver string, index int) string {
	switch driver {
	case "pgx", "postgres":
		return fmt.Sprintf("$%d", index)
	default: // mysql, mariadb, sqlite, mssql use '?'
		return "?"
	}
}

// Select builds "SELECT * FROM table [WHERE column IN (...)] [ORDER BY orderBy]"
// with n placeholders for the IN list. column is ignored when empty.
func Select(driver, table, column string, n int, orderBy string) (string, error) {
	qt, err := QuoteIdent(driver, table)
	if err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(qt)

	if column != "" {
		qc, err := QuoteIdent(driver, column)
		if err != nil {
			return "", fmt.Errorf("invalid column name: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("empty IN list for column %s", column)
		}
		b.WriteString(" WHERE ")
		b.WriteString(qc)
		b.WriteString(" IN (")
		for i := 1; i <= n; i++ {
			if i > 1 {
				b.WriteString(", ")
			}
			b.WriteString(Placeholder(driver, i))
		}
		b.WriteString(")")
	}

	if orderBy != "" {
		qo, err := QuoteIdent(driver, orderBy)
		if err != nil {
			return "", fmt.Errorf("invalid order column: %w", err)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(qo)
	}
	return b.String(), nil
}
