package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect selects the SQL flavour the store speaks
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// driverName returns the database/sql driver registered for the dialect
func (d Dialect) driverName() string {
	return string(d)
}

// migrationRoot is the embedded directory holding the dialect's migrations
func (d Dialect) migrationRoot() string {
	return string(d)
}

// upsert builds an insert that overwrites the listed columns when the key already exists
func (d Dialect) upsert(table string, conflict []string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	var sets []string
	for _, col := range columns {
		if contains(conflict, col) {
			continue
		}
		switch d {
		case DialectMySQL:
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		default:
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	switch d {
	case DialectMySQL:
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		return insert + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", strings.Join(conflict, ", ")) + strings.Join(sets, ", ")
	}
}

// insertIgnore is the dialect's "insert unless the key exists" prefix
func (d Dialect) insertIgnore() string {
	if d == DialectMySQL {
		return "INSERT IGNORE"
	}
	return "INSERT OR IGNORE"
}

// isUniqueViolation reports whether err is a duplicate key error in either dialect
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
