package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// InitSchema creates the tables that are managed with plain SQL rather than GORM.
func InitSchema(db Querier) error {
	sqlStmt := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		image_path TEXT PRIMARY KEY,
		thumbnail_path TEXT NOT NULL,
		generated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("failed to create thumbnails table: %w", err)
	}
	return nil
}
