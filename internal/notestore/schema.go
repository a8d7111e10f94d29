// Package notestore persists note rows in SQLite, adapting to whichever
// optional columns the live notes table carries.
package notestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/voxnotes/internal/models"
)

// fullSchemaSQL is the newest table shape; older stores lack orig_text/en_text
// and/or category.
const fullSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id                 INTEGER PRIMARY KEY,
	filename           VARCHAR NOT NULL,
	language           VARCHAR,
	created_at         DATETIME,
	transcription_file VARCHAR,
	docx_file          VARCHAR,
	audio_file         VARCHAR,
	orig_text          TEXT,
	en_text            TEXT,
	category           VARCHAR DEFAULT 'Others'
);

CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
`

const uniqueAudioSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_audio_file ON notes(audio_file)`

// DB wraps a sql.DB with the capabilities detected at open time.
type DB struct {
	conn *sql.DB
	caps models.Capabilities
}

// Open opens (or creates) the SQLite database, probes the notes table and
// creates it with the full shape when absent.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("notestore: open db: %w", err)
	}
	db, err := openConn(ctx, conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func openConn(ctx context.Context, conn *sql.DB, logger *slog.Logger) (*DB, error) {
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("notestore: ping: %w", err)
	}
	caps, err := Probe(ctx, conn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, fullSchemaSQL); err != nil {
		return nil, fmt.Errorf("notestore: apply schema: %w", err)
	}
	// Older stores may already hold duplicate audio names; the index is then skipped.
	if _, err := conn.ExecContext(ctx, uniqueAudioSQL); err != nil {
		logger.Warn("notestore: unique audio_file index not created", slog.String("error", err.Error()))
	}
	logger.Info("notestore: schema detected",
		slog.Bool("text_columns", caps.HasTextColumns),
		slog.Bool("category_column", caps.HasCategoryColumn))
	return &DB{conn: conn, caps: caps}, nil
}

// Capabilities returns the column set detected at open time.
func (db *DB) Capabilities() models.Capabilities {
	return db.caps
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
