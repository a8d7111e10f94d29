package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/starford/voxnotes/internal/models"
)

// Probe inspects the notes table and reports which optional columns exist.
// A missing table is a fresh store and gets the full shape. Probe only reads.
func Probe(ctx context.Context, conn *sql.DB) (models.Capabilities, error) {
	var name string
	err := conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'notes'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FullCapabilities(), nil
	}
	if err != nil {
		return models.Capabilities{}, fmt.Errorf("notestore: probe table: %w", err)
	}

	cols, err := columns(ctx, conn, "notes")
	if err != nil {
		return models.Capabilities{}, err
	}
	_, orig := cols["orig_text"]
	_, en := cols["en_text"]
	_, cat := cols["category"]
	return models.Capabilities{
		HasTextColumns:    orig && en,
		HasCategoryColumn: cat,
	}, nil
}

// ProbeFile probes the database at path opened read-only. A missing file is
// a fresh store.
func ProbeFile(ctx context.Context, path string) (models.Capabilities, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return models.FullCapabilities(), nil
	}
	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return models.Capabilities{}, fmt.Errorf("notestore: open db: %w", err)
	}
	defer conn.Close()
	return Probe(ctx, conn)
}

func columns(ctx context.Context, conn *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("notestore: table info: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("notestore: scan column: %w", err)
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}
