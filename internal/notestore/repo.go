package notestore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// selectColumns returns the projection for the detected shape. Absent
// optional columns are projected as constants so every row scans the same way.
func (db *DB) selectColumns() string {
	cols := []string{"id", "filename", "language", "created_at", "transcription_file", "docx_file", "audio_file"}
	if db.caps.HasTextColumns {
		cols = append(cols, "orig_text", "en_text")
	} else {
		cols = append(cols, "NULL AS orig_text", "NULL AS en_text")
	}
	if db.caps.HasCategoryColumn {
		cols = append(cols, "category")
	} else {
		cols = append(cols, "NULL AS category")
	}
	return strings.Join(cols, ", ")
}

// Insert writes a note row using only the columns the live schema supports;
// unsupported fields are dropped.
func (db *DB) Insert(ctx context.Context, in models.NoteInput) (int64, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	cols := []string{"filename", "language", "created_at", "transcription_file", "docx_file", "audio_file"}
	args := []any{
		in.Filename, string(in.Language), createdAt.UTC(),
		nullable(in.TranscriptionFile), nullable(in.DocxFile), in.AudioFile,
	}
	if db.caps.HasTextColumns {
		cols = append(cols, "orig_text", "en_text")
		args = append(args, in.OrigText, in.EnText)
	}
	if db.caps.HasCategoryColumn {
		category := in.Category
		if category == "" {
			category = models.DefaultCategory
		}
		cols = append(cols, "category")
		args = append(args, category)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO notes ("+strings.Join(cols, ", ")+") VALUES ("+placeholders+")", args...)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "notestore: insert note", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "notestore: insert id", err)
	}
	return id, nil
}

// Query lists notes newest first. filterText matches filename and, when the
// text columns exist, orig_text and en_text (case-insensitive substring);
// category is an equality filter combined with AND.
func (db *DB) Query(ctx context.Context, filterText, category string) ([]models.Note, error) {
	var (
		where []string
		args  []any
	)
	if filterText != "" {
		like := "%" + likeEscaper.Replace(filterText) + "%"
		conds := []string{`filename LIKE ? ESCAPE '\'`}
		args = append(args, like)
		if db.caps.HasTextColumns {
			conds = append(conds, `orig_text LIKE ? ESCAPE '\'`, `en_text LIKE ? ESCAPE '\'`)
			args = append(args, like, like)
		}
		where = append(where, "("+strings.Join(conds, " OR ")+")")
	}
	if category != "" {
		if db.caps.HasCategoryColumn {
			where = append(where, "COALESCE(category, '"+models.DefaultCategory+"') = ?")
			args = append(args, category)
		} else if category != models.DefaultCategory {
			// Every row of a store without the column is in the default category.
			return []models.Note{}, nil
		}
	}

	q := "SELECT " + db.selectColumns() + " FROM notes"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "notestore: query notes", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "notestore: query notes", err)
	}
	return out, nil
}

// GetByAudioFile returns the row keyed by audioFile, or nil when there is none.
func (db *DB) GetByAudioFile(ctx context.Context, audioFile string) (*models.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+db.selectColumns()+" FROM notes WHERE audio_file = ? ORDER BY id LIMIT 1", audioFile)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "notestore: get note", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "notestore: get note", err)
		}
		return nil, nil
	}
	return scanNote(rows)
}

// UpdateByAudioFile rewrites the filename and artifact columns of the row whose
// current audio_file matches.
func (db *DB) UpdateByAudioFile(ctx context.Context, audioFile string, upd models.NoteUpdate) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET
			filename           = ?,
			transcription_file = ?,
			docx_file          = ?,
			audio_file         = ?
		WHERE audio_file = ?
	`, upd.Filename, nullablePtr(upd.TranscriptionFile), nullablePtr(upd.DocxFile), upd.AudioFile, audioFile)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "notestore: update note", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "notestore: update note", err)
	}
	return n, nil
}

// DeleteByAudioFile removes the row keyed by audioFile.
func (db *DB) DeleteByAudioFile(ctx context.Context, audioFile string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE audio_file = ?`, audioFile)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "notestore: delete note", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "notestore: delete note", err)
	}
	return n, nil
}

// Categories returns the distinct categories in use, or nil when the store
// has no category column.
func (db *DB) Categories(ctx context.Context) ([]string, error) {
	if !db.caps.HasCategoryColumn {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT COALESCE(category, '`+models.DefaultCategory+`') FROM notes ORDER BY 1`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "notestore: categories", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "notestore: categories", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanNote(rows *sql.Rows) (*models.Note, error) {
	var (
		n                          models.Note
		language, txt, docx, audio sql.NullString
		orig, en, category         sql.NullString
		createdAt                  sql.NullTime
	)
	if err := rows.Scan(&n.ID, &n.Filename, &language, &createdAt, &txt, &docx, &audio,
		&orig, &en, &category); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "notestore: scan note", err)
	}
	n.Language = models.Language(language.String)
	if n.Language == "" {
		n.Language = models.LanguageUnknown
	}
	if createdAt.Valid {
		n.CreatedAt = createdAt.Time.UTC()
	}
	n.TranscriptionFile = txt.String
	n.DocxFile = docx.String
	n.AudioFile = audio.String
	n.OrigText = orig.String
	n.EnText = en.String
	n.Category = category.String
	if n.Category == "" {
		n.Category = models.DefaultCategory
	}
	return &n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullablePtr(s *string) any {
	if s == nil {
		return nil
	}
	return nullable(*s)
}
