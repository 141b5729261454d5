package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Record is the metadata entity for one uploaded image. Field names on
// the wire match the stored item exactly; PrimaryTag is the first
// element of Tags and is the only tag value indexed for lookup.
type Record struct {
	ImageID     string   `json:"image_id"`
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	PrimaryTag  string   `json:"tag,omitempty"`
	UploadDate  string   `json:"upload_date"`
	ContentType string   `json:"content_type"`
	Size        int64    `json:"size"`
}

// Filter selects a single secondary access path for Query. Only one
// dimension is honored per call; Owner wins when both are set.
type Filter struct {
	Owner string
	Tag   string
}

// RecordStore persists image metadata keyed by image id, with secondary
// lookups by owner and by primary tag.
type RecordStore interface {
	// Put upserts the full record by its image id.
	Put(ctx context.Context, rec Record) error

	// Get returns the record for id, or an error classified as
	// KindNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes the record for id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// Query returns records matching f. Owner and tag queries are
	// ordered by upload date descending; an unfiltered query is a full
	// scan with no ordering guarantee.
	Query(ctx context.Context, f Filter) ([]Record, error)
}

// SQLiteStore is a RecordStore backed by a SQLite database. The table
// carries two secondary indexes, (user_id, upload_date) and
// (tag, upload_date), mirroring the access paths Query supports.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures
// the schema for table exists.
func NewSQLiteStore(ctx context.Context, dbPath, table string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("dbPath must not be empty")
	}
	if table == "" {
		return nil, errors.New("table must not be empty")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db, table: table}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			image_id     TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			tags         TEXT NOT NULL DEFAULT '[]',
			tag          TEXT,
			upload_date  TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size         INTEGER NOT NULL
		);`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(user_id, upload_date);`,
			"idx_"+s.table+"_user", s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(tag, upload_date);`,
			"idx_"+s.table+"_tag", s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return &Error{Op: "record.Put", Kind: KindUnknown, Err: err}
	}

	var primaryTag sql.NullString
	if rec.PrimaryTag != "" {
		primaryTag = sql.NullString{String: rec.PrimaryTag, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (image_id, user_id, title, description, tags, tag, upload_date, content_type, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(image_id) DO UPDATE SET
			user_id=excluded.user_id,
			title=excluded.title,
			description=excluded.description,
			tags=excluded.tags,
			tag=excluded.tag,
			upload_date=excluded.upload_date,
			content_type=excluded.content_type,
			size=excluded.size`, s.table),
		rec.ImageID, rec.UserID, rec.Title, rec.Description, string(tags),
		primaryTag, rec.UploadDate, rec.ContentType, rec.Size,
	)
	if err != nil {
		return &Error{Op: "record.Put", Kind: classifyNetwork(err, KindUnknown), Err: err}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT image_id, user_id, title, description, tags, tag, upload_date, content_type, size
		 FROM %q WHERE image_id = ?`, s.table), id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, &Error{Op: "record.Get", Kind: KindNotFound, Err: err}
	}
	if err != nil {
		return Record{}, &Error{Op: "record.Get", Kind: KindUnknown, Err: err}
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE image_id = ?`, s.table), id)
	if err != nil {
		return &Error{Op: "record.Delete", Kind: classifyNetwork(err, KindUnknown), Err: err}
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	query := fmt.Sprintf(
		`SELECT image_id, user_id, title, description, tags, tag, upload_date, content_type, size FROM %q`,
		s.table)
	var args []any

	switch {
	case f.Owner != "":
		query += ` WHERE user_id = ? ORDER BY upload_date DESC`
		args = append(args, f.Owner)
	case f.Tag != "":
		query += ` WHERE tag = ? ORDER BY upload_date DESC`
		args = append(args, f.Tag)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &Error{Op: "record.Query", Kind: classifyNetwork(err, KindUnknown), Err: err}
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, &Error{Op: "record.Query", Kind: KindUnknown, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "record.Query", Kind: classifyNetwork(err, KindUnknown), Err: err}
	}
	return records, nil
}

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var (
		rec  Record
		tags string
		tag  sql.NullString
	)
	if err := scan(&rec.ImageID, &rec.UserID, &rec.Title, &rec.Description,
		&tags, &tag, &rec.UploadDate, &rec.ContentType, &rec.Size); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return Record{}, fmt.Errorf("decode tags: %w", err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if tag.Valid {
		rec.PrimaryTag = tag.String
	}
	return rec, nil
}
