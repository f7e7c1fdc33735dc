package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/parcelfolio/parcelfolio/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// single-user deployments; JSON columns are stored as TEXT.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	parcel_number      TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	zip                TEXT NOT NULL DEFAULT '',
	geometry           TEXT,
	lat                REAL NOT NULL DEFAULT 0,
	lon                REAL NOT NULL DEFAULT 0,
	attributes         TEXT,
	notes              TEXT NOT NULL DEFAULT '',
	tags               TEXT NOT NULL DEFAULT '[]',
	insurance_provider TEXT NOT NULL DEFAULT '',
	maintenance        TEXT,
	raw_payload        TEXT,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_properties_user ON properties(user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_user_apn
	ON properties(user_id, lower(parcel_number)) WHERE parcel_number <> '';
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, user_id, parcel_number, address, city, state, zip,
	geometry, lat, lon, attributes, notes, tags, insurance_provider,
	maintenance, raw_payload, created_at, updated_at`

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProperty(row sqlScanner) (*model.PropertyRecord, error) {
	var rec model.PropertyRecord
	var geometry, attributes, maintenance, rawPayload sql.NullString
	var tags string

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ParcelNumber, &rec.Address, &rec.City,
		&rec.State, &rec.ZipCode, &geometry, &rec.Lat, &rec.Lon,
		&attributes, &rec.Notes, &tags, &rec.InsuranceProvider,
		&maintenance, &rawPayload, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if geometry.Valid {
		rec.Geometry = json.RawMessage(geometry.String)
	}
	if rawPayload.Valid {
		rec.RawPayload = json.RawMessage(rawPayload.String)
	}
	if attributes.Valid {
		if err := json.Unmarshal([]byte(attributes.String), &rec.Attributes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal attributes")
		}
	}
	if maintenance.Valid {
		if err := json.Unmarshal([]byte(maintenance.String), &rec.Maintenance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal maintenance")
		}
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tags")
	}
	return &rec, nil
}

func sqliteJSONArgs(rec *model.PropertyRecord) (attrs, maintenance, tags any, err error) {
	tagsList := rec.Tags
	if tagsList == nil {
		tagsList = []string{}
	}
	tagsJSON, err := json.Marshal(tagsList)
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "sqlite: marshal tags")
	}

	var attrsArg, maintArg any
	if rec.Attributes != nil {
		b, err := json.Marshal(rec.Attributes)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "sqlite: marshal attributes")
		}
		attrsArg = string(b)
	}
	if rec.Maintenance != nil {
		b, err := json.Marshal(rec.Maintenance)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "sqlite: marshal maintenance")
		}
		maintArg = string(b)
	}
	return attrsArg, maintArg, string(tagsJSON), nil
}

func nullableRaw(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func (s *SQLiteStore) Get(ctx context.Context, id, userID string) (*model.PropertyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM properties WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	rec, err := scanSQLiteProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get property %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) Create(ctx context.Context, rec *model.PropertyRecord) (*model.PropertyRecord, error) {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	attrs, maintenance, tags, err := sqliteJSONArgs(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO properties (id, user_id, parcel_number, address, city, state, zip,
			geometry, lat, lon, attributes, notes, tags, insurance_provider,
			maintenance, raw_payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.UserID, rec.ParcelNumber, rec.Address, rec.City, rec.State,
		rec.ZipCode, nullableRaw(rec.Geometry), rec.Lat, rec.Lon, attrs,
		rec.Notes, tags, rec.InsuranceProvider, maintenance,
		nullableRaw(rec.RawPayload), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Wrapf(ErrDuplicateParcel, "sqlite: insert property %s", rec.ParcelNumber)
		}
		return nil, eris.Wrap(err, "sqlite: insert property")
	}

	return s.Get(ctx, id, rec.UserID)
}

func (s *SQLiteStore) Update(ctx context.Context, id, userID string, rec *model.PropertyRecord) (*model.PropertyRecord, error) {
	attrs, maintenance, tags, err := sqliteJSONArgs(rec)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE properties SET parcel_number = ?, address = ?, city = ?,
			state = ?, zip = ?, geometry = ?, lat = ?, lon = ?, attributes = ?,
			notes = ?, tags = ?, insurance_provider = ?, maintenance = ?,
			raw_payload = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		rec.ParcelNumber, rec.Address, rec.City, rec.State, rec.ZipCode,
		nullableRaw(rec.Geometry), rec.Lat, rec.Lon, attrs, rec.Notes, tags,
		rec.InsuranceProvider, maintenance, nullableRaw(rec.RawPayload),
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update property %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, eris.Errorf("sqlite: property not found: %s", id)
	}

	return s.Get(ctx, id, userID)
}

func (s *SQLiteStore) List(ctx context.Context, userID string, f Filter) ([]model.PropertyRecord, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.City != "" {
		where = append(where, "city LIKE ?")
		args = append(args, f.City)
	}
	if f.State != "" {
		where = append(where, "state LIKE ?")
		args = append(args, f.State)
	}
	// Tag filtering on JSON-encoded tags; substring match on the quoted value.
	for _, tag := range f.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, fmt.Sprintf(`%%%q%%`, tag))
	}
	if f.Search != "" {
		where = append(where, "(address LIKE ? OR parcel_number LIKE ? OR zip LIKE ?)")
		needle := "%" + f.Search + "%"
		args = append(args, needle, needle, needle)
	}

	query := `SELECT ` + sqliteColumns + ` FROM properties WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list properties")
	}
	defer rows.Close()

	var records []model.PropertyRecord
	for rows.Next() {
		rec, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan property")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate properties")
	}
	return records, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM properties WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete property %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: delete property %s", id)
	}
	return nil
}
