package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/parcelfolio/parcelfolio/internal/db"
	"github.com/parcelfolio/parcelfolio/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const propertyColumns = `id, user_id, parcel_number, address, city, state, zip,
	geometry, lat, lon, attributes, notes, tags, insurance_provider,
	maintenance, raw_payload, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_property":    `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1 AND user_id = $2`,
	"delete_property": `DELETE FROM properties WHERE id = $1 AND user_id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id            TEXT NOT NULL,
	parcel_number      TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	zip                TEXT NOT NULL DEFAULT '',
	geometry           JSONB,
	lat                DOUBLE PRECISION NOT NULL DEFAULT 0,
	lon                DOUBLE PRECISION NOT NULL DEFAULT 0,
	attributes         JSONB,
	notes              TEXT NOT NULL DEFAULT '',
	tags               TEXT[] NOT NULL DEFAULT '{}',
	insurance_provider TEXT NOT NULL DEFAULT '',
	maintenance        JSONB,
	raw_payload        JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_properties_user ON properties(user_id);
CREATE INDEX IF NOT EXISTS idx_properties_user_city ON properties(user_id, city);

-- Backstop for concurrent creates racing past the duplicate pre-check.
CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_user_apn
	ON properties(user_id, lower(parcel_number)) WHERE parcel_number <> '';
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// rowScanner matches both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*model.PropertyRecord, error) {
	var rec model.PropertyRecord
	var geometry, attributes, maintenance, rawPayload []byte

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ParcelNumber, &rec.Address, &rec.City,
		&rec.State, &rec.ZipCode, &geometry, &rec.Lat, &rec.Lon,
		&attributes, &rec.Notes, &rec.Tags, &rec.InsuranceProvider,
		&maintenance, &rawPayload, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Geometry = geometry
	rec.RawPayload = rawPayload
	if attributes != nil {
		if err := json.Unmarshal(attributes, &rec.Attributes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attributes")
		}
	}
	if maintenance != nil {
		if err := json.Unmarshal(maintenance, &rec.Maintenance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal maintenance")
		}
	}
	return &rec, nil
}

func marshalBag(attrs model.Attributes) ([]byte, error) {
	if attrs == nil {
		return nil, nil
	}
	return json.Marshal(attrs)
}

func marshalMaintenance(entries []model.MaintenanceEntry) ([]byte, error) {
	if entries == nil {
		return nil, nil
	}
	return json.Marshal(entries)
}

func (s *PostgresStore) Get(ctx context.Context, id, userID string) (*model.PropertyRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	rec, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get property %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *model.PropertyRecord) (*model.PropertyRecord, error) {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	attrs, err := marshalBag(rec.Attributes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal attributes")
	}
	maintenance, err := marshalMaintenance(rec.Maintenance)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal maintenance")
	}

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO properties (id, user_id, parcel_number, address, city, state, zip,
			geometry, lat, lon, attributes, notes, tags, insurance_provider,
			maintenance, raw_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING `+propertyColumns,
		id, rec.UserID, rec.ParcelNumber, rec.Address, rec.City, rec.State,
		rec.ZipCode, []byte(rec.Geometry), rec.Lat, rec.Lon, attrs, rec.Notes,
		tags, rec.InsuranceProvider, maintenance, []byte(rec.RawPayload), now, now,
	)

	created, err := scanProperty(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, eris.Wrapf(ErrDuplicateParcel, "postgres: insert property %s", rec.ParcelNumber)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// INSERT ... RETURNING yielding nothing should not happen; the
			// caller treats a nil record as a persistence integrity failure.
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: insert property")
	}
	return created, nil
}

func (s *PostgresStore) Update(ctx context.Context, id, userID string, rec *model.PropertyRecord) (*model.PropertyRecord, error) {
	attrs, err := marshalBag(rec.Attributes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal attributes")
	}
	maintenance, err := marshalMaintenance(rec.Maintenance)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal maintenance")
	}

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE properties SET parcel_number = $1, address = $2, city = $3,
			state = $4, zip = $5, geometry = $6, lat = $7, lon = $8,
			attributes = $9, notes = $10, tags = $11, insurance_provider = $12,
			maintenance = $13, raw_payload = $14, updated_at = $15
		WHERE id = $16 AND user_id = $17
		RETURNING `+propertyColumns,
		rec.ParcelNumber, rec.Address, rec.City, rec.State, rec.ZipCode,
		[]byte(rec.Geometry), rec.Lat, rec.Lon, attrs, rec.Notes, tags,
		rec.InsuranceProvider, maintenance, []byte(rec.RawPayload),
		time.Now().UTC(), id, userID,
	)

	updated, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: property not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update property %s", id)
	}
	return updated, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, f Filter) ([]model.PropertyRecord, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if f.City != "" {
		args = append(args, f.City)
		where = append(where, fmt.Sprintf("city ILIKE $%d", len(args)))
	}
	if f.State != "" {
		args = append(args, f.State)
		where = append(where, fmt.Sprintf("state ILIKE $%d", len(args)))
	}
	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		where = append(where, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(address ILIKE $%d OR parcel_number ILIKE $%d OR zip ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + propertyColumns + ` FROM properties WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list properties")
	}
	defer rows.Close()

	var records []model.PropertyRecord
	for rows.Next() {
		rec, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate properties")
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM properties WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete property %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete property %s", id)
	}
	return nil
}
