package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"geoprivacy/internal/proof/models"
	id "geoprivacy/pkg/domain"
	"geoprivacy/pkg/geo"
	"geoprivacy/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const recordColumns = `id, zero_knowledge_token, verification_radius, center_lat, center_lon,
	proof_timestamp, expiration_date, is_valid, user_id, location, location_hash, proof,
	created_at, updated_at`

// PostgresStore persists records in the location_proofs table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

type PostgresOption func(*PostgresStore)

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) { s.now = now }
}

func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save inserts the record as a single statement. A duplicate token maps to
// sentinel.ErrConflict and leaves nothing behind.
func (s *PostgresStore) Save(ctx context.Context, record *models.Record) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO location_proofs (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		uuid.UUID(record.ID),
		string(record.Token),
		record.VerificationRadius,
		record.CenterLat,
		record.CenterLon,
		record.ProofTimestamp.UTC(),
		record.ExpirationDate.UTC(),
		record.IsValid,
		nullableUser(record.UserID),
		nullableString(record.Location),
		nullableString(record.LocationHash),
		nullableString(record.Proof),
		now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("save location proof: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save location proof: %w", err)
	}
	record.CreatedAt, record.UpdatedAt = now, now
	return nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, token models.Token) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM location_proofs WHERE zero_knowledge_token = $1`,
		string(token))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find location proof: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM location_proofs WHERE user_id = $1 ORDER BY proof_timestamp DESC`,
		uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list location proofs by user: %w", err)
	}
	return collect(rows)
}

// ListByTokens fetches every known record among tokens in one round trip.
func (s *PostgresStore) ListByTokens(ctx context.Context, tokens []models.Token) ([]*models.Record, error) {
	if len(tokens) == 0 {
		return []*models.Record{}, nil
	}
	raw := make([]string, len(tokens))
	for i, t := range tokens {
		raw[i] = string(t)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM location_proofs WHERE zero_knowledge_token = ANY($1::text[])`,
		pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("list location proofs by token: %w", err)
	}
	return collect(rows)
}

// FindValidNearby narrows candidates with an indexed bounding box, then keeps
// only those within radiusMeters by haversine distance.
func (s *PostgresStore) FindValidNearby(ctx context.Context, lat, lon, radiusMeters float64, now time.Time) ([]*models.Record, error) {
	minLat, maxLat, minLon, maxLon := geo.BoundingBox(lat, lon, radiusMeters)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM location_proofs
		WHERE is_valid
		  AND expiration_date >= $1
		  AND center_lat BETWEEN $2 AND $3
		  AND center_lon BETWEEN $4 AND $5
		ORDER BY proof_timestamp DESC`,
		now.UTC(), minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("find nearby location proofs: %w", err)
	}
	candidates, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, r := range candidates {
		if geo.HaversineMeters(lat, lon, r.CenterLat, r.CenterLon) <= radiusMeters {
			out = append(out, r)
		}
	}
	return out, nil
}

// Invalidate clears is_valid. Already-invalid and unknown tokens are no-ops.
func (s *PostgresStore) Invalidate(ctx context.Context, token models.Token, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE location_proofs SET is_valid = FALSE, updated_at = $2 WHERE zero_knowledge_token = $1 AND is_valid`,
		string(token), now.UTC())
	if err != nil {
		return fmt.Errorf("invalidate location proof: %w", err)
	}
	return nil
}

// CleanExpired removes every expired record in one statement, so a sweep is
// all-or-nothing.
func (s *PostgresStore) CleanExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM location_proofs WHERE expiration_date < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("clean expired location proofs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clean expired location proofs: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r                         models.Record
		recordID                  uuid.UUID
		token                     string
		userID                    sql.NullString
		location, hash, proofBody sql.NullString
	)
	err := row.Scan(
		&recordID, &token, &r.VerificationRadius, &r.CenterLat, &r.CenterLon,
		&r.ProofTimestamp, &r.ExpirationDate, &r.IsValid, &userID, &location, &hash, &proofBody,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.ProofID(recordID)
	r.Token = models.Token(strings.TrimSpace(token))
	if userID.Valid {
		parsed, err := uuid.Parse(userID.String)
		if err != nil {
			return nil, fmt.Errorf("scan user_id: %w", err)
		}
		r.UserID = id.UserID(parsed)
	}
	r.Location = location.String
	r.LocationHash = strings.TrimSpace(hash.String)
	r.Proof = proofBody.String
	return &r, nil
}

func collect(rows *sql.Rows) ([]*models.Record, error) {
	defer rows.Close()
	out := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location proof: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location proofs: %w", err)
	}
	return out, nil
}

func nullableUser(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return uuid.UUID(userID).String()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
