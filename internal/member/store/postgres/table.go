package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"membership/internal/membership/models"
	id "membership/pkg/domain"
	"membership/pkg/platform/sentinel"
)

// Schema creates the members table and the record type index used for the
// latest id lookup.
const Schema = `
CREATE TABLE IF NOT EXISTS members (
	pk                TEXT PRIMARY KEY,
	sk                TEXT NOT NULL,
	full_name         TEXT NOT NULL,
	email             TEXT NOT NULL,
	telephone         TEXT NOT NULL,
	postcode          TEXT NOT NULL,
	membership_type   TEXT NOT NULL,
	laa_status        TEXT NOT NULL,
	membership_status TEXT NOT NULL,
	record_type       TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS members_record_type_pk_idx ON members (record_type, pk DESC);
`

const uniqueViolation = "23505"

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Table struct {
	db DB
}

func New(db DB) *Table {
	return &Table{db: db}
}

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate members schema: %w", err)
	}
	return nil
}

func (t *Table) LatestMemberID(ctx context.Context) (id.MemberID, error) {
	var pk string
	err := t.db.QueryRow(ctx,
		`SELECT pk FROM members WHERE record_type = $1 ORDER BY pk DESC LIMIT 1`,
		models.RecordTypeMember,
	).Scan(&pk)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest member: %w", err)
	}
	return id.ParseMemberID(pk)
}

func (t *Table) PutIfAbsent(ctx context.Context, r models.Record) error {
	tag, err := t.db.Exec(ctx, `
		INSERT INTO members (
			pk, sk, full_name, email, telephone, postcode, membership_type,
			laa_status, membership_status, record_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (pk) DO NOTHING`,
		r.PK, r.SK, r.FullName, r.Email, r.Telephone, r.Postcode, r.MembershipType,
		r.LAAStatus, string(r.MembershipStatus), r.RecordType, r.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("member %s: %w", r.PK, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert member %s: %w", r.PK, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", r.PK, sentinel.ErrConflict)
	}
	return nil
}

func (t *Table) Get(ctx context.Context, memberID id.MemberID) (models.Record, error) {
	var (
		r      models.Record
		status string
	)
	err := t.db.QueryRow(ctx, `
		SELECT pk, sk, full_name, email, telephone, postcode, membership_type,
			laa_status, membership_status, record_type, created_at
		FROM members WHERE pk = $1`,
		memberID.String(),
	).Scan(
		&r.PK, &r.SK, &r.FullName, &r.Email, &r.Telephone, &r.Postcode, &r.MembershipType,
		&r.LAAStatus, &status, &r.RecordType, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Record{}, fmt.Errorf("member %s: %w", memberID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("get member %s: %w", memberID, err)
	}
	r.MembershipStatus = id.MembershipStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}
