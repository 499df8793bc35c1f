package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pgx surface the store uses. *pgxpool.Pool satisfies it; so does
// pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps templates and profiles in postgres. The template body
// lives in a jsonb column; identity, supplier, layout and the CAS revision
// are columns so lookups and the prune job stay in SQL.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS extraction_templates (
			id           text PRIMARY KEY,
			supplier_key text NOT NULL,
			layout_type  text NOT NULL,
			data         jsonb NOT NULL,
			revision     bigint NOT NULL DEFAULT 1,
			created_at   timestamptz NOT NULL DEFAULT now(),
			updated_at   timestamptz NOT NULL DEFAULT now(),
			last_used_at timestamptz
		);
		CREATE INDEX IF NOT EXISTS extraction_templates_supplier_idx
			ON extraction_templates (supplier_key);
		CREATE TABLE IF NOT EXISTS supplier_profiles (
			supplier_key text PRIMARY KEY,
			data         jsonb NOT NULL,
			updated_at   timestamptz NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Template, error) {
	query := `SELECT data, revision FROM extraction_templates WHERE id = $1`

	var data []byte
	var revision int64
	err := s.db.QueryRow(ctx, query, id).Scan(&data, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template %q: %w", id, err)
	}
	return decodeTemplate(data, revision)
}

func (s *PostgresStore) Create(ctx context.Context, t *Template) error {
	query := `
		INSERT INTO extraction_templates (id, supplier_key, layout_type, data, revision, created_at, updated_at, last_used_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $7)
	`

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode template %q: %w", t.ID, err)
	}
	_, err = s.db.Exec(ctx, query,
		t.ID, t.SupplierKey, string(t.LayoutType), data,
		t.CreatedAt, t.UpdatedAt, nullTime(t.Performance.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("create template %q: %w", t.ID, err)
	}
	t.Revision = 1
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *Template) error {
	query := `
		UPDATE extraction_templates
		SET data = $2, revision = revision + 1, updated_at = $3, last_used_at = $4
		WHERE id = $1 AND revision = $5
	`

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode template %q: %w", t.ID, err)
	}
	tag, err := s.db.Exec(ctx, query,
		t.ID, data, t.UpdatedAt, nullTime(t.Performance.LastUsedAt), t.Revision,
	)
	if err != nil {
		return fmt.Errorf("update template %q: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %q at revision %d: %w", t.ID, t.Revision, ErrTemplateConflict)
	}
	t.Revision++
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, supplierKey string) ([]*Template, error) {
	query := `
		SELECT data, revision FROM extraction_templates
		WHERE supplier_key = $1 OR supplier_key = $2
		ORDER BY updated_at DESC
	`

	rows, err := s.db.Query(ctx, query, supplierKey, GenericSupplier)
	if err != nil {
		return nil, fmt.Errorf("list templates for %q: %w", supplierKey, err)
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		var data []byte
		var revision int64
		if err := rows.Scan(&data, &revision); err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		t, err := decodeTemplate(data, revision)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Prune(ctx context.Context, unusedSince time.Time, maxSuccessRate float64) (int, error) {
	query := `
		DELETE FROM extraction_templates
		WHERE COALESCE(last_used_at, created_at) < $1
		  AND CASE WHEN COALESCE((data->'performance'->>'usageCount')::float, 0) = 0 THEN 0
		           ELSE (data->'performance'->>'successCount')::float
		                / (data->'performance'->>'usageCount')::float
		      END < $2
	`

	tag, err := s.db.Exec(ctx, query, unusedSince, maxSuccessRate)
	if err != nil {
		return 0, fmt.Errorf("prune templates: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, supplierKey string) (*SupplierProfile, error) {
	query := `SELECT data FROM supplier_profiles WHERE supplier_key = $1`

	var data []byte
	err := s.db.QueryRow(ctx, query, supplierKey).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", supplierKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", supplierKey, err)
	}

	var p SupplierProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", supplierKey, err)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *SupplierProfile) error {
	query := `
		INSERT INTO supplier_profiles (supplier_key, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (supplier_key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.SupplierKey, err)
	}
	if _, err := s.db.Exec(ctx, query, p.SupplierKey, data, p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert profile %q: %w", p.SupplierKey, err)
	}
	return nil
}

func decodeTemplate(data []byte, revision int64) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	t.Revision = revision
	return &t, nil
}

// nullTime maps the zero time onto SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
