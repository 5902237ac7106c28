package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

// PostgresTenantStore implements tenant.Store against the shared
// fhir.fhir_tenant table (see migrations/00001_fhir_resource.sql), the
// administrative counterpart to the resource version tables in this package.
type PostgresTenantStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantStore builds a tenant.Store backed by pool.
func NewPostgresTenantStore(pool *pgxpool.Pool) *PostgresTenantStore {
	return &PostgresTenantStore{pool: pool}
}

const tenantColumns = `guid, internal_id, code, display_name, enabled, settings, secret_hash, created_at, updated_at`

func (s *PostgresTenantStore) GetByGUID(ctx context.Context, guid uuid.UUID) (*tenant.Record, error) {
	query := `SELECT ` + tenantColumns + ` FROM fhir.fhir_tenant WHERE guid=$1`
	row := s.pool.QueryRow(ctx, query, guid)
	rec, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	return rec, err
}

func (s *PostgresTenantStore) Create(ctx context.Context, rec *tenant.Record) error {
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	query := `INSERT INTO fhir.fhir_tenant (` + tenantColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.pool.Exec(ctx, query, rec.GUID, rec.InternalID, rec.Code, rec.DisplayName, rec.Enabled, rec.Settings, rec.SecretHash, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *PostgresTenantStore) Update(ctx context.Context, rec *tenant.Record) error {
	rec.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE fhir.fhir_tenant
		SET code=$2, display_name=$3, enabled=$4, settings=$5, secret_hash=$6, updated_at=$7
		WHERE guid=$1`
	tag, err := s.pool.Exec(ctx, query, rec.GUID, rec.Code, rec.DisplayName, rec.Enabled, rec.Settings, rec.SecretHash, rec.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

func (s *PostgresTenantStore) Delete(ctx context.Context, guid uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fhir.fhir_tenant WHERE guid=$1`, guid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

func (s *PostgresTenantStore) List(ctx context.Context) ([]*tenant.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tenantColumns+` FROM fhir.fhir_tenant ORDER BY internal_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tenant.Record
	for rows.Next() {
		rec, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*tenant.Record, error) {
	var rec tenant.Record
	err := row.Scan(&rec.GUID, &rec.InternalID, &rec.Code, &rec.DisplayName, &rec.Enabled, &rec.Settings, &rec.SecretHash, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
