package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

// PostgresBackend persists resource versions in a schema-qualified
// `fhir_resource` table — the shared backend uses the configured shared
// schema (default "fhir"); dedicated backends reuse this same type against
// their own schema, since spec section 4.5 requires dedicated schemas to
// contain "a table with identical columns" to the shared one.
//
// Grounded on pkg/pg's pgxpool.Pool connection/retry wrapper; this type
// owns only the query layer pkg/pg deliberately leaves out.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresBackend builds a backend bound to schema, which must already
// have passed registry.ValidSchemaName — this constructor re-checks it
// immediately before first use, per spec section 9's two-checkpoint rule.
func NewPostgresBackend(pool *pgxpool.Pool, schema string) (*PostgresBackend, error) {
	if !registry.ValidSchemaName(schema) {
		return nil, fmt.Errorf("storage: invalid postgres schema name %q", schema)
	}
	return &PostgresBackend{pool: pool, schema: schema}, nil
}

// table returns the schema-qualified identifier. Safe to interpolate
// because schema was validated against the safelist in NewPostgresBackend.
func (b *PostgresBackend) table() string {
	return b.schema + ".fhir_resource"
}

func (b *PostgresBackend) Save(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
			(id, tenant_id, resource_type, resource_id, fhir_version, version_id,
			 is_current, is_deleted, content, source_uri, last_updated, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, b.table())
	_, err := b.pool.Exec(ctx, query,
		rec.ID, rec.TenantID, rec.ResourceType, rec.ResourceID, rec.FHIRVersion, rec.VersionID,
		rec.IsCurrent, rec.IsDeleted, rec.Content, nullableString(rec.SourceURI), rec.LastUpdated, rec.CreatedAt)
	return err
}

// SaveAsNewCurrent marks the existing current row not-current and inserts
// rec as the new current row inside a single transaction, per spec section
// 5's transactional-per-operation requirement.
func (b *PostgresBackend) SaveAsNewCurrent(ctx context.Context, rec Record) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	markQuery := fmt.Sprintf(`UPDATE %s SET is_current=false WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3 AND is_current=true`, b.table())
	if _, err := tx.Exec(ctx, markQuery, rec.TenantID, rec.ResourceType, rec.ResourceID); err != nil {
		return err
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s
			(id, tenant_id, resource_type, resource_id, fhir_version, version_id,
			 is_current, is_deleted, content, source_uri, last_updated, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, b.table())
	if _, err := tx.Exec(ctx, insertQuery,
		rec.ID, rec.TenantID, rec.ResourceType, rec.ResourceID, rec.FHIRVersion, rec.VersionID,
		rec.IsCurrent, rec.IsDeleted, rec.Content, nullableString(rec.SourceURI), rec.LastUpdated, rec.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (b *PostgresBackend) FindCurrent(ctx context.Context, tenantID, resourceType, resourceID string) (Record, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, resource_type, resource_id, fhir_version, version_id,
		       is_current, is_deleted, content, coalesce(source_uri, ''), last_updated, created_at
		FROM %s
		WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3 AND is_current=true`, b.table())
	return b.scanOne(ctx, query, tenantID, resourceType, resourceID)
}

func (b *PostgresBackend) FindVersion(ctx context.Context, tenantID, resourceType, resourceID string, versionID int64) (Record, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, resource_type, resource_id, fhir_version, version_id,
		       is_current, is_deleted, content, coalesce(source_uri, ''), last_updated, created_at
		FROM %s
		WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3 AND version_id=$4`, b.table())
	return b.scanOne(ctx, query, tenantID, resourceType, resourceID, versionID)
}

func (b *PostgresBackend) scanOne(ctx context.Context, query string, args ...any) (Record, error) {
	row := b.pool.QueryRow(ctx, query, args...)
	var rec Record
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.ResourceType, &rec.ResourceID, &rec.FHIRVersion, &rec.VersionID,
		&rec.IsCurrent, &rec.IsDeleted, &rec.Content, &rec.SourceURI, &rec.LastUpdated, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (b *PostgresBackend) FindAllVersionsDesc(ctx context.Context, tenantID, resourceType, resourceID string) ([]Record, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, resource_type, resource_id, fhir_version, version_id,
		       is_current, is_deleted, content, coalesce(source_uri, ''), last_updated, created_at
		FROM %s
		WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3
		ORDER BY version_id DESC`, b.table())
	rows, err := b.pool.Query(ctx, query, tenantID, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ResourceType, &rec.ResourceID, &rec.FHIRVersion, &rec.VersionID,
			&rec.IsCurrent, &rec.IsDeleted, &rec.Content, &rec.SourceURI, &rec.LastUpdated, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (b *PostgresBackend) Exists(ctx context.Context, tenantID, resourceType, resourceID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3)`, b.table())
	var exists bool
	err := b.pool.QueryRow(ctx, query, tenantID, resourceType, resourceID).Scan(&exists)
	return exists, err
}

func (b *PostgresBackend) MaxVersionID(ctx context.Context, tenantID, resourceType, resourceID string) (int64, error) {
	query := fmt.Sprintf(`SELECT coalesce(max(version_id), 0) FROM %s WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3`, b.table())
	var max int64
	err := b.pool.QueryRow(ctx, query, tenantID, resourceType, resourceID).Scan(&max)
	return max, err
}

func (b *PostgresBackend) MarkAllVersionsNotCurrent(ctx context.Context, tenantID, resourceType, resourceID string) error {
	query := fmt.Sprintf(`UPDATE %s SET is_current=false WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3 AND is_current=true`, b.table())
	_, err := b.pool.Exec(ctx, query, tenantID, resourceType, resourceID)
	return err
}

func (b *PostgresBackend) SoftDelete(ctx context.Context, tenantID, resourceType, resourceID string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_deleted=true, last_updated=$4
		WHERE tenant_id=$1 AND resource_type=$2 AND resource_id=$3 AND is_current=true`, b.table())
	tag, err := b.pool.Exec(ctx, query, tenantID, resourceType, resourceID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// searchColumn maps a subset of common FHIR search parameters to a column
// of the fhir_resource table (_id → resource_id, _lastUpdated →
// last_updated); anything else is ignored at this layer
// (the search-param validator is the access-control checkpoint — this is
// only a best-effort predicate builder for the parameters it recognizes).
var searchColumn = map[string]string{
	"_id":           "resource_id",
	"_lastUpdated":  "last_updated",
}

func (b *PostgresBackend) Search(ctx context.Context, tenantID, resourceType string, params map[string][]string, pageable Pageable) (SearchResult, error) {
	pageable = pageable.Normalize()

	where := []string{"tenant_id=$1", "resource_type=$2", "is_current=true", "is_deleted=false"}
	args := []any{tenantID, resourceType}

	for name, values := range params {
		col, ok := searchColumn[name]
		if !ok || len(values) == 0 {
			continue
		}
		args = append(args, values[0])
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, b.table(), whereClause)
	var total int
	if err := b.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return SearchResult{}, err
	}

	args = append(args, pageable.Count, pageable.Offset)
	query := fmt.Sprintf(`
		SELECT id, tenant_id, resource_type, resource_id, fhir_version, version_id,
		       is_current, is_deleted, content, coalesce(source_uri, ''), last_updated, created_at
		FROM %s WHERE %s
		ORDER BY last_updated DESC
		LIMIT $%d OFFSET $%d`, b.table(), whereClause, len(args)-1, len(args))

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return SearchResult{}, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ResourceType, &rec.ResourceID, &rec.FHIRVersion, &rec.VersionID,
			&rec.IsCurrent, &rec.IsDeleted, &rec.Content, &rec.SourceURI, &rec.LastUpdated, &rec.CreatedAt); err != nil {
			return SearchResult{}, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Records: out, Total: total}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
