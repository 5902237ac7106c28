package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is the Tenant Record of spec section 3: an external GUID mapped to
// a short internal id used as the partition value in every resource row.
type Record struct {
	GUID        uuid.UUID      `json:"guid"`
	InternalID  string         `json:"internal_id"`
	Code        string         `json:"code"`
	DisplayName string         `json:"display_name"`
	Enabled     bool           `json:"enabled"`
	Settings    map[string]any `json:"settings,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// SecretHash is the bcrypt digest of the tenant's admin-issued API
	// secret (SPEC_FULL.md section 4.2). Storage only — never serialized
	// to JSON, and nothing in the core verifies inbound credentials
	// against it.
	SecretHash string `json:"-"`
}

// DefaultGUID and DefaultInternalID are the seeded default tenant from
// spec section 3: the all-zero GUID maps to internal id "default" and is
// the tenant used when multi-tenancy is disabled.
var (
	DefaultGUID       = uuid.Nil
	DefaultInternalID = "default"
)

// Store is the administrative persistence contract behind the Tenant
// Resolver: lookups by GUID for resolution, and CRUD for the admin surface
// (spec section 6, "/api/admin/tenants").
type Store interface {
	GetByGUID(ctx context.Context, guid uuid.UUID) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, guid uuid.UUID) error
	List(ctx context.Context) ([]*Record, error)
}
