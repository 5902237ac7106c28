package tenant

import (
	"context"
	"errors"
)

// Seed ensures the default tenant record (spec section 3: "the GUID
// 00000000-...-000000000000 maps to internal id default and is seeded at
// initialization") exists in store. Safe to call on every startup — it is
// a no-op once the record has been created.
func Seed(ctx context.Context, store Store) error {
	_, err := store.GetByGUID(ctx, DefaultGUID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	return store.Create(ctx, &Record{
		GUID:        DefaultGUID,
		InternalID:  DefaultInternalID,
		Code:        "default",
		DisplayName: "Default Tenant",
		Enabled:     true,
	})
}
