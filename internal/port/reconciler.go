package port

import (
	"context"

	"github.com/rl1809/storefront/internal/recon"
)

// Reconciler merges a provider-reported card snapshot with the stored one.
// Its output is advisory; callers must fall back to the provider's literal
// values when it fails.
type Reconciler interface {
	Reconcile(ctx context.Context, provider, stored recon.Snapshot) (*recon.Resolution, error)
}
