// Package host implements the panel's collaborator process: it owns git
// inspection, GitHub release operations, and catalog service access, and
// talks to the engine exclusively through protocol messages.
package host

import (
	"context"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
	"github.com/clean-dependency-project/cdpanel/internal/session"
)

// Releaser abstracts GitHub release operations for testing.
// Following Dave Cheney's principle: "Accept interfaces, return structs"
type Releaser interface {
	// ListReleases returns the repository's releases, newest first.
	ListReleases(ctx context.Context) ([]reconcile.ReleaseRecord, error)

	// CreatePreRelease creates a pre-release for the given tag.
	CreatePreRelease(ctx context.Context, tag, name, body string) (url string, err error)

	// CheckAuth reports whether the configured token is accepted.
	CheckAuth(ctx context.Context) bool
}

// CatalogService abstracts the catalog API for testing.
type CatalogService interface {
	// ListOfferings returns the selectable offerings.
	ListOfferings(ctx context.Context) ([]protocol.CatalogInfo, error)

	// OfferingExists reports whether the offering is known to the catalog.
	OfferingExists(ctx context.Context, offeringID string) (bool, error)

	// Versions returns the published entries of an offering.
	Versions(ctx context.Context, offeringID string) ([]reconcile.CatalogEntry, error)

	// PublishVersion publishes a version referencing an upstream tag.
	PublishVersion(ctx context.Context, offeringID, version, tag string) error

	// CheckAuth reports whether the catalog credentials are accepted.
	CheckAuth(ctx context.Context) bool
}

// Git abstracts local repository inspection.
type Git interface {
	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(ctx context.Context) (string, error)

	// HasUnpushedChanges reports commits missing from the upstream branch.
	HasUnpushedChanges(ctx context.Context) (bool, error)
}

// CacheStore is the subset of the session store the host uses for the
// catalog cache.
type CacheStore interface {
	CachedCatalog(catalogID string) (*session.CatalogCache, error)
	PutCachedCatalog(catalogID, payload string, fetchedAt time.Time) error
	DropCachedCatalog(catalogID string) error
}
