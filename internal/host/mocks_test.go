package host

import (
	"context"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
	"github.com/clean-dependency-project/cdpanel/internal/session"
)

// mockReleaser implements Releaser for testing.
type mockReleaser struct {
	listReleasesFn     func(ctx context.Context) ([]reconcile.ReleaseRecord, error)
	createPreReleaseFn func(ctx context.Context, tag, name, body string) (string, error)
	checkAuthFn        func(ctx context.Context) bool

	createdTags []string
}

// ListReleases implements Releaser.
func (m *mockReleaser) ListReleases(ctx context.Context) ([]reconcile.ReleaseRecord, error) {
	if m.listReleasesFn != nil {
		return m.listReleasesFn(ctx)
	}
	return []reconcile.ReleaseRecord{
		{Tag: "v1.0.1-ce", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Tag: "v1.0.0-ce", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

// CreatePreRelease implements Releaser.
func (m *mockReleaser) CreatePreRelease(ctx context.Context, tag, name, body string) (string, error) {
	if m.createPreReleaseFn != nil {
		return m.createPreReleaseFn(ctx, tag, name, body)
	}
	m.createdTags = append(m.createdTags, tag)
	return "https://github.com/owner/repo/releases/tag/" + tag, nil
}

// CheckAuth implements Releaser.
func (m *mockReleaser) CheckAuth(ctx context.Context) bool {
	if m.checkAuthFn != nil {
		return m.checkAuthFn(ctx)
	}
	return true
}

// mockCatalog implements CatalogService for testing.
type mockCatalog struct {
	listOfferingsFn  func(ctx context.Context) ([]protocol.CatalogInfo, error)
	offeringExistsFn func(ctx context.Context, offeringID string) (bool, error)
	versionsFn       func(ctx context.Context, offeringID string) ([]reconcile.CatalogEntry, error)
	publishVersionFn func(ctx context.Context, offeringID, version, tag string) error
	checkAuthFn      func(ctx context.Context) bool

	versionCalls int
	published    []string
}

// ListOfferings implements CatalogService.
func (m *mockCatalog) ListOfferings(ctx context.Context) ([]protocol.CatalogInfo, error) {
	if m.listOfferingsFn != nil {
		return m.listOfferingsFn(ctx)
	}
	return []protocol.CatalogInfo{{ID: "cat-1", Name: "Primary Catalog"}}, nil
}

// OfferingExists implements CatalogService.
func (m *mockCatalog) OfferingExists(ctx context.Context, offeringID string) (bool, error) {
	if m.offeringExistsFn != nil {
		return m.offeringExistsFn(ctx, offeringID)
	}
	return true, nil
}

// Versions implements CatalogService.
func (m *mockCatalog) Versions(ctx context.Context, offeringID string) ([]reconcile.CatalogEntry, error) {
	m.versionCalls++
	if m.versionsFn != nil {
		return m.versionsFn(ctx, offeringID)
	}
	return []reconcile.CatalogEntry{
		{ID: "e1", Version: "1.0.0", FlavorLabel: "OVA", ArtifactURL: "https://dl.example.com/tags/v1.0.0-ce.tar.gz"},
	}, nil
}

// PublishVersion implements CatalogService.
func (m *mockCatalog) PublishVersion(ctx context.Context, offeringID, version, tag string) error {
	if m.publishVersionFn != nil {
		return m.publishVersionFn(ctx, offeringID, version, tag)
	}
	m.published = append(m.published, offeringID+"/"+version+"/"+tag)
	return nil
}

// CheckAuth implements CatalogService.
func (m *mockCatalog) CheckAuth(ctx context.Context) bool {
	if m.checkAuthFn != nil {
		return m.checkAuthFn(ctx)
	}
	return true
}

// mockGit implements Git for testing.
type mockGit struct {
	currentBranchFn      func(ctx context.Context) (string, error)
	hasUnpushedChangesFn func(ctx context.Context) (bool, error)
}

// CurrentBranch implements Git.
func (m *mockGit) CurrentBranch(ctx context.Context) (string, error) {
	if m.currentBranchFn != nil {
		return m.currentBranchFn(ctx)
	}
	return "feature/next-release", nil
}

// HasUnpushedChanges implements Git.
func (m *mockGit) HasUnpushedChanges(ctx context.Context) (bool, error) {
	if m.hasUnpushedChangesFn != nil {
		return m.hasUnpushedChangesFn(ctx)
	}
	return false, nil
}

// memCache implements CacheStore in memory for testing.
type memCache struct {
	entries map[string]*session.CatalogCache
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*session.CatalogCache{}}
}

func (m *memCache) CachedCatalog(catalogID string) (*session.CatalogCache, error) {
	entry, ok := m.entries[catalogID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return entry, nil
}

func (m *memCache) PutCachedCatalog(catalogID, payload string, fetchedAt time.Time) error {
	m.entries[catalogID] = &session.CatalogCache{CatalogID: catalogID, Payload: payload, FetchedAt: fetchedAt}
	return nil
}

func (m *memCache) DropCachedCatalog(catalogID string) error {
	delete(m.entries, catalogID)
	return nil
}
