package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHost(t *testing.T, opts Options) *Host {
	t.Helper()
	if opts.Log == nil {
		opts.Log = testLogger()
	}
	if opts.Git == nil {
		opts.Git = &mockGit{}
	}
	if opts.Releaser == nil {
		opts.Releaser = &mockReleaser{}
	}
	if opts.Catalog == nil {
		opts.Catalog = &mockCatalog{}
	}
	h, err := New(opts)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return h
}

func kindsOf(envs []protocol.Envelope) []protocol.Kind {
	kinds := make([]protocol.Kind, 0, len(envs))
	for _, env := range envs {
		kinds = append(kinds, env.Kind)
	}
	return kinds
}

func findKind(t *testing.T, envs []protocol.Envelope, kind protocol.Kind) protocol.Envelope {
	t.Helper()
	for _, env := range envs {
		if env.Kind == kind {
			return env
		}
	}
	t.Fatalf("no %s envelope in %v", kind, kindsOf(envs))
	return protocol.Envelope{}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Log: testLogger()}); err == nil {
		t.Error("expected error when collaborators are missing")
	}
	if _, err := New(Options{Git: &mockGit{}, Releaser: &mockReleaser{}, Catalog: &mockCatalog{}}); err == nil {
		t.Error("expected error when logger is missing")
	}
}

func TestHandleCheckAuthentication(t *testing.T) {
	h := newTestHost(t, Options{
		Releaser: &mockReleaser{checkAuthFn: func(context.Context) bool { return true }},
		Catalog:  &mockCatalog{checkAuthFn: func(context.Context) bool { return false }},
	})

	out := h.Handle(context.Background(), protocol.Envelope{Kind: protocol.KindCheckAuthentication, ID: 7})
	env := findKind(t, out, protocol.KindAuthenticationStatus)
	if env.ID != 7 {
		t.Errorf("expected echoed id 7, got %d", env.ID)
	}

	var status protocol.AuthenticationStatus
	if err := env.Unmarshal(&status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !status.GitHubAuthenticated || status.CatalogAuthenticated {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestHandleGetBranchName(t *testing.T) {
	h := newTestHost(t, Options{
		Git: &mockGit{
			currentBranchFn:      func(context.Context) (string, error) { return "main", nil },
			hasUnpushedChangesFn: func(context.Context) (bool, error) { return true, nil },
		},
	})

	out := h.Handle(context.Background(), protocol.Envelope{Kind: protocol.KindGetBranchName})

	var branch protocol.UpdateBranchName
	if err := findKind(t, out, protocol.KindUpdateBranchName).Unmarshal(&branch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if branch.Name != "main" {
		t.Errorf("expected branch main, got %q", branch.Name)
	}

	var unpushed protocol.HasUnpushedChanges
	if err := findKind(t, out, protocol.KindHasUnpushedChanges).Unmarshal(&unpushed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !unpushed.Unpushed {
		t.Error("expected unpushed warning")
	}
}

func TestHandleGetBranchNameError(t *testing.T) {
	h := newTestHost(t, Options{
		Git: &mockGit{
			currentBranchFn: func(context.Context) (string, error) { return "", ErrNotARepository },
		},
	})

	out := h.Handle(context.Background(), protocol.Envelope{Kind: protocol.KindGetBranchName})
	var branch protocol.UpdateBranchName
	if err := findKind(t, out, protocol.KindUpdateBranchName).Unmarshal(&branch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if branch.Error == "" {
		t.Error("expected branch error to be populated")
	}
	if branch.Name != "" {
		t.Errorf("expected empty branch name, got %q", branch.Name)
	}
}

func TestHandleSelectCatalogTwoPhase(t *testing.T) {
	h := newTestHost(t, Options{})

	env := protocol.MustNew(protocol.KindSelectCatalog, 3, protocol.SelectCatalog{CatalogID: "cat-1"})
	out := h.Handle(context.Background(), env)

	if len(out) != 2 {
		t.Fatalf("expected 2 envelopes, got %v", kindsOf(out))
	}

	var metadata protocol.UpdateCatalogDetails
	if err := out[0].Unmarshal(&metadata); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if out[0].ID != 3 || metadata.Versions != nil || metadata.OfferingNotFound {
		t.Errorf("unexpected metadata phase: id=%d payload=%+v", out[0].ID, metadata)
	}

	var versions protocol.UpdateCatalogDetails
	if err := out[1].Unmarshal(&versions); err != nil {
		t.Fatalf("unmarshal versions: %v", err)
	}
	if out[1].ID != 3 || versions.Versions == nil {
		t.Fatalf("unexpected versions phase: id=%d payload=%+v", out[1].ID, versions)
	}
	if len(*versions.Versions) != 1 || (*versions.Versions)[0].Version != "1.0.0" {
		t.Errorf("unexpected entries %+v", *versions.Versions)
	}
}

func TestHandleSelectCatalogOfferingNotFound(t *testing.T) {
	h := newTestHost(t, Options{
		Catalog: &mockCatalog{
			offeringExistsFn: func(context.Context, string) (bool, error) { return false, nil },
		},
	})

	env := protocol.MustNew(protocol.KindSelectCatalog, 4, protocol.SelectCatalog{CatalogID: "ghost"})
	out := h.Handle(context.Background(), env)

	if len(out) != 1 {
		t.Fatalf("expected 1 envelope, got %v", kindsOf(out))
	}
	var details protocol.UpdateCatalogDetails
	if err := out[0].Unmarshal(&details); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !details.OfferingNotFound {
		t.Error("expected offeringNotFound")
	}
}

func TestSelectCatalogServesFromCache(t *testing.T) {
	catalog := &mockCatalog{}
	cache := newMemCache()
	h := newTestHost(t, Options{Catalog: catalog, Cache: cache})

	ctx := context.Background()
	env := protocol.MustNew(protocol.KindSelectCatalog, 1, protocol.SelectCatalog{CatalogID: "cat-1"})

	h.Handle(ctx, env)
	if catalog.versionCalls != 1 {
		t.Fatalf("expected 1 fetch, got %d", catalog.versionCalls)
	}

	// Second selection within the TTL is served from the cache.
	h.Handle(ctx, protocol.MustNew(protocol.KindSelectCatalog, 2, protocol.SelectCatalog{CatalogID: "cat-1"}))
	if catalog.versionCalls != 1 {
		t.Errorf("expected cached response, got %d fetches", catalog.versionCalls)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	catalog := &mockCatalog{}
	cache := newMemCache()
	h := newTestHost(t, Options{Catalog: catalog, Cache: cache})

	ctx := context.Background()
	h.Handle(ctx, protocol.MustNew(protocol.KindSelectCatalog, 1, protocol.SelectCatalog{CatalogID: "cat-1"}))

	out := h.Handle(ctx, protocol.MustNew(protocol.KindForceRefresh, 2, protocol.ForceRefresh{CatalogID: "cat-1"}))
	if catalog.versionCalls != 2 {
		t.Errorf("expected refresh to refetch, got %d fetches", catalog.versionCalls)
	}

	complete := findKind(t, out, protocol.KindRefreshComplete)
	if complete.ID != 2 {
		t.Errorf("expected echoed id 2, got %d", complete.ID)
	}
	var payload protocol.RefreshComplete
	if err := complete.Unmarshal(&payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !payload.Success {
		t.Errorf("expected success, got %+v", payload)
	}
	findKind(t, out, protocol.KindUpdateData)
	findKind(t, out, protocol.KindUpdateCatalogDetails)
	findKind(t, out, protocol.KindHideLoading)
}

func TestForceRefreshFailure(t *testing.T) {
	h := newTestHost(t, Options{
		Catalog: &mockCatalog{
			versionsFn: func(context.Context, string) ([]reconcile.CatalogEntry, error) {
				return nil, errors.New("catalog down")
			},
		},
	})

	out := h.Handle(context.Background(), protocol.MustNew(protocol.KindForceRefresh, 5, protocol.ForceRefresh{CatalogID: "cat-1"}))

	var payload protocol.RefreshComplete
	if err := findKind(t, out, protocol.KindRefreshComplete).Unmarshal(&payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Success || payload.Error == "" {
		t.Errorf("expected failure with message, got %+v", payload)
	}
	findKind(t, out, protocol.KindHideLoading)
}

func TestHandleCreatePreRelease(t *testing.T) {
	releaser := &mockReleaser{}
	catalog := &mockCatalog{}
	h := newTestHost(t, Options{Releaser: releaser, Catalog: catalog})

	req := protocol.CreatePreRelease{
		Version:          "1.0.2",
		Postfix:          "ce",
		ReleaseGitHub:    true,
		PublishToCatalog: true,
		CatalogID:        "cat-1",
	}
	out := h.Handle(context.Background(), protocol.MustNew(protocol.KindCreatePreRelease, 9, req))

	var payload protocol.ReleaseComplete
	env := findKind(t, out, protocol.KindReleaseComplete)
	if err := env.Unmarshal(&payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !payload.Success {
		t.Fatalf("expected success, got %+v", payload)
	}
	if env.ID != 9 {
		t.Errorf("expected echoed id 9, got %d", env.ID)
	}
	if len(releaser.createdTags) != 1 || releaser.createdTags[0] != "v1.0.2-ce" {
		t.Errorf("unexpected created tags %v", releaser.createdTags)
	}
	if len(catalog.published) != 1 || catalog.published[0] != "cat-1/1.0.2/v1.0.2-ce" {
		t.Errorf("unexpected publishes %v", catalog.published)
	}
}

func TestCreatePreReleaseGitHubFailureSkipsPublish(t *testing.T) {
	catalog := &mockCatalog{}
	h := newTestHost(t, Options{
		Releaser: &mockReleaser{
			createPreReleaseFn: func(context.Context, string, string, string) (string, error) {
				return "", errors.New("tag already exists")
			},
		},
		Catalog: catalog,
	})

	req := protocol.CreatePreRelease{Version: "1.0.0", Postfix: "ce", ReleaseGitHub: true, PublishToCatalog: true, CatalogID: "cat-1"}
	out := h.Handle(context.Background(), protocol.MustNew(protocol.KindCreatePreRelease, 1, req))

	var payload protocol.ReleaseComplete
	if err := findKind(t, out, protocol.KindReleaseComplete).Unmarshal(&payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Success {
		t.Error("expected failure")
	}
	if len(catalog.published) != 0 {
		t.Errorf("expected no catalog publish after github failure, got %v", catalog.published)
	}
}

func TestBootstrapPushesData(t *testing.T) {
	h := newTestHost(t, Options{})

	out := h.Bootstrap(context.Background())
	findKind(t, out, protocol.KindShowLoading)
	findKind(t, out, protocol.KindHideLoading)

	var data protocol.UpdateData
	if err := findKind(t, out, protocol.KindUpdateData).Unmarshal(&data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(data.Offerings) != 1 || len(data.Releases) != 2 {
		t.Errorf("unexpected data %+v", data)
	}
	if data.CachedAt.IsZero() {
		t.Error("expected CachedAt to be set")
	}
}

func TestBootstrapFetchFailure(t *testing.T) {
	h := newTestHost(t, Options{
		Releaser: &mockReleaser{
			listReleasesFn: func(context.Context) ([]reconcile.ReleaseRecord, error) {
				return nil, errors.New("github unreachable")
			},
		},
	})

	out := h.Bootstrap(context.Background())
	findKind(t, out, protocol.KindShowError)
	findKind(t, out, protocol.KindHideLoading)
	for _, env := range out {
		if env.Kind == protocol.KindUpdateData {
			t.Error("expected no updateData on failed bootstrap")
		}
	}
}

func TestHandleIgnoresConfirmationAndReports(t *testing.T) {
	h := newTestHost(t, Options{})

	if out := h.Handle(context.Background(), protocol.MustNew(protocol.KindShowConfirmation, 1, protocol.ShowConfirmation{Summary: "s"})); out != nil {
		t.Errorf("expected no reply to showConfirmation, got %v", kindsOf(out))
	}
	if out := h.Handle(context.Background(), protocol.MustNew(protocol.KindReportError, 0, protocol.ReportError{Message: "boom"})); out != nil {
		t.Errorf("expected no reply to showErrorReport, got %v", kindsOf(out))
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	catalog := &mockCatalog{}
	cache := newMemCache()
	h := newTestHost(t, Options{Catalog: catalog, Cache: cache, CacheTTL: time.Minute})

	ctx := context.Background()
	h.Handle(ctx, protocol.MustNew(protocol.KindSelectCatalog, 1, protocol.SelectCatalog{CatalogID: "cat-1"}))

	// Age the cached entry past the TTL.
	entry := cache.entries["cat-1"]
	entry.FetchedAt = entry.FetchedAt.Add(-2 * time.Minute)

	h.Handle(ctx, protocol.MustNew(protocol.KindSelectCatalog, 2, protocol.SelectCatalog{CatalogID: "cat-1"}))
	if catalog.versionCalls != 2 {
		t.Errorf("expected stale cache to refetch, got %d fetches", catalog.versionCalls)
	}
}
