package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
	"github.com/clean-dependency-project/cdpanel/internal/session"
)

// DefaultCacheTTL bounds how long a cached catalog version list is served
// before the host refetches it.
const DefaultCacheTTL = 5 * time.Minute

// Options configures a Host.
type Options struct {
	Log      *slog.Logger
	Git      Git
	Releaser Releaser
	Catalog  CatalogService
	Cache    CacheStore
	CacheTTL time.Duration

	// ReleaseTitle renders the human-facing release name for a tag. When nil
	// the tag itself is used.
	ReleaseTitle func(tag string) string
}

// Host answers panel requests. It is not safe for concurrent use; callers
// serialize envelopes the same way the panel serializes its own loop.
type Host struct {
	log      *slog.Logger
	git      Git
	releaser Releaser
	catalog  CatalogService
	cache    CacheStore
	cacheTTL time.Duration
	title    func(tag string) string
}

// New creates a Host from options. Log, Git, Releaser, and Catalog are
// required; Cache is optional.
func New(opts Options) (*Host, error) {
	if opts.Log == nil {
		return nil, errors.New("host logger is required")
	}
	if opts.Git == nil || opts.Releaser == nil || opts.Catalog == nil {
		return nil, errors.New("git, releaser, and catalog collaborators are required")
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	title := opts.ReleaseTitle
	if title == nil {
		title = func(tag string) string { return tag }
	}
	return &Host{
		log:      opts.Log,
		git:      opts.Git,
		releaser: opts.Releaser,
		catalog:  opts.Catalog,
		cache:    opts.Cache,
		cacheTTL: ttl,
		title:    title,
	}, nil
}

// Bootstrap produces the initial data push the panel needs before its first
// request cycle: the offering list and the release cache.
func (h *Host) Bootstrap(ctx context.Context) []protocol.Envelope {
	out := []protocol.Envelope{
		protocol.MustNew(protocol.KindShowLoading, 0, protocol.ShowLoading{Message: "Loading release data"}),
	}

	offerings, offErr := h.catalog.ListOfferings(ctx)
	releases, relErr := h.releaser.ListReleases(ctx)

	if offErr != nil || relErr != nil {
		err := offErr
		if err == nil {
			err = relErr
		}
		h.log.Error("bootstrap fetch failed", "error", err)
		out = append(out,
			protocol.MustNew(protocol.KindShowError, 0, protocol.ShowError{Message: "Failed to load release data: " + err.Error()}),
			protocol.MustNew(protocol.KindHideLoading, 0, nil),
		)
		return out
	}

	out = append(out,
		protocol.MustNew(protocol.KindUpdateData, 0, protocol.UpdateData{
			Offerings: offerings,
			Releases:  releases,
			CachedAt:  time.Now(),
		}),
		protocol.MustNew(protocol.KindHideLoading, 0, nil),
	)
	return out
}

// Handle answers one panel request. The returned envelopes carry the
// request's id where the kind participates in correlation.
func (h *Host) Handle(ctx context.Context, env protocol.Envelope) []protocol.Envelope {
	switch env.Kind {
	case protocol.KindCheckAuthentication:
		return h.handleCheckAuthentication(ctx, env)
	case protocol.KindGetBranchName:
		return h.handleGetBranchName(ctx, env)
	case protocol.KindSelectCatalog:
		return h.handleSelectCatalog(ctx, env)
	case protocol.KindForceRefresh:
		return h.handleForceRefresh(ctx, env)
	case protocol.KindCreatePreRelease:
		return h.handleCreatePreRelease(ctx, env)
	case protocol.KindShowConfirmation:
		// Confirmation is answered by the embedding shell, not the host.
		h.log.Debug("confirmation request passed through", "id", env.ID)
		return nil
	case protocol.KindReportError:
		var report protocol.ReportError
		if err := env.Unmarshal(&report); err == nil {
			h.log.Error("panel reported error", "message", report.Message)
		}
		return nil
	default:
		h.log.Warn("unexpected message kind", "kind", env.Kind)
		return nil
	}
}

func (h *Host) handleCheckAuthentication(ctx context.Context, env protocol.Envelope) []protocol.Envelope {
	status := protocol.AuthenticationStatus{
		GitHubAuthenticated:  h.releaser.CheckAuth(ctx),
		CatalogAuthenticated: h.catalog.CheckAuth(ctx),
	}
	return []protocol.Envelope{
		protocol.MustNew(protocol.KindAuthenticationStatus, env.ID, status),
	}
}

func (h *Host) handleGetBranchName(ctx context.Context, env protocol.Envelope) []protocol.Envelope {
	branch, err := h.git.CurrentBranch(ctx)
	if err != nil {
		h.log.Error("branch lookup failed", "error", err)
		return []protocol.Envelope{
			protocol.MustNew(protocol.KindUpdateBranchName, env.ID, protocol.UpdateBranchName{Error: err.Error()}),
		}
	}

	out := []protocol.Envelope{
		protocol.MustNew(protocol.KindUpdateBranchName, env.ID, protocol.UpdateBranchName{Name: branch}),
	}

	unpushed, err := h.git.HasUnpushedChanges(ctx)
	if err != nil {
		h.log.Warn("unpushed check failed", "error", err)
		return out
	}
	return append(out, protocol.MustNew(protocol.KindHasUnpushedChanges, 0, protocol.HasUnpushedChanges{Unpushed: unpushed}))
}

// handleSelectCatalog answers in two phases: a metadata envelope confirming
// the offering exists, then a versions envelope. Both echo the request id.
func (h *Host) handleSelectCatalog(ctx context.Context, env protocol.Envelope) []protocol.Envelope {
	var req protocol.SelectCatalog
	if err := env.Unmarshal(&req); err != nil {
		h.log.Error("malformed selectCatalog payload", "error", err)
		return nil
	}

	exists, err := h.catalog.OfferingExists(ctx, req.CatalogID)
	if err != nil {
		h.log.Error("offering lookup failed", "catalog_id", req.CatalogID, "error", err)
		return []protocol.Envelope{
			protocol.MustNew(protocol.KindShowError, 0, protocol.ShowError{Message: "Catalog lookup failed: " + err.Error()}),
		}
	}
	if !exists {
		return []protocol.Envelope{
			protocol.MustNew(protocol.KindUpdateCatalogDetails, env.ID, protocol.UpdateCatalogDetails{
				CatalogID:        req.CatalogID,
				OfferingNotFound: true,
			}),
		}
	}

	out := []protocol.Envelope{
		protocol.MustNew(protocol.KindUpdateCatalogDetails, env.ID, protocol.UpdateCatalogDetails{
			CatalogID: req.CatalogID,
		}),
	}

	entries, err := h.offeringVersions(ctx, req.CatalogID, false)
	if err != nil {
		h.log.Error("version fetch failed", "catalog_id", req.CatalogID, "error", err)
		out = append(out, protocol.MustNew(protocol.KindShowError, 0, protocol.ShowError{
			Message: "Failed to load catalog versions: " + err.Error(),
		}))
		return out
	}

	return append(out, protocol.MustNew(protocol.KindUpdateCatalogDetails, env.ID, protocol.UpdateCatalogDetails{
		CatalogID: req.CatalogID,
		Versions:  &entries,
	}))
}

func (h *Host) handleForceRefresh(ctx context.Context, env protocol.Envelope) []protocol.Envelope {
	var req protocol.ForceRefresh
	if err := env.Unmarshal(&req); err != nil {
		h.log.Error("malformed forceRefresh payload", "error", err)
		return nil
	}

	out := []protocol.Envelope{
		protocol.MustNew(protocol.KindShowLoading, 0, protocol.ShowLoading{Message: "Refreshing"}),
	}

	offerings, offErr := h.catalog.ListOfferings(ctx)
	releases, relErr := h.releaser.ListReleases(ctx)
	entries, verErr := h.offeringVersions(ctx, req.CatalogID, true)

	if err := firstError(offErr, relErr, verErr); err != nil {
		h.log.Error("refresh failed", "catalog_id", req.CatalogID, "error", err)
		out = append(out,
			protocol.MustNew(protocol.KindRefreshComplete, env.ID, protocol.RefreshComplete{Success: false, Error: err.Error()}),
			protocol.MustNew(protocol.KindHideLoading, 0, nil),
		)
		return out
	}

	out = append(out,
		protocol.MustNew(protocol.KindUpdateData, 0, protocol.UpdateData{
			Offerings: offerings,
			Releases:  releases,
			CachedAt:  time.Now(),
		}),
		protocol.MustNew(protocol.KindUpdateCatalogDetails, 0, protocol.UpdateCatalogDetails{
			CatalogID: req.CatalogID,
			Versions:  &entries,
		}),
		protocol.MustNew(protocol.KindRefreshComplete, env.ID, protocol.RefreshComplete{Success: true}),
		protocol.MustNew(protocol.KindHideLoading, 0, nil),
	)
	return out
}

func (h *Host) handleCreatePreRelease(ctx context.Context, env protocol.Envelope) []protocol.Envelope {
	var req protocol.CreatePreRelease
	if err := env.Unmarshal(&req); err != nil {
		h.log.Error("malformed createPreRelease payload", "error", err)
		return []protocol.Envelope{
			protocol.MustNew(protocol.KindReleaseComplete, env.ID, protocol.ReleaseComplete{Success: false, Error: "malformed create request"}),
		}
	}

	tag := req.Tag()

	if req.ReleaseGitHub {
		url, err := h.releaser.CreatePreRelease(ctx, tag, h.title(tag), "")
		if err != nil {
			h.log.Error("github release failed", "tag", tag, "error", err)
			return []protocol.Envelope{
				protocol.MustNew(protocol.KindReleaseComplete, env.ID, protocol.ReleaseComplete{Success: false, Error: err.Error()}),
			}
		}
		h.log.Info("github pre-release created", "tag", tag, "url", url)
	}

	if req.PublishToCatalog {
		if err := h.catalog.PublishVersion(ctx, req.CatalogID, req.Version, tag); err != nil {
			h.log.Error("catalog publish failed", "tag", tag, "error", err)
			return []protocol.Envelope{
				protocol.MustNew(protocol.KindReleaseComplete, env.ID, protocol.ReleaseComplete{Success: false, Error: err.Error()}),
			}
		}
		h.dropCache(req.CatalogID)
	}

	return []protocol.Envelope{
		protocol.MustNew(protocol.KindReleaseComplete, env.ID, protocol.ReleaseComplete{Success: true}),
	}
}

// offeringVersions serves from the cache when fresh, falling back to the
// catalog API. bypass skips and replaces the cached entry.
func (h *Host) offeringVersions(ctx context.Context, catalogID string, bypass bool) ([]reconcile.CatalogEntry, error) {
	if h.cache != nil && !bypass {
		cached, err := h.cache.CachedCatalog(catalogID)
		if err == nil && time.Since(cached.FetchedAt) < h.cacheTTL {
			var entries []reconcile.CatalogEntry
			if err := json.Unmarshal([]byte(cached.Payload), &entries); err == nil {
				return entries, nil
			}
			h.dropCache(catalogID)
		} else if err != nil && !errors.Is(err, session.ErrNotFound) {
			h.log.Warn("catalog cache read failed", "catalog_id", catalogID, "error", err)
		}
	}

	entries, err := h.catalog.Versions(ctx, catalogID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		payload, err := json.Marshal(entries)
		if err == nil {
			if err := h.cache.PutCachedCatalog(catalogID, string(payload), time.Now()); err != nil {
				h.log.Warn("catalog cache write failed", "catalog_id", catalogID, "error", err)
			}
		}
	}
	return entries, nil
}

func (h *Host) dropCache(catalogID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DropCachedCatalog(catalogID); err != nil {
		h.log.Warn("catalog cache drop failed", "catalog_id", catalogID, "error", err)
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the stdio loop: it pushes the bootstrap data, then answers
// requests until the reader ends or ctx is cancelled.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	in := protocol.NewReader(r)
	out := protocol.NewWriter(w)

	for _, env := range h.Bootstrap(ctx) {
		if err := out.Write(env); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		env, err := in.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("host read: %w", err)
		}
		for _, reply := range h.Handle(ctx, env) {
			if err := out.Write(reply); err != nil {
				return err
			}
		}
	}
}
