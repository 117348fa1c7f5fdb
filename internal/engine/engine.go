package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
	"github.com/clean-dependency-project/cdpanel/internal/version"
)

// SessionStore persists the only state that crosses session boundaries:
// the selected catalog identifier.
type SessionStore interface {
	SelectedCatalogID() (string, error)
	SetSelectedCatalogID(id string) error
}

// Option customizes Engine construction for tests and alternate runtimes.
type Option func(*Engine)

// WithClock overrides the time source. Tests use a fixed clock to drive
// timeouts deterministically.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIntervals overrides the branch poll cadence and the request timeout,
// normally sourced from the timing section of the configuration.
// Non-positive values keep the defaults.
func WithIntervals(poll, timeout time.Duration) Option {
	return func(e *Engine) {
		if poll > 0 {
			e.poll = poll
		}
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// Engine is the synchronization state machine. Single-consumer: all methods
// must be called from one event loop.
type Engine struct {
	st      State
	log     *slog.Logger
	store   SessionStore
	clock   func() time.Time
	poll    time.Duration
	timeout time.Duration
}

// New creates an engine. store may be nil when session restore is disabled.
func New(log *slog.Logger, store SessionStore, opts ...Option) *Engine {
	e := &Engine{
		log:     log,
		store:   store,
		clock:   time.Now,
		poll:    branchPollInterval,
		timeout: requestTimeout,
	}
	e.st.pending = make(map[RequestKind]pendingRequest)
	e.st.lastRequestID = make(map[RequestKind]int64)
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// State returns a copy of the current state for inspection.
func (e *Engine) State() State {
	return e.st
}

// Start issues the initial probes and, when a previous session left a
// catalog selected, re-triggers a selection identical to a manual one.
func (e *Engine) Start() []protocol.Envelope {
	e.st.Branch.Status = BranchLoading
	e.st.lastPoll = e.clock()

	out := []protocol.Envelope{
		protocol.MustNew(protocol.KindCheckAuthentication, 0, nil),
		protocol.MustNew(protocol.KindGetBranchName, 0, nil),
	}
	if e.store != nil {
		id, err := e.store.SelectedCatalogID()
		if err != nil {
			e.logWarn("session restore failed", "error", err)
		} else if id != "" {
			out = append(out, e.selectCatalog(id)...)
		}
	}
	return out
}

// Tick drives the branch poll and expires stuck requests. Call it at least
// once per second; the poll cadence and request timeouts (2s and 10s unless
// overridden with WithIntervals) are tracked inside.
func (e *Engine) Tick() []protocol.Envelope {
	now := e.clock()
	var out []protocol.Envelope

	if now.Sub(e.st.lastPoll) >= e.poll {
		e.st.lastPoll = now
		out = append(out,
			protocol.MustNew(protocol.KindGetBranchName, 0, nil),
			protocol.MustNew(protocol.KindCheckAuthentication, 0, nil),
		)
	}

	for kind, p := range e.st.pending {
		if now.Before(p.deadline) {
			continue
		}
		delete(e.st.pending, kind)
		switch kind {
		case RequestCatalogSelect:
			e.logWarn("catalog selection timed out", "request_id", p.id)
			e.st.Phase = PhaseTimedOut
			e.st.Form.IsLoading = false
			e.setFormError(errRequestTimedOut)
		case RequestRefresh:
			e.logWarn("refresh timed out", "request_id", p.id)
			e.st.RefreshBusy = false
			e.setFormError(errRequestTimedOut)
		}
	}
	return out
}

// HandleInbound applies one host message in arrival order.
func (e *Engine) HandleInbound(env protocol.Envelope) []protocol.Envelope {
	switch env.Kind {
	case protocol.KindAuthenticationStatus:
		var p protocol.AuthenticationStatus
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.st.Auth = AuthState{GitHub: p.GitHubAuthenticated, Catalog: p.CatalogAuthenticated, Known: true}

	case protocol.KindUpdateData:
		var p protocol.UpdateData
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.st.Offerings = p.Offerings
		e.st.Releases = p.Releases
		e.st.CachedAt = p.CachedAt
		e.st.FromCache = p.FromCache
		if e.st.Phase == PhaseVersionsReady {
			e.st.Rows = reconcile.Build(e.st.Releases, e.st.Snapshot)
		}

	case protocol.KindUpdateBranchName:
		var p protocol.UpdateBranchName
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		return e.applyBranch(p)

	case protocol.KindShowError:
		var p protocol.ShowError
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.applyShowError(p)

	case protocol.KindUpdateCatalogDetails:
		var p protocol.UpdateCatalogDetails
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.applyCatalogDetails(env.ID, p)

	case protocol.KindHasUnpushedChanges:
		var p protocol.HasUnpushedChanges
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.st.UnpushedWarning = p.Unpushed

	case protocol.KindRefreshComplete:
		var p protocol.RefreshComplete
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.applyRefreshComplete(env.ID, p)

	case protocol.KindReleaseComplete:
		var p protocol.ReleaseComplete
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.applyReleaseComplete(p)

	case protocol.KindShowLoading:
		var p protocol.ShowLoading
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		e.st.Loading = true
		e.st.LoadingMessage = p.Message

	case protocol.KindHideLoading:
		e.st.Loading = false
		e.st.LoadingMessage = ""

	case protocol.KindConfirmationResult:
		var p protocol.ConfirmationResult
		if err := env.Unmarshal(&p); err != nil {
			return e.decodeFailure(env, err)
		}
		return e.applyConfirmation(p)

	default:
		e.logWarn("ignoring unexpected message", "kind", string(env.Kind))
	}
	return nil
}

// SetVersionField updates the version input. Once populated the field is
// never overwritten by the auto-suggestion; clearing it re-opens suggestion
// on the next versions arrival.
func (e *Engine) SetVersionField(v string) {
	if e.st.Form.IsMainBranchLocked {
		return
	}
	e.st.Form.Version = strings.TrimSpace(v)
	e.revalidateConflict()
}

// SetPostfixField updates the postfix input.
func (e *Engine) SetPostfixField(v string) {
	if e.st.Form.IsMainBranchLocked {
		return
	}
	e.st.Form.Postfix = strings.TrimSpace(v)
}

// SelectCatalog starts a selection: prior table content becomes a loading
// placeholder, controls disable, a 10s timeout arms, and the request goes
// out. The selection is persisted for session restore.
func (e *Engine) SelectCatalog(id string) []protocol.Envelope {
	if e.st.Form.IsMainBranchLocked || id == "" {
		return nil
	}
	if e.store != nil {
		if err := e.store.SetSelectedCatalogID(id); err != nil {
			e.logWarn("failed to persist catalog selection", "error", err)
		}
	}
	return e.selectCatalog(id)
}

// Refresh clears the cached-data flag, disables itself, and issues a
// force-refresh. Completion re-enables it unconditionally.
func (e *Engine) Refresh() []protocol.Envelope {
	if e.st.RefreshBusy || e.st.Form.SelectedCatalogID == "" {
		return nil
	}
	e.st.FromCache = false
	e.st.RefreshBusy = true
	id := e.arm(RequestRefresh)
	e.logInfo("refresh requested", "catalog_id", e.st.Form.SelectedCatalogID, "request_id", id)
	return []protocol.Envelope{
		protocol.MustNew(protocol.KindForceRefresh, id, protocol.ForceRefresh{CatalogID: e.st.Form.SelectedCatalogID}),
	}
}

// SubmitCreate validates the form and, when accepted, emits the confirmation
// request. The actual createPreRelease goes out once the confirmation result
// arrives. Policy errors are detected locally and never reach the host.
func (e *Engine) SubmitCreate(publishToCatalog, releaseGitHub bool) []protocol.Envelope {
	if e.st.Form.IsMainBranchLocked {
		return nil
	}
	if e.st.CreateBusy {
		return nil
	}
	if e.st.Form.Version == "" || e.st.Form.Postfix == "" {
		e.setFormError(errVersionRequired)
		return nil
	}
	if !version.IsStrict(e.st.Form.Version) {
		e.setFormError(errVersionMalformed)
		return nil
	}
	if _, conflict := reconcile.Conflicts(e.st.Form.Version, e.st.Snapshot); conflict {
		e.setFormError(errVersionConflict)
		return nil
	}
	req := protocol.CreatePreRelease{
		Version:          e.st.Form.Version,
		Postfix:          e.st.Form.Postfix,
		PublishToCatalog: publishToCatalog,
		ReleaseGitHub:    releaseGitHub,
		CatalogID:        e.st.Form.SelectedCatalogID,
	}
	if publishToCatalog && !releaseGitHub && !reconcile.HasUpstreamTag(e.st.Releases, req.Tag()) {
		e.setFormError(errNoUpstreamTag)
		return nil
	}

	e.clearFormError()
	e.st.pendingCreate = &req
	e.st.CreateBusy = true
	e.logInfo("release confirmation requested", "tag", req.Tag(),
		"publish_to_catalog", publishToCatalog, "release_github", releaseGitHub)
	return []protocol.Envelope{
		protocol.MustNew(protocol.KindShowConfirmation, 0, protocol.ShowConfirmation{
			Summary: createSummary(req),
			Request: req,
		}),
	}
}

// ClearError clears the error surfaces. The protected-branch advisory only
// yields to a forced clear.
func (e *Engine) ClearError(forced bool) {
	e.st.SecondaryError = ""
	e.st.ReleaseError = ""
	if e.st.AdvisorySticky && !forced {
		return
	}
	e.st.FormError = ""
	e.st.AdvisorySticky = false
	e.st.Form.IsError = false
}

func (e *Engine) applyBranch(p protocol.UpdateBranchName) []protocol.Envelope {
	if p.Error != "" {
		e.st.Branch.Err = p.Error
		e.st.SecondaryError = p.Error
		return nil
	}
	wasProtected := e.st.Branch.Status == BranchProtected
	protected := IsProtectedName(p.Name)
	e.st.Branch = BranchState{Name: p.Name}

	if protected {
		e.st.Branch.Status = BranchProtected
		e.st.Form.IsMainBranchLocked = true
		e.st.Form.IsError = true
		e.st.FormError = AdvisoryProtectedBranch
		e.st.AdvisorySticky = true
		if !wasProtected {
			e.logInfo("branch protected, controls locked", "branch", p.Name)
		}
		return nil
	}

	e.st.Branch.Status = BranchUnprotected
	e.st.Form.IsMainBranchLocked = false
	if wasProtected {
		// Leaving a protected branch force-clears the advisory and, when a
		// selection survived the lock, refreshes its metadata.
		e.st.FormError = ""
		e.st.AdvisorySticky = false
		e.st.Form.IsError = false
		e.logInfo("branch unprotected, controls unlocked", "branch", p.Name)
		if e.st.Form.SelectedCatalogID != "" {
			return e.selectCatalog(e.st.Form.SelectedCatalogID)
		}
	}
	return nil
}

func (e *Engine) applyShowError(p protocol.ShowError) {
	if p.Message != "" {
		e.st.SecondaryError = p.Message
		return
	}
	// A clear. The secondary surface always clears; the sticky advisory on
	// the primary surface only goes away when the clear is forced.
	e.st.SecondaryError = ""
	if p.Forced {
		e.ClearError(true)
	}
}

func (e *Engine) applyCatalogDetails(id int64, p protocol.UpdateCatalogDetails) {
	if !e.responseMatches(RequestCatalogSelect, id) {
		e.logWarn("ignoring stale catalog response", "response_id", id)
		return
	}
	if p.CatalogID != "" && p.CatalogID != e.st.Form.SelectedCatalogID {
		e.logWarn("ignoring catalog response for other selection", "catalog_id", p.CatalogID)
		return
	}
	e.disarm(RequestCatalogSelect)
	e.st.Form.IsLoading = false

	if p.OfferingNotFound {
		e.st.Snapshot = reconcile.CatalogSnapshot{}
		e.st.Phase = PhaseMetadataReady
		e.st.Rows = nil
		e.setFormError(errOfferingNotFound)
		return
	}

	if p.Versions == nil {
		// Metadata phase: the offering exists, versions are still on the way.
		e.st.Snapshot = reconcile.CatalogSnapshot{OfferingFound: true}
		e.st.Phase = PhaseMetadataReady
		return
	}

	e.st.Snapshot = reconcile.CatalogSnapshot{
		OfferingFound: true,
		Loaded:        true,
		Entries:       *p.Versions,
	}
	e.st.Phase = PhaseVersionsReady
	e.st.Rows = reconcile.Build(e.st.Releases, e.st.Snapshot)
	e.applySuggestion()
	e.revalidateConflict()
}

func (e *Engine) applySuggestion() {
	if e.st.Form.Version != "" {
		return
	}
	suggestion, err := reconcile.Suggest(e.st.Snapshot)
	if err != nil {
		if errors.Is(err, reconcile.ErrFirstReleaseRequired) && e.st.Branch.Status != BranchProtected {
			e.setFormError(err.Error())
		}
		return
	}
	e.st.Form.Version = suggestion
	e.logInfo("version suggested", "version", suggestion)
}

func (e *Engine) applyRefreshComplete(id int64, p protocol.RefreshComplete) {
	if !e.responseMatches(RequestRefresh, id) {
		e.logWarn("ignoring stale refresh response", "response_id", id)
		return
	}
	e.disarm(RequestRefresh)
	// Success or failure, the refresh control re-enables.
	e.st.RefreshBusy = false
	if !p.Success && p.Error != "" {
		e.st.SecondaryError = p.Error
	}
}

func (e *Engine) applyReleaseComplete(p protocol.ReleaseComplete) {
	e.st.CreateBusy = false
	e.st.pendingCreate = nil
	if p.Success {
		e.st.Form.Version = ""
		e.st.Form.Postfix = ""
		e.st.ReleaseError = ""
		e.logInfo("release created")
		return
	}
	// Host-reported release failures use their own channel so any visible
	// explanatory error stays up.
	e.st.ReleaseError = p.Error
	e.logWarn("release failed", "error", p.Error)
}

func (e *Engine) applyConfirmation(p protocol.ConfirmationResult) []protocol.Envelope {
	req := e.st.pendingCreate
	if req == nil {
		return nil
	}
	if !p.Accepted {
		e.st.pendingCreate = nil
		e.st.CreateBusy = false
		return nil
	}
	e.logInfo("release confirmed", "tag", req.Tag())
	return []protocol.Envelope{
		protocol.MustNew(protocol.KindCreatePreRelease, 0, *req),
	}
}

// selectCatalog is the shared selection path used by user selection, session
// restore, and the post-unlock metadata refresh.
func (e *Engine) selectCatalog(id string) []protocol.Envelope {
	e.st.Form.SelectedCatalogID = id
	e.st.Snapshot = reconcile.CatalogSnapshot{}
	e.st.Rows = nil
	e.st.Phase = PhaseAwaitingMetadata
	e.st.Form.IsLoading = true
	reqID := e.arm(RequestCatalogSelect)
	e.logInfo("catalog selected", "catalog_id", id, "request_id", reqID)
	return []protocol.Envelope{
		protocol.MustNew(protocol.KindSelectCatalog, reqID, protocol.SelectCatalog{CatalogID: id}),
	}
}

// arm registers a pending request of the given kind, superseding any prior
// one so a stale timeout can never fire after a fresh request completed.
func (e *Engine) arm(kind RequestKind) int64 {
	e.st.nextID++
	id := e.st.nextID
	now := e.clock()
	e.st.pending[kind] = pendingRequest{id: id, armedAt: now, deadline: now.Add(e.timeout)}
	e.st.lastRequestID[kind] = id
	return id
}

func (e *Engine) disarm(kind RequestKind) {
	delete(e.st.pending, kind)
}

// responseMatches accepts a response when it echoes the latest armed id of
// its kind, or carries no id at all (an uncorrelated host).
func (e *Engine) responseMatches(kind RequestKind, id int64) bool {
	if id == 0 {
		return true
	}
	return id == e.st.lastRequestID[kind]
}

func (e *Engine) revalidateConflict() {
	if e.st.AdvisorySticky {
		return
	}
	if _, conflict := reconcile.Conflicts(e.st.Form.Version, e.st.Snapshot); conflict {
		e.setFormError(errVersionConflict)
		return
	}
	if e.st.FormError == errVersionConflict {
		e.clearFormError()
	}
}

func (e *Engine) setFormError(msg string) {
	if e.st.AdvisorySticky {
		// The advisory owns the primary surface while the branch is locked.
		return
	}
	e.st.FormError = msg
	e.st.Form.IsError = true
}

func (e *Engine) clearFormError() {
	if e.st.AdvisorySticky {
		return
	}
	e.st.FormError = ""
	e.st.Form.IsError = false
}

func (e *Engine) decodeFailure(env protocol.Envelope, err error) []protocol.Envelope {
	e.logWarn("failed to decode message", "kind", string(env.Kind), "error", err)
	return []protocol.Envelope{
		protocol.MustNew(protocol.KindReportError, 0, protocol.ReportError{
			Message: fmt.Sprintf("undecodable %s message: %v", env.Kind, err),
		}),
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.log != nil {
		e.log.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.log != nil {
		e.log.Warn(msg, args...)
	}
}

func createSummary(req protocol.CreatePreRelease) string {
	targets := ""
	switch {
	case req.PublishToCatalog && req.ReleaseGitHub:
		targets = "a GitHub pre-release and a catalog version"
	case req.PublishToCatalog:
		targets = "a catalog version"
	case req.ReleaseGitHub:
		targets = "a GitHub pre-release"
	default:
		targets = "nothing"
	}
	return fmt.Sprintf("Create %s for %s?", targets, req.Tag())
}
