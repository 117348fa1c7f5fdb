// Package protocol defines the asynchronous message contract between the
// panel engine and the host process that owns git, GitHub, and catalog
// operations. The transport is assumed trusted and ordered; correlation is
// per message kind via a monotonically increasing request id.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

// Kind identifies a message type. Responses are matched to requests by kind
// plus the echoed request id, never by position.
type Kind string

// Inbound kinds (host -> panel).
const (
	KindAuthenticationStatus Kind = "authenticationStatus"
	KindUpdateData           Kind = "updateData"
	KindUpdateBranchName     Kind = "updateBranchName"
	KindShowError            Kind = "showError"
	KindUpdateCatalogDetails Kind = "updateCatalogDetails"
	KindHasUnpushedChanges   Kind = "hasUnpushedChanges"
	KindRefreshComplete      Kind = "refreshComplete"
	KindReleaseComplete      Kind = "releaseComplete"
	KindShowLoading          Kind = "showLoading"
	KindHideLoading          Kind = "hideLoading"
	KindConfirmationResult   Kind = "confirmationResult"
)

// Outbound kinds (panel -> host).
const (
	KindCheckAuthentication Kind = "checkAuthentication"
	KindGetBranchName       Kind = "getBranchName"
	KindSelectCatalog       Kind = "selectCatalog"
	KindForceRefresh        Kind = "forceRefresh"
	KindCreatePreRelease    Kind = "createPreRelease"
	KindShowConfirmation    Kind = "showConfirmation"
	KindReportError         Kind = "showErrorReport"
)

var inboundKinds = map[Kind]struct{}{
	KindAuthenticationStatus: {},
	KindUpdateData:           {},
	KindUpdateBranchName:     {},
	KindShowError:            {},
	KindUpdateCatalogDetails: {},
	KindHasUnpushedChanges:   {},
	KindRefreshComplete:      {},
	KindReleaseComplete:      {},
	KindShowLoading:          {},
	KindHideLoading:          {},
	KindConfirmationResult:   {},
}

var outboundKinds = map[Kind]struct{}{
	KindCheckAuthentication: {},
	KindGetBranchName:       {},
	KindSelectCatalog:       {},
	KindForceRefresh:        {},
	KindCreatePreRelease:    {},
	KindShowConfirmation:    {},
	KindReportError:         {},
}

// Envelope wraps every message on the wire. ID is zero for fire-and-forget
// kinds; request kinds that expect correlation carry the sender's id and the
// host echoes it back on the response.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Sentinel errors for envelope validation.
var (
	ErrEmptyKind   = errors.New("message kind is required")
	ErrUnknownKind = errors.New("unknown message kind")
)

// Normalize applies canonical formatting before validation.
func (e *Envelope) Normalize() {
	if e == nil {
		return
	}
	e.Kind = Kind(strings.TrimSpace(string(e.Kind)))
}

// Validate enforces baseline schema requirements.
func (e Envelope) Validate() error {
	if e.Kind == "" {
		return ErrEmptyKind
	}
	if _, in := inboundKinds[e.Kind]; in {
		return nil
	}
	if _, out := outboundKinds[e.Kind]; out {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, e.Kind)
}

// IsInbound reports whether the kind travels host -> panel.
func (e Envelope) IsInbound() bool {
	_, ok := inboundKinds[e.Kind]
	return ok
}

// Unmarshal decodes the payload into v.
func (e Envelope) Unmarshal(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// New builds an envelope, marshalling the payload. A nil payload produces an
// envelope with no payload field.
func New(kind Kind, id int64, payload any) (Envelope, error) {
	env := Envelope{Kind: kind, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// MustNew is New for payloads that cannot fail to marshal. It panics
// otherwise and exists for the engine's internally-built messages.
func MustNew(kind Kind, id int64, payload any) Envelope {
	env, err := New(kind, id, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// CatalogInfo identifies one selectable catalog offering.
type CatalogInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthenticationStatus reports the two identity providers' states.
type AuthenticationStatus struct {
	GitHubAuthenticated  bool `json:"githubAuthenticated"`
	CatalogAuthenticated bool `json:"catalogAuthenticated"`
}

// UpdateData repopulates the catalog selection list and the release cache.
type UpdateData struct {
	Offerings []CatalogInfo             `json:"offerings"`
	Releases  []reconcile.ReleaseRecord `json:"releases"`
	CachedAt  time.Time                 `json:"cachedAt,omitempty"`
	FromCache bool                      `json:"fromCache"`
}

// UpdateBranchName drives the branch dimension of the state machine.
type UpdateBranchName struct {
	Name  string `json:"name,omitempty"`
	Error string `json:"error,omitempty"`
}

// ShowError sets (non-empty) or clears (empty) the secondary error surface.
// Forced clears are honored even while the protected-branch advisory is up.
type ShowError struct {
	Message string `json:"message,omitempty"`
	Forced  bool   `json:"forced,omitempty"`
}

// UpdateCatalogDetails is the two-phase catalog response: the metadata phase
// arrives with Versions nil, the versions phase with Versions set (possibly
// to an empty list, which is a meaningful state, not a missing one).
type UpdateCatalogDetails struct {
	CatalogID        string                    `json:"catalogId"`
	OfferingNotFound bool                      `json:"offeringNotFound,omitempty"`
	Versions         *[]reconcile.CatalogEntry `json:"versions,omitempty"`
}

// HasUnpushedChanges is an advisory-only warning.
type HasUnpushedChanges struct {
	Unpushed bool `json:"unpushed"`
}

// RefreshComplete terminates a force-refresh request.
type RefreshComplete struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ReleaseComplete terminates a create-pre-release request.
type ReleaseComplete struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ShowLoading raises the global busy overlay; HideLoading drops it.
type ShowLoading struct {
	Message string `json:"message,omitempty"`
}

// ConfirmationResult answers a ShowConfirmation request.
type ConfirmationResult struct {
	Accepted bool `json:"accepted"`
}

// SelectCatalog asks the host to fetch a catalog offering's details.
type SelectCatalog struct {
	CatalogID string `json:"catalogId"`
}

// ForceRefresh bypasses the host's cache for the given catalog.
type ForceRefresh struct {
	CatalogID string `json:"catalogId"`
}

// CreatePreRelease asks the host to create the release. PublishToCatalog and
// ReleaseGitHub select the targets; both may be set.
type CreatePreRelease struct {
	Version          string `json:"version"`
	Postfix          string `json:"postfix"`
	PublishToCatalog bool   `json:"publishToCatalog"`
	ReleaseGitHub    bool   `json:"releaseGithub"`
	CatalogID        string `json:"catalogId"`
}

// Tag returns the release tag identifier the create targets.
func (c CreatePreRelease) Tag() string {
	return "v" + c.Version + "-" + c.Postfix
}

// ShowConfirmation carries a human-readable summary the host (or shell)
// displays before the actual create is issued.
type ShowConfirmation struct {
	Summary string           `json:"summary"`
	Request CreatePreRelease `json:"request"`
}

// ReportError surfaces an engine-detected error to the host's log.
type ReportError struct {
	Message string `json:"message"`
}
