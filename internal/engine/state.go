// Package engine owns the panel's decision state: branch dimension,
// authentication flags, catalog selection lifecycle, pending-request timers,
// and control enablement. It is presentation-free and transport-free; every
// inbound message, user action, and timer tick is an explicit transition
// call that mutates the single owned State and returns the outbound
// messages to send.
package engine

import (
	"strings"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

// BranchStatus is the branch dimension of the state machine.
type BranchStatus int

const (
	BranchUninitialized BranchStatus = iota
	BranchLoading
	BranchProtected
	BranchUnprotected
)

// CatalogPhase is the catalog-selection dimension, independent of branch.
type CatalogPhase int

const (
	PhaseNoSelection CatalogPhase = iota
	PhaseAwaitingMetadata
	PhaseMetadataReady
	PhaseVersionsReady
	PhaseTimedOut
)

// RequestKind keys the pending-request table. At most one request per kind
// is armed; arming a new one supersedes the previous (last request wins).
type RequestKind int

const (
	RequestCatalogSelect RequestKind = iota
	RequestRefresh
)

const (
	branchPollInterval = 2 * time.Second
	requestTimeout     = 10 * time.Second
)

// Fixed user-facing texts for locally detected conditions.
const (
	AdvisoryProtectedBranch = "Releases cannot be created from the main branch. Switch to a release branch first."
	errVersionRequired      = "Version and postfix are required."
	errVersionMalformed     = "Version must have the form major.minor.patch, e.g. 1.2.3."
	errVersionConflict      = "This version is already published to the catalog."
	errNoUpstreamTag        = "No upstream release matches this tag; create the GitHub release first."
	errRequestTimedOut      = "The catalog did not respond. Try again."
	errOfferingNotFound     = "The selected offering was not found in the catalog."
)

// BranchState tracks the current local branch. Protected means the name is
// "main" or "master", case-insensitive, recomputed on every branch message.
type BranchState struct {
	Name   string
	Status BranchStatus
	Err    string
}

// IsProtectedName reports whether a branch name forbids release creation.
func IsProtectedName(name string) bool {
	switch strings.ToLower(name) {
	case "main", "master":
		return true
	}
	return false
}

// AuthState carries the two identity providers' flags. Known is false until
// the first authenticationStatus message arrives.
type AuthState struct {
	GitHub  bool
	Catalog bool
	Known   bool
}

// FormState is the single mutable record driving control enablement.
type FormState struct {
	Version            string
	Postfix            string
	SelectedCatalogID  string
	IsLoading          bool
	IsError            bool
	IsMainBranchLocked bool
}

// pendingRequest tracks one armed outbound request awaiting its response.
type pendingRequest struct {
	id       int64
	armedAt  time.Time
	deadline time.Time
}

// State is the single owned state object. All transitions mutate it in
// place on the event loop; there is no locking because there is no
// concurrent access.
type State struct {
	Branch    BranchState
	Auth      AuthState
	Offerings []protocol.CatalogInfo
	Releases  []reconcile.ReleaseRecord

	Snapshot reconcile.CatalogSnapshot
	Phase    CatalogPhase
	Form     FormState
	Rows     []reconcile.Row

	// FormError is the primary error surface; while AdvisorySticky it holds
	// the protected-branch advisory and only a forced clear or a later
	// non-protected branch message removes it.
	FormError      string
	AdvisorySticky bool
	// SecondaryError is the host-driven surface (showError messages).
	SecondaryError string
	// ReleaseError is the release-failure channel; it never replaces
	// FormError so an explanatory policy error stays visible alongside it.
	ReleaseError string

	UnpushedWarning bool
	Loading         bool
	LoadingMessage  string

	CachedAt  time.Time
	FromCache bool

	RefreshBusy bool
	CreateBusy  bool

	pending       map[RequestKind]pendingRequest
	lastRequestID map[RequestKind]int64
	nextID        int64
	lastPoll      time.Time
	pendingCreate *protocol.CreatePreRelease
}
