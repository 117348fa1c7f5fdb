package engine

import (
	"fmt"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
)

// NotPublished is the placeholder for a version one side never saw.
const NotPublished = "not published"

// Table status placeholders.
const (
	StatusSelectCatalog = "Select a catalog to compare versions."
	StatusLoading       = "Loading catalog versions..."
	StatusTimedOut      = "Request timed out."
)

// RowView is one rendered reconciliation row: the GitHub column and one
// catalog cell per flavor, placeholders already filled in.
type RowView struct {
	GitHubTag    string
	CatalogCells []string
}

// ViewModel is the full render instruction set. Both presentation profiles
// (the form-based one and the checkbox/terminal one) consume this structure;
// neither reads State directly.
type ViewModel struct {
	BranchName      string
	BranchKnown     bool
	BranchProtected bool

	VersionField string
	PostfixField string

	VersionEnabled bool
	PostfixEnabled bool
	CatalogEnabled bool
	CreateEnabled  bool
	RefreshEnabled bool
	CreateBusy     bool
	RefreshBusy    bool

	Offerings         []protocol.CatalogInfo
	SelectedCatalogID string

	Rows        []RowView
	TableStatus string

	FormError       string
	SecondaryError  string
	ReleaseError    string
	UnpushedWarning bool

	AuthKnown            bool
	GitHubAuthenticated  bool
	CatalogAuthenticated bool

	CacheNote string

	Loading        bool
	LoadingMessage string
}

// Render projects the state into a ViewModel. It is a pure function of
// State: no mutation, no transport, so the state machine tests drive it
// without any presentation layer.
func (e *Engine) Render() ViewModel {
	st := &e.st
	vm := ViewModel{
		BranchName:      st.Branch.Name,
		BranchKnown:     st.Branch.Status == BranchProtected || st.Branch.Status == BranchUnprotected,
		BranchProtected: st.Branch.Status == BranchProtected,

		VersionField: st.Form.Version,
		PostfixField: st.Form.Postfix,

		Offerings:         st.Offerings,
		SelectedCatalogID: st.Form.SelectedCatalogID,

		FormError:       st.FormError,
		SecondaryError:  st.SecondaryError,
		ReleaseError:    st.ReleaseError,
		UnpushedWarning: st.UnpushedWarning,

		AuthKnown:            st.Auth.Known,
		GitHubAuthenticated:  st.Auth.GitHub,
		CatalogAuthenticated: st.Auth.Catalog,

		Loading:        st.Loading,
		LoadingMessage: st.LoadingMessage,

		CreateBusy:  st.CreateBusy,
		RefreshBusy: st.RefreshBusy,
	}

	unlocked := !st.Form.IsMainBranchLocked
	fieldsFree := unlocked && !st.Form.IsLoading
	vm.VersionEnabled = fieldsFree
	vm.PostfixEnabled = fieldsFree
	vm.CatalogEnabled = fieldsFree
	vm.RefreshEnabled = st.Form.SelectedCatalogID != "" && !st.RefreshBusy

	_, conflict := conflictState(st)
	vm.CreateEnabled = st.Form.Version != "" &&
		st.Form.Postfix != "" &&
		unlocked &&
		!conflict &&
		st.Auth.Known && st.Auth.GitHub && st.Auth.Catalog &&
		!st.CreateBusy

	switch st.Phase {
	case PhaseNoSelection:
		vm.TableStatus = StatusSelectCatalog
	case PhaseAwaitingMetadata, PhaseMetadataReady:
		vm.TableStatus = StatusLoading
	case PhaseTimedOut:
		vm.TableStatus = StatusTimedOut
	}

	for _, row := range st.Rows {
		rv := RowView{GitHubTag: row.GitHubTag}
		if rv.GitHubTag == "" {
			rv.GitHubTag = NotPublished
		}
		if len(row.Entries) == 0 {
			rv.CatalogCells = []string{NotPublished}
		} else {
			for _, entry := range row.Entries {
				cell := entry.Version
				if entry.FlavorLabel != "" {
					cell = fmt.Sprintf("%s (%s)", entry.Version, entry.FlavorLabel)
				}
				rv.CatalogCells = append(rv.CatalogCells, cell)
			}
		}
		vm.Rows = append(vm.Rows, rv)
	}

	if st.FromCache && !st.CachedAt.IsZero() {
		vm.CacheNote = fmt.Sprintf("cached %s", st.CachedAt.Format("2006-01-02 15:04:05"))
	}

	return vm
}

func conflictState(st *State) (string, bool) {
	for _, entry := range st.Snapshot.Entries {
		if st.Form.Version != "" && entry.Version == st.Form.Version {
			return entry.Version, true
		}
	}
	return "", false
}
