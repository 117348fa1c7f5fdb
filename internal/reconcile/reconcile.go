package reconcile

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/clean-dependency-project/cdpanel/internal/version"
)

// Sentinel errors for reconciliation policy.
var (
	// ErrFirstReleaseRequired fires when the catalog offering exists but has
	// no published versions: this tool refuses to originate version zero, the
	// first release must go through the catalog's own interface.
	ErrFirstReleaseRequired = errors.New("offering has no published versions: create the first release through the catalog interface")
	// ErrVersionsNotLoaded means the snapshot's version list has not arrived
	// yet, so no suggestion or policy decision can be made.
	ErrVersionsNotLoaded = errors.New("catalog versions not loaded yet")
)

// maxCatalogVersions caps how many distinct catalog versions the table shows.
const maxCatalogVersions = 5

// artifactTagPattern extracts the source tag from a catalog artifact URL.
// This is the only association from a catalog entry back to a source tag.
var artifactTagPattern = regexp.MustCompile(`/tags/([^/]+)\.tar\.gz`)

// ReleaseVersion derives the bare version from a release tag: one leading
// "v" stripped, then everything before the first "-".
// ReleaseVersion("v1.2.3-beta") == "1.2.3".
func ReleaseVersion(tag string) string {
	v := strings.TrimPrefix(tag, "v")
	if i := strings.Index(v, "-"); i >= 0 {
		v = v[:i]
	}
	return v
}

// TagFromArtifactURL matches the path segment between "/tags/" and ".tar.gz".
// The second return is false when the URL does not carry that pattern.
func TagFromArtifactURL(url string) (string, bool) {
	m := artifactTagPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Build combines upstream releases and a catalog snapshot into the aligned
// reconciliation table, newest/unmatched-first: first every release tag the
// catalog has never published (descending by bare version), then the top
// distinct catalog versions with all their flavor entries.
func Build(releases []ReleaseRecord, snap CatalogSnapshot) []Row {
	sorted := make([]ReleaseRecord, len(releases))
	copy(sorted, releases)
	sort.SliceStable(sorted, func(i, j int) bool {
		return version.Compare(ReleaseVersion(sorted[i].Tag), ReleaseVersion(sorted[j].Tag)) > 0
	})

	published := make(map[string]CatalogEntry)
	for _, e := range snap.Entries {
		if tag, ok := TagFromArtifactURL(e.ArtifactURL); ok {
			if _, exists := published[tag]; !exists {
				published[tag] = e
			}
		}
	}

	var rows []Row
	for _, rel := range sorted {
		if _, ok := published[rel.Tag]; !ok {
			rows = append(rows, Row{GitHubTag: rel.Tag})
		}
	}

	distinct := distinctVersionsDescending(snap.Entries)
	if len(distinct) > maxCatalogVersions {
		distinct = distinct[:maxCatalogVersions]
	}
	for _, v := range distinct {
		row := Row{}
		for _, e := range snap.Entries {
			if e.Version != v {
				continue
			}
			row.Entries = append(row.Entries, e)
			if row.GitHubTag == "" {
				if tag, ok := TagFromArtifactURL(e.ArtifactURL); ok {
					row.GitHubTag = tag
				}
			}
		}
		rows = append(rows, row)
	}

	return rows
}

// Suggest proposes the next version from the snapshot: highest strict-shaped
// published version with its patch incremented. Returns ErrVersionsNotLoaded
// while the version list is absent and ErrFirstReleaseRequired when it is
// present but yields nothing to increment.
func Suggest(snap CatalogSnapshot) (string, error) {
	if !snap.Loaded {
		return "", ErrVersionsNotLoaded
	}
	next, err := version.SuggestNext(snap.Versions())
	if err != nil {
		if errors.Is(err, version.ErrNoVersionsProvided) {
			return "", ErrFirstReleaseRequired
		}
		return "", err
	}
	return next, nil
}

// Conflicts reports whether v exactly matches an already-published catalog
// version, returning the first conflicting entry.
func Conflicts(v string, snap CatalogSnapshot) (CatalogEntry, bool) {
	if v == "" {
		return CatalogEntry{}, false
	}
	for _, e := range snap.Entries {
		if e.Version == v {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// HasUpstreamTag reports whether any release carries the given tag.
func HasUpstreamTag(releases []ReleaseRecord, tag string) bool {
	for _, r := range releases {
		if r.Tag == tag {
			return true
		}
	}
	return false
}

func distinctVersionsDescending(entries []CatalogEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.Version]; ok {
			continue
		}
		seen[e.Version] = struct{}{}
		out = append(out, e.Version)
	}
	version.SortDescending(out)
	return out
}
