// Package reconcile aligns upstream release tags with catalog-published
// versions and proposes the next release version.
package reconcile

import "time"

// ReleaseRecord is one upstream tagged release. Tags are assumed to start
// with an optional leading "v".
type ReleaseRecord struct {
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"createdAt"`
}

// CatalogEntry is one published (version, flavor) pair of a catalog offering.
// Multiple entries may share a version, one per flavor.
type CatalogEntry struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	FlavorLabel string `json:"flavorLabel"`
	ArtifactURL string `json:"artifactUrl,omitempty"`
}

// CatalogSnapshot is the catalog side of a selection. Loaded distinguishes
// "versions not fetched yet" from "offering has zero versions"; the two drive
// very different policy (the latter triggers the first-release error).
type CatalogSnapshot struct {
	OfferingFound bool
	Loaded        bool
	Entries       []CatalogEntry
}

// Versions returns the version strings of all entries, duplicates included.
func (s CatalogSnapshot) Versions() []string {
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Version)
	}
	return out
}

// Row is one line of the reconciliation table: an upstream tag aligned with
// the catalog entries of the same version. An empty GitHubTag means the
// version was never tagged upstream; empty Entries means the tag was never
// published to the catalog.
type Row struct {
	GitHubTag string
	Entries   []CatalogEntry
}
