// Package report renders a static HTML snapshot of the release
// reconciliation table, for sharing state outside the interactive panel.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/host"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

// Generator orchestrates the snapshot generation process.
// Following Dave Cheney's principle: "Accept interfaces, return structs"
type Generator struct {
	releaser host.Releaser
	catalog  host.CatalogService
	logger   *slog.Logger
}

// NewGenerator creates a Generator over the host collaborators.
func NewGenerator(releaser host.Releaser, catalog host.CatalogService, logger *slog.Logger) *Generator {
	return &Generator{
		releaser: releaser,
		catalog:  catalog,
		logger:   logger,
	}
}

// GenerateOptions contains options for snapshot generation.
type GenerateOptions struct {
	OfferingID string
	OutputPath string
	DryRun     bool
}

// Model is the data handed to the HTML template.
type Model struct {
	Repository  string
	OfferingID  string
	GeneratedAt time.Time
	Rows        []rowModel
}

type rowModel struct {
	GitHubTag    string
	CatalogCells []string
}

// Generate fetches releases and catalog versions, reconciles them, and
// writes the HTML snapshot. In dry-run mode the file is rendered but not
// written.
func (g *Generator) Generate(ctx context.Context, repository string, opts GenerateOptions) error {
	if opts.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.OfferingID == "" {
		return fmt.Errorf("offering id is required")
	}

	g.logger.Info("starting snapshot generation",
		"offering_id", opts.OfferingID, "output", opts.OutputPath, "dry_run", opts.DryRun)

	releases, err := g.releaser.ListReleases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load releases: %w", err)
	}

	entries, err := g.catalog.Versions(ctx, opts.OfferingID)
	if err != nil {
		return fmt.Errorf("failed to load catalog versions: %w", err)
	}

	snapshot := reconcile.CatalogSnapshot{
		OfferingFound: true,
		Loaded:        true,
		Entries:       entries,
	}
	rows := reconcile.Build(releases, snapshot)

	g.logger.Info("reconciled releases", "releases", len(releases), "rows", len(rows))

	model := buildModel(repository, opts.OfferingID, rows)
	content, err := render(model)
	if err != nil {
		return fmt.Errorf("failed to render snapshot: %w", err)
	}

	if opts.DryRun {
		g.logger.Info("dry run, skipping write", "bytes", len(content))
		return nil
	}

	written, err := writeFileIfChanged(opts.OutputPath, content, g.logger)
	if err != nil {
		return err
	}
	if written {
		g.logger.Info("snapshot written", "path", opts.OutputPath)
	} else {
		g.logger.Info("snapshot unchanged", "path", opts.OutputPath)
	}
	return nil
}

func buildModel(repository, offeringID string, rows []reconcile.Row) Model {
	model := Model{
		Repository:  repository,
		OfferingID:  offeringID,
		GeneratedAt: time.Now().UTC(),
	}
	for _, row := range rows {
		rm := rowModel{GitHubTag: row.GitHubTag}
		if rm.GitHubTag == "" {
			rm.GitHubTag = "not published"
		}
		if len(row.Entries) == 0 {
			rm.CatalogCells = []string{"not published"}
		}
		for _, entry := range row.Entries {
			cell := entry.Version
			if entry.FlavorLabel != "" {
				cell = fmt.Sprintf("%s (%s)", entry.Version, entry.FlavorLabel)
			}
			rm.CatalogCells = append(rm.CatalogCells, cell)
		}
		model.Rows = append(model.Rows, rm)
	}
	return model
}

var snapshotTemplate = template.Must(template.New("snapshot").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Release Reconciliation - {{.Repository}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f0f0f0; }
.missing { color: #999; font-style: italic; }
</style>
</head>
<body>
<h1>Release Reconciliation</h1>
<p>Repository: {{.Repository}} · Offering: {{.OfferingID}} · Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</p>
<table>
<tr><th>GitHub Release</th><th>Catalog Versions</th></tr>
{{range .Rows}}<tr><td{{if eq .GitHubTag "not published"}} class="missing"{{end}}>{{.GitHubTag}}</td><td>{{range $i, $c := .CatalogCells}}{{if $i}}, {{end}}{{$c}}{{end}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func render(model Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := snapshotTemplate.Execute(&buf, model); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
