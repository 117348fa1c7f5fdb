package host

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

// Sentinel errors for GitHub operations.
var (
	ErrEmptyToken  = errors.New("github token cannot be empty")
	ErrInvalidRepo = errors.New("repository must be in format 'owner/repo'")
)

const releasePageSize = 100

// GitHubClient wraps the GitHub API client for release operations against a
// single repository.
type GitHubClient struct {
	client *github.Client
	owner  string
	repo   string
}

var _ Releaser = (*GitHubClient)(nil)

// NewGitHubClient creates a GitHub API client for the specified repository.
// Token should be a personal access token with repo permissions. Repository
// must be in the format "owner/repo".
func NewGitHubClient(token, repository string) (*GitHubClient, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(nil).WithAuthToken(token)

	return &GitHubClient{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// ListReleases returns every release of the repository as tag plus creation
// time, newest page first.
func (c *GitHubClient) ListReleases(ctx context.Context) ([]reconcile.ReleaseRecord, error) {
	if c.client == nil || c.owner == "" || c.repo == "" {
		return nil, fmt.Errorf("client not initialized: use NewGitHubClient to create instances")
	}

	var records []reconcile.ReleaseRecord
	opts := &github.ListOptions{PerPage: releasePageSize}
	for {
		releases, resp, err := c.client.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases for %s/%s: %w", c.owner, c.repo, err)
		}
		for _, r := range releases {
			rec := reconcile.ReleaseRecord{Tag: r.GetTagName()}
			if ts := r.GetCreatedAt(); !ts.IsZero() {
				rec.CreatedAt = ts.Time
			}
			records = append(records, rec)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return records, nil
}

// CreatePreRelease creates a pre-release for the given tag and returns its
// HTML URL.
func (c *GitHubClient) CreatePreRelease(ctx context.Context, tag, name, body string) (string, error) {
	if tag == "" {
		return "", fmt.Errorf("release tag cannot be empty")
	}
	if name == "" {
		return "", fmt.Errorf("release name cannot be empty")
	}

	if c.client == nil || c.owner == "" || c.repo == "" {
		return "", fmt.Errorf("client not initialized: use NewGitHubClient to create instances")
	}

	release := &github.RepositoryRelease{
		TagName:    github.String(tag),
		Name:       github.String(name),
		Body:       github.String(body),
		Draft:      github.Bool(false),
		Prerelease: github.Bool(true),
	}

	created, _, err := c.client.Repositories.CreateRelease(ctx, c.owner, c.repo, release)
	if err != nil {
		return "", fmt.Errorf("failed to create release %s: %w", tag, err)
	}

	return created.GetHTMLURL(), nil
}

// CheckAuth probes the token by fetching the authenticated user.
func (c *GitHubClient) CheckAuth(ctx context.Context) bool {
	if c.client == nil {
		return false
	}
	_, _, err := c.client.Users.Get(ctx, "")
	return err == nil
}

// ReleaseTitle builds the human-facing release name from the repository name
// and the tag, e.g. "Appliance Builder v1.2.3-ce".
func (c *GitHubClient) ReleaseTitle(tag string) string {
	words := strings.NewReplacer("-", " ", "_", " ").Replace(c.repo)
	return cases.Title(language.English).String(words) + " " + tag
}

// parseRepository splits a repository string into owner and repo.
// Returns an error if the format is invalid.
func parseRepository(repository string) (owner, repo string, err error) {
	if repository == "" {
		return "", "", ErrInvalidRepo
	}

	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner or repo is empty", ErrInvalidRepo)
	}

	return owner, repo, nil
}
