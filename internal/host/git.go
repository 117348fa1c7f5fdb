package host

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotARepository is returned when the working directory is not inside a
// git worktree.
var ErrNotARepository = errors.New("not a git repository")

// GitCLI inspects the local repository by shelling out to git.
type GitCLI struct {
	dir string
}

var _ Git = (*GitCLI)(nil)

// NewGitCLI returns a Git implementation rooted at dir. An empty dir uses the
// process working directory.
func NewGitCLI(dir string) *GitCLI {
	return &GitCLI{dir: dir}
}

// CurrentBranch returns the checked-out branch name. A detached HEAD yields
// "HEAD", which the panel treats as an unprotected branch.
func (g *GitCLI) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HasUnpushedChanges reports commits present locally but missing from the
// upstream branch. A branch without an upstream counts as unpushed.
func (g *GitCLI) HasUnpushedChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "rev-list", "--count", "@{upstream}..HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "no upstream") {
			return true, nil
		}
		return false, err
	}
	return strings.TrimSpace(out) != "0", nil
}

func (g *GitCLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if g.dir != "" {
		cmd.Dir = g.dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(msg, "not a git repository") {
			return "", ErrNotARepository
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}
