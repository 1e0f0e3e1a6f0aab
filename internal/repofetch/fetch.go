package repofetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"mergemap/internal/types"
)

// Fetcher materializes a repository location as a readable local directory.
// Local paths pass through untouched; github locations are shallow-cloned
// under ReposRoot. The analyzer core never sees version-control semantics,
// only the resulting directory path.
type Fetcher struct {
	// ReposRoot is where remote repositories are cloned.
	ReposRoot string
}

// runGitCommand is injectable in tests.
var runGitCommand = func(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Fetch resolves location to a local directory. Any failure is reported as
// *types.CollaboratorError; a plainly missing local directory is
// *types.NotFoundError so the caller can distinguish bad input from a
// collaborator outage.
func (f *Fetcher) Fetch(ctx context.Context, location, branch string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", &types.CollaboratorError{Collaborator: "fetch", Err: fmt.Errorf("location is required")}
	}

	if isRemote(location) {
		dir, err := f.clone(ctx, location, branch)
		if err != nil {
			return "", &types.CollaboratorError{Collaborator: "fetch", Err: err}
		}
		return dir, nil
	}

	st, err := os.Stat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &types.NotFoundError{Path: location}
		}
		return "", &types.CollaboratorError{Collaborator: "fetch", Err: err}
	}
	if !st.IsDir() {
		return "", &types.CollaboratorError{Collaborator: "fetch", Err: fmt.Errorf("%s is not a directory", location)}
	}
	return location, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") ||
		strings.HasPrefix(location, "https://") ||
		strings.HasPrefix(location, "git@")
}

func (f *Fetcher) clone(ctx context.Context, location, branch string) (string, error) {
	cloneURL, repoName, err := normalizeCloneURL(location)
	if err != nil {
		return "", err
	}

	root := strings.TrimSpace(f.ReposRoot)
	if root == "" {
		return "", fmt.Errorf("repos root is not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("mkdir repos root: %w", err)
	}

	target := filepath.Join(root, repoName)
	if st, err := os.Stat(target); err == nil && st.IsDir() {
		// Existing clone: fast-forward instead of recloning.
		pullArgs := []string{"-C", target, "pull", "--ff-only"}
		if b := strings.TrimSpace(branch); b != "" {
			pullArgs = append(pullArgs, "origin", b)
		}
		if err := runGitCommand(ctx, pullArgs...); err != nil {
			return "", err
		}
		return target, nil
	}

	args := []string{"clone", "--depth", "1"}
	if b := strings.TrimSpace(branch); b != "" {
		args = append(args, "--branch", b, "--single-branch")
	}
	args = append(args, cloneURL, target)
	if err := runGitCommand(ctx, args...); err != nil {
		return "", err
	}
	return target, nil
}

func normalizeCloneURL(raw string) (cloneURL, repoName string, err error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "git@github.com:") {
		repoPath := strings.TrimSuffix(strings.TrimPrefix(raw, "git@github.com:"), ".git")
		owner, repo, ok := splitOwnerRepo(repoPath)
		if !ok {
			return "", "", fmt.Errorf("invalid github location %q", raw)
		}
		return fmt.Sprintf("git@github.com:%s/%s.git", owner, repo), repo, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid location: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(u.Host), "github.com") {
		return "", "", fmt.Errorf("only github.com locations are supported, got %q", u.Host)
	}
	repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	owner, repo, ok := splitOwnerRepo(repoPath)
	if !ok {
		return "", "", fmt.Errorf("invalid github location %q", raw)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo), repo, nil
}

func splitOwnerRepo(repoPath string) (owner, repo string, ok bool) {
	parts := strings.Split(strings.Trim(repoPath, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" || repo != path.Clean(repo) {
		return "", "", false
	}
	return owner, repo, true
}
