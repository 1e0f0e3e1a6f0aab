package repofetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mergemap/internal/types"
)

func TestNormalizeCloneURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantURL  string
		wantRepo string
		wantErr  bool
	}{
		{name: "https", in: "https://github.com/acme/widgets", wantURL: "https://github.com/acme/widgets.git", wantRepo: "widgets"},
		{name: "https with .git", in: "https://github.com/acme/widgets.git", wantURL: "https://github.com/acme/widgets.git", wantRepo: "widgets"},
		{name: "ssh", in: "git@github.com:acme/widgets.git", wantURL: "git@github.com:acme/widgets.git", wantRepo: "widgets"},
		{name: "other host", in: "https://gitlab.com/acme/widgets", wantErr: true},
		{name: "missing repo", in: "https://github.com/acme", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotURL, gotRepo, err := normalizeCloneURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeCloneURL(%q): %v", tt.in, err)
			}
			if gotURL != tt.wantURL || gotRepo != tt.wantRepo {
				t.Fatalf("got (%q, %q), want (%q, %q)", gotURL, gotRepo, tt.wantURL, tt.wantRepo)
			}
		})
	}
}

func TestFetchLocalDirectoryPassesThrough(t *testing.T) {
	dir := t.TempDir()
	f := &Fetcher{ReposRoot: t.TempDir()}
	got, err := f.Fetch(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
}

func TestFetchMissingLocalDirectoryIsNotFound(t *testing.T) {
	f := &Fetcher{ReposRoot: t.TempDir()}
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "gone"), "")
	var nf *types.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFetchCloneUsesShallowSingleBranch(t *testing.T) {
	var gotArgs []string
	orig := runGitCommand
	runGitCommand = func(_ context.Context, args ...string) error {
		gotArgs = args
		return nil
	}
	defer func() { runGitCommand = orig }()

	root := t.TempDir()
	f := &Fetcher{ReposRoot: root}
	dir, err := f.Fetch(context.Background(), "https://github.com/acme/widgets", "main")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if dir != filepath.Join(root, "widgets") {
		t.Fatalf("clone dir = %q", dir)
	}
	joined := strings.Join(gotArgs, " ")
	for _, frag := range []string{"clone", "--depth 1", "--branch main", "https://github.com/acme/widgets.git"} {
		if !strings.Contains(joined, frag) {
			t.Fatalf("git args %q missing %q", joined, frag)
		}
	}
}

func TestFetchExistingClonePullsInstead(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "widgets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var gotArgs []string
	orig := runGitCommand
	runGitCommand = func(_ context.Context, args ...string) error {
		gotArgs = args
		return nil
	}
	defer func() { runGitCommand = orig }()

	f := &Fetcher{ReposRoot: root}
	if _, err := f.Fetch(context.Background(), "https://github.com/acme/widgets", ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "pull --ff-only") {
		t.Fatalf("expected pull for existing clone, got %q", joined)
	}
}

func TestFetchGitFailureIsCollaboratorError(t *testing.T) {
	orig := runGitCommand
	runGitCommand = func(_ context.Context, _ ...string) error {
		return errors.New("boom")
	}
	defer func() { runGitCommand = orig }()

	f := &Fetcher{ReposRoot: t.TempDir()}
	_, err := f.Fetch(context.Background(), "https://github.com/acme/widgets", "")
	var ce *types.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if ce.Collaborator != "fetch" {
		t.Fatalf("collaborator = %q", ce.Collaborator)
	}
}
