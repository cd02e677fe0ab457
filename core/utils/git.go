package utils

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/go-git/go-git/v5"
	giturls "github.com/whilp/git-urls"
)

// RepoNameFromFullName returns the repository part of an "owner/repo" identifier
// such as GITHUB_REPOSITORY. It returns "" when there is no second segment.
func RepoNameFromFullName(fullName string) string {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// RepoNameFromRemoteURL parses any git remote URL form (https, ssh, scp-like)
// and returns the repository name without the .git suffix.
func RepoNameFromRemoteURL(remoteURL string) (string, error) {
	u, err := giturls.Parse(strings.TrimSpace(remoteURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse git remote url %q: %w", remoteURL, err)
	}
	name := strings.TrimSuffix(path.Base(strings.TrimRight(u.Path, "/")), ".git")
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("git remote url %q has no repository name", remoteURL)
	}
	return name, nil
}

// RepoNameFromGit opens the git repository containing dir and derives the
// repository name from the given remote (usually "origin").
func RepoNameFromGit(dir, remote string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open git repository at %s: %w", dir, err)
	}
	r, err := repo.Remote(remote)
	if err != nil {
		return "", fmt.Errorf("failed to read git remote %q: %w", remote, err)
	}
	urls := r.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("git remote %q has no url", remote)
	}

	slog.Debug("Resolving repository name from git remote", "remote", remote, "url", urls[0])
	return RepoNameFromRemoteURL(urls[0])
}
