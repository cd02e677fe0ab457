package config

import (
	"fmt"
	"log/slog"

	"github.com/YOKE-Gaming/linear-release-action/core/utils"
)

// EnvGitHubRepository is set by GitHub Actions to "owner/repo".
const EnvGitHubRepository = "GITHUB_REPOSITORY"

const defaultRemote = "origin"

// Scope returns the label scope for this run: the Linear parent label name
// issues are filtered by and version labels are created under.
//
// With ScopeApp the app name is mapped through Apps, falling back to the app
// name itself. With ScopeRepository the repository name is taken from
// GITHUB_REPOSITORY, then from the origin remote of Workdir. ScopeAuto picks
// ScopeApp when an app name is configured.
func (c *Config) Scope(lookup LookupFunc) (string, error) {
	source := c.ScopeSource
	if source == "" || source == ScopeAuto {
		source = ScopeRepository
		if c.AppName != "" {
			source = ScopeApp
		}
	}

	switch source {
	case ScopeApp:
		if c.AppName == "" {
			return "", fmt.Errorf("%s is required when %s is %q", KeyAppName, KeyScopeSource, ScopeApp)
		}
		if scope, ok := c.Apps[c.AppName]; ok && scope != "" {
			return scope, nil
		}
		slog.Debug("App has no entry in the apps table; using the app name as scope", "app", c.AppName)
		return c.AppName, nil
	case ScopeRepository:
		return c.repositoryScope(lookup)
	default:
		return "", fmt.Errorf("unknown %s %q", KeyScopeSource, source)
	}
}

func (c *Config) repositoryScope(lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = Env(nil).Lookup
	}
	if full, ok := lookup(EnvGitHubRepository); ok {
		if name := utils.RepoNameFromFullName(full); name != "" {
			return name, nil
		}
	}
	name, err := utils.RepoNameFromGit(c.Workdir, defaultRemote)
	if err != nil {
		return "", fmt.Errorf("failed to determine repository name: %w", err)
	}
	return name, nil
}
