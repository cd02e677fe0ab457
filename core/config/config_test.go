package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

var required = Values{
	KeyLinearAPIKey: "lin_api_key",
	KeySlackToken:   "xoxb-token",
	KeySlackChannel: "C123",
}

func TestResolve_Precedence(t *testing.T) {
	t.Parallel()
	explicit := Values{KeySlackChannel: "C-flag"}
	env := Env(lookupMap(map[string]string{
		KeySlackChannel: "C-env",
		KeyReadyState:   "QA Passed",
	}))

	cfg, err := Resolve(explicit, env, required, Defaults)
	require.NoError(t, err)
	assert.Equal(t, "C-flag", cfg.SlackChannel)
	assert.Equal(t, "QA Passed", cfg.ReadyState)
	assert.Equal(t, "lin_api_key", cfg.LinearAPIKey)
	assert.Equal(t, "Done", cfg.DoneState)
	assert.Equal(t, ScopeAuto, cfg.ScopeSource)
	assert.Equal(t, "scoped", cfg.LabelFormat)
	assert.Equal(t, "fail", cfg.EmptyPolicy)
	assert.False(t, cfg.IncludePullRequests)
}

func TestResolve_BlankValuesFallThrough(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(Values{KeySlackChannel: "  "}, required, Defaults)
	require.NoError(t, err)
	assert.Equal(t, "C123", cfg.SlackChannel)
}

func TestResolve_MissingRequired(t *testing.T) {
	t.Parallel()
	_, err := Resolve(Defaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linearApiKey is required")
	assert.Contains(t, err.Error(), "slackToken is required")
	assert.Contains(t, err.Error(), "slackChannel is required")
}

func TestResolve_InvalidEnum(t *testing.T) {
	t.Parallel()
	_, err := Resolve(Values{KeyEmptyPolicy: "ignore"}, required, Defaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `emptyPolicy must be one of [fail report], got "ignore"`)
}

func TestResolve_InvalidBool(t *testing.T) {
	t.Parallel()
	_, err := Resolve(Values{KeyIncludePullRequests: "sometimes"}, required, Defaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "includePullRequests")
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotenvFile), []byte("linearApiKey=lin_from_dotenv\nslackChannel=C-dotenv\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(`
readyState: Ready To Ship
includePullRequests: true
slackChannel: C-file
apps:
  expo-app: Mobile
  dashboard: Web
`), 0o644))

	l := &Loader{
		Explicit: Values{KeyWorkdir: dir, KeyAppName: "expo-app"},
		Lookup: lookupMap(map[string]string{
			"INPUT_SLACKTOKEN": "xoxb-input",
			KeySlackToken:      "xoxb-env",
			KeySlackChannel:    "C-env",
		}),
	}
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "lin_from_dotenv", cfg.LinearAPIKey)
	assert.Equal(t, "xoxb-input", cfg.SlackToken, "action input beats env")
	assert.Equal(t, "C-env", cfg.SlackChannel, "env beats dotenv and file")
	assert.Equal(t, "Ready To Ship", cfg.ReadyState)
	assert.True(t, cfg.IncludePullRequests)
	assert.Equal(t, map[string]string{"expo-app": "Mobile", "dashboard": "Web"}, cfg.Apps)
	assert.Equal(t, dir, cfg.Workdir)
}

func TestLoader_NoFiles(t *testing.T) {
	t.Parallel()
	l := &Loader{
		Explicit: Values{KeyWorkdir: t.TempDir()},
		Lookup: lookupMap(map[string]string{
			"INPUT_LINEARAPIKEY":  "lin",
			"INPUT_SLACKTOKEN":    "xoxb",
			"INPUT_SLACKCHANNEL":  "C1",
			"INPUT_EMPTYPOLICY":   "report",
			"INPUT_CHANGELOGPATH": "dist/CHANGELOG.md",
		}),
	}
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "report", cfg.EmptyPolicy)
	assert.Equal(t, "dist/CHANGELOG.md", cfg.ChangelogPath)
	assert.Empty(t, cfg.Apps)
}

func TestLoader_BadConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte("apps: [not, a, map]\n"), 0o644))

	l := &Loader{
		Explicit: Values{KeyWorkdir: dir, KeyConfigFile: "custom.yaml"},
		Lookup:   lookupMap(nil),
	}
	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestOrigins(t *testing.T) {
	t.Parallel()
	origins := Origins(Named("flag", Values{KeySlackChannel: "C1"}), Named("default", Defaults))
	assert.Equal(t, "flag", origins[KeySlackChannel])
	assert.Equal(t, "default", origins[KeyDoneState])
	_, ok := origins[KeyLinearAPIKey]
	assert.False(t, ok)
}

func TestScope(t *testing.T) {
	t.Parallel()
	apps := map[string]string{"expo-app": "Mobile"}
	ghRepo := lookupMap(map[string]string{EnvGitHubRepository: "acme/web-dashboard"})

	tests := []struct {
		name    string
		cfg     Config
		lookup  LookupFunc
		want    string
		wantErr bool
	}{
		{name: "auto with mapped app", cfg: Config{ScopeSource: ScopeAuto, AppName: "expo-app", Apps: apps}, lookup: ghRepo, want: "Mobile"},
		{name: "app without mapping", cfg: Config{ScopeSource: ScopeApp, AppName: "admin", Apps: apps}, lookup: ghRepo, want: "admin"},
		{name: "auto without app uses repository", cfg: Config{ScopeSource: ScopeAuto}, lookup: ghRepo, want: "web-dashboard"},
		{name: "repository ignores app", cfg: Config{ScopeSource: ScopeRepository, AppName: "expo-app", Apps: apps}, lookup: ghRepo, want: "web-dashboard"},
		{name: "app scope requires app name", cfg: Config{ScopeSource: ScopeApp}, lookup: ghRepo, wantErr: true},
		{name: "unknown source", cfg: Config{ScopeSource: "team"}, lookup: ghRepo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.cfg.Scope(tt.lookup)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScope_RepositoryFromGitRemote(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:acme/mobile-app.git"},
	})
	require.NoError(t, err)

	cfg := Config{ScopeSource: ScopeRepository, Workdir: dir}
	got, err := cfg.Scope(lookupMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "mobile-app", got)
}

func TestScope_RepositoryUnavailable(t *testing.T) {
	t.Parallel()
	cfg := Config{ScopeSource: ScopeRepository, Workdir: t.TempDir()}
	_, err := cfg.Scope(lookupMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to determine repository name")
}
