package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/YOKE-Gaming/linear-release-action/core/changelog"
	"github.com/YOKE-Gaming/linear-release-action/core/config"
	"github.com/YOKE-Gaming/linear-release-action/core/issues"
	"github.com/YOKE-Gaming/linear-release-action/core/labels"
	"github.com/YOKE-Gaming/linear-release-action/core/logging"
	"github.com/YOKE-Gaming/linear-release-action/core/pipeline"
	"github.com/YOKE-Gaming/linear-release-action/core/utils"
	"github.com/sethvargo/go-githubactions"
	"github.com/urfave/cli/v2"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"linear-api-key":        config.KeyLinearAPIKey,
	"slack-token":           config.KeySlackToken,
	"slack-channel":         config.KeySlackChannel,
	"app-name":              config.KeyAppName,
	"scope-source":          config.KeyScopeSource,
	"label-format":          config.KeyLabelFormat,
	"empty-policy":          config.KeyEmptyPolicy,
	"ready-state":           config.KeyReadyState,
	"done-state":            config.KeyDoneState,
	"include-pull-requests": config.KeyIncludePullRequests,
	"changelog-path":        config.KeyChangelogPath,
	"workdir":               config.KeyWorkdir,
	"config":                config.KeyConfigFile,
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "linear-release"
	app.Usage = "mark Linear issues as released and post the changelog to Slack"
	app.Description = "linear-release resolves the app version, tags every \"Ready For Release\" " +
		"issue of the scope with a version label, moves it to Done and posts a changelog to Slack."
	app.HideVersion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "linear-api-key", Usage: "Linear API key"},
		&cli.StringFlag{Name: "slack-token", Usage: "Slack bot token"},
		&cli.StringFlag{Name: "slack-channel", Usage: "Slack channel id to post the changelog to"},
		&cli.StringFlag{Name: "app-name", Usage: "app under apps/ whose manifests hold the version"},
		&cli.StringFlag{Name: "scope-source", Usage: "where the label scope comes from: auto, app or repository"},
		&cli.StringFlag{Name: "label-format", Usage: "version label naming: scoped or bare"},
		&cli.StringFlag{Name: "empty-policy", Usage: "when no issue is ready: fail or report"},
		&cli.StringFlag{Name: "ready-state", Usage: "workflow state of issues to release"},
		&cli.StringFlag{Name: "done-state", Usage: "workflow state released issues move to"},
		&cli.StringFlag{Name: "include-pull-requests", Usage: "list linked GitHub pull requests in the changelog (true/false)"},
		&cli.StringFlag{Name: "changelog-path", Usage: "also write the changelog to `FILE` under the workdir"},
		&cli.StringFlag{Name: "workdir", Usage: "repository checkout holding the manifests"},
		&cli.StringFlag{Name: "config", Usage: "YAML config `FILE`, relative to the workdir"},
		&cli.BoolFlag{Name: "v", Usage: "verbose output (equivalent to DEBUG level)"},
	}
	app.Action = run
	return app
}

func run(c *cli.Context) error {
	action := githubactions.New()
	configureLogging(c, action)

	loader := &config.Loader{Explicit: explicitValues(c)}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	scope, err := cfg.Scope(nil)
	if err != nil {
		return err
	}

	runner := newRunner(cfg, scope)
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		runner.Outputs = action
	}
	_, err = runner.Run(c.Context)
	return err
}

// explicitValues collects the flags set on the command line.
func explicitValues(c *cli.Context) config.Values {
	vals := config.Values{}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			vals[key] = c.String(flag)
		}
	}
	return vals
}

func newRunner(cfg *config.Config, scope string) *pipeline.Runner {
	linear := utils.NewLinear(cfg.LinearAPIKey)
	return &pipeline.Runner{
		Root:    cfg.Workdir,
		AppName: cfg.AppName,
		Scope:   scope,
		Labels:  &labels.Manager{Tracker: linear, Format: labels.Format(cfg.LabelFormat)},
		Issues: &issues.Updater{
			Tracker:          linear,
			ReadyState:       cfg.ReadyState,
			DoneState:        cfg.DoneState,
			EmptyPolicy:      issues.EmptyPolicy(cfg.EmptyPolicy),
			BreakerThreshold: issues.DefaultBreakerThreshold,
		},
		Changelog: &changelog.Compiler{
			Details:             linear,
			IncludePullRequests: cfg.IncludePullRequests,
		},
		Notifier:      &changelog.Notifier{Poster: utils.NewSlack(cfg.SlackToken), Channel: cfg.SlackChannel},
		ChangelogPath: cfg.ChangelogPath,
	}
}

// configureLogging installs the actions handler. RUNNER_DEBUG is set by GitHub
// when a job is re-run with debug logging.
func configureLogging(c *cli.Context, action *githubactions.Action) {
	level := slog.LevelInfo
	if c.Bool("v") || os.Getenv("RUNNER_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(logging.NewActionsHandler(action, level)))
	slog.Debug(fmt.Sprintf("Log level set to %s", level))
}
