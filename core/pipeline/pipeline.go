// Package pipeline runs one release: version, label, issue updates, changelog.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/YOKE-Gaming/linear-release-action/core"
	"github.com/YOKE-Gaming/linear-release-action/core/changelog"
	"github.com/YOKE-Gaming/linear-release-action/core/issues"
	"github.com/YOKE-Gaming/linear-release-action/core/labels"
	"github.com/YOKE-Gaming/linear-release-action/core/utils"
	"github.com/YOKE-Gaming/linear-release-action/core/version"
)

// Action outputs.
const (
	OutputVersion = "version"
	OutputLabel   = "label"
	OutputIssues  = "issues"
)

// Outputs receives action outputs and the job step summary.
// *githubactions.Action satisfies it.
type Outputs interface {
	SetOutput(k, v string)
	AddStepSummary(markdown string)
}

// VersionFunc resolves the release version from the manifests under root.
type VersionFunc func(ctx context.Context, root, appName string) (string, error)

// Runner wires the stages together. Each stage consumes the output of the previous one.
type Runner struct {
	// Root is the repository checkout holding the manifests.
	Root    string
	AppName string
	// Scope is the label scope the issues and version labels belong to.
	Scope string

	Labels    *labels.Manager
	Issues    *issues.Updater
	Changelog *changelog.Compiler
	Notifier  *changelog.Notifier

	// ChangelogPath, when set, also writes the changelog to a file under Root.
	ChangelogPath string
	// Outputs is optional.
	Outputs Outputs
	// ResolveVersion defaults to version.Resolve.
	ResolveVersion VersionFunc
}

// Result describes a completed run.
type Result struct {
	Release *core.ReleaseContext
	Label   *utils.IssueLabel
	Batch   *issues.BatchResult
	// Changelog is the text posted to Slack.
	Changelog string
	// ChangelogFile is the written file, if any.
	ChangelogFile string
	// DetailErrors are the per-issue lookups that failed while compiling the changelog.
	DetailErrors []error
}

// Run executes the release once. Any returned error is fatal for the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	log := slog.With("op", "pipeline.Run", "scope", r.Scope)
	log.Info("Starting release action...")

	resolve := r.ResolveVersion
	if resolve == nil {
		resolve = version.Resolve
	}
	v, err := resolve(ctx, r.Root, r.AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve version: %w", err)
	}
	rc := &core.ReleaseContext{Version: v, ScopeName: r.Scope, AppName: r.AppName}
	log.Info(fmt.Sprintf("Releasing %s", rc.ReleaseName()), "version", v)
	res := &Result{Release: rc}

	label, err := r.Labels.Ensure(ctx, rc.GetScopeName(), rc.GetVersion())
	if err != nil {
		return res, err
	}
	res.Label = label

	stateID, err := r.Issues.DoneStateID(ctx)
	if err != nil {
		return res, err
	}

	batch, err := r.Issues.Update(ctx, rc.GetScopeName(), label, stateID)
	res.Batch = batch
	if err != nil {
		return res, err
	}
	if berr := batch.Err(); berr != nil {
		log.Warn("Some issues were not updated", "error", berr)
	}

	text, detailErrs := r.Changelog.Compile(ctx, rc, batch.Issues())
	res.Changelog = text
	res.DetailErrors = detailErrs
	log.Info("Changelog:\n" + text)

	if err := r.Notifier.Publish(ctx, text); err != nil {
		return res, err
	}

	if r.ChangelogPath != "" {
		file, err := core.WriteChangelog(ctx, r.Root, r.ChangelogPath, text)
		if err != nil {
			return res, err
		}
		res.ChangelogFile = file
		log.Info("Changelog written", "path", file)
	}

	r.publishOutputs(res)
	log.Info("Done.")
	return res, nil
}

func (r *Runner) validate() error {
	switch {
	case r.Scope == "":
		return fmt.Errorf("release scope cannot be empty")
	case r.Labels == nil:
		return fmt.Errorf("label manager is required")
	case r.Issues == nil:
		return fmt.Errorf("issue updater is required")
	case r.Changelog == nil:
		return fmt.Errorf("changelog compiler is required")
	case r.Notifier == nil:
		return fmt.Errorf("notifier is required")
	}
	return nil
}

func (r *Runner) publishOutputs(res *Result) {
	if r.Outputs == nil {
		return
	}
	r.Outputs.SetOutput(OutputVersion, res.Release.GetVersion())
	r.Outputs.SetOutput(OutputLabel, res.Label.Name)
	r.Outputs.SetOutput(OutputIssues, strconv.Itoa(len(res.Batch.Updated())))
	r.Outputs.AddStepSummary(fmt.Sprintf("### Release `%s`\n\n```\n%s\n```\n", res.Release.ReleaseName(), res.Changelog))
}
