// Package labels ensures the per-release version label exists in the tracker.
//
// Version labels live under a parent label named "Versions - <scope>" which must
// be provisioned beforehand. Ensure creates the child label or, when another run
// created it first, finds the existing one.
package labels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/YOKE-Gaming/linear-release-action/core/utils"
)

// Tracker is the subset of the Linear client used for labels.
type Tracker interface {
	IssueLabels(ctx context.Context, filter utils.LabelFilter) ([]utils.IssueLabel, error)
	CreateIssueLabel(ctx context.Context, input utils.LabelInput) (*utils.IssueLabel, error)
}

// Format selects how the child label is named.
type Format string

const (
	// FormatScoped names the label "<scope> - <version>".
	FormatScoped Format = "scoped"
	// FormatBare names the label "<version>".
	FormatBare Format = "bare"
)

var (
	ErrParentLabelNotFound = errors.New("parent label not found")
	ErrTeamNotFound        = errors.New("team not found for parent label")
)

// ParentLabelName is the name of the group label holding all versions of scope.
func ParentLabelName(scope string) string {
	return "Versions - " + scope
}

// Name returns the version label name for scope and version.
func (f Format) Name(scope, version string) string {
	if f == FormatBare {
		return version
	}
	return fmt.Sprintf("%s - %s", scope, version)
}

// Manager creates or finds version labels.
type Manager struct {
	Tracker Tracker
	Format  Format
}

// Ensure returns the version label for scope and version, creating it under the
// scope's parent label when absent. Only a conflict on create falls back to lookup;
// any other create failure is returned.
func (m *Manager) Ensure(ctx context.Context, scope, version string) (*utils.IssueLabel, error) {
	if scope == "" {
		return nil, fmt.Errorf("scope name cannot be empty")
	}
	if version == "" {
		return nil, fmt.Errorf("version cannot be empty")
	}
	log := slog.With("op", "labels.Ensure", "scope", scope, "version", version)

	parent, err := m.parent(ctx, scope)
	if err != nil {
		return nil, err
	}

	name := m.Format.Name(scope, version)
	log.Info("Creating version label", "name", name, "parent", parent.Name)

	created, err := m.Tracker.CreateIssueLabel(ctx, utils.LabelInput{
		Name:     name,
		Color:    parent.Color,
		TeamID:   parent.TeamID,
		ParentID: parent.ID,
	})
	switch {
	case err == nil && created != nil:
		log.Info("Created version label", "name", created.Name, "id", created.ID)
		return created, nil
	case err != nil && !errors.Is(err, utils.ErrConflict):
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}

	log.Info("Version label already exists, looking it up", "name", name)
	found, err := m.Tracker.IssueLabels(ctx, utils.LabelFilter{
		Names:    []string{name},
		TeamID:   parent.TeamID,
		ParentID: parent.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up label %q: %w", name, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("failed to create or find label %q in Linear", name)
	}
	log.Info("Found version label", "name", found[0].Name, "id", found[0].ID)
	return &found[0], nil
}

// parent loads the "Versions - <scope>" label and checks it belongs to a team.
func (m *Manager) parent(ctx context.Context, scope string) (*utils.IssueLabel, error) {
	parentName := ParentLabelName(scope)
	parents, err := m.Tracker.IssueLabels(ctx, utils.LabelFilter{Names: []string{parentName}})
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent label %q: %w", parentName, err)
	}
	if len(parents) == 0 {
		return nil, fmt.Errorf("%w: %q does not exist in Linear", ErrParentLabelNotFound, parentName)
	}
	parent := parents[0]
	if parent.TeamID == "" {
		return nil, fmt.Errorf("%w %q", ErrTeamNotFound, parentName)
	}
	return &parent, nil
}
