// Package issues moves released issues to their done state and tags them with the version label.
package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/YOKE-Gaming/linear-release-action/core/utils"
	"github.com/sony/gobreaker"
)

const (
	DefaultReadyState       = "Ready For Release"
	DefaultDoneState        = "Done"
	DefaultBreakerThreshold = 3
)

var (
	ErrNoIssues           = errors.New("no issues found to update")
	ErrDoneStateNotFound  = errors.New("done workflow state not found")
	ErrTrackerUnavailable = errors.New("issue tracker unavailable")
)

// Tracker is the subset of the Linear client used to query and mutate issues.
type Tracker interface {
	WorkflowStates(ctx context.Context, name string) ([]utils.WorkflowState, error)
	Issues(ctx context.Context, labelName, stateName string) ([]utils.Issue, error)
	UpdateIssueState(ctx context.Context, issueID, stateID string) error
	AddIssueLabel(ctx context.Context, issueID, labelID string) error
}

// EmptyPolicy decides what happens when no issue is ready for release.
type EmptyPolicy string

const (
	// EmptyFail aborts the run with ErrNoIssues.
	EmptyFail EmptyPolicy = "fail"
	// EmptyReport continues with an empty batch so an empty changelog is still posted.
	EmptyReport EmptyPolicy = "report"
)

// Updater transitions "Ready For Release" issues of a scope.
type Updater struct {
	Tracker     Tracker
	ReadyState  string
	DoneState   string
	EmptyPolicy EmptyPolicy
	// BreakerThreshold is the number of consecutive issues failing without a tracker
	// response after which the tracker is considered down and the batch aborts.
	// Rejections reported by the tracker never count. Zero disables the check.
	BreakerThreshold uint32
}

func (u *Updater) readyState() string {
	if u.ReadyState == "" {
		return DefaultReadyState
	}
	return u.ReadyState
}

func (u *Updater) doneState() string {
	if u.DoneState == "" {
		return DefaultDoneState
	}
	return u.DoneState
}

// DoneStateID returns the id of the first workflow state named like the done state.
func (u *Updater) DoneStateID(ctx context.Context) (string, error) {
	name := u.doneState()
	states, err := u.Tracker.WorkflowStates(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to look up %q state: %w", name, err)
	}
	if len(states) == 0 {
		return "", fmt.Errorf("%w: %q", ErrDoneStateNotFound, name)
	}
	return states[0].ID, nil
}

// Update finds the ready issues labelled scope, moves each to stateID and attaches label.
// Issues are processed in query order; a failure on one issue is recorded in its
// Result and does not stop the batch. The returned error is fatal: the query failed,
// nothing matched under EmptyFail, the context ended, or the tracker looks down.
func (u *Updater) Update(ctx context.Context, scope string, label *utils.IssueLabel, stateID string) (*BatchResult, error) {
	if label == nil || label.ID == "" {
		return nil, fmt.Errorf("version label cannot be empty")
	}
	if stateID == "" {
		return nil, fmt.Errorf("target state id cannot be empty")
	}
	log := slog.With("op", "issues.Update", "scope", scope)

	log.Info(fmt.Sprintf("Finding %q issues in %s", u.readyState(), scope))
	found, err := u.Tracker.Issues(ctx, scope, u.readyState())
	if err != nil {
		return nil, fmt.Errorf("failed to find issues to update: %w", err)
	}

	batch := &BatchResult{Results: make([]Result, 0, len(found))}
	if len(found) == 0 {
		if u.EmptyPolicy == EmptyReport {
			log.Warn("No issues found to update")
			return batch, nil
		}
		return nil, ErrNoIssues
	}
	log.Info(fmt.Sprintf("Found %d issues to update", len(found)))

	cb := u.newBreaker(scope)
	for _, issue := range found {
		if err := ctx.Err(); err != nil {
			return batch, fmt.Errorf("issue update interrupted: %w", err)
		}

		log.Info("Updating issue", "issue", issue.Identifier)
		err := u.apply(ctx, cb, issue, label, stateID)
		batch.Results = append(batch.Results, Result{Issue: issue, Err: err})
		if err != nil {
			log.Warn(fmt.Sprintf("Failed to update issue %s: %v", issue.Identifier, err), "issue", issue.Identifier)
			if cb != nil && cb.State() == gobreaker.StateOpen {
				return batch, fmt.Errorf("%w: %d consecutive issue updates failed, last: %w", ErrTrackerUnavailable, u.BreakerThreshold, err)
			}
			continue
		}
		log.Info(fmt.Sprintf("Updated issue %s with label %s and marked as %s", issue.Identifier, label.Name, u.doneState()))
	}

	if failed := batch.Failed(); len(failed) > 0 {
		log.Warn(fmt.Sprintf("%d of %d issues could not be updated", len(failed), len(batch.Results)))
	}
	return batch, nil
}

// apply runs the state transition then the label attachment for one issue.
func (u *Updater) apply(ctx context.Context, cb *gobreaker.CircuitBreaker, issue utils.Issue, label *utils.IssueLabel, stateID string) error {
	mutate := func() (interface{}, error) {
		if err := u.Tracker.UpdateIssueState(ctx, issue.ID, stateID); err != nil {
			return nil, err
		}
		if err := u.Tracker.AddIssueLabel(ctx, issue.ID, label.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if cb == nil {
		_, err := mutate()
		return err
	}
	_, err := cb.Execute(mutate)
	return err
}

// newBreaker trips after BreakerThreshold consecutive unreachable-tracker failures and
// stays open for the run. Errors Linear answers with (*utils.APIError) prove the
// tracker is up and do not count.
func (u *Updater) newBreaker(scope string) *gobreaker.CircuitBreaker {
	if u.BreakerThreshold == 0 {
		return nil
	}
	threshold := u.BreakerThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "linear-issues-" + scope,
		Timeout: time.Hour,
		IsSuccessful: func(err error) bool {
			var apiErr *utils.APIError
			return err == nil || errors.As(err, &apiErr)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Debug("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}
