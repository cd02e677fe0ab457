package issues

import (
	"fmt"

	"github.com/YOKE-Gaming/linear-release-action/core/utils"
	"github.com/hashicorp/go-multierror"
)

// Result is the outcome of updating one issue. Err is nil on success.
type Result struct {
	Issue utils.Issue
	Err   error
}

// OK reports whether both the state transition and label attachment succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// BatchResult holds one Result per queried issue, in query order.
type BatchResult struct {
	Results []Result
}

// Issues returns every queried issue, including the ones whose update failed.
func (b *BatchResult) Issues() []utils.Issue {
	if b == nil {
		return nil
	}
	out := make([]utils.Issue, 0, len(b.Results))
	for _, r := range b.Results {
		out = append(out, r.Issue)
	}
	return out
}

// Updated returns the issues that were fully updated.
func (b *BatchResult) Updated() []utils.Issue {
	if b == nil {
		return nil
	}
	var out []utils.Issue
	for _, r := range b.Results {
		if r.OK() {
			out = append(out, r.Issue)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func (b *BatchResult) Failed() []Result {
	if b == nil {
		return nil
	}
	var out []Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Err combines all per-issue failures, or returns nil when every issue succeeded.
// Callers decide whether partial failure should escalate.
func (b *BatchResult) Err() error {
	var merr *multierror.Error
	for _, r := range b.Failed() {
		merr = multierror.Append(merr, fmt.Errorf("issue %s: %w", r.Issue.Identifier, r.Err))
	}
	return merr.ErrorOrNil()
}
