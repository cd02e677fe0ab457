// Package changelog turns the released issues into a Slack release note and publishes it.
package changelog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/YOKE-Gaming/linear-release-action/core"
	"github.com/YOKE-Gaming/linear-release-action/core/utils"
)

// DateLayout renders the release date as month/day/year without padding.
const DateLayout = "1/2/2006"

const unassigned = "Unassigned"

// DetailsSource loads per-issue data that is not part of the issue query.
type DetailsSource interface {
	IssueDetails(ctx context.Context, issueID string) (*utils.IssueDetails, error)
}

// Entry is one line of the changelog.
type Entry struct {
	Issue        utils.Issue
	Assignee     string
	PullRequests []utils.PullRequestRef
}

// Compiler builds the release note text.
type Compiler struct {
	Details DetailsSource
	// IncludePullRequests adds a "PRs:" line under issues with linked GitHub pull requests.
	IncludePullRequests bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Compile renders the release note for issues. Issues whose details cannot be
// loaded are left out and their errors returned; the total still counts them.
func (c *Compiler) Compile(ctx context.Context, rc *core.ReleaseContext, issues []utils.Issue) (string, []error) {
	entries, errs := c.Entries(ctx, issues)
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return Render(rc, now(), len(issues), entries, c.IncludePullRequests), errs
}

// Entries resolves assignee and pull requests for each issue, preserving order.
func (c *Compiler) Entries(ctx context.Context, issues []utils.Issue) ([]Entry, []error) {
	entries := make([]Entry, 0, len(issues))
	var errs []error
	for _, issue := range issues {
		entry := Entry{Issue: issue, Assignee: unassigned}
		if c.Details != nil {
			details, err := c.Details.IssueDetails(ctx, issue.ID)
			if err != nil {
				slog.Warn(fmt.Sprintf("Failed to get assignee for issue %s: %v", issue.Identifier, err), "issue", issue.Identifier)
				errs = append(errs, fmt.Errorf("issue %s: %w", issue.Identifier, err))
				continue
			}
			if details.Assignee != "" {
				entry.Assignee = details.Assignee
			}
			entry.PullRequests = utils.PullRequestRefs(details.Attachments)
		}
		entries = append(entries, entry)
	}
	return entries, errs
}

// Render formats the header block and one bullet per entry as Slack mrkdwn.
func Render(rc *core.ReleaseContext, date time.Time, total int, entries []Entry, withPullRequests bool) string {
	lines := []string{
		fmt.Sprintf("*Release Notes: `%s`* has been successfully released! :rocket:", rc.ReleaseName()),
		fmt.Sprintf("*Release Date:* %s", date.Format(DateLayout)),
		fmt.Sprintf("*Total Issues:* %d\n", total),
		"Here's a summary of the completed issues:",
	}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("• (<%s|%s>) %s - _%s_", e.Issue.URL, e.Issue.Identifier, e.Issue.Title, e.Assignee))
		if withPullRequests && len(e.PullRequests) > 0 {
			links := make([]string, len(e.PullRequests))
			for i, pr := range e.PullRequests {
				links[i] = pr.SlackLink()
			}
			lines = append(lines, fmt.Sprintf("    PRs: %s\n", strings.Join(links, ", ")))
		}
	}
	return strings.Join(lines, "\n")
}

// Poster sends a chat message.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// Notifier publishes the changelog to one channel. There is no retry.
type Notifier struct {
	Poster  Poster
	Channel string
}

func (n *Notifier) Publish(ctx context.Context, text string) error {
	slog.Info("Sending to Slack...", "channel", n.Channel)
	if err := n.Poster.PostMessage(ctx, n.Channel, text); err != nil {
		return fmt.Errorf("failed to publish changelog: %w", err)
	}
	return nil
}
