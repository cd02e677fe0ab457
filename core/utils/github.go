package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// GitHubSourceType is the attachment source type Linear assigns to GitHub pull request links.
const GitHubSourceType = "github"

// PullRequestRef is a pull request linked to an issue.
// ID is the trailing path segment of the URL, normally the PR number.
type PullRequestRef struct {
	URL string
	ID  string
}

// SlackLink renders the reference as a Slack mrkdwn link, e.g. <https://github.com/o/r/pull/7|#7>.
func (p PullRequestRef) SlackLink() string {
	return fmt.Sprintf("<%s|#%s>", p.URL, p.ID)
}

// ParsePullRequestURL extracts the display id from a pull request URL.
// Trailing slashes, query strings and fragments are ignored.
func ParsePullRequestURL(raw string) (PullRequestRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PullRequestRef{}, fmt.Errorf("pull request url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return PullRequestRef{}, fmt.Errorf("invalid pull request url %q: %w", raw, err)
	}

	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	id := path[idx+1:]
	if id == "" {
		return PullRequestRef{}, fmt.Errorf("pull request url %q has no path", raw)
	}
	return PullRequestRef{URL: raw, ID: id}, nil
}

// PullRequestRefs keeps the GitHub attachments and converts them to references.
// Attachments whose URL cannot be parsed are skipped.
func PullRequestRefs(attachments []Attachment) []PullRequestRef {
	var refs []PullRequestRef
	for _, a := range attachments {
		if a.SourceType != GitHubSourceType {
			continue
		}
		ref, err := ParsePullRequestURL(a.URL)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}
