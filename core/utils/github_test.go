package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePullRequestURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		url     string
		wantID  string
		wantErr string
	}{
		{name: "pull request", url: "https://github.com/acme/mobile/pull/123", wantID: "123"},
		{name: "trailing slash", url: "https://github.com/acme/mobile/pull/7/", wantID: "7"},
		{name: "query and fragment", url: "https://github.com/acme/mobile/pull/9?x=1#top", wantID: "9"},
		{name: "empty", url: "  ", wantErr: "cannot be empty"},
		{name: "no path", url: "https://github.com", wantErr: "has no path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := ParsePullRequestURL(tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ref.ID)
		})
	}
}

func TestPullRequestRefs_FiltersGitHub(t *testing.T) {
	t.Parallel()
	refs := PullRequestRefs([]Attachment{
		{URL: "https://github.com/acme/mobile/pull/1", SourceType: "github"},
		{URL: "https://www.figma.com/file/xyz", SourceType: "figma"},
		{URL: "https://github.com/acme/mobile/pull/2", SourceType: "github"},
		{URL: "", SourceType: "github"},
	})
	require.Len(t, refs, 2)
	assert.Equal(t, "1", refs[0].ID)
	assert.Equal(t, "2", refs[1].ID)
}

func TestPullRequestRef_SlackLink(t *testing.T) {
	t.Parallel()
	ref := PullRequestRef{URL: "https://github.com/acme/mobile/pull/42", ID: "42"}
	assert.Equal(t, "<https://github.com/acme/mobile/pull/42|#42>", ref.SlackLink())
}
