package utils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

// maxSectionText is the longest text Slack accepts in a section block.
const maxSectionText = 3000

// maxBlocks is the most blocks a single message may carry.
const maxBlocks = 50

// slackAPIURL can be overridden in tests to point at a httptest server. It must end with "/".
var slackAPIURL string

// Slack posts messages with a bot token.
type Slack struct {
	client *slack.Client
}

// NewSlack returns a Slack poster authenticated with token.
func NewSlack(token string, opts ...slack.Option) *Slack {
	if slackAPIURL != "" {
		opts = append([]slack.Option{slack.OptionAPIURL(slackAPIURL)}, opts...)
	}
	return &Slack{client: slack.New(token, opts...)}
}

// PostMessage sends text to channel as mrkdwn with link and media previews disabled.
// The text is carried in mrkdwn section blocks and kept as the notification fallback.
func (s *Slack) PostMessage(ctx context.Context, channel, text string) error {
	if channel == "" {
		return fmt.Errorf("slack channel cannot be empty")
	}
	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	}
	if blocks := mrkdwnBlocks(text); len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	ch, ts, err := s.client.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return fmt.Errorf("failed to post slack message to %s: %w", channel, err)
	}
	slog.Debug("Slack message posted", "channel", ch, "ts", ts)
	return nil
}

// mrkdwnBlocks splits text into mrkdwn section blocks, breaking between lines
// where possible. It returns nil when the text needs more than maxBlocks.
func mrkdwnBlocks(text string) []slack.Block {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxSectionText {
			flush()
			cut := maxSectionText
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > maxSectionText {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	if len(chunks) > maxBlocks {
		return nil
	}

	blocks := make([]slack.Block, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) == "" {
			continue
		}
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, c, false, false), nil, nil))
	}
	return blocks
}
