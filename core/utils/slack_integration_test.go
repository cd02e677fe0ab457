//go:build integration

package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlackPostMessage_Integration(t *testing.T) {
	env := integEnvOrSkip(t, "LINEAR_RELEASE_TEST_SLACK_TOKEN", "LINEAR_RELEASE_TEST_SLACK_CHANNEL")

	err := NewSlack(env["LINEAR_RELEASE_TEST_SLACK_TOKEN"]).PostMessage(context.Background(),
		env["LINEAR_RELEASE_TEST_SLACK_CHANNEL"], "*Release Notes: `integration-0.0.0`* test message")
	require.NoError(t, err)
}
