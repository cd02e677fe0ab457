package utils

// ExportLinearBaseURL returns the current Linear base URL (for cross-package tests).
func ExportLinearBaseURL() string { return linearBaseURL }

// SetLinearBaseURL overrides the Linear base URL (for cross-package tests).
func SetLinearBaseURL(url string) { linearBaseURL = url }

// ExportSlackAPIURL returns the current Slack API URL (for cross-package tests).
func ExportSlackAPIURL() string { return slackAPIURL }

// SetSlackAPIURL overrides the Slack API URL (for cross-package tests).
func SetSlackAPIURL(url string) { slackAPIURL = url }
