package core

import "fmt"

// ReleaseContext identifies the release being processed. It is built once per run.
type ReleaseContext struct {
	// Version is the resolved release version, e.g. "2.3.0" or "2.3.0-14".
	Version string
	// ScopeName keys the label hierarchy ("Versions - <ScopeName>") and the issue filter.
	ScopeName string
	// AppName selects apps/<AppName>/ manifests; empty for single-app repositories.
	AppName string
}

func (r *ReleaseContext) GetVersion() string {
	if r == nil {
		return ""
	}
	return r.Version
}

func (r *ReleaseContext) GetScopeName() string {
	if r == nil {
		return ""
	}
	return r.ScopeName
}

func (r *ReleaseContext) GetAppName() string {
	if r == nil {
		return ""
	}
	return r.AppName
}

// ReleaseName is the "<scope>-<version>" identifier used in release notes.
func (r *ReleaseContext) ReleaseName() string {
	return fmt.Sprintf("%s-%s", r.GetScopeName(), r.GetVersion())
}
