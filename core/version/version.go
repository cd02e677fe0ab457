// Package version resolves the release version from project manifests.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	AppManifest     = "app.json"
	PackageManifest = "package.json"
)

type appManifest struct {
	Expo *struct {
		Version json.RawMessage `json:"version"`
		Extra   *struct {
			OTA *struct {
				Version json.RawMessage `json:"version"`
			} `json:"ota"`
		} `json:"extra"`
	} `json:"expo"`
}

type packageManifest struct {
	Version json.RawMessage `json:"version"`
}

// ManifestDir returns the directory holding the manifests for appName.
// Monorepo apps live under apps/<appName>/; an empty appName means root.
func ManifestDir(root, appName string) string {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return root
	}
	return filepath.Join(root, "apps", appName)
}

// Resolve returns the release version for appName.
// app.json with both expo.version and expo.extra.ota.version yields "<version>-<ota>";
// anything else falls back to the "version" field of package.json.
func Resolve(_ context.Context, root, appName string) (string, error) {
	dir := ManifestDir(root, appName)
	log := slog.With("op", "version.Resolve", "dir", dir)

	v, err := fromAppManifest(filepath.Join(dir, AppManifest))
	if err == nil {
		log.Debug("Version resolved from app manifest", "version", v)
		checkSemver(v)
		return v, nil
	}
	log.Debug("App manifest not usable, falling back", "reason", err)

	v, err = fromPackageManifest(filepath.Join(dir, PackageManifest))
	if err != nil {
		return "", fmt.Errorf("failed to resolve version in %s: %w", dir, err)
	}
	log.Debug("Version resolved from package manifest", "version", v)
	checkSemver(v)
	return v, nil
}

func fromAppManifest(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var m appManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if m.Expo == nil {
		return "", fmt.Errorf("%s has no expo section", path)
	}
	base := scalarString(m.Expo.Version)
	if base == "" {
		return "", fmt.Errorf("%s has no expo.version", path)
	}
	if m.Expo.Extra == nil || m.Expo.Extra.OTA == nil {
		return "", fmt.Errorf("%s has no expo.extra.ota", path)
	}
	ota := scalarString(m.Expo.Extra.OTA.Version)
	if ota == "" {
		return "", fmt.Errorf("%s has no expo.extra.ota.version", path)
	}
	return base + "-" + ota, nil
}

func fromPackageManifest(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m packageManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	v := scalarString(m.Version)
	if v == "" {
		return "", fmt.Errorf("%s has no version field", path)
	}
	return v, nil
}

// scalarString renders a JSON string or number as text. OTA revisions are often plain numbers.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// checkSemver warns when v is not a semantic version. Labels accept any text, so it is not fatal.
func checkSemver(v string) {
	if _, err := semver.NewVersion(v); err != nil {
		slog.Warn("Version is not a valid semantic version", "version", v, "error", err)
	}
}
