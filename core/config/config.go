// Package config resolves the action inputs from flags, GitHub Actions inputs,
// the environment, a local dotenv file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Recognized keys. They double as GitHub Actions input names and environment variable names.
const (
	KeyLinearAPIKey        = "linearApiKey"
	KeySlackToken          = "slackToken"
	KeySlackChannel        = "slackChannel"
	KeyAppName             = "appName"
	KeyScopeSource         = "scopeSource"
	KeyLabelFormat         = "labelFormat"
	KeyEmptyPolicy         = "emptyPolicy"
	KeyReadyState          = "readyState"
	KeyDoneState           = "doneState"
	KeyIncludePullRequests = "includePullRequests"
	KeyChangelogPath       = "changelogPath"
	KeyWorkdir             = "workdir"
	KeyConfigFile          = "configFile"
)

// Keys lists every recognized key in a stable order.
var Keys = []string{
	KeyLinearAPIKey,
	KeySlackToken,
	KeySlackChannel,
	KeyAppName,
	KeyScopeSource,
	KeyLabelFormat,
	KeyEmptyPolicy,
	KeyReadyState,
	KeyDoneState,
	KeyIncludePullRequests,
	KeyChangelogPath,
	KeyWorkdir,
	KeyConfigFile,
}

const (
	ScopeAuto       = "auto"
	ScopeApp        = "app"
	ScopeRepository = "repository"

	DefaultConfigFile = ".linear-release.yaml"
	DotenvFile        = ".env.local"
)

// Defaults is the lowest precedence source.
var Defaults = Values{
	KeyScopeSource:         ScopeAuto,
	KeyLabelFormat:         "scoped",
	KeyEmptyPolicy:         "fail",
	KeyReadyState:          "Ready For Release",
	KeyDoneState:           "Done",
	KeyIncludePullRequests: "false",
	KeyWorkdir:             ".",
	KeyConfigFile:          DefaultConfigFile,
}

// Config is the fully resolved run configuration.
type Config struct {
	LinearAPIKey        string `validate:"required"`
	SlackToken          string `validate:"required"`
	SlackChannel        string `validate:"required"`
	AppName             string
	ScopeSource         string `validate:"oneof=auto app repository"`
	LabelFormat         string `validate:"oneof=scoped bare"`
	EmptyPolicy         string `validate:"oneof=fail report"`
	ReadyState          string `validate:"required"`
	DoneState           string `validate:"required"`
	IncludePullRequests bool
	ChangelogPath       string
	Workdir             string `validate:"required"`
	ConfigFile          string
	// Apps maps an app name to the label scope used in Linear.
	Apps map[string]string
}

var configValidator = validator.New()

// Resolve builds a Config from sources in descending order of precedence. For
// every key the first source holding a non-empty value wins. The apps table is
// taken from the first source that provides one.
func Resolve(sources ...Source) (*Config, error) {
	get := func(key string) string {
		for _, s := range sources {
			if v, ok := s.Lookup(key); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	cfg := &Config{
		LinearAPIKey:  get(KeyLinearAPIKey),
		SlackToken:    get(KeySlackToken),
		SlackChannel:  get(KeySlackChannel),
		AppName:       get(KeyAppName),
		ScopeSource:   get(KeyScopeSource),
		LabelFormat:   get(KeyLabelFormat),
		EmptyPolicy:   get(KeyEmptyPolicy),
		ReadyState:    get(KeyReadyState),
		DoneState:     get(KeyDoneState),
		ChangelogPath: get(KeyChangelogPath),
		Workdir:       get(KeyWorkdir),
		ConfigFile:    get(KeyConfigFile),
	}
	if raw := get(KeyIncludePullRequests); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", KeyIncludePullRequests, raw, err)
		}
		cfg.IncludePullRequests = b
	}
	for _, s := range sources {
		if as, ok := s.(AppsSource); ok {
			if apps := as.Apps(); len(apps) > 0 {
				cfg.Apps = apps
				break
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and enumerations.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fieldKeys[fe.Field()]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", key))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", key, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

var fieldKeys = map[string]string{
	"LinearAPIKey": KeyLinearAPIKey,
	"SlackToken":   KeySlackToken,
	"SlackChannel": KeySlackChannel,
	"ScopeSource":  KeyScopeSource,
	"LabelFormat":  KeyLabelFormat,
	"EmptyPolicy":  KeyEmptyPolicy,
	"ReadyState":   KeyReadyState,
	"DoneState":    KeyDoneState,
	"Workdir":      KeyWorkdir,
}
