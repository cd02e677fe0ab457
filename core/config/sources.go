package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-githubactions"
	"gopkg.in/yaml.v3"
)

// Source yields raw string values for configuration keys.
type Source interface {
	Name() string
	Lookup(key string) (string, bool)
}

// AppsSource is implemented by sources that carry the app to label scope table.
type AppsSource interface {
	Apps() map[string]string
}

// Values is an in-memory source, used for explicit flags and defaults.
type Values map[string]string

func (v Values) Name() string { return "values" }

func (v Values) Lookup(key string) (string, bool) {
	s, ok := v[key]
	return s, ok
}

type named struct {
	Source
	name string
}

func (n named) Name() string { return n.name }

// Named relabels a source for logging.
func Named(name string, s Source) Source {
	return named{Source: s, name: name}
}

// LookupFunc adapts an os.LookupEnv style function.
type LookupFunc func(key string) (string, bool)

// Env reads environment variables named exactly like the keys.
func Env(lookup LookupFunc) Source {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envSource{lookup: lookup}
}

type envSource struct {
	lookup LookupFunc
}

func (e envSource) Name() string { return "env" }

func (e envSource) Lookup(key string) (string, bool) {
	return e.lookup(key)
}

// ActionsInputs reads GitHub Actions inputs (INPUT_<KEY>) through the actions toolkit.
func ActionsInputs(lookup LookupFunc) Source {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	action := githubactions.New(githubactions.WithGetenv(func(key string) string {
		v, _ := lookup(key)
		return v
	}))
	return inputSource{action: action}
}

type inputSource struct {
	action *githubactions.Action
}

func (i inputSource) Name() string { return "input" }

func (i inputSource) Lookup(key string) (string, bool) {
	v := i.action.GetInput(key)
	return v, v != ""
}

// Dotenv reads a dotenv file. A missing file yields an empty source.
func Dotenv(path string) (Source, error) {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No dotenv file found", "path", path)
			return Named("dotenv", Values{}), nil
		}
		return nil, fmt.Errorf("failed to read dotenv file %s: %w", path, err)
	}
	slog.Debug("Loaded dotenv file", "path", path, "keys", len(vals))
	return Named("dotenv", Values(vals)), nil
}

// FileSource is the optional YAML configuration file.
type FileSource struct {
	Path string
	File fileConfig
}

type fileConfig struct {
	Apps   map[string]string `yaml:"apps"`
	Values map[string]any    `yaml:",inline"`
}

// LoadFile parses the YAML config file at path. A missing file yields an empty source.
func LoadFile(path string) (*FileSource, error) {
	fsrc := &FileSource{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No config file found; running with defaults", "path", path)
			return fsrc, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fsrc.File); err != nil {
		return nil, fmt.Errorf("found config file at %s, but failed to parse: %w", path, err)
	}
	slog.Debug("Loaded config file", "path", path, "apps", len(fsrc.File.Apps))
	return fsrc, nil
}

func (f *FileSource) Name() string { return "file:" + filepath.Base(f.Path) }

func (f *FileSource) Lookup(key string) (string, bool) {
	v, ok := f.File.Values[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

func (f *FileSource) Apps() map[string]string {
	return f.File.Apps
}

// Origins reports which source supplied each key, for logging. Keys no source sets are omitted.
func Origins(sources ...Source) map[string]string {
	out := make(map[string]string)
	for _, key := range Keys {
		for _, s := range sources {
			if v, ok := s.Lookup(key); ok && v != "" {
				out[key] = s.Name()
				break
			}
		}
	}
	return out
}
