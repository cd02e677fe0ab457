package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Loader assembles the source chain and resolves the configuration.
type Loader struct {
	// Explicit holds values given on the command line.
	Explicit Source
	// Lookup reads the process environment. Defaults to os.LookupEnv.
	Lookup LookupFunc
}

// Load resolves the configuration with precedence: explicit values, action
// inputs, environment, .env.local in the working directory, the YAML config
// file, defaults. Workdir and configFile are resolved first so the file based
// sources can be located.
func (l *Loader) Load() (*Config, error) {
	explicit := l.Explicit
	if explicit == nil {
		explicit = Values{}
	}
	upper := []Source{
		Named("flag", explicit),
		ActionsInputs(l.Lookup),
		Env(l.Lookup),
	}

	workdir := first(KeyWorkdir, append(upper, Defaults)...)
	dotenv, err := Dotenv(filepath.Join(workdir, DotenvFile))
	if err != nil {
		return nil, err
	}
	upper = append(upper, dotenv)

	configFile := first(KeyConfigFile, append(upper, Defaults)...)
	if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(workdir, configFile)
	}
	file, err := LoadFile(configFile)
	if err != nil {
		return nil, err
	}

	sources := append(upper, file, Named("default", Defaults))
	slog.Debug("Resolving configuration", "origins", Origins(sources...))
	cfg, err := Resolve(sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}
	return cfg, nil
}

func first(key string, sources ...Source) string {
	for _, s := range sources {
		if v, ok := s.Lookup(key); ok && v != "" {
			return v
		}
	}
	return ""
}
