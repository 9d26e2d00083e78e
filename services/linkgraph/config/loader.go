// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/wikigraph/pkg/atomicfile"
	"github.com/AleutianAI/wikigraph/pkg/logging"
	"github.com/AleutianAI/wikigraph/services/linkgraph/extract"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report yaml keys, not Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Load reads the config file at path.
//
// Description:
//
//	An empty path reads DefaultPath, and a missing DefaultPath yields
//	Default(). An explicit path must exist. Keys absent from the file keep
//	their default values and unknown keys are rejected. Environment
//	overrides are applied after the file, then the result is validated.
//
// Inputs:
//
//	path - Config file path, or "" for DefaultPath.
//
// Outputs:
//
//	*Config - The loaded configuration.
//	error - Read, parse or validation failure. Validation failures wrap
//	  ErrInvalidConfig.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read the config file %w", err)
	}

	applyEnv(&cfg)
	for name, s := range cfg.Schemas {
		if s.Table == "" {
			s.Table = name
			cfg.Schemas[name] = s
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode unmarshals data into cfg, rejecting unknown keys. An empty
// document leaves cfg unchanged.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv applies environment overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvDumpDir); v != "" {
		cfg.DumpDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks field constraints and schema overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for name, s := range c.Schemas {
		if !slices.Contains(extract.Tables, name) {
			return fmt.Errorf("%w: schemas: unknown table %q", ErrInvalidConfig, name)
		}
		if s.Table != name {
			return fmt.Errorf("%w: schemas.%s: table is %q", ErrInvalidConfig, name, s.Table)
		}
	}
	return nil
}

// describe renders one validation failure with its yaml path.
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}

// WriteDefault writes Default() as YAML to path. An existing file is
// left untouched and reported as fs.ErrExist.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s: %w", path, fs.ErrExist)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal the default config: %w", err)
	}
	return atomicfile.WriteFile(path, func(f *atomicfile.File) error {
		_, err := f.Write(data)
		return err
	})
}

// DiameterOptions returns the configured diameter defaults.
func (c *Config) DiameterOptions() []graph.DiameterOption {
	opts := []graph.DiameterOption{graph.WithPatience(c.Query.Patience)}
	if c.Query.Seed != nil {
		opts = append(opts, graph.WithSeed(*c.Query.Seed))
	}
	return opts
}

// LoggingFor returns the pkg/logging configuration for service.
func (c *Config) LoggingFor(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}
