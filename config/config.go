// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads fqbatch configuration.
//
// Values are layered in increasing precedence: built-in defaults, an
// optional YAML file, FQBATCH_ prefixed environment variables and
// explicitly set command line flags. Keys are dotted paths such as
// "trim.min_length"; the matching environment variable is
// FQBATCH_TRIM_MIN_LENGTH.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/biogo/fqbatch/trim"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "FQBATCH_"

// Config is the fqbatch configuration.
type Config struct {
	Log     Log     `koanf:"log"`
	Chunk   Chunk   `koanf:"chunk"`
	Batch   Batch   `koanf:"batch"`
	QC      QC      `koanf:"qc"`
	Trim    Trim    `koanf:"trim"`
	Output  Output  `koanf:"output"`
	Metrics Metrics `koanf:"metrics"`
}

// Log configures logging.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json logfmt"`
}

// Chunk configures splitting. One of Records and Bytes must be set.
type Chunk struct {
	Records  int    `koanf:"records" validate:"min=0"`
	Bytes    int64  `koanf:"bytes" validate:"min=0"`
	Dir      string `koanf:"dir"`
	Compress bool   `koanf:"compress"`
}

// Batch configures chunk processing.
type Batch struct {
	Workers int           `koanf:"workers" validate:"min=0"`
	Timeout time.Duration `koanf:"timeout"`
	Resume  bool          `koanf:"resume"`
}

// QC configures metric extraction.
type QC struct {
	Tool            string `koanf:"tool" validate:"oneof=native fastp"`
	FastpPath       string `koanf:"fastp_path"`
	FastpThreads    int    `koanf:"fastp_threads" validate:"min=0"`
	DuplicateSample int    `koanf:"duplicate_sample"`
}

// Trim configures trimming.
type Trim struct {
	Enabled       bool    `koanf:"enabled"`
	Adapter       string  `koanf:"adapter" validate:"omitempty,alpha"`
	MinOverlap    int     `koanf:"min_overlap" validate:"min=1"`
	Leading       int     `koanf:"leading" validate:"min=0"`
	Trailing      int     `koanf:"trailing" validate:"min=0"`
	Window        int     `koanf:"window" validate:"min=0"`
	WindowQuality float64 `koanf:"window_quality" validate:"min=0"`
	MinLength     int     `koanf:"min_length" validate:"min=0"`
	MaxN          float64 `koanf:"max_n" validate:"min=0,max=1"`
	NBaseLimit    int     `koanf:"n_base_limit" validate:"min=0"`

	// CompareReads is the number of reads compared
	// one by one with their trimmed counterparts.
	CompareReads int `koanf:"compare_reads" validate:"min=0"`
}

// Policy returns the trimming policy.
func (t Trim) Policy() trim.Policy {
	return trim.Policy{
		Adapter:       strings.ToUpper(t.Adapter),
		MinOverlap:    t.MinOverlap,
		Leading:       t.Leading,
		Trailing:      t.Trailing,
		Window:        t.Window,
		WindowQuality: t.WindowQuality,
		MinLength:     t.MinLength,
		MaxN:          t.MaxN,
	}
}

// Output configures result files.
type Output struct {
	Dir    string `koanf:"dir" validate:"required"`
	Plots  bool   `koanf:"plots"`
	Format string `koanf:"format" validate:"oneof=png svg pdf"`
}

// Metrics configures the Prometheus textfile written after a run.
type Metrics struct {
	Textfile string `koanf:"textfile"`
}

// Default returns the default configuration.
func Default() *Config {
	p := trim.DefaultPolicy()
	return &Config{
		Log:   Log{Level: "info", Format: "text"},
		Chunk: Chunk{Records: 1000000},
		QC:    QC{Tool: "native", DuplicateSample: 100000},
		Trim: Trim{
			MinOverlap:    p.MinOverlap,
			Leading:       p.Leading,
			Trailing:      p.Trailing,
			Window:        p.Window,
			WindowQuality: p.WindowQuality,
			MinLength:     p.MinLength,
			MaxN:          p.MaxN,
			NBaseLimit:    5,
			CompareReads:  10,
		},
		Output: Output{Dir: "fqbatch_out", Plots: true, Format: "png"},
	}
}

// Source lists the configuration inputs beyond the defaults.
type Source struct {
	// File is an optional YAML configuration file.
	File string

	// Flags holds explicitly set flag values keyed by
	// configuration path.
	Flags map[string]any

	// Environ returns the environment. If nil, os.Environ is used.
	Environ func() []string
}

// Load returns the configuration assembled from src.
func Load(src Source) (*Config, error) {
	k := koanf.New(".")
	err := k.Load(structs.Provider(Default(), "koanf"), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if src.File != "" {
		err = loadFile(k, src.File)
		if err != nil {
			return nil, err
		}
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
		},
		EnvironFunc: src.Environ,
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	for key, v := range src.Flags {
		err = k.Set(key, v)
		if err != nil {
			return nil, fmt.Errorf("config: set %s: %w", key, err)
		}
	}

	var cfg Config
	err = k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var m map[string]any
	err = yaml.Unmarshal(b, &m)
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	for key, v := range flatten("", m) {
		err = k.Set(key, v)
		if err != nil {
			return fmt.Errorf("config: %s: set %s: %w", path, key, err)
		}
	}
	return nil
}

func flatten(prefix string, m map[string]any) map[string]any {
	flat := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flatten(key, nested) {
				flat[fk] = fv
			}
		} else {
			flat[key] = v
		}
	}
	return flat
}

// transformEnvKey maps SECTION_SOME_KEY to section.some_key.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Chunk.Records == 0 && c.Chunk.Bytes == 0 {
		return errors.New("config: one of chunk.records and chunk.bytes must be set")
	}
	if c.Batch.Timeout < 0 {
		return errors.New("config: batch.timeout must not be negative")
	}
	return nil
}
