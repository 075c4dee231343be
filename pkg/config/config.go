// Package config loads the optional sb3min configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/sb3min/config.toml unless a
// path is given explicitly. Every key is optional; missing keys keep the
// values from [Default]. Command-line flags override the file.
//
//	[compact]
//	monitors = "hidden"
//	enumeration = "product"
//
//	[cache]
//	ttl = "72h"
//	redis_url = "redis://localhost:6379/0"
//
//	[server]
//	addr = ":8080"
//	max_body_mb = 64
//
//	[report]
//	path = "runs.jsonl"
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/sb3min/pkg/cache"
	"github.com/matzehuels/sb3min/pkg/codes"
	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/monitors"
	"github.com/matzehuels/sb3min/pkg/pipeline"
)

// AppName names the configuration and cache directories.
const AppName = "sb3min"

// Config is the contents of the configuration file.
type Config struct {
	Compact Compact `toml:"compact"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`
	Report  Report  `toml:"report"`
}

// Compact holds defaults for the compact command.
type Compact struct {
	Overwrite     bool   `toml:"overwrite"`
	Monitors      string `toml:"monitors"`
	Enumeration   string `toml:"enumeration"`
	Alphabet      string `toml:"alphabet,omitempty"`
	AllowExternal bool   `toml:"allow_external"`
	DebugJSON     bool   `toml:"debug_json"`
}

// Cache selects and configures the result cache.
type Cache struct {
	// Dir is the file cache directory. Empty means the user cache directory.
	Dir string `toml:"dir,omitempty"`

	// TTL bounds the lifetime of cached results.
	TTL Duration `toml:"ttl"`

	// RedisURL selects the redis backend instead of the file cache.
	RedisURL string `toml:"redis_url,omitempty"`

	Disabled bool `toml:"disabled"`
}

// Server configures the HTTP API.
type Server struct {
	Addr      string `toml:"addr"`
	MaxBodyMB int    `toml:"max_body_mb"`
}

// Report configures where run reports go. Both sinks may be set.
type Report struct {
	Path          string `toml:"path,omitempty"`
	MongoURI      string `toml:"mongo_uri,omitempty"`
	MongoDatabase string `toml:"mongo_database,omitempty"`
}

// Duration is a time.Duration written as a string like "36h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Compact: Compact{
			Monitors:    pipeline.DefaultMonitors,
			Enumeration: pipeline.DefaultEnumeration,
		},
		Cache: Cache{
			TTL: Duration{cache.TTLResult},
		},
		Server: Server{
			Addr:      ":8080",
			MaxBodyMB: 64,
		},
		Report: Report{
			MongoDatabase: AppName,
		},
	}
}

// Path returns the default location of the configuration file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName, "config.toml"), nil
}

// Load reads the configuration at path on top of [Default].
// A missing file at the default location is not an error; a missing file
// that was asked for explicitly is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %q", path)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %q", path)
	}
	return cfg, nil
}

// Decode parses TOML data into cfg and validates the result. Keys that are
// not part of [Config] are rejected.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown key %q", undecoded[0].String())
	}
	return cfg.Validate()
}

// Validate checks option values.
func (c *Config) Validate() error {
	if _, err := monitors.ParseMode(c.Compact.Monitors); err != nil {
		return err
	}
	if _, err := codes.ParseEnumeration(c.Compact.Enumeration); err != nil {
		return err
	}
	if c.Compact.Alphabet != "" {
		if err := codes.ValidateAlphabet(c.Compact.Alphabet); err != nil {
			return err
		}
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache ttl must not be negative")
	}
	if c.Server.MaxBodyMB <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server max_body_mb must be positive")
	}
	return nil
}

// Encode writes c as TOML.
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PipelineOptions returns the compact defaults as pipeline options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Overwrite:     c.Compact.Overwrite,
		Monitors:      c.Compact.Monitors,
		Enumeration:   c.Compact.Enumeration,
		Alphabet:      c.Compact.Alphabet,
		AllowExternal: c.Compact.AllowExternal,
		DebugJSON:     c.Compact.DebugJSON,
		NoCache:       c.Cache.Disabled,
	}
}

// MaxBodyBytes returns the request body limit in bytes.
func (s Server) MaxBodyBytes() int64 {
	return int64(s.MaxBodyMB) << 20
}
