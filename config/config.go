// Package config loads Zuora client settings.
//
// Settings come from a user-level file and then a working-directory file;
// keys present in a later file override the earlier ones. TOML and YAML are
// both accepted, chosen by file extension, and ${VAR} references are
// expanded from the environment before parsing.
//
// # Example
//
//	wsdl = "/etc/zuora/zuora.a.91.0.wsdl"
//	username = "api@example.com"
//	password = "${ZUORA_PASSWORD}"
//	session_duration = 900
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSessionDuration is the session lifetime assumed after login, in seconds.
	DefaultSessionDuration = 900
	// DefaultTimeout is the transport timeout, in seconds.
	DefaultTimeout = 20

	FileName     = "zuora.toml"
	UserFileName = ".zuora.toml"
)

// Config is the root configuration structure
type Config struct {
	WSDL     string `toml:"wsdl" yaml:"wsdl"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	// SessionDuration is in seconds.
	SessionDuration int `toml:"session_duration" yaml:"session_duration"`
	// Endpoint overrides the service address found in the WSDL.
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	// Timeout is in seconds.
	Timeout   int  `toml:"timeout" yaml:"timeout"`
	VerifyTLS bool `toml:"verify_tls" yaml:"verify_tls"`
	// BatchSize is the number of records per query page; zero keeps the tenant default.
	BatchSize int `toml:"batch_size" yaml:"batch_size"`
	// SingleTransaction applies each batch create, update or delete atomically.
	SingleTransaction bool `toml:"single_transaction" yaml:"single_transaction"`

	// Sources lists the files that contributed to this configuration.
	Sources []string `toml:"-" yaml:"-"`
}

// DefaultPaths returns the user-level file followed by the working-directory file.
func DefaultPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, UserFileName))
	}
	return append(paths, FileName)
}

// Load applies every existing file in paths, in order, on top of the
// defaults. Missing files are skipped. With no paths, DefaultPaths is used.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = DefaultPaths()
	}
	cfg := &Config{}
	for _, path := range paths {
		found, err := loadFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if found {
			cfg.Sources = append(cfg.Sources, path)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func loadFile(path string, out *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	expanded := expandEnv(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal([]byte(expanded), out)
	default:
		_, err = toml.Decode(expanded, out)
	}
	if err != nil {
		return false, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return true, nil
}

// envRef matches ${NAME}. A bare $ is left alone so secrets may contain it.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func (c *Config) applyDefaults() {
	if c.SessionDuration <= 0 {
		c.SessionDuration = DefaultSessionDuration
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks the settings required to log in.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WSDL) == "" {
		return fmt.Errorf("config missing wsdl")
	}
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("config missing username")
	}
	if c.Password == "" {
		return fmt.Errorf("config missing password")
	}
	return nil
}

// SessionTTL returns the session duration as a time.Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionDuration) * time.Second
}

// TimeoutDuration returns the transport timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
