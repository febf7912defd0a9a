package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr    string       `yaml:"listen_addr"`
	DB            DBConfig     `yaml:"db"`
	KeyringPath   string       `yaml:"keyring_path"`
	Replay        ReplayConfig `yaml:"replay"`
	SignerBinding string       `yaml:"signer_binding"`
	Admin         AdminConfig  `yaml:"admin"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ReplayConfig struct {
	WindowSeconds        int  `yaml:"window_seconds"`
	RequireNonce         bool `yaml:"require_nonce"`
	PruneIntervalSeconds int  `yaml:"prune_interval_seconds"`
}

// AdminConfig guards key registration over HTTP. With neither a dev token
// nor a JWT secret the registration route is disabled.
type AdminConfig struct {
	DevToken     string `yaml:"dev_token"`
	JWTSecret    string `yaml:"jwt_secret"`
	RequiredRole string `yaml:"required_role"`
}

func (a AdminConfig) Enabled() bool {
	return a.DevToken != "" || a.JWTSecret != ""
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Replay:     ReplayConfig{WindowSeconds: 86400, PruneIntervalSeconds: 60},
	}
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	switch c.DB.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver)
	}
	if c.DB.Driver != "" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.driver is set")
	}

	if c.Replay.WindowSeconds < 0 {
		return fmt.Errorf("replay.window_seconds must not be negative")
	}
	if c.Replay.PruneIntervalSeconds < 0 {
		return fmt.Errorf("replay.prune_interval_seconds must not be negative")
	}

	switch strings.ToLower(strings.TrimSpace(c.SignerBinding)) {
	case "", "strict", "required", "disabled":
	default:
		return fmt.Errorf("signer_binding must be strict, required or disabled, got %q", c.SignerBinding)
	}

	return nil
}

func (c Config) ReplayWindow() time.Duration {
	return time.Duration(c.Replay.WindowSeconds) * time.Second
}

func (c Config) PruneInterval() time.Duration {
	return time.Duration(c.Replay.PruneIntervalSeconds) * time.Second
}
