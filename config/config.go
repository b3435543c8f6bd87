package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gridchain/crypto"

	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddress        = ":8090"
	defaultDataDir              = "./grid-data"
	defaultStorageBackend       = "leveldb"
	defaultAuditDriver          = "sqlite"
	defaultDistributionInterval = "24h"
)

type Config struct {
	ListenAddress      string `toml:"ListenAddress"`
	DataDir            string `toml:"DataDir"`
	StorageBackend     string `toml:"StorageBackend"`
	GenesisFile        string `toml:"GenesisFile"`
	ModuleKeystorePath string `toml:"ModuleKeystorePath"`
	ModuleKeystoreEnv  string `toml:"ModuleKeystoreEnv"`
	NetworkName        string `toml:"NetworkName"`
	Environment        string `toml:"Environment"`
	LogFile            string `toml:"LogFile"`
	LogLevel           string `toml:"LogLevel"`
	AllowMigrate       bool   `toml:"AllowMigrate"`

	// DistributionInterval is a Go duration; empty or "0" disables the
	// scheduler.
	DistributionInterval string `toml:"DistributionInterval"`

	Assets    Assets    `toml:"assets"`
	Auth      Auth      `toml:"auth"`
	RateLimit RateLimit `toml:"rate_limit"`
	Audit     Audit     `toml:"audit"`
	Telemetry Telemetry `toml:"telemetry"`
	Entropy   Entropy   `toml:"entropy"`
	Quota     Quota     `toml:"quota"`
	Pauses    Pauses    `toml:"pauses"`
	Grid      Grid      `toml:"grid"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}

	for _, undecoded := range meta.Undecoded() {
		if len(undecoded) == 1 && undecoded[0] == "ModuleKey" {
			return nil, fmt.Errorf("config file %s uses deprecated ModuleKey field; run gridctl migrate-keystore", path)
		}
	}

	cfg.applyDefaults()

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = defaultStorageBackend
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "grid-local"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if strings.TrimSpace(cfg.Audit.Driver) == "" {
		cfg.Audit.Driver = defaultAuditDriver
	}
	if strings.TrimSpace(cfg.Audit.DSN) == "" && cfg.Audit.Driver == defaultAuditDriver {
		cfg.Audit.DSN = filepath.Join(cfg.DataDir, "audit.db")
	}
	cfg.Assets.applyDefaults()
	cfg.Auth.applyDefaults()
	cfg.RateLimit.applyDefaults()
	cfg.Entropy.applyDefaults()
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "gridd"
	}
}

// Distribution returns the parsed scheduler interval. Zero disables it.
func (cfg *Config) Distribution() (time.Duration, error) {
	raw := strings.TrimSpace(cfg.DistributionInterval)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid DistributionInterval %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("DistributionInterval must not be negative")
	}
	return d, nil
}

// KeystorePassphrase returns the module keystore passphrase read from the
// configured environment variable.
func (cfg *Config) KeystorePassphrase() string {
	if cfg.ModuleKeystoreEnv == "" {
		return ""
	}
	return os.Getenv(cfg.ModuleKeystoreEnv)
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.ModuleKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, cfg.KeystorePassphrase()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.ModuleKeystorePath != keystorePath {
		cfg.ModuleKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:        defaultListenAddress,
		DataDir:              defaultDataDir,
		StorageBackend:       defaultStorageBackend,
		NetworkName:          "grid-local",
		Environment:          "dev",
		DistributionInterval: defaultDistributionInterval,
		Grid:                 DefaultGrid(),
	}
	cfg.ModuleKeystorePath = keystorePath
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "module.keystore")
}
