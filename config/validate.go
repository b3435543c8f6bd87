package config

import (
	"fmt"
	"strings"
)

var (
	supportedBackends = map[string]bool{"leveldb": true, "bolt": true, "memory": true}
	supportedAudit    = map[string]bool{"sqlite": true, "postgres": true}
	supportedEntropy  = map[string]bool{"hash": true, "crypto": true}
)

// ValidateConfig rejects configurations the daemon cannot start with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if !supportedBackends[strings.ToLower(cfg.StorageBackend)] {
		return fmt.Errorf("storage: unsupported backend %q", cfg.StorageBackend)
	}
	if !supportedAudit[strings.ToLower(cfg.Audit.Driver)] {
		return fmt.Errorf("audit: unsupported driver %q", cfg.Audit.Driver)
	}
	if strings.EqualFold(cfg.Audit.Driver, "postgres") && strings.TrimSpace(cfg.Audit.DSN) == "" {
		return fmt.Errorf("audit: postgres driver requires a DSN")
	}
	if !supportedEntropy[strings.ToLower(cfg.Entropy.Mode)] {
		return fmt.Errorf("entropy: unsupported mode %q", cfg.Entropy.Mode)
	}
	if strings.EqualFold(cfg.Assets.PurchaseSymbol, cfg.Assets.RewardSymbol) {
		return fmt.Errorf("assets: purchase and reward symbols must differ")
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if _, err := cfg.Quota.PurchaseQuota(); err != nil {
		return err
	}
	if _, err := cfg.Distribution(); err != nil {
		return err
	}
	if _, err := cfg.Grid.Params(cfg.Assets.Decimals); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	return nil
}
