package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gridchain/native/grid"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.ListenAddress != defaultListenAddress {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if _, err := os.Stat(cfg.ModuleKeystorePath); err != nil {
		t.Fatalf("keystore not created: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ModuleKeystorePath != cfg.ModuleKeystorePath {
		t.Fatalf("keystore path changed: %q vs %q", reloaded.ModuleKeystorePath, cfg.ModuleKeystorePath)
	}
	interval, err := reloaded.Distribution()
	if err != nil || interval != 24*time.Hour {
		t.Fatalf("unexpected distribution interval %v (%v)", interval, err)
	}
	params, err := reloaded.Grid.Params(reloaded.Assets.Decimals)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.LargeCohortBps != 3000 || params.FreezeMultiple != 3 {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `ListenAddress = "127.0.0.1:9999"
DataDir = "./data"
StorageBackend = "bolt"
DistributionInterval = "1h"

[assets]
PurchaseSymbol = "USDX"
RewardSymbol = "WINX"
Decimals = 6

[audit]
Driver = "postgres"
DSN = "postgres://grid@localhost/grid"

[rate_limit]
RequestsPerSecond = 2.5
Burst = 4

[entropy]
Mode = "hash"

[grid]
Prices = ["100", "300", "500", "1000", "3000"]
FreezeMultiple = 3
WithdrawFeeBps = 500
ReactivationBps = 5000
DirectReferralBps = 2000
IndirectReferralBps = 1000
PoolBps = 1000
SpinBaseBps = 100
SpinCooldownSeconds = 60
SettleSpinOnDraw = true
LargeCohortBps = 3000
SmallCohortBps = 3000
MemberCohortBps = 4000
LevelShareBps = [3500, 3000, 2000, 1000, 500]
LevelThresholds = [3, 5, 10, 20, 50]
AirdropIntervalSeconds = 86400
AirdropLarge = "50"
AirdropSmall = "20"
AirdropHolder = "5"
MaxSponsorDepth = 8

[[grid.Tiers]]
MinMultiplier = 10
MaxMultiplier = 50
Probability = 500000

[[grid.Tiers]]
MinMultiplier = 150
MaxMultiplier = 300
Probability = 100000
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != "bolt" || cfg.Assets.Decimals != 6 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.RateLimit.Burst != 4 || cfg.Entropy.Mode != "hash" {
		t.Fatalf("unexpected sections %+v %+v", cfg.RateLimit, cfg.Entropy)
	}
	params, err := cfg.Grid.Params(cfg.Assets.Decimals)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Prices[4].Int64() != 3000 || params.SpinCooldown != 60 || len(params.Tiers) != 2 {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.MaxSponsorDepth != 8 {
		t.Fatalf("unexpected depth %d", params.MaxSponsorDepth)
	}
}

func TestLoadRejectsDeprecatedKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("ModuleKey = \"abc\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "deprecated ModuleKey") {
		t.Fatalf("expected deprecation error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg := &Config{DistributionInterval: "10m"}
		cfg.applyDefaults()
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "backend", mutate: func(c *Config) { c.StorageBackend = "rocks" }, want: "unsupported backend"},
		{name: "audit driver", mutate: func(c *Config) { c.Audit.Driver = "mysql" }, want: "unsupported driver"},
		{name: "postgres dsn", mutate: func(c *Config) { c.Audit.Driver = "postgres"; c.Audit.DSN = "" }, want: "requires a DSN"},
		{name: "entropy", mutate: func(c *Config) { c.Entropy.Mode = "dice" }, want: "unsupported mode"},
		{name: "symbols", mutate: func(c *Config) { c.Assets.RewardSymbol = "usdg" }, want: "must differ"},
		{name: "interval", mutate: func(c *Config) { c.DistributionInterval = "soon" }, want: "DistributionInterval"},
		{name: "grid", mutate: func(c *Config) {
			c.Grid = DefaultGrid()
			c.Grid.MemberCohortBps = 1
		}, want: "cohort split"},
		{name: "grid amount", mutate: func(c *Config) {
			c.Grid = DefaultGrid()
			c.Grid.AirdropLarge = "-1"
		}, want: "AirdropLarge"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestGridRoundTrip(t *testing.T) {
	params := grid.DefaultParams(6)
	rendered := GridFromParams(params)
	parsed, err := rendered.Params(6)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	for i := range params.Prices {
		if params.Prices[i].Cmp(parsed.Prices[i]) != 0 {
			t.Fatalf("price %d mismatch", i)
		}
	}
	if parsed.AirdropHolder.Cmp(params.AirdropHolder) != 0 {
		t.Fatalf("airdrop mismatch")
	}
}
