package config

import "gridchain/native/wheel"

// Assets names the two value ledgers the economy moves.
type Assets struct {
	PurchaseSymbol string `toml:"PurchaseSymbol"`
	PurchaseName   string `toml:"PurchaseName"`
	RewardSymbol   string `toml:"RewardSymbol"`
	RewardName     string `toml:"RewardName"`
	Decimals       uint8  `toml:"Decimals"`
}

func (a *Assets) applyDefaults() {
	if a.PurchaseSymbol == "" {
		a.PurchaseSymbol = "USDG"
	}
	if a.PurchaseName == "" {
		a.PurchaseName = "Grid Dollar"
	}
	if a.RewardSymbol == "" {
		a.RewardSymbol = "GWIN"
	}
	if a.RewardName == "" {
		a.RewardName = "Grid Win"
	}
	if a.Decimals == 0 {
		a.Decimals = 18
	}
}

// Auth configures bearer token verification for the API.
type Auth struct {
	// SecretEnv names the environment variable holding the HMAC secret.
	SecretEnv string `toml:"SecretEnv"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
}

func (a *Auth) applyDefaults() {
	if a.SecretEnv == "" {
		a.SecretEnv = "GRID_JWT_SECRET"
	}
	if a.Issuer == "" {
		a.Issuer = "gridd"
	}
	if a.Audience == "" {
		a.Audience = "grid-api"
	}
}

// RateLimit bounds requests per client.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

func (r *RateLimit) applyDefaults() {
	if r.RequestsPerSecond == 0 {
		r.RequestsPerSecond = 10
	}
	if r.Burst == 0 {
		r.Burst = 20
	}
}

// Audit selects the event archive backend: "sqlite" or "postgres".
type Audit struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Telemetry configures OTLP export. An empty endpoint disables exporters.
type Telemetry struct {
	ServiceName string            `toml:"ServiceName"`
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Headers     map[string]string `toml:"Headers"`
	Metrics     bool              `toml:"Metrics"`
	Traces      bool              `toml:"Traces"`
}

// Entropy selects the draw source. Mode "hash" derives draws from the secret
// and the position; mode "crypto" reads the operating system generator.
type Entropy struct {
	Mode      string `toml:"Mode"`
	SecretEnv string `toml:"SecretEnv"`
}

func (e *Entropy) applyDefaults() {
	if e.Mode == "" {
		e.Mode = "crypto"
	}
	if e.SecretEnv == "" {
		e.SecretEnv = "GRID_ENTROPY_SECRET"
	}
}

// Quota bounds purchases per address and epoch. Zero values are unbounded.
type Quota struct {
	MaxPurchasesPerEpoch uint32 `toml:"MaxPurchasesPerEpoch"`
	MaxSpendPerEpoch     string `toml:"MaxSpendPerEpoch"`
	EpochSeconds         uint32 `toml:"EpochSeconds"`
}

type Pauses struct {
	Grid bool `toml:"Grid"`
}

// Grid is the economy section. Amounts are decimal strings in base units;
// durations are seconds. The section is taken as a whole: when Prices is
// empty the stock economy applies.
type Grid struct {
	Prices              []string `toml:"Prices"`
	FreezeMultiple      uint64   `toml:"FreezeMultiple"`
	WithdrawFeeBps      uint64   `toml:"WithdrawFeeBps"`
	ReactivationBps     uint64   `toml:"ReactivationBps"`
	DirectReferralBps   uint64   `toml:"DirectReferralBps"`
	IndirectReferralBps uint64   `toml:"IndirectReferralBps"`
	PoolBps             uint64   `toml:"PoolBps"`

	SpinBaseBps         uint64       `toml:"SpinBaseBps"`
	SpinCooldownSeconds uint64       `toml:"SpinCooldownSeconds"`
	SettleSpinOnDraw    bool         `toml:"SettleSpinOnDraw"`
	Tiers               []wheel.Tier `toml:"Tiers"`

	LargeCohortBps    uint64   `toml:"LargeCohortBps"`
	SmallCohortBps    uint64   `toml:"SmallCohortBps"`
	MemberCohortBps   uint64   `toml:"MemberCohortBps"`
	LevelShareBps     []uint64 `toml:"LevelShareBps"`
	LevelThresholds   []uint64 `toml:"LevelThresholds"`
	CarryEmptyCohorts bool     `toml:"CarryEmptyCohorts"`

	AirdropIntervalSeconds uint64 `toml:"AirdropIntervalSeconds"`
	AirdropLarge           string `toml:"AirdropLarge"`
	AirdropSmall           string `toml:"AirdropSmall"`
	AirdropHolder          string `toml:"AirdropHolder"`

	MaxSponsorDepth uint64 `toml:"MaxSponsorDepth"`
}
