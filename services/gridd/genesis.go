package gridd

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gridchain/crypto"
	"gridchain/native/grid"
)

var genesisMarkerKey = []byte("gridd/genesis/applied")

// Genesis seeds a fresh economy: opening balances, standing allowances to the
// module account, collectible holders and sponsor roots.
type Genesis struct {
	Balances     []GenesisBalance     `yaml:"balances"`
	Allowances   []GenesisBalance     `yaml:"allowances"`
	Collectibles []GenesisCollectible `yaml:"collectibles"`
	Roots        []string             `yaml:"roots"`
}

// GenesisBalance assigns amount of asset ("purchase", "reward" or a symbol)
// to address.
type GenesisBalance struct {
	Address string `yaml:"address"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

type GenesisCollectible struct {
	Owner string `yaml:"owner"`
	Tier  string `yaml:"tier"`
}

// LoadGenesis decodes a YAML seed file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return &g, nil
}

// ApplyGenesis seeds state from g exactly once. It reports false when a
// genesis was already applied to this database.
func (s *Service) ApplyGenesis(ctx context.Context, g *Genesis) (bool, error) {
	if g == nil {
		return false, nil
	}
	applied := false
	err := s.run(ctx, "genesis", func() error {
		var marker uint64
		ok, err := s.manager.KVGet(genesisMarkerKey, &marker)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		for i, entry := range g.Balances {
			addr, asset, amount, err := s.parseGenesisBalance(entry)
			if err != nil {
				return fmt.Errorf("balances[%d]: %w", i, err)
			}
			ledger, err := s.ledger(asset)
			if err != nil {
				return err
			}
			if err := ledger.Mint(addr, amount); err != nil {
				return fmt.Errorf("balances[%d]: %w", i, err)
			}
		}
		for i, entry := range g.Allowances {
			addr, asset, amount, err := s.parseGenesisBalance(entry)
			if err != nil {
				return fmt.Errorf("allowances[%d]: %w", i, err)
			}
			ledger, err := s.ledger(asset)
			if err != nil {
				return err
			}
			if err := ledger.Approve(addr, s.engine.ModuleAddress(), amount); err != nil {
				return fmt.Errorf("allowances[%d]: %w", i, err)
			}
		}
		for i, entry := range g.Collectibles {
			owner, err := crypto.ParseAddress(entry.Owner)
			if err != nil {
				return fmt.Errorf("collectibles[%d]: %w", i, err)
			}
			tier, err := parseHolderTier(entry.Tier)
			if err != nil {
				return fmt.Errorf("collectibles[%d]: %w", i, err)
			}
			if _, err := s.registry.Mint(owner, tier); err != nil {
				return fmt.Errorf("collectibles[%d]: %w", i, err)
			}
		}
		genesisCap := grid.NewCapability("genesis", grid.RoleAdmin)
		for i, raw := range g.Roots {
			addr, err := crypto.ParseAddress(raw)
			if err != nil {
				return fmt.Errorf("roots[%d]: %w", i, err)
			}
			if err := s.engine.RegisterRoot(genesisCap, addr); err != nil {
				return fmt.Errorf("roots[%d]: %w", i, err)
			}
		}
		applied = true
		return s.manager.KVPut(genesisMarkerKey, uint64(1))
	})
	return applied, err
}

func (s *Service) parseGenesisBalance(entry GenesisBalance) ([20]byte, grid.Asset, *big.Int, error) {
	addr, err := crypto.ParseAddress(entry.Address)
	if err != nil {
		return [20]byte{}, 0, nil, err
	}
	var asset grid.Asset
	switch strings.ToLower(strings.TrimSpace(entry.Asset)) {
	case "purchase", strings.ToLower(s.assets.PurchaseSymbol):
		asset = grid.AssetPurchase
	case "reward", strings.ToLower(s.assets.RewardSymbol):
		asset = grid.AssetReward
	default:
		return [20]byte{}, 0, nil, fmt.Errorf("unknown asset %q", entry.Asset)
	}
	amount, err := parseAmount(entry.Amount)
	if err != nil {
		return [20]byte{}, 0, nil, err
	}
	return addr, asset, amount, nil
}
