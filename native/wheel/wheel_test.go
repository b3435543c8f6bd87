package wheel

import (
	"errors"
	"testing"
)

func TestDrawSelectsFirstTierExceedingSample(t *testing.T) {
	table := Table{
		{MinMultiplier: 150, MaxMultiplier: 200, Probability: 100},
		{MinMultiplier: 300, MaxMultiplier: 300, Probability: 50},
	}
	cases := []struct {
		name       string
		values     []uint64
		tier       int
		multiplier uint64
	}{
		{name: "first tier lower edge", values: []uint64{0, 0}, tier: 0, multiplier: 150},
		{name: "first tier upper edge", values: []uint64{99, 50}, tier: 0, multiplier: 200},
		{name: "second tier", values: []uint64{100, 7}, tier: 1, multiplier: 300},
		{name: "second tier last slot", values: []uint64{149, 0}, tier: 1, multiplier: 300},
		{name: "residual", values: []uint64{150}, tier: -1, multiplier: BaseMultiplier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := table.Draw(&FixedSource{Values: tc.values})
			if err != nil {
				t.Fatalf("draw: %v", err)
			}
			if res.Tier != tc.tier || res.Multiplier != tc.multiplier {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

func TestDrawResidualSkipsSecondSample(t *testing.T) {
	src := &FixedSource{Values: []uint64{Space - 1, 12345}}
	res, err := DefaultTable().Draw(src)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if res.Tier != -1 || res.Multiplier != BaseMultiplier {
		t.Fatalf("expected base multiplier, got %+v", res)
	}
	if src.pos != 1 {
		t.Fatalf("expected exactly one sample consumed, got %d", src.pos)
	}
}

func TestHashSourceReproducible(t *testing.T) {
	seed := SeedFor([]byte("secret"), 42, 3)
	a := NewHashSource(seed...)
	b := NewHashSource(seed...)
	table := DefaultTable()
	for i := 0; i < 200; i++ {
		ra, err := table.Draw(a)
		if err != nil {
			t.Fatalf("draw a: %v", err)
		}
		rb, err := table.Draw(b)
		if err != nil {
			t.Fatalf("draw b: %v", err)
		}
		if ra != rb {
			t.Fatalf("draw %d diverged: %+v vs %+v", i, ra, rb)
		}
	}
	other := NewHashSource(SeedFor([]byte("secret"), 42, 4)...)
	same := true
	for i := 0; i < 8; i++ {
		if a.Uint64n(Space) != other.Uint64n(Space) {
			same = false
		}
	}
	if same {
		t.Fatalf("different nonce should produce a different stream")
	}
}

func TestMultiplierWithinResolvedTier(t *testing.T) {
	table := DefaultTable()
	src := NewHashSource([]byte("bounds"))
	for i := 0; i < 5000; i++ {
		res, err := table.Draw(src)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if res.Tier == -1 {
			if res.Multiplier != BaseMultiplier {
				t.Fatalf("base draw returned %d", res.Multiplier)
			}
			continue
		}
		tier := table[res.Tier]
		if res.Multiplier < tier.MinMultiplier || res.Multiplier > tier.MaxMultiplier {
			t.Fatalf("multiplier %d outside tier %+v", res.Multiplier, tier)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	if got := DefaultTable().Residual(); got != 739_000 {
		t.Fatalf("unexpected residual %d", got)
	}
	bad := Table{{MinMultiplier: 200, MaxMultiplier: 100, Probability: 1}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
	over := Table{
		{MinMultiplier: 100, MaxMultiplier: 100, Probability: Space},
		{MinMultiplier: 100, MaxMultiplier: 100, Probability: 1},
	}
	if err := over.Validate(); !errors.Is(err, ErrProbabilityBudget) {
		t.Fatalf("expected ErrProbabilityBudget, got %v", err)
	}
	if _, err := DefaultTable().Draw(nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestCryptoSourceRange(t *testing.T) {
	var src CryptoSource
	for i := 0; i < 100; i++ {
		if v := src.Uint64n(10); v >= 10 {
			t.Fatalf("value %d out of range", v)
		}
	}
	if v := src.Uint64n(1); v != 0 {
		t.Fatalf("expected 0 for n=1, got %d", v)
	}
}
