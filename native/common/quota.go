package common

import (
	"errors"
	"math"
	"math/big"
	"sync"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaValueCapExceeded = errors.New("quota value cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount  uint32
	ValueUsed *big.Int
	EpochID   uint64
}

// Quota defines the limits enforced for a module interaction per address.
// Zero limits are unbounded.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxValuePerEpoch    *big.Int
	EpochSeconds        uint32
}

// Epoch maps a unix timestamp onto the quota's epoch number.
func (q Quota) Epoch(now int64) uint64 {
	if q.EpochSeconds == 0 || now <= 0 {
		return 0
	}
	return uint64(now) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether the additional request and value fit within the
// configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded; on denial prev is returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addValue *big.Int) (QuotaNow, error) {
	next := QuotaNow{ReqCount: prev.ReqCount, EpochID: prev.EpochID, ValueUsed: new(big.Int)}
	if prev.ValueUsed != nil {
		next.ValueUsed.Set(prev.ValueUsed)
	}
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch, ValueUsed: new(big.Int)}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addValue != nil && addValue.Sign() > 0 {
		next.ValueUsed.Add(next.ValueUsed, addValue)
	}
	if q.MaxValuePerEpoch != nil && q.MaxValuePerEpoch.Sign() > 0 && next.ValueUsed.Cmp(q.MaxValuePerEpoch) > 0 {
		return prev, ErrQuotaValueCapExceeded
	}

	return next, nil
}

// QuotaTracker keeps per-address counters in memory.
type QuotaTracker struct {
	mu    sync.Mutex
	quota Quota
	usage map[[20]byte]QuotaNow
	nowFn func() int64
}

// NewQuotaTracker enforces q using nowFn as the clock.
func NewQuotaTracker(q Quota, nowFn func() int64) *QuotaTracker {
	return &QuotaTracker{quota: q, usage: make(map[[20]byte]QuotaNow), nowFn: nowFn}
}

// Charge records one request of value for addr, or returns the quota error
// leaving the counters untouched.
func (t *QuotaTracker) Charge(addr [20]byte, value *big.Int) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := CheckQuota(t.quota, t.quota.Epoch(t.nowFn()), t.usage[addr], 1, value)
	if err != nil {
		return err
	}
	t.usage[addr] = next
	return nil
}

// Refund returns one request of value to addr's counters for the current
// epoch. Counters from an earlier epoch are left alone.
func (t *QuotaTracker) Refund(addr [20]byte, value *big.Int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	usage, ok := t.usage[addr]
	if !ok || usage.EpochID != t.quota.Epoch(t.nowFn()) {
		return
	}
	if usage.ReqCount > 0 {
		usage.ReqCount--
	}
	if usage.ValueUsed != nil && value != nil && value.Sign() > 0 {
		used := new(big.Int).Sub(usage.ValueUsed, value)
		if used.Sign() < 0 {
			used.SetInt64(0)
		}
		usage.ValueUsed = used
	}
	t.usage[addr] = usage
}
