package gridd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"gridchain/core/types"
)

// ErrAuditChainBroken is returned by Verify when a record does not hash to
// its stored digest or does not link to its predecessor.
var ErrAuditChainBroken = errors.New("gridd: audit chain broken")

// AuditRecord is one committed event in the append-only archive.
type AuditRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"uniqueIndex;not null" json:"sequence"`
	Type       string    `gorm:"index;not null" json:"type"`
	Attributes string    `gorm:"type:text;not null" json:"-"`
	PrevHash   string    `gorm:"size:64;not null" json:"prevHash"`
	Hash       string    `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Decoded returns the attribute map.
func (r AuditRecord) Decoded() (map[string]string, error) {
	out := map[string]string{}
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AuditStore archives committed events with a blake3 hash chain.
type AuditStore struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// OpenAudit connects to driver ("sqlite" or "postgres") and migrates the
// schema.
func OpenAudit(driver, dsn string) (*AuditStore, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("gridd: unsupported audit driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	return NewAuditStore(db)
}

// NewAuditStore wraps an existing connection.
func NewAuditStore(db *gorm.DB) (*AuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gridd: audit database required")
	}
	if err := db.AutoMigrate(&AuditRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit store: %w", err)
	}
	return &AuditStore{db: db, nowFn: time.Now}, nil
}

// Append stores evts in order, chaining each digest onto the previous one.
func (a *AuditStore) Append(ctx context.Context, evts []*types.Event) error {
	if a == nil || len(evts) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last AuditRecord
		prevHash := ""
		var seq uint64
		err := tx.Order("sequence desc").Limit(1).Take(&last).Error
		switch {
		case err == nil:
			prevHash = last.Hash
			seq = last.Sequence
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}
		records := make([]AuditRecord, 0, len(evts))
		for _, evt := range evts {
			if evt == nil {
				continue
			}
			attrs, err := canonicalAttributes(evt.Attributes)
			if err != nil {
				return err
			}
			seq++
			hash := auditDigest(prevHash, seq, evt.Type, attrs)
			records = append(records, AuditRecord{
				ID:         uuid.New(),
				Sequence:   seq,
				Type:       evt.Type,
				Attributes: attrs,
				PrevHash:   prevHash,
				Hash:       hash,
				CreatedAt:  a.nowFn().UTC(),
			})
			prevHash = hash
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

// List returns up to limit records with Sequence > after, optionally filtered
// by event type.
func (a *AuditStore) List(ctx context.Context, after uint64, limit int, eventType string) ([]AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := a.db.WithContext(ctx).Where("sequence > ?", after)
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	var out []AuditRecord
	if err := query.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Verify walks the whole chain and returns the number of records checked.
func (a *AuditStore) Verify(ctx context.Context) (uint64, error) {
	var records []AuditRecord
	if err := a.db.WithContext(ctx).Order("sequence asc").Find(&records).Error; err != nil {
		return 0, err
	}
	prev := ""
	for i, rec := range records {
		if rec.Sequence != uint64(i+1) {
			return uint64(i), fmt.Errorf("%w: sequence gap at %d", ErrAuditChainBroken, rec.Sequence)
		}
		if rec.PrevHash != prev {
			return uint64(i), fmt.Errorf("%w: record %d does not link to predecessor", ErrAuditChainBroken, rec.Sequence)
		}
		if auditDigest(prev, rec.Sequence, rec.Type, rec.Attributes) != rec.Hash {
			return uint64(i), fmt.Errorf("%w: record %d digest mismatch", ErrAuditChainBroken, rec.Sequence)
		}
		prev = rec.Hash
	}
	return uint64(len(records)), nil
}

// Close releases the underlying connection.
func (a *AuditStore) Close() error {
	if a == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// canonicalAttributes renders attrs as JSON with sorted keys so digests are
// reproducible.
func canonicalAttributes(attrs map[string]string) (string, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		value, err := json.Marshal(attrs[k])
		if err != nil {
			return "", err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func auditDigest(prev string, seq uint64, eventType, attrs string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(prev))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	h.Write([]byte{0})
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write([]byte(attrs))
	return hex.EncodeToString(h.Sum(nil))
}
