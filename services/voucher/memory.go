package voucher

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development. It
// mirrors the RedisStore semantics, including the conditional commit: the
// whole commit runs under one lock, so racers observe the same arbitration a
// Lua script gives on Redis.
type MemoryStore struct {
	mu       sync.Mutex
	vouchers map[string]*Voucher
	hashMap  map[string]string
	records  map[string]*RedemptionRecord
	byVouch  map[string][]string
	byAcct   map[string][]string
	recIDs   []string // append order == redemption order
	idem     map[string]map[string]bool
	attempts map[string]*attemptCounter
	now      func() time.Time
}

type attemptCounter struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vouchers: make(map[string]*Voucher),
		hashMap:  make(map[string]string),
		records:  make(map[string]*RedemptionRecord),
		byVouch:  make(map[string][]string),
		byAcct:   make(map[string][]string),
		idem:     make(map[string]map[string]bool),
		attempts: make(map[string]*attemptCounter),
		now:      time.Now,
	}
}

func (m *MemoryStore) PutVoucher(_ context.Context, v *Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *v
	m.vouchers[v.ID] = &cp
	m.hashMap[v.CodeHash] = v.ID
	return nil
}

func (m *MemoryStore) GetVoucher(_ context.Context, id string) (*Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) UpdateVoucher(_ context.Context, id string, upd VoucherUpdate) (*Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[id]
	if !ok {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		v.Name = *upd.Name
	}
	if upd.Amount != nil {
		v.Amount = *upd.Amount
	}
	if upd.MaxUses != nil {
		v.MaxUses = *upd.MaxUses
	}
	if upd.ClearExpiry {
		v.ExpiresAt = nil
	} else if upd.ExpiresAt != nil {
		t := *upd.ExpiresAt
		v.ExpiresAt = &t
	}
	if upd.IsActive != nil {
		v.IsActive = *upd.IsActive
	}
	if upd.Tags != nil {
		v.Tags = append([]string(nil), upd.Tags...)
	}

	cp := *v
	return &cp, nil
}

func (m *MemoryStore) DeleteVoucher(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[id]
	if !ok {
		return ErrNotFound
	}

	delete(m.hashMap, v.CodeHash)
	delete(m.vouchers, id)
	delete(m.idem, id)
	return nil
}

func (m *MemoryStore) ListVouchers(_ context.Context) ([]*Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Voucher, 0, len(m.vouchers))
	for _, v := range m.vouchers {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ResolveCode(_ context.Context, lookupHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.hashMap[lookupHash]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *MemoryStore) HasRedeemed(_ context.Context, voucherID, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.idem[voucherID][accountID], nil
}

func (m *MemoryStore) Commit(_ context.Context, voucherID, accountID string, rec *RedemptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[voucherID]
	if !ok {
		return ErrNotFound
	}
	if m.idem[voucherID][accountID] {
		return ErrAlreadyRedeemed
	}
	if v.MaxUses > 0 && v.UsedCount >= v.MaxUses {
		return ErrCodeExhausted
	}

	v.UsedCount++
	if m.idem[voucherID] == nil {
		m.idem[voucherID] = make(map[string]bool)
	}
	m.idem[voucherID][accountID] = true

	cp := *rec
	m.records[rec.ID] = &cp
	m.byVouch[voucherID] = append([]string{rec.ID}, m.byVouch[voucherID]...)
	m.byAcct[accountID] = append([]string{rec.ID}, m.byAcct[accountID]...)
	m.recIDs = append(m.recIDs, rec.ID)
	return nil
}

func (m *MemoryStore) GetRecord(_ context.Context, id string) (*RedemptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) RecordsByVoucher(_ context.Context, voucherID string, limit int64) ([]*RedemptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(m.byVouch[voucherID], limit), nil
}

func (m *MemoryStore) RecordsByAccount(_ context.Context, accountID string, limit int64) ([]*RedemptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(m.byAcct[accountID], limit), nil
}

func (m *MemoryStore) ListRecords(_ context.Context, limit int64) ([]*RedemptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(m.recIDs))
	copy(ids, m.recIDs)
	// newest first
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return m.collect(ids, limit), nil
}

func (m *MemoryStore) collect(ids []string, limit int64) []*RedemptionRecord {
	out := make([]*RedemptionRecord, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		if rec, ok := m.records[id]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MemoryStore) Attempts(_ context.Context, sourceKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.attempts[sourceKey]
	if !ok || m.now().After(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

func (m *MemoryStore) RecordAttempt(_ context.Context, sourceKey string, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.attempts[sourceKey]
	if !ok || m.now().After(c.expiresAt) {
		c = &attemptCounter{}
		m.attempts[sourceKey] = c
	}
	c.count++
	c.expiresAt = m.now().Add(window)
	return nil
}
