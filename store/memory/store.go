// Package memory is an in-process store.Store for tests, demos and
// single-instance deployments.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/quota"
	"github.com/xraph/quota/account"
	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/store"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/viewcharge"
)

var _ store.Store = (*Store)(nil)

// Store keeps everything in maps behind one lock. Values are copied in and
// out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	// Reference data keyed by country, then feature
	tiers map[string]map[feature.Key]*pricing.Tier
	taxes map[string]*pricing.TaxRate

	packages      map[string]*bundle.Package
	subscriptions map[string]*subscription.Subscription
	accounts      map[string]*account.Account
	viewCharges   []*viewcharge.ViewCharge

	// Promos by id, plus the (code, country) unique index
	promos     map[string]*promo.Promo
	promoCodes map[string]string

	auditLog []*audit.Entry
}

func New() *Store {
	return &Store{
		tiers:         make(map[string]map[feature.Key]*pricing.Tier),
		taxes:         make(map[string]*pricing.TaxRate),
		packages:      make(map[string]*bundle.Package),
		subscriptions: make(map[string]*subscription.Subscription),
		accounts:      make(map[string]*account.Account),
		promos:        make(map[string]*promo.Promo),
		promoCodes:    make(map[string]string),
	}
}

// Pricing Store implementation
func (s *Store) UpsertTier(_ context.Context, t *pricing.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	country := pricing.NormalizeCountry(t.Country)
	byKey, ok := s.tiers[country]
	if !ok {
		byKey = make(map[feature.Key]*pricing.Tier)
		s.tiers[country] = byKey
	}
	c := *t
	c.Country = country
	if c.ID.IsNil() {
		c.ID = id.NewTierID()
	}
	byKey[t.Feature] = &c
	return nil
}

func (s *Store) GetTier(_ context.Context, country string, key feature.Key) (*pricing.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tiers[pricing.NormalizeCountry(country)][key]; ok {
		c := *t
		return &c, nil
	}
	return nil, pricing.ErrTierNotFound
}

func (s *Store) ListTiers(_ context.Context, country string) ([]*pricing.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := s.tiers[pricing.NormalizeCountry(country)]
	result := make([]*pricing.Tier, 0, len(byKey))
	for _, key := range feature.Keys() {
		if t, ok := byKey[key]; ok {
			c := *t
			result = append(result, &c)
		}
	}
	return result, nil
}

func (s *Store) UpsertTaxRate(_ context.Context, r *pricing.TaxRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *r
	c.Country = pricing.NormalizeCountry(r.Country)
	if c.ID.IsNil() {
		c.ID = id.NewTaxID()
	}
	s.taxes[c.Country] = &c
	return nil
}

func (s *Store) GetTaxRate(_ context.Context, country string) (*pricing.TaxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.taxes[pricing.NormalizeCountry(country)]; ok {
		c := *r
		return &c, nil
	}
	return nil, pricing.ErrTaxRateNotFound
}

// Package Store implementation
func (s *Store) CreatePackage(_ context.Context, p *bundle.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[p.ID.String()]; exists {
		return quota.ErrConflict
	}
	s.packages[p.ID.String()] = clonePackage(p)
	return nil
}

func (s *Store) GetPackage(_ context.Context, pkgID id.PackageID) (*bundle.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.packages[pkgID.String()]; ok {
		return clonePackage(p), nil
	}
	return nil, quota.ErrPackageNotFound
}

func (s *Store) ListPackages(_ context.Context, opts bundle.ListOpts) ([]*bundle.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	country := pricing.NormalizeCountry(opts.Country)
	result := make([]*bundle.Package, 0)
	for _, p := range s.packages {
		if country != "" && p.Country != country {
			continue
		}
		if opts.ActiveOnly && !p.IsActive {
			continue
		}
		result = append(result, clonePackage(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ReplacePackage(_ context.Context, p *bundle.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[p.ID.String()]; !exists {
		return quota.ErrPackageNotFound
	}
	s.packages[p.ID.String()] = clonePackage(p)
	return nil
}

func (s *Store) DeactivatePackage(_ context.Context, pkgID id.PackageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packages[pkgID.String()]
	if !ok {
		return quota.ErrPackageNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Subscription Store implementation
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return quota.ErrConflict
	}
	s.subscriptions[sub.ID.String()] = cloneSubscription(sub)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return cloneSubscription(sub), nil
	}
	return nil, quota.ErrSubscriptionNotFound
}

func (s *Store) GetActiveSubscription(_ context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.IsActive {
			if found == nil || sub.CreatedAt.After(found.CreatedAt) {
				found = sub
			}
		}
	}
	if found == nil {
		return nil, quota.ErrSubscriptionNotFound
	}
	return cloneSubscription(found), nil
}

func (s *Store) DeactivateSubscription(_ context.Context, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return quota.ErrSubscriptionNotFound
	}
	sub.IsActive = false
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ConsumeIfSufficient(_ context.Context, subID id.SubscriptionID, key feature.Key, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return false, quota.ErrSubscriptionNotFound
	}
	b := sub.Balances[key]
	if b.Count < amount {
		return false, nil
	}
	b.Count -= amount
	sub.Balances[key] = b
	sub.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) GrantExtras(_ context.Context, subID id.SubscriptionID, extra subscription.Extra) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return quota.ErrSubscriptionNotFound
	}
	if sub.Balances == nil {
		sub.Balances = make(map[feature.Key]subscription.Balance)
	}
	for key, n := range extra.Deltas {
		b := sub.Balances[key]
		b.Count += n
		sub.Balances[key] = b
	}
	sub.Extras = append(sub.Extras, cloneExtra(extra))
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetCounts(_ context.Context, subID id.SubscriptionID, counts map[feature.Key]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return quota.ErrSubscriptionNotFound
	}
	if sub.Balances == nil {
		sub.Balances = make(map[feature.Key]subscription.Balance)
	}
	for key, n := range counts {
		b := sub.Balances[key]
		b.Count = n
		sub.Balances[key] = b
	}
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

// Account Store implementation
func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return quota.ErrAccountExists
	}
	for i, slaveID := range a.SlaveUsers {
		if slices.Contains(a.SlaveUsers[:i], slaveID) || s.attached(slaveID) {
			return quota.ErrSlaveAttached
		}
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID]; ok {
		return cloneAccount(a), nil
	}
	return nil, quota.ErrIdentityNotFound
}

func (s *Store) FindMaster(_ context.Context, slaveID string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.IsMaster && a.HasSlave(slaveID) {
			return cloneAccount(a), nil
		}
	}
	return nil, quota.ErrIdentityNotFound
}

func (s *Store) AddSlave(_ context.Context, masterID, slaveID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	master, ok := s.accounts[masterID]
	if !ok {
		return quota.ErrIdentityNotFound
	}
	if s.attached(slaveID) {
		return quota.ErrSlaveAttached
	}
	master.SlaveUsers = append(master.SlaveUsers, slaveID)
	master.UpdatedAt = time.Now().UTC()
	return nil
}

// attached reports whether any account lists slaveID. Callers hold s.mu.
func (s *Store) attached(slaveID string) bool {
	for _, a := range s.accounts {
		if a.HasSlave(slaveID) {
			return true
		}
	}
	return false
}

// View charge Store implementation
func (s *Store) FindViewCharges(_ context.Context, employerIDs, candidateIDs []string, at time.Time) ([]*viewcharge.ViewCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*viewcharge.ViewCharge, 0)
	for _, c := range s.viewCharges {
		if !c.Live(at) {
			continue
		}
		if slices.Contains(employerIDs, c.EmployerID) && slices.Contains(candidateIDs, c.CandidateID) {
			cp := *c
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *Store) InsertViewCharges(_ context.Context, charges []*viewcharge.ViewCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range charges {
		cp := *c
		s.viewCharges = append(s.viewCharges, &cp)
	}
	return nil
}

func (s *Store) PurgeExpiredViewCharges(_ context.Context, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.viewCharges[:0]
	var purged int64
	for _, c := range s.viewCharges {
		if c.Live(at) {
			kept = append(kept, c)
		} else {
			purged++
		}
	}
	s.viewCharges = kept
	return purged, nil
}

// Promo Store implementation
func (s *Store) CreatePromo(_ context.Context, p *promo.Promo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := promoKey(p.Code, p.Country)
	if _, taken := s.promoCodes[key]; taken {
		return quota.ErrPromoExists
	}
	s.promos[p.ID.String()] = clonePromo(p)
	s.promoCodes[key] = p.ID.String()
	return nil
}

func (s *Store) GetPromo(_ context.Context, promoID id.PromoID) (*promo.Promo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.promos[promoID.String()]; ok {
		return clonePromo(p), nil
	}
	return nil, quota.ErrPromoNotFound
}

func (s *Store) GetPromoByCode(_ context.Context, code, country string) (*promo.Promo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pid, ok := s.promoCodes[promoKey(code, country)]; ok {
		return clonePromo(s.promos[pid]), nil
	}
	return nil, quota.ErrPromoNotFound
}

func (s *Store) ListPromos(_ context.Context, opts promo.ListOpts) ([]*promo.Promo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	country := pricing.NormalizeCountry(opts.Country)
	result := make([]*promo.Promo, 0)
	for _, p := range s.promos {
		if country == "" || p.Country == country {
			result = append(result, clonePromo(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePromo(_ context.Context, p *promo.Promo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.promos[p.ID.String()]
	if !ok {
		return quota.ErrPromoNotFound
	}
	key := promoKey(p.Code, p.Country)
	if holder, taken := s.promoCodes[key]; taken && holder != p.ID.String() {
		return quota.ErrPromoExists
	}
	delete(s.promoCodes, promoKey(old.Code, old.Country))
	s.promoCodes[key] = p.ID.String()
	s.promos[p.ID.String()] = clonePromo(p)
	return nil
}

// Audit Store implementation
func (s *Store) AppendAudit(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	cp.Data = slices.Clone(e.Data)
	s.auditLog = append(s.auditLog, &cp)
	return nil
}

func (s *Store) ListAudit(_ context.Context, opts audit.ListOpts) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*audit.Entry, 0)
	for i := len(s.auditLog) - 1; i >= 0; i-- {
		e := s.auditLog[i]
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		if opts.TargetID != "" && e.TargetID != opts.TargetID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Helpers

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func promoKey(code, country string) string {
	return promo.NormalizeCode(code) + "|" + pricing.NormalizeCountry(country)
}

func clonePackage(p *bundle.Package) *bundle.Package {
	c := *p
	c.Features = slices.Clone(p.Features)
	return &c
}

func cloneSubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	c.Balances = make(map[feature.Key]subscription.Balance, len(sub.Balances))
	for k, v := range sub.Balances {
		c.Balances[k] = v
	}
	c.Extras = make([]subscription.Extra, len(sub.Extras))
	for i, e := range sub.Extras {
		c.Extras[i] = cloneExtra(e)
	}
	return &c
}

func cloneExtra(e subscription.Extra) subscription.Extra {
	deltas := make(map[feature.Key]int64, len(e.Deltas))
	for k, v := range e.Deltas {
		deltas[k] = v
	}
	e.Deltas = deltas
	return e
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.SlaveUsers = slices.Clone(a.SlaveUsers)
	return &c
}

func clonePromo(p *promo.Promo) *promo.Promo {
	c := *p
	c.UserIDs = slices.Clone(p.UserIDs)
	c.PackageIDs = slices.Clone(p.PackageIDs)
	return &c
}
