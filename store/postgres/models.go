package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/quota/account"
	"github.com/xraph/quota/audit"
	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
	"github.com/xraph/quota/id"
	"github.com/xraph/quota/pricing"
	"github.com/xraph/quota/promo"
	"github.com/xraph/quota/subscription"
	"github.com/xraph/quota/types"
	"github.com/xraph/quota/viewcharge"
)

// ==================== Pricing models ====================

type tierModel struct {
	grove.BaseModel `grove:"table:quota_tiers"`

	ID        string    `grove:"id,pk"`
	Country   string    `grove:"country"`
	Feature   string    `grove:"feature"`
	BasePrice float64   `grove:"base_price"`
	Count     int64     `grove:"count"`
	Currency  string    `grove:"currency"`
	Heading   string    `grove:"heading"`
	Label     string    `grove:"label"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toTierModel(t *pricing.Tier) *tierModel {
	return &tierModel{
		ID:        t.ID.String(),
		Country:   pricing.NormalizeCountry(t.Country),
		Feature:   string(t.Feature),
		BasePrice: t.BasePrice,
		Count:     t.Count,
		Currency:  t.Currency,
		Heading:   t.Heading,
		Label:     t.Label,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTierModel(m *tierModel) (*pricing.Tier, error) {
	tierID, err := id.ParseTierID(m.ID)
	if err != nil {
		return nil, err
	}
	return &pricing.Tier{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        tierID,
		Country:   m.Country,
		Feature:   feature.Key(m.Feature),
		BasePrice: m.BasePrice,
		Count:     m.Count,
		Currency:  m.Currency,
		Heading:   m.Heading,
		Label:     m.Label,
	}, nil
}

type taxRateModel struct {
	grove.BaseModel `grove:"table:quota_tax_rates"`

	ID         string    `grove:"id,pk"`
	Country    string    `grove:"country"`
	TaxType    string    `grove:"tax_type"`
	Percentage float64   `grove:"percentage"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toTaxRateModel(r *pricing.TaxRate) *taxRateModel {
	return &taxRateModel{
		ID:         r.ID.String(),
		Country:    pricing.NormalizeCountry(r.Country),
		TaxType:    r.TaxType,
		Percentage: r.Percentage,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func fromTaxRateModel(m *taxRateModel) (*pricing.TaxRate, error) {
	taxID, err := id.ParseTaxID(m.ID)
	if err != nil {
		return nil, err
	}
	return &pricing.TaxRate{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         taxID,
		Country:    m.Country,
		TaxType:    m.TaxType,
		Percentage: m.Percentage,
	}, nil
}

// ==================== Package models ====================

type packageModel struct {
	grove.BaseModel `grove:"table:quota_packages"`

	ID          string          `grove:"id,pk"`
	Name        string          `grove:"name"`
	Description string          `grove:"description"`
	Country     string          `grove:"country"`
	Currency    string          `grove:"currency"`
	Color       string          `grove:"color"`
	Features    json.RawMessage `grove:"features,type:jsonb"`

	PackageDiscount float64 `grove:"package_discount"`
	MonthlyDiscount float64 `grove:"monthly_discount"`
	YearlyDiscount  float64 `grove:"yearly_discount"`
	TaxType         string  `grove:"tax_type"`
	TaxAmount       float64 `grove:"tax_amount"`

	TotalMonthlyBeforeTax        float64 `grove:"total_monthly_before_tax"`
	TotalYearlyBeforeTax         float64 `grove:"total_yearly_before_tax"`
	TotalMonthly                 float64 `grove:"total_monthly"`
	TotalYearly                  float64 `grove:"total_yearly"`
	TotalMonthlyOriginal         float64 `grove:"total_monthly_original"`
	TotalYearlyOriginal          float64 `grove:"total_yearly_original"`
	MonthlyDiscountAmount        float64 `grove:"monthly_discount_amount"`
	YearlyDiscountAmount         float64 `grove:"yearly_discount_amount"`
	PackageDiscountMonthlyAmount float64 `grove:"package_discount_monthly_amount"`
	PackageDiscountYearlyAmount  float64 `grove:"package_discount_yearly_amount"`

	PlanIDMonthly  string    `grove:"plan_id_monthly"`
	PlanIDAnnually string    `grove:"plan_id_annually"`
	IsActive       bool      `grove:"is_active"`
	IsFree         bool      `grove:"is_free"`
	IsCustom       bool      `grove:"is_custom"`
	CreatedBy      string    `grove:"created_by"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toPackageModel(p *bundle.Package) *packageModel {
	features, _ := json.Marshal(p.Features) //nolint:errcheck // plain structs always marshal

	return &packageModel{
		ID:                           p.ID.String(),
		Name:                         p.Name,
		Description:                  p.Description,
		Country:                      p.Country,
		Currency:                     p.Currency,
		Color:                        p.Color,
		Features:                     features,
		PackageDiscount:              p.PackageDiscount,
		MonthlyDiscount:              p.MonthlyDiscount,
		YearlyDiscount:               p.YearlyDiscount,
		TaxType:                      p.TaxType,
		TaxAmount:                    p.TaxAmount,
		TotalMonthlyBeforeTax:        p.TotalMonthlyBeforeTax,
		TotalYearlyBeforeTax:         p.TotalYearlyBeforeTax,
		TotalMonthly:                 p.TotalMonthly,
		TotalYearly:                  p.TotalYearly,
		TotalMonthlyOriginal:         p.TotalMonthlyOriginal,
		TotalYearlyOriginal:          p.TotalYearlyOriginal,
		MonthlyDiscountAmount:        p.MonthlyDiscountAmount,
		YearlyDiscountAmount:         p.YearlyDiscountAmount,
		PackageDiscountMonthlyAmount: p.PackageDiscountMonthlyAmount,
		PackageDiscountYearlyAmount:  p.PackageDiscountYearlyAmount,
		PlanIDMonthly:                p.PlanIDMonthly,
		PlanIDAnnually:               p.PlanIDAnnually,
		IsActive:                     p.IsActive,
		IsFree:                       p.IsFree,
		IsCustom:                     p.IsCustom,
		CreatedBy:                    p.CreatedBy,
		CreatedAt:                    p.CreatedAt,
		UpdatedAt:                    p.UpdatedAt,
	}
}

func fromPackageModel(m *packageModel) (*bundle.Package, error) {
	pkgID, err := id.ParsePackageID(m.ID)
	if err != nil {
		return nil, err
	}

	var lines []bundle.FeatureLine
	if len(m.Features) > 0 {
		if err := json.Unmarshal(m.Features, &lines); err != nil {
			return nil, err
		}
	}

	return &bundle.Package{
		Entity:                       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                           pkgID,
		Name:                         m.Name,
		Description:                  m.Description,
		Country:                      m.Country,
		Currency:                     m.Currency,
		Color:                        m.Color,
		Features:                     lines,
		PackageDiscount:              m.PackageDiscount,
		MonthlyDiscount:              m.MonthlyDiscount,
		YearlyDiscount:               m.YearlyDiscount,
		TaxType:                      m.TaxType,
		TaxAmount:                    m.TaxAmount,
		TotalMonthlyBeforeTax:        m.TotalMonthlyBeforeTax,
		TotalYearlyBeforeTax:         m.TotalYearlyBeforeTax,
		TotalMonthly:                 m.TotalMonthly,
		TotalYearly:                  m.TotalYearly,
		TotalMonthlyOriginal:         m.TotalMonthlyOriginal,
		TotalYearlyOriginal:          m.TotalYearlyOriginal,
		MonthlyDiscountAmount:        m.MonthlyDiscountAmount,
		YearlyDiscountAmount:         m.YearlyDiscountAmount,
		PackageDiscountMonthlyAmount: m.PackageDiscountMonthlyAmount,
		PackageDiscountYearlyAmount:  m.PackageDiscountYearlyAmount,
		PlanIDMonthly:                m.PlanIDMonthly,
		PlanIDAnnually:               m.PlanIDAnnually,
		IsActive:                     m.IsActive,
		IsFree:                       m.IsFree,
		IsCustom:                     m.IsCustom,
		CreatedBy:                    m.CreatedBy,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:quota_subscriptions"`

	ID        string    `grove:"id,pk"`
	UserID    string    `grove:"user_id"`
	IsActive  bool      `grove:"is_active"`
	IsFree    bool      `grove:"is_free"`
	PackageID string    `grove:"package_id"`
	Period    string    `grove:"period"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// balanceModel is one feature count of a subscription. Counts live in their
// own rows so a conditional UPDATE can debit them.
type balanceModel struct {
	grove.BaseModel `grove:"table:quota_balances"`

	SubscriptionID string `grove:"subscription_id,pk"`
	Feature        string `grove:"feature,pk"`
	IsIncluded     bool   `grove:"is_included"`
	Count          int64  `grove:"count"`
	ExpiryDays     int    `grove:"expiry_days"`
}

type extraModel struct {
	grove.BaseModel `grove:"table:quota_subscription_extras"`

	ID             string           `grove:"id,pk"`
	SubscriptionID string           `grove:"subscription_id"`
	Deltas         map[string]int64 `grove:"deltas,type:jsonb"`
	CreatedBy      string           `grove:"created_by"`
	PaymentID      string           `grove:"payment_id"`
	Note           string           `grove:"note"`
	CreatedAt      time.Time        `grove:"created_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:        s.ID.String(),
		UserID:    s.UserID,
		IsActive:  s.IsActive,
		IsFree:    s.IsFree,
		PackageID: s.PackageID.String(),
		Period:    string(s.Period),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toBalanceModels(s *subscription.Subscription) []balanceModel {
	models := make([]balanceModel, 0, len(s.Balances))
	for _, key := range feature.Keys() {
		b, ok := s.Balances[key]
		if !ok {
			continue
		}
		models = append(models, balanceModel{
			SubscriptionID: s.ID.String(),
			Feature:        string(key),
			IsIncluded:     b.IsIncluded,
			Count:          b.Count,
			ExpiryDays:     b.ExpiryAfterPackageExpiry,
		})
	}
	return models
}

func fromSubscriptionModel(m *subscriptionModel, balances []balanceModel, extras []extraModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	pkgID, err := id.ParsePackageID(m.PackageID)
	if err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        subID,
		UserID:    m.UserID,
		IsActive:  m.IsActive,
		IsFree:    m.IsFree,
		PackageID: pkgID,
		Period:    types.Period(m.Period),
		Balances:  make(map[feature.Key]subscription.Balance, len(balances)),
	}
	for _, b := range balances {
		sub.Balances[feature.Key(b.Feature)] = subscription.Balance{
			IsIncluded:               b.IsIncluded,
			Count:                    b.Count,
			ExpiryAfterPackageExpiry: b.ExpiryDays,
		}
	}
	for _, e := range extras {
		deltas := make(map[feature.Key]int64, len(e.Deltas))
		for k, v := range e.Deltas {
			deltas[feature.Key(k)] = v
		}
		sub.Extras = append(sub.Extras, subscription.Extra{
			Deltas:    deltas,
			CreatedBy: e.CreatedBy,
			PaymentID: e.PaymentID,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return sub, nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:quota_accounts"`

	ID        string    `grove:"id,pk"`
	Email     string    `grove:"email"`
	IsMaster  bool      `grove:"is_master"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// slaveModel links a slave to its master. slave_id is the primary key, so a
// slave can hang off at most one master.
type slaveModel struct {
	grove.BaseModel `grove:"table:quota_account_slaves"`

	SlaveID   string    `grove:"slave_id,pk"`
	MasterID  string    `grove:"master_id"`
	CreatedAt time.Time `grove:"created_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:        a.ID,
		Email:     a.Email,
		IsMaster:  a.IsMaster,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel, slaves []slaveModel) *account.Account {
	a := &account.Account{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       m.ID,
		Email:    m.Email,
		IsMaster: m.IsMaster,
	}
	for _, s := range slaves {
		a.SlaveUsers = append(a.SlaveUsers, s.SlaveID)
	}
	return a
}

// ==================== View charge models ====================

type viewChargeModel struct {
	grove.BaseModel `grove:"table:quota_view_charges"`

	ID          string    `grove:"id,pk"`
	GroupID     string    `grove:"group_id"`
	EmployerID  string    `grove:"employer_id"`
	CandidateID string    `grove:"candidate_id"`
	CreatedAt   time.Time `grove:"created_at"`
	Expiration  time.Time `grove:"expiration"`
}

func toViewChargeModel(c *viewcharge.ViewCharge) *viewChargeModel {
	return &viewChargeModel{
		ID:          c.ID.String(),
		GroupID:     c.GroupID,
		EmployerID:  c.EmployerID,
		CandidateID: c.CandidateID,
		CreatedAt:   c.CreatedAt,
		Expiration:  c.Expiration,
	}
}

func fromViewChargeModel(m *viewChargeModel) (*viewcharge.ViewCharge, error) {
	chargeID, err := id.ParseViewChargeID(m.ID)
	if err != nil {
		return nil, err
	}
	return &viewcharge.ViewCharge{
		ID:          chargeID,
		GroupID:     m.GroupID,
		EmployerID:  m.EmployerID,
		CandidateID: m.CandidateID,
		CreatedAt:   m.CreatedAt,
		Expiration:  m.Expiration,
	}, nil
}

// ==================== Promo models ====================

type promoModel struct {
	grove.BaseModel `grove:"table:quota_promos"`

	ID         string     `grove:"id,pk"`
	Code       string     `grove:"code"`
	Country    string     `grove:"country"`
	Type       string     `grove:"type"`
	Amount     float64    `grove:"amount"`
	Currency   string     `grove:"currency"`
	Expiration *time.Time `grove:"expiration"`
	UserIDs    []string   `grove:"user_ids,type:jsonb"`
	PackageIDs []string   `grove:"package_ids,type:jsonb"`
	CreatedBy  string     `grove:"created_by"`
	IsActive   bool       `grove:"is_active"`
	CreatedAt  time.Time  `grove:"created_at"`
	UpdatedAt  time.Time  `grove:"updated_at"`
}

func toPromoModel(p *promo.Promo) *promoModel {
	userIDs := p.UserIDs
	if userIDs == nil {
		userIDs = []string{}
	}
	pkgIDs := make([]string, len(p.PackageIDs))
	for i, pid := range p.PackageIDs {
		pkgIDs[i] = pid.String()
	}
	return &promoModel{
		ID:         p.ID.String(),
		Code:       promo.NormalizeCode(p.Code),
		Country:    pricing.NormalizeCountry(p.Country),
		Type:       string(p.Type),
		Amount:     p.Amount,
		Currency:   p.Currency,
		Expiration: p.Expiration,
		UserIDs:    userIDs,
		PackageIDs: pkgIDs,
		CreatedBy:  p.CreatedBy,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func fromPromoModel(m *promoModel) (*promo.Promo, error) {
	promoID, err := id.ParsePromoID(m.ID)
	if err != nil {
		return nil, err
	}
	var pkgIDs []id.PackageID
	for _, s := range m.PackageIDs {
		pid, err := id.ParsePackageID(s)
		if err != nil {
			return nil, err
		}
		pkgIDs = append(pkgIDs, pid)
	}
	var userIDs []string
	if len(m.UserIDs) > 0 {
		userIDs = m.UserIDs
	}
	return &promo.Promo{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         promoID,
		Code:       m.Code,
		Country:    m.Country,
		Type:       promo.Type(m.Type),
		Amount:     m.Amount,
		Currency:   m.Currency,
		Expiration: m.Expiration,
		UserIDs:    userIDs,
		PackageIDs: pkgIDs,
		CreatedBy:  m.CreatedBy,
		IsActive:   m.IsActive,
	}, nil
}

// ==================== Audit models ====================

type auditModel struct {
	grove.BaseModel `grove:"table:quota_audit"`

	ID        string          `grove:"id,pk"`
	Type      string          `grove:"type"`
	TargetID  string          `grove:"target_id"`
	UpdatedBy string          `grove:"updated_by"`
	Data      json.RawMessage `grove:"data,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
}

func toAuditModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		TargetID:  e.TargetID,
		UpdatedBy: e.UpdatedBy,
		Data:      e.Data,
		CreatedAt: e.CreatedAt,
	}
}

func fromAuditModel(m *auditModel) (*audit.Entry, error) {
	auditID, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, err
	}
	return &audit.Entry{
		ID:        auditID,
		Type:      audit.Type(m.Type),
		TargetID:  m.TargetID,
		UpdatedBy: m.UpdatedBy,
		Data:      m.Data,
		CreatedAt: m.CreatedAt,
	}, nil
}
