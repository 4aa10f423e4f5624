package mongo

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

	ID        string    `grove:"id,pk"      bson:"_id"`
	Country   string    `grove:"country"    bson:"country"`
	Feature   string    `grove:"feature"    bson:"feature"`
	BasePrice float64   `grove:"base_price" bson:"base_price"`
	Count     int64     `grove:"count"      bson:"count"`
	Currency  string    `grove:"currency"   bson:"currency"`
	Heading   string    `grove:"heading"    bson:"heading,omitempty"`
	Label     string    `grove:"label"      bson:"label,omitempty"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
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

	ID         string    `grove:"id,pk"      bson:"_id"`
	Country    string    `grove:"country"    bson:"country"`
	TaxType    string    `grove:"tax_type"   bson:"tax_type"`
	Percentage float64   `grove:"percentage" bson:"percentage"`
	CreatedAt  time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at" bson:"updated_at"`
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

	ID          string             `grove:"id,pk"       bson:"_id"`
	Name        string             `grove:"name"        bson:"name"`
	Description string             `grove:"description" bson:"description"`
	Country     string             `grove:"country"     bson:"country"`
	Currency    string             `grove:"currency"    bson:"currency"`
	Color       string             `grove:"color"       bson:"color"`
	Features    []featureLineModel `grove:"features"    bson:"features"`

	PackageDiscount float64 `grove:"package_discount" bson:"package_discount"`
	MonthlyDiscount float64 `grove:"monthly_discount" bson:"monthly_discount"`
	YearlyDiscount  float64 `grove:"yearly_discount"  bson:"yearly_discount"`
	TaxType         string  `grove:"tax_type"         bson:"tax_type"`
	TaxAmount       float64 `grove:"tax_amount"       bson:"tax_amount"`

	TotalMonthlyBeforeTax        float64 `grove:"total_monthly_before_tax"        bson:"total_monthly_before_tax"`
	TotalYearlyBeforeTax         float64 `grove:"total_yearly_before_tax"         bson:"total_yearly_before_tax"`
	TotalMonthly                 float64 `grove:"total_monthly"                   bson:"total_monthly"`
	TotalYearly                  float64 `grove:"total_yearly"                    bson:"total_yearly"`
	TotalMonthlyOriginal         float64 `grove:"total_monthly_original"          bson:"total_monthly_original"`
	TotalYearlyOriginal          float64 `grove:"total_yearly_original"           bson:"total_yearly_original"`
	MonthlyDiscountAmount        float64 `grove:"monthly_discount_amount"         bson:"monthly_discount_amount"`
	YearlyDiscountAmount         float64 `grove:"yearly_discount_amount"          bson:"yearly_discount_amount"`
	PackageDiscountMonthlyAmount float64 `grove:"package_discount_monthly_amount" bson:"package_discount_monthly_amount"`
	PackageDiscountYearlyAmount  float64 `grove:"package_discount_yearly_amount"  bson:"package_discount_yearly_amount"`

	PlanIDMonthly  string    `grove:"plan_id_monthly"  bson:"plan_id_monthly,omitempty"`
	PlanIDAnnually string    `grove:"plan_id_annually" bson:"plan_id_annually,omitempty"`
	IsActive       bool      `grove:"is_active"        bson:"is_active"`
	IsFree         bool      `grove:"is_free"          bson:"is_free"`
	IsCustom       bool      `grove:"is_custom"        bson:"is_custom"`
	CreatedBy      string    `grove:"created_by"       bson:"created_by"`
	CreatedAt      time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"       bson:"updated_at"`
}

type featureLineModel struct {
	Feature                  string  `bson:"feature"`
	IsIncluded               bool    `bson:"is_included"`
	IsFree                   bool    `bson:"is_free"`
	IsUnlimited              bool    `bson:"is_unlimited"`
	MonthlyCount             int64   `bson:"monthly_count"`
	YearlyCount              int64   `bson:"yearly_count"`
	IsForcedMonthly          bool    `bson:"is_forced_monthly"`
	ForcedMonthly            float64 `bson:"forced_monthly"`
	IsForcedYearly           bool    `bson:"is_forced_yearly"`
	ForcedYearly             float64 `bson:"forced_yearly"`
	ExpiryAfterPackageExpiry int     `bson:"expiry_after_package_expiry"`
	TotalMonthly             float64 `bson:"total_monthly"`
	TotalYearly              float64 `bson:"total_yearly"`
	TotalMonthlyOriginal     float64 `bson:"total_monthly_original"`
	TotalYearlyOriginal      float64 `bson:"total_yearly_original"`
}

func toPackageModel(p *bundle.Package) *packageModel {
	lines := make([]featureLineModel, len(p.Features))
	for i, l := range p.Features {
		lines[i] = featureLineModel{
			Feature:                  string(l.Feature),
			IsIncluded:               l.IsIncluded,
			IsFree:                   l.IsFree,
			IsUnlimited:              l.IsUnlimited,
			MonthlyCount:             l.MonthlyCount,
			YearlyCount:              l.YearlyCount,
			IsForcedMonthly:          l.IsForcedMonthly,
			ForcedMonthly:            l.ForcedMonthly,
			IsForcedYearly:           l.IsForcedYearly,
			ForcedYearly:             l.ForcedYearly,
			ExpiryAfterPackageExpiry: l.ExpiryAfterPackageExpiry,
			TotalMonthly:             l.TotalMonthly,
			TotalYearly:              l.TotalYearly,
			TotalMonthlyOriginal:     l.TotalMonthlyOriginal,
			TotalYearlyOriginal:      l.TotalYearlyOriginal,
		}
	}

	return &packageModel{
		ID:                           p.ID.String(),
		Name:                         p.Name,
		Description:                  p.Description,
		Country:                      p.Country,
		Currency:                     p.Currency,
		Color:                        p.Color,
		Features:                     lines,
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

	lines := make([]bundle.FeatureLine, len(m.Features))
	for i, l := range m.Features {
		lines[i] = bundle.FeatureLine{
			LineRequest: bundle.LineRequest{
				IsIncluded:               l.IsIncluded,
				IsFree:                   l.IsFree,
				IsUnlimited:              l.IsUnlimited,
				MonthlyCount:             l.MonthlyCount,
				YearlyCount:              l.YearlyCount,
				IsForcedMonthly:          l.IsForcedMonthly,
				ForcedMonthly:            l.ForcedMonthly,
				IsForcedYearly:           l.IsForcedYearly,
				ForcedYearly:             l.ForcedYearly,
				ExpiryAfterPackageExpiry: l.ExpiryAfterPackageExpiry,
			},
			Feature:              feature.Key(l.Feature),
			TotalMonthly:         l.TotalMonthly,
			TotalYearly:          l.TotalYearly,
			TotalMonthlyOriginal: l.TotalMonthlyOriginal,
			TotalYearlyOriginal:  l.TotalYearlyOriginal,
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

// Balances are keyed by feature so a single filtered $inc can debit one.
type subscriptionModel struct {
	grove.BaseModel `grove:"table:quota_subscriptions"`

	ID        string                  `grove:"id,pk"      bson:"_id"`
	UserID    string                  `grove:"user_id"    bson:"user_id"`
	IsActive  bool                    `grove:"is_active"  bson:"is_active"`
	IsFree    bool                    `grove:"is_free"    bson:"is_free"`
	PackageID string                  `grove:"package_id" bson:"package_id"`
	Period    string                  `grove:"period"     bson:"period"`
	Balances  map[string]balanceModel `grove:"balances"   bson:"balances"`
	Extras    []extraModel            `grove:"extras"     bson:"extras"`
	CreatedAt time.Time               `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time               `grove:"updated_at" bson:"updated_at"`
}

type balanceModel struct {
	IsIncluded               bool  `bson:"is_included"`
	Count                    int64 `bson:"count"`
	ExpiryAfterPackageExpiry int   `bson:"expiry_after_package_expiry"`
}

type extraModel struct {
	Deltas    map[string]int64 `bson:"deltas"`
	CreatedBy string           `bson:"created_by"`
	PaymentID string           `bson:"payment_id,omitempty"`
	Note      string           `bson:"note,omitempty"`
	CreatedAt time.Time        `bson:"created_at"`
}

func toExtraModel(e subscription.Extra) extraModel {
	deltas := make(map[string]int64, len(e.Deltas))
	for k, v := range e.Deltas {
		deltas[string(k)] = v
	}
	return extraModel{
		Deltas:    deltas,
		CreatedBy: e.CreatedBy,
		PaymentID: e.PaymentID,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

func fromExtraModel(m extraModel) subscription.Extra {
	deltas := make(map[feature.Key]int64, len(m.Deltas))
	for k, v := range m.Deltas {
		deltas[feature.Key(k)] = v
	}
	return subscription.Extra{
		Deltas:    deltas,
		CreatedBy: m.CreatedBy,
		PaymentID: m.PaymentID,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	balances := make(map[string]balanceModel, len(s.Balances))
	for k, b := range s.Balances {
		balances[string(k)] = balanceModel{
			IsIncluded:               b.IsIncluded,
			Count:                    b.Count,
			ExpiryAfterPackageExpiry: b.ExpiryAfterPackageExpiry,
		}
	}
	extras := make([]extraModel, len(s.Extras))
	for i, e := range s.Extras {
		extras[i] = toExtraModel(e)
	}

	return &subscriptionModel{
		ID:        s.ID.String(),
		UserID:    s.UserID,
		IsActive:  s.IsActive,
		IsFree:    s.IsFree,
		PackageID: s.PackageID.String(),
		Period:    string(s.Period),
		Balances:  balances,
		Extras:    extras,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	pkgID, err := id.ParsePackageID(m.PackageID)
	if err != nil {
		return nil, err
	}

	balances := make(map[feature.Key]subscription.Balance, len(m.Balances))
	for k, b := range m.Balances {
		balances[feature.Key(k)] = subscription.Balance{
			IsIncluded:               b.IsIncluded,
			Count:                    b.Count,
			ExpiryAfterPackageExpiry: b.ExpiryAfterPackageExpiry,
		}
	}
	var extras []subscription.Extra
	for _, e := range m.Extras {
		extras = append(extras, fromExtraModel(e))
	}

	return &subscription.Subscription{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        subID,
		UserID:    m.UserID,
		IsActive:  m.IsActive,
		IsFree:    m.IsFree,
		PackageID: pkgID,
		Period:    types.Period(m.Period),
		Balances:  balances,
		Extras:    extras,
	}, nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:quota_accounts"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	Email      string    `grove:"email"       bson:"email,omitempty"`
	IsMaster   bool      `grove:"is_master"   bson:"is_master"`
	SlaveUsers []string  `grove:"slave_users" bson:"slave_users"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	slaves := a.SlaveUsers
	if slaves == nil {
		slaves = []string{}
	}
	return &accountModel{
		ID:         a.ID,
		Email:      a.Email,
		IsMaster:   a.IsMaster,
		SlaveUsers: slaves,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	var slaves []string
	if len(m.SlaveUsers) > 0 {
		slaves = append(slaves, m.SlaveUsers...)
	}
	return &account.Account{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         m.ID,
		Email:      m.Email,
		IsMaster:   m.IsMaster,
		SlaveUsers: slaves,
	}
}

// ==================== View charge models ====================

type viewChargeModel struct {
	grove.BaseModel `grove:"table:quota_view_charges"`

	ID          string    `grove:"id,pk"        bson:"_id"`
	GroupID     string    `grove:"group_id"     bson:"group_id"`
	EmployerID  string    `grove:"employer_id"  bson:"employer_id"`
	CandidateID string    `grove:"candidate_id" bson:"candidate_id"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
	Expiration  time.Time `grove:"expiration"   bson:"expiration"`
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

	ID         string     `grove:"id,pk"       bson:"_id"`
	Code       string     `grove:"code"        bson:"code"`
	Country    string     `grove:"country"     bson:"country"`
	Type       string     `grove:"type"        bson:"type"`
	Amount     float64    `grove:"amount"      bson:"amount"`
	Currency   string     `grove:"currency"    bson:"currency"`
	Expiration *time.Time `grove:"expiration"  bson:"expiration,omitempty"`
	UserIDs    []string   `grove:"user_ids"    bson:"user_ids,omitempty"`
	PackageIDs []string   `grove:"package_ids" bson:"package_ids,omitempty"`
	CreatedBy  string     `grove:"created_by"  bson:"created_by"`
	IsActive   bool       `grove:"is_active"   bson:"is_active"`
	CreatedAt  time.Time  `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time  `grove:"updated_at"  bson:"updated_at"`
}

func toPromoModel(p *promo.Promo) *promoModel {
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
		UserIDs:    p.UserIDs,
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
	return &promo.Promo{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         promoID,
		Code:       m.Code,
		Country:    m.Country,
		Type:       promo.Type(m.Type),
		Amount:     m.Amount,
		Currency:   m.Currency,
		Expiration: m.Expiration,
		UserIDs:    m.UserIDs,
		PackageIDs: pkgIDs,
		CreatedBy:  m.CreatedBy,
		IsActive:   m.IsActive,
	}, nil
}

// ==================== Audit models ====================

type auditModel struct {
	grove.BaseModel `grove:"table:quota_audit"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Type      string    `grove:"type"       bson:"type"`
	TargetID  string    `grove:"target_id"  bson:"target_id"`
	UpdatedBy string    `grove:"updated_by" bson:"updated_by"`
	Data      string    `grove:"data"       bson:"data"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
}

func toAuditModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		TargetID:  e.TargetID,
		UpdatedBy: e.UpdatedBy,
		Data:      string(e.Data),
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
		Data:      json.RawMessage(m.Data),
		CreatedAt: m.CreatedAt,
	}, nil
}
