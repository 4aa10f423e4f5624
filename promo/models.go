// Package promo holds promo codes, unique per code and country.
package promo

import (
	"errors"
	"strings"
	"time"

	"github.com/xraph/quota/id"
	"github.com/xraph/quota/types"
)

var ErrInvalidAmount = errors.New("quota: invalid promo amount")

// Type says how a promo's amount is applied.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeAmount     Type = "amount"
)

// Promo is a discount code valid in one country.
type Promo struct {
	types.Entity
	ID         id.PromoID     `json:"id"`
	Code       string         `json:"promoCode"`
	Country    string         `json:"country"`
	Type       Type           `json:"type"`
	Amount     float64        `json:"amount"`
	Currency   string         `json:"currency"`
	Expiration *time.Time     `json:"expiration,omitempty"`
	UserIDs    []string       `json:"userIds,omitempty"`
	PackageIDs []id.PackageID `json:"packageIds,omitempty"`
	CreatedBy  string         `json:"createdBy"`
	IsActive   bool           `json:"isActive"`
}

// Expired reports whether p has expired at t.
func (p *Promo) Expired(t time.Time) bool {
	return p.Expiration != nil && !p.Expiration.After(t)
}

// Request is an admin create or update of a promo. Currency is derived from
// the country and is not part of the request.
type Request struct {
	Code       string         `json:"promoCode" validate:"required,max=40"`
	Country    string         `json:"country" validate:"required,len=2"`
	Type       Type           `json:"type" validate:"required,oneof=percentage amount"`
	Amount     float64        `json:"amount" validate:"gt=0"`
	Expiration *time.Time     `json:"expiration"`
	UserIDs    []string       `json:"userIds"`
	PackageIDs []id.PackageID `json:"packageIds"`
	AdminID    string         `json:"adminId" validate:"required"`
	IsActive   *bool          `json:"isActive"`
}

// Check validates rules the struct tags cannot express.
func (r *Request) Check() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if r.Type == TypePercentage && r.Amount > 100 {
		return ErrInvalidAmount
	}
	return nil
}

// Apply copies r onto p.
func (r *Request) Apply(p *Promo) {
	p.Code = NormalizeCode(r.Code)
	p.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	p.Type = r.Type
	p.Amount = r.Amount
	p.Expiration = r.Expiration
	p.UserIDs = r.UserIDs
	p.PackageIDs = r.PackageIDs
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
}

// NormalizeCode returns the stored form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
