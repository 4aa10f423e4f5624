// Package id defines TypeID-based identifiers for quota entities.
//
// Every stored entity carries an ID whose prefix names its type, for example
// "pkg_01h2xcejqtf2nbrexx3vqjhp41". Account, employer and candidate ids come
// from the surrounding platform and are plain strings, not IDs.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefixes for quota entity types.
const (
	PrefixPackage      Prefix = "pkg"   // Priced feature bundle
	PrefixSubscription Prefix = "sub"   // Employer balance record
	PrefixPromo        Prefix = "promo" // Promo code
	PrefixAudit        Prefix = "aud"   // Audit snapshot
	PrefixTier         Prefix = "tier"  // Per-country reference rate
	PrefixTax          Prefix = "tax"   // Per-country tax rate
	PrefixViewCharge   Prefix = "vch"   // Charged candidate view
	PrefixExtra        Prefix = "ext"   // Subscription top-up
	PrefixLock         Prefix = "lck"   // Lock ownership token
)

// ID is a prefix-qualified, K-sortable identifier.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. It panics on an invalid prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string of any prefix.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Typed aliases
// ──────────────────────────────────────────────────

// PackageID identifies a package (prefix "pkg").
type PackageID = ID

// SubscriptionID identifies a subscription (prefix "sub").
type SubscriptionID = ID

// PromoID identifies a promo code (prefix "promo").
type PromoID = ID

// AuditID identifies an audit entry (prefix "aud").
type AuditID = ID

// TierID identifies a pricing tier (prefix "tier").
type TierID = ID

// TaxID identifies a tax rate (prefix "tax").
type TaxID = ID

// ViewChargeID identifies a view charge (prefix "vch").
type ViewChargeID = ID

// ExtraID identifies a stored subscription top-up (prefix "ext").
type ExtraID = ID

func NewPackageID() ID      { return New(PrefixPackage) }
func NewSubscriptionID() ID { return New(PrefixSubscription) }
func NewPromoID() ID        { return New(PrefixPromo) }
func NewAuditID() ID        { return New(PrefixAudit) }
func NewTierID() ID         { return New(PrefixTier) }
func NewTaxID() ID          { return New(PrefixTax) }
func NewViewChargeID() ID   { return New(PrefixViewCharge) }
func NewExtraID() ID        { return New(PrefixExtra) }

func ParsePackageID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixPackage) }
func ParseSubscriptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubscription) }
func ParsePromoID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixPromo) }
func ParseAuditID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixAudit) }
func ParseTierID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixTier) }
func ParseTaxID(s string) (ID, error)          { return ParseWithPrefix(s, PrefixTax) }
func ParseViewChargeID(s string) (ID, error)   { return ParseWithPrefix(s, PrefixViewCharge) }
func ParseExtraID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixExtra) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// FromString parses s when it is non-empty and returns Nil otherwise.
// Store backends use it for optional id columns.
func FromString(s string) (ID, error) {
	if s == "" {
		return Nil, nil
	}
	return Parse(s)
}
