// Package viewcharge is the log of candidate profiles already charged to an
// account group.
package viewcharge

import (
	"time"

	"github.com/xraph/quota/id"
)

// NeverExpires is the expiration of charges whose feature has no expiry.
var NeverExpires = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// ViewCharge records that a group paid to view a candidate. Rows are
// immutable; at most one live row exists per group and candidate.
type ViewCharge struct {
	ID          id.ViewChargeID `json:"id"`
	GroupID     string          `json:"groupId"`
	EmployerID  string          `json:"employerId"`
	CandidateID string          `json:"candidateId"`
	CreatedAt   time.Time       `json:"createdAt"`
	Expiration  time.Time       `json:"expiration"`
}

// Live reports whether c still covers views at t.
func (c *ViewCharge) Live(t time.Time) bool {
	return c.Expiration.After(t)
}

// ExpirationFor returns the expiration of a charge made at now for a
// feature that expires after days. Zero days never expires.
func ExpirationFor(now time.Time, days int) time.Time {
	if days <= 0 {
		return NeverExpires
	}
	return now.UTC().AddDate(0, 0, days)
}

// Dedupe drops empty and repeated ids, keeping first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, s := range ids {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Uncharged returns the candidates in requested that no live charge in
// existing covers at t. requested must already be deduplicated.
func Uncharged(requested []string, existing []*ViewCharge, t time.Time) []string {
	charged := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		if c.Live(t) {
			charged[c.CandidateID] = struct{}{}
		}
	}
	out := make([]string, 0, len(requested))
	for _, cand := range requested {
		if _, ok := charged[cand]; !ok {
			out = append(out, cand)
		}
	}
	return out
}
