//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// InvitationCodeLength is the canonical generated code length.
	InvitationCodeLength = 8

	// DefaultInvitationTTL is how long a freshly generated code stays
	// redeemable.
	DefaultInvitationTTL = 30 * 24 * time.Hour

	maxInvitationCodeLen = 20
)

var invitationCodePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// InvitationStatus filters invitation listings.
type InvitationStatus string

const (
	InvitationStatusAll     InvitationStatus = "all"
	InvitationStatusActive  InvitationStatus = "active"
	InvitationStatusUsed    InvitationStatus = "used"
	InvitationStatusExpired InvitationStatus = "expired"
)

// Valid reports whether the invitation status filter is supported.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationStatusAll, InvitationStatusActive, InvitationStatusUsed, InvitationStatusExpired:
		return true
	default:
		return false
	}
}

// ParseInvitationStatus normalizes a status string and reports whether it is
// supported. Empty input defaults to "all".
func ParseInvitationStatus(value string) (InvitationStatus, bool) {
	s := InvitationStatus(strings.ToLower(strings.TrimSpace(value)))
	if s == "" {
		return InvitationStatusAll, true
	}
	if s.Valid() {
		return s, true
	}
	return "", false
}

// NormalizeInvitationCode canonicalizes user input: trimmed and uppercased.
func NormalizeInvitationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InvitationCode is a limited-use registration code.
//
// Invariants: CurrentUses never exceeds MaxUses, and the write that brings
// CurrentUses up to MaxUses also clears IsActive.
type InvitationCode struct {
	ID              string     `json:"id"                          db:"id"`
	Code            string     `json:"code"                        db:"code"`
	CreatedAt       time.Time  `json:"created_at"                  db:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"                  db:"expires_at"`
	UsedAt          *time.Time `json:"used_at,omitempty"           db:"used_at"`
	UsedBy          *string    `json:"used_by,omitempty"           db:"used_by"`
	UsedByProfileID *int64     `json:"used_by_profile_id,omitempty" db:"used_by_profile_id"`
	GeneratedBy     string     `json:"generated_by"                db:"generated_by"`
	AdWatchID       *string    `json:"ad_watch_id,omitempty"       db:"ad_watch_id"`
	IsActive        bool       `json:"is_active"                   db:"is_active"`
	MaxUses         int        `json:"max_uses"                    db:"max_uses"`
	CurrentUses     int        `json:"current_uses"                db:"current_uses"`
}

// Redeemable reports whether the code can still be redeemed at the given time.
func (c InvitationCode) Redeemable(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpiresAt) && c.CurrentUses < c.MaxUses
}

// Expired reports whether the code's validity window has passed.
func (c InvitationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exhausted reports whether every permitted use has been consumed.
func (c InvitationCode) Exhausted() bool {
	return c.CurrentUses >= c.MaxUses
}

// InvitationListOptions controls paging and filtering for listing invitation codes.
type InvitationListOptions struct {
	Status InvitationStatus
	Limit  int
	Offset int
}

// Validate normalizes and validates listing options.
func (o *InvitationListOptions) Validate() error {
	if o.Status == "" {
		o.Status = InvitationStatusAll
	}
	if !o.Status.Valid() {
		return errors.New("invalid status filter")
	}
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return nil
}

// GenerateInvitationRequest represents parameters to mint a new invitation code.
type GenerateInvitationRequest struct {
	GeneratedBy string        `json:"generated_by,omitempty"`
	AdWatchID   string        `json:"ad_watch_id,omitempty"`
	MaxUses     int           `json:"max_uses,omitempty"`
	TTL         time.Duration `json:"-"`
}

// Validate normalizes and validates generation parameters.
func (r *GenerateInvitationRequest) Validate() error {
	if r.GeneratedBy == "" {
		r.GeneratedBy = "miniprogram"
	}
	if r.MaxUses == 0 {
		r.MaxUses = 1
	}
	if r.MaxUses < 1 {
		return errors.New("max_uses must be >= 1")
	}
	if r.TTL <= 0 {
		r.TTL = DefaultInvitationTTL
	}
	return nil
}

// ValidInvitationCodeFormat reports whether a normalized code has a plausible
// shape, letting obviously bad input fail before a database round trip.
func ValidInvitationCodeFormat(code string) bool {
	if code == "" || len(code) > maxInvitationCodeLen {
		return false
	}
	return invitationCodePattern.MatchString(code)
}
