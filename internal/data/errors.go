package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Invitation repository sentinels.
	ErrInvitationNotFound = errors.New("invitation code not found")
	ErrInvitationExists   = errors.New("invitation code already exists")
	// ErrInvitationNotRedeemable is returned when the conditional redeem
	// write matches no row: the code was disabled, expired, or exhausted
	// by the time the write ran.
	ErrInvitationNotRedeemable = errors.New("invitation code is no longer redeemable")

	// Profile repository sentinels.
	ErrProfileNotFound = errors.New("user profile not found")
)
