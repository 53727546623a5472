//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxUsernameLen = 50
	maxFullNameLen = 100
)

// UserProfile is the application-side account row keyed by the identity
// provider's user id.
type UserProfile struct {
	ID         int64     `json:"id"           db:"id"`
	AuthUserID string    `json:"auth_user_id" db:"auth_user_id"`
	Username   *string   `json:"username,omitempty"   db:"username"`
	FullName   *string   `json:"full_name,omitempty"  db:"full_name"`
	AvatarURL  *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt  time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"   db:"updated_at"`
}

// UpsertProfileRequest represents parameters to create or refresh a profile.
type UpsertProfileRequest struct {
	AuthUserID string  `json:"auth_user_id"`
	Username   *string `json:"username,omitempty"`
	FullName   *string `json:"full_name,omitempty"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
}

// Validate validates UpsertProfileRequest.
func (r *UpsertProfileRequest) Validate() error {
	if strings.TrimSpace(r.AuthUserID) == "" {
		return errors.New("auth_user_id is required")
	}
	if r.Username != nil {
		u := strings.TrimSpace(*r.Username)
		if u == "" {
			return errors.New("username cannot be empty")
		}
		if utf8.RuneCountInString(u) > maxUsernameLen {
			return errors.New("username cannot exceed 50 characters")
		}
		*r.Username = u
	}
	if r.FullName != nil && utf8.RuneCountInString(*r.FullName) > maxFullNameLen {
		return errors.New("full_name cannot exceed 100 characters")
	}
	return nil
}
