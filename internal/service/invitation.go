package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/data"
	"github.com/lacs-team/appfun-api/internal/domain/model"
	apperrors "github.com/lacs-team/appfun-api/internal/errors"
)

// Invitation code messages, matching the strings the client UI shows.
const (
	msgInvitationEmpty        = "邀请码不能为空"
	msgInvitationValid        = "邀请码有效"
	msgInvitationNotFound     = "邀请码不存在"
	msgInvitationDisabled     = "邀请码已被禁用"
	msgInvitationExpired      = "邀请码已过期"
	msgInvitationUsed         = "邀请码已被使用"
	msgInvitationRedeemed     = "邀请码使用成功"
	msgInvitationValidDegr    = "邀请码有效（测试模式）"
	msgInvitationInvalidDegr  = "邀请码无效或已过期"
	msgInvitationRedeemedDegr = "邀请码使用成功（测试模式）"
	msgInvitationRejectedDegr = "邀请码无效、已过期或已被使用"
)

// degradedTestCodes is the fixed allow-list honored when the backing table
// does not exist yet (fresh deployments, preview environments). Availability
// over correctness by design in that mode.
var degradedTestCodes = map[string]bool{
	"TEST0001": true,
	"TEST0002": true,
	"TEST0003": true,
	"DEMO1234": true,
	"SAMPLE01": true,
}

const invitationCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const maxGenerateAttempts = 10

// InvitationServiceOptions groups dependencies for InvitationService.
type InvitationServiceOptions struct {
	Repo     core.InvitationRepository
	Profiles core.ProfileRepository // optional, for best-effort profile resolution
	Logger   *slog.Logger
	Now      func() time.Time
}

// InvitationService implements invitation code validation, redemption,
// generation, and listing.
type InvitationService struct {
	repo     core.InvitationRepository
	profiles core.ProfileRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewInvitationService constructs a new InvitationService.
func NewInvitationService(opts InvitationServiceOptions) *InvitationService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &InvitationService{
		repo:     opts.Repo,
		profiles: opts.Profiles,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// ValidateResult is the outcome of a read-only code check.
type ValidateResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Validate checks a code without consuming a use. It never mutates the row.
func (s *InvitationService) Validate(ctx context.Context, code string) (*ValidateResult, error) {
	code = model.NormalizeInvitationCode(code)
	if code == "" {
		return nil, apperrors.Validation(msgInvitationEmpty)
	}

	inv, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if apperrors.IsUndefinedTable(err) {
			return s.validateDegraded(code), nil
		}
		if errors.Is(err, data.ErrInvitationNotFound) {
			return &ValidateResult{Valid: false, Message: msgInvitationNotFound}, nil
		}
		return nil, apperrors.MapDBError(err)
	}

	if msg, ok := rejectInvitation(inv, s.now()); ok {
		return &ValidateResult{Valid: false, Message: msg}, nil
	}
	return &ValidateResult{Valid: true, Message: msgInvitationValid}, nil
}

func (s *InvitationService) validateDegraded(code string) *ValidateResult {
	s.logger.Warn("invitation table missing, serving degraded validation", "code", code)
	if degradedTestCodes[code] {
		return &ValidateResult{Valid: true, Message: msgInvitationValidDegr}
	}
	return &ValidateResult{Valid: false, Message: msgInvitationInvalidDegr}
}

// RedeemResult is the outcome of a redemption attempt.
type RedeemResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ProfileID *int64 `json:"profileId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Redeem consumes one use of a code for userID. It re-fetches and
// re-validates (a prior Validate is never trusted), then relies on the
// repository's single conditional UPDATE for the actual consumption, so
// concurrent redeemers can never push a code past its use limit.
func (s *InvitationService) Redeem(ctx context.Context, code, userID string) (*RedeemResult, error) {
	code = model.NormalizeInvitationCode(code)
	if code == "" || userID == "" {
		return nil, apperrors.Validation("邀请码和用户ID不能为空")
	}

	inv, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if apperrors.IsUndefinedTable(err) {
			return s.redeemDegraded(code), nil
		}
		if errors.Is(err, data.ErrInvitationNotFound) {
			return &RedeemResult{Success: false, Error: msgInvitationNotFound}, nil
		}
		return nil, apperrors.MapDBError(err)
	}

	// Precise rejection message before attempting the write.
	if msg, ok := rejectInvitation(inv, s.now()); ok {
		return &RedeemResult{Success: false, Error: msg}, nil
	}

	profileID := s.resolveProfileID(ctx, userID)

	_, err = s.repo.Redeem(ctx, core.RedeemInvitationParams{
		Code:      code,
		UsedBy:    userID,
		ProfileID: profileID,
	})
	if err != nil {
		if errors.Is(err, data.ErrInvitationNotRedeemable) {
			// Lost the race between re-validation and the write.
			return &RedeemResult{Success: false, Error: msgInvitationUsed}, nil
		}
		return nil, apperrors.MapDBError(err)
	}

	return &RedeemResult{Success: true, Message: msgInvitationRedeemed, ProfileID: profileID}, nil
}

func (s *InvitationService) redeemDegraded(code string) *RedeemResult {
	s.logger.Warn("invitation table missing, serving degraded redemption", "code", code)
	if degradedTestCodes[code] {
		return &RedeemResult{Success: true, Message: msgInvitationRedeemedDegr}
	}
	return &RedeemResult{Success: false, Error: msgInvitationRejectedDegr}
}

// resolveProfileID maps the provider user id to the internal profile id.
// Best-effort: failures are logged, never fail the redemption.
func (s *InvitationService) resolveProfileID(ctx context.Context, authUserID string) *int64 {
	if s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.GetByAuthUserID(ctx, authUserID)
	if err != nil {
		if !errors.Is(err, data.ErrProfileNotFound) {
			s.logger.Warn("profile lookup failed during redemption", "auth_user_id", authUserID, "error", err)
		}
		return nil
	}
	return &profile.ID
}

// Generate creates a fresh unique invitation code. Collisions with existing
// codes retry with a new random code up to maxGenerateAttempts times.
func (s *InvitationService) Generate(ctx context.Context, req model.GenerateInvitationRequest) (*model.InvitationCode, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(req.TTL)

	var adWatchID *string
	if req.AdWatchID != "" {
		adWatchID = &req.AdWatchID
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomInvitationCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		inv, err := s.repo.Create(ctx, core.CreateInvitationParams{
			Code:        code,
			GeneratedBy: req.GeneratedBy,
			AdWatchID:   adWatchID,
			MaxUses:     req.MaxUses,
			ExpiresAt:   expiresAt,
		})
		if err == nil {
			return inv, nil
		}
		if errors.Is(err, data.ErrInvitationExists) {
			continue
		}
		if apperrors.IsUndefinedTable(err) {
			// Degraded: hand the code out without persistence so the ad
			// reward flow keeps working on fresh deployments.
			s.logger.Warn("invitation table missing, returning unpersisted code", "code", code)
			return &model.InvitationCode{
				Code:        code,
				CreatedAt:   s.now(),
				ExpiresAt:   expiresAt,
				GeneratedBy: req.GeneratedBy,
				AdWatchID:   adWatchID,
				IsActive:    true,
				MaxUses:     req.MaxUses,
			}, nil
		}
		return nil, apperrors.MapDBError(err)
	}

	return nil, apperrors.Internal("could not generate a unique invitation code")
}

// List returns invitation codes matching the options.
func (s *InvitationService) List(ctx context.Context, opts model.InvitationListOptions) ([]*model.InvitationCode, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return rows, nil
}

// rejectInvitation returns the rejection message for a non-redeemable code.
func rejectInvitation(inv *model.InvitationCode, now time.Time) (string, bool) {
	switch {
	// Exhaustion deactivates the row, so it must be checked before IsActive
	// or a spent code would read as manually disabled.
	case inv.Exhausted():
		return msgInvitationUsed, true
	case !inv.IsActive:
		return msgInvitationDisabled, true
	case inv.Expired(now):
		return msgInvitationExpired, true
	default:
		return "", false
	}
}

// randomInvitationCode draws an 8-character A–Z/0–9 code from crypto/rand.
func randomInvitationCode() (string, error) {
	buf := make([]byte, model.InvitationCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = invitationCodeAlphabet[int(b)%len(invitationCodeAlphabet)]
	}
	return string(buf), nil
}
