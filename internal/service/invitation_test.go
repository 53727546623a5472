package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/data"
	"github.com/lacs-team/appfun-api/internal/domain/model"
	apperrors "github.com/lacs-team/appfun-api/internal/errors"
	"github.com/lacs-team/appfun-api/internal/testutil"
)

// fakeInvitationRepo is an in-memory InvitationRepository mirroring the
// conditional-update semantics of the Postgres implementation.
type fakeInvitationRepo struct {
	mu    sync.Mutex
	codes map[string]*model.InvitationCode
	now   func() time.Time

	// err, when set, is returned by every method.
	err error
}

var _ core.InvitationRepository = (*fakeInvitationRepo)(nil)

func newFakeInvitationRepo(now func() time.Time) *fakeInvitationRepo {
	return &fakeInvitationRepo{codes: make(map[string]*model.InvitationCode), now: now}
}

func (f *fakeInvitationRepo) put(inv model.InvitationCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[inv.Code] = &inv
}

func (f *fakeInvitationRepo) GetByCode(_ context.Context, code string) (*model.InvitationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	inv, ok := f.codes[code]
	if !ok {
		return nil, data.ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvitationRepo) Redeem(_ context.Context, params core.RedeemInvitationParams) (*model.InvitationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	now := f.now()
	inv, ok := f.codes[params.Code]
	if !ok || !inv.Redeemable(now) {
		return nil, data.ErrInvitationNotRedeemable
	}
	inv.CurrentUses++
	if inv.UsedAt == nil {
		inv.UsedAt = &now
	}
	inv.UsedBy = &params.UsedBy
	if params.ProfileID != nil {
		inv.UsedByProfileID = params.ProfileID
	}
	inv.IsActive = inv.CurrentUses < inv.MaxUses
	cp := *inv
	return &cp, nil
}

func (f *fakeInvitationRepo) Create(_ context.Context, params core.CreateInvitationParams) (*model.InvitationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.codes[params.Code]; ok {
		return nil, data.ErrInvitationExists
	}
	inv := &model.InvitationCode{
		ID:          params.Code + "-id",
		Code:        params.Code,
		CreatedAt:   f.now(),
		ExpiresAt:   params.ExpiresAt,
		GeneratedBy: params.GeneratedBy,
		AdWatchID:   params.AdWatchID,
		IsActive:    true,
		MaxUses:     params.MaxUses,
	}
	f.codes[params.Code] = inv
	cp := *inv
	return &cp, nil
}

func (f *fakeInvitationRepo) List(_ context.Context, opts model.InvitationListOptions) ([]*model.InvitationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	now := f.now()
	var out []*model.InvitationCode
	for _, inv := range f.codes {
		switch opts.Status {
		case model.InvitationStatusActive:
			if !inv.Redeemable(now) {
				continue
			}
		case model.InvitationStatusUsed:
			if inv.UsedAt == nil {
				continue
			}
		case model.InvitationStatusExpired:
			if !inv.Expired(now) {
				continue
			}
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func undefinedTableErr() error {
	return &pgconn.PgError{Code: pgerrcode.UndefinedTable, Message: "relation \"invitation_codes\" does not exist"}
}

type invitationFixture struct {
	svc  *InvitationService
	repo *fakeInvitationRepo
	now  time.Time
}

func newInvitationFixture(t *testing.T) *invitationFixture {
	t.Helper()
	f := &invitationFixture{now: testutil.TestTime()}
	f.repo = newFakeInvitationRepo(func() time.Time { return f.now })
	f.svc = NewInvitationService(InvitationServiceOptions{
		Repo: f.repo,
		Now:  func() time.Time { return f.now },
	})
	return f
}

func TestInvitationService_Validate(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()
	now := f.now

	f.repo.put(testutil.NewInvitation("GOOD0001").Build())
	f.repo.put(testutil.NewInvitation("DISABLED").Disabled().Build())
	f.repo.put(testutil.NewInvitation("EXPIRED1").ExpiredAt(now.Add(-time.Hour)).Build())
	f.repo.put(testutil.NewInvitation("USEDUP01").WithCurrentUses(1).Build())

	tests := []struct {
		code    string
		valid   bool
		message string
	}{
		{"GOOD0001", true, msgInvitationValid},
		{"good0001", true, msgInvitationValid}, // canonicalized
		{"DISABLED", false, msgInvitationDisabled},
		{"EXPIRED1", false, msgInvitationExpired},
		{"USEDUP01", false, msgInvitationUsed},
		{"MISSING1", false, msgInvitationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			result, err := f.svc.Validate(ctx, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestInvitationService_Validate_EmptyCode(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.svc.Validate(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestInvitationService_Validate_NeverMutates(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	f.repo.put(testutil.NewInvitation("GOOD0001").WithMaxUses(3).Build())

	for range 5 {
		_, err := f.svc.Validate(ctx, "GOOD0001")
		require.NoError(t, err)
	}

	inv, err := f.repo.GetByCode(ctx, "GOOD0001")
	require.NoError(t, err)
	assert.Zero(t, inv.CurrentUses)
	assert.True(t, inv.IsActive)
}

func TestInvitationService_Validate_DegradedMode(t *testing.T) {
	f := newInvitationFixture(t)
	f.repo.err = undefinedTableErr()
	ctx := context.Background()

	result, err := f.svc.Validate(ctx, "TEST0001")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, msgInvitationValidDegr, result.Message)

	result, err = f.svc.Validate(ctx, "RANDOM99")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestInvitationService_Redeem_SingleUseLifecycle(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	f.repo.put(testutil.NewInvitation("TEST0001").Build())

	validation, err := f.svc.Validate(ctx, "TEST0001")
	require.NoError(t, err)
	assert.True(t, validation.Valid)

	result, err := f.svc.Redeem(ctx, "TEST0001", "42")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, msgInvitationRedeemed, result.Message)

	// second redemption fails with the used message
	result, err = f.svc.Redeem(ctx, "TEST0001", "43")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, msgInvitationUsed, result.Error)

	inv, err := f.repo.GetByCode(ctx, "TEST0001")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.CurrentUses)
	assert.False(t, inv.IsActive)
}

func TestInvitationService_Redeem_ConcurrentSingleWinner(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	f.repo.put(testutil.NewInvitation("RACE0001").Build())

	const workers = 8
	results := make(chan *RedeemResult, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			result, err := f.svc.Redeem(ctx, "RACE0001", string(rune('a'+id)))
			require.NoError(t, err)
			results <- result
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded int
	for result := range results {
		if result.Success {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	inv, err := f.repo.GetByCode(ctx, "RACE0001")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.CurrentUses)
}

func TestInvitationService_Redeem_RejectionsAndDegraded(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	f.repo.put(testutil.NewInvitation("EXPIRED1").ExpiredAt(f.now.Add(-time.Minute)).Build())

	result, err := f.svc.Redeem(ctx, "EXPIRED1", "u1")
	require.NoError(t, err)
	assert.Equal(t, msgInvitationExpired, result.Error)

	result, err = f.svc.Redeem(ctx, "MISSING1", "u1")
	require.NoError(t, err)
	assert.Equal(t, msgInvitationNotFound, result.Error)

	_, err = f.svc.Redeem(ctx, "", "u1")
	assert.True(t, apperrors.IsValidation(err))

	f.repo.err = undefinedTableErr()
	result, err = f.svc.Redeem(ctx, "DEMO1234", "u1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, msgInvitationRedeemedDegr, result.Message)
}

func TestInvitationService_Generate(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Generate(ctx, model.GenerateInvitationRequest{})
	require.NoError(t, err)
	assert.Len(t, inv.Code, model.InvitationCodeLength)
	assert.True(t, model.ValidInvitationCodeFormat(inv.Code))
	assert.Equal(t, "miniprogram", inv.GeneratedBy)
	assert.Equal(t, 1, inv.MaxUses)
	assert.Equal(t, f.now.Add(model.DefaultInvitationTTL), inv.ExpiresAt)

	// generated codes are immediately redeemable
	result, err := f.svc.Redeem(ctx, inv.Code, "u1")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestInvitationService_Generate_DegradedReturnsUnpersisted(t *testing.T) {
	f := newInvitationFixture(t)
	f.repo.err = undefinedTableErr()

	inv, err := f.svc.Generate(context.Background(), model.GenerateInvitationRequest{AdWatchID: "ad-1"})
	require.NoError(t, err)
	assert.Len(t, inv.Code, model.InvitationCodeLength)
	require.NotNil(t, inv.AdWatchID)
	assert.Equal(t, "ad-1", *inv.AdWatchID)
	assert.Empty(t, inv.ID)
}

func TestInvitationService_List(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	f.repo.put(testutil.NewInvitation("ACTIVE01").Build())
	f.repo.put(testutil.NewInvitation("EXPIRED1").ExpiredAt(f.now.Add(-time.Hour)).Build())

	all, err := f.svc.List(ctx, model.InvitationListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.svc.List(ctx, model.InvitationListOptions{Status: model.InvitationStatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ACTIVE01", active[0].Code)
}

func TestRandomInvitationCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := randomInvitationCode()
		require.NoError(t, err)
		assert.Len(t, code, model.InvitationCodeLength)
		assert.True(t, model.ValidInvitationCodeFormat(code))
		seen[code] = true
	}
	// 50 draws from 36^8 should not collide
	assert.Greater(t, len(seen), 45)
}

func TestTranslateProviderError(t *testing.T) {
	assert.Equal(t, "", translateProviderError(nil, "x"))
	assert.Equal(t, msgRequestTimeout, translateProviderError(context.DeadlineExceeded, "x"))
	assert.Equal(t, msgInvalidCredentials, translateProviderError(errors.New("Invalid login credentials"), "x"))
	assert.Equal(t, msgWeakPassword, translateProviderError(errors.New("Password should be at least 8 characters"), "x"))
	assert.Equal(t, "weird upstream error", translateProviderError(errors.New("weird upstream error"), "x"))
}
