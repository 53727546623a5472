package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/data"
	"github.com/lacs-team/appfun-api/internal/domain/model"
	"github.com/lacs-team/appfun-api/internal/service"
)

// memInvitationRepo is a minimal in-memory core.InvitationRepository.
type memInvitationRepo struct {
	mu    sync.Mutex
	codes map[string]*model.InvitationCode
}

var _ core.InvitationRepository = (*memInvitationRepo)(nil)

func newMemInvitationRepo() *memInvitationRepo {
	return &memInvitationRepo{codes: make(map[string]*model.InvitationCode)}
}

func (r *memInvitationRepo) seed(code string, maxUses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code] = &model.InvitationCode{
		ID:        "inv-" + code,
		Code:      code,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		IsActive:  true,
		MaxUses:   maxUses,
	}
}

func (r *memInvitationRepo) GetByCode(_ context.Context, code string) (*model.InvitationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.codes[code]
	if !ok {
		return nil, data.ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvitationRepo) Redeem(_ context.Context, params core.RedeemInvitationParams) (*model.InvitationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.codes[params.Code]
	if !ok {
		return nil, data.ErrInvitationNotFound
	}
	if !inv.Redeemable(time.Now()) {
		return nil, data.ErrInvitationNotRedeemable
	}
	inv.CurrentUses++
	if inv.CurrentUses >= inv.MaxUses {
		inv.IsActive = false
	}
	used := params.UsedBy
	inv.UsedBy = &used
	cp := *inv
	return &cp, nil
}

func (r *memInvitationRepo) Create(_ context.Context, params core.CreateInvitationParams) (*model.InvitationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[params.Code]; ok {
		return nil, data.ErrInvitationExists
	}
	inv := &model.InvitationCode{
		ID:          "inv-" + params.Code,
		Code:        params.Code,
		CreatedAt:   time.Now(),
		ExpiresAt:   params.ExpiresAt,
		GeneratedBy: params.GeneratedBy,
		AdWatchID:   params.AdWatchID,
		IsActive:    true,
		MaxUses:     params.MaxUses,
	}
	r.codes[params.Code] = inv
	cp := *inv
	return &cp, nil
}

func (r *memInvitationRepo) List(_ context.Context, _ model.InvitationListOptions) ([]*model.InvitationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.InvitationCode, 0, len(r.codes))
	for _, inv := range r.codes {
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func newInvitationHandlers(repo *memInvitationRepo) *InvitationHandlers {
	return &InvitationHandlers{Svc: service.NewInvitationService(service.InvitationServiceOptions{Repo: repo})}
}

func TestInvitationHandlers_Validate(t *testing.T) {
	repo := newMemInvitationRepo()
	repo.seed("WELCOME1", 1)
	h := newInvitationHandlers(repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/validate-invitation",
		strings.NewReader(`{"code":"welcome1"}`))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp service.ValidateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "邀请码有效", resp.Message)
}

func TestInvitationHandlers_Validate_Unknown(t *testing.T) {
	h := newInvitationHandlers(newMemInvitationRepo())

	req := httptest.NewRequest(http.MethodPost, "/auth/validate-invitation",
		strings.NewReader(`{"code":"NOPE1234"}`))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp service.ValidateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, "邀请码不存在", resp.Message)
}

func TestInvitationHandlers_Validate_EmptyCode(t *testing.T) {
	h := newInvitationHandlers(newMemInvitationRepo())

	req := httptest.NewRequest(http.MethodPost, "/auth/validate-invitation",
		strings.NewReader(`{"code":"  "}`))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_failed")
}

func TestInvitationHandlers_Use(t *testing.T) {
	repo := newMemInvitationRepo()
	repo.seed("WELCOME1", 1)
	h := newInvitationHandlers(repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/use-invitation",
		strings.NewReader(`{"code":"WELCOME1","userId":"auth-user-1"}`))
	rec := httptest.NewRecorder()
	h.Use(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp service.RedeemResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	// Single-use code is spent now.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/use-invitation",
		strings.NewReader(`{"code":"WELCOME1","userId":"auth-user-2"}`))
	h.Use(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "已被使用")
}

func TestInvitationHandlers_Generate(t *testing.T) {
	repo := newMemInvitationRepo()
	h := newInvitationHandlers(repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/generate-invitation",
		strings.NewReader(`{"generated_by":"ops","max_uses":3,"ttl_days":7}`))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var inv model.InvitationCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Len(t, inv.Code, 8)
	assert.Equal(t, 3, inv.MaxUses)
	assert.Equal(t, "ops", inv.GeneratedBy)
}

func TestInvitationHandlers_List(t *testing.T) {
	repo := newMemInvitationRepo()
	repo.seed("CODE0001", 1)
	repo.seed("CODE0002", 1)
	h := newInvitationHandlers(repo)

	req := httptest.NewRequest(http.MethodGet, "/auth/invitations?limit=10", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Invitations []model.InvitationCode `json:"invitations"`
		Count       int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}
