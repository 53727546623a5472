// Package mocks provides mock implementations for testing the appfun auth
// and invitation system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for our repository interfaces. The mocks are generated using go:generate
// directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	repo := mocks.NewMockInvitationRepository(ctrl)
//	repo.EXPECT().GetByCode(gomock.Any(), "TEST0001").Return(inv, nil)
package mocks

// Generate mock for InvitationRepository interface from internal/core.
// This creates MockInvitationRepository with GetByCode, Redeem, Create, List.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=invitation_repository_mock.go github.com/lacs-team/appfun-api/internal/core InvitationRepository

// Generate mock for ProfileRepository interface from internal/core.
// This creates MockProfileRepository with GetByAuthUserID, Upsert.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=profile_repository_mock.go github.com/lacs-team/appfun-api/internal/core ProfileRepository

// Generate mock for CatalogClient interface from internal/core.
// This creates MockCatalogClient with ListEntries.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=catalog_client_mock.go github.com/lacs-team/appfun-api/internal/core CatalogClient
