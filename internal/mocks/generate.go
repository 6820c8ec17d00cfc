// Package mocks provides mock implementations for testing the auth session system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the network-facing ports. Hand-written doubles for the simpler store/cache
// ports live in mocks/auth.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	client := mocks.NewMockTokenClient(ctrl)
//	client.EXPECT().Login(gomock.Any(), gomock.Any()).Return(session, nil)
package mocks

// Generate mock for TokenClient, the network boundary of the session
// service. This creates MockTokenClient with methods for:
// Login, Register, VerifyEmail, ForgotPassword, ResetPassword, Profile, UpdateProfile, Logout
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_client_mock.go github.com/campusworks/campus-ui-api/internal/ports TokenClient

// Generate mock for TokenRefresher, used by the refreshing transport tests.
// This creates MockTokenRefresher with methods for: Refresh
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_refresher_mock.go github.com/campusworks/campus-ui-api/internal/ports TokenRefresher
