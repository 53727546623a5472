package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:  "single service - session-refresh",
			input: "session-refresh",
			expected: map[ServiceMode]bool{
				ServiceModeSessionRefresh: true,
			},
			expectError: false,
		},
		{
			name:  "multiple services",
			input: "http,session-refresh",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeSessionRefresh: true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " http , session-refresh ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeSessionRefresh: true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "http,http,session-refresh",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeSessionRefresh: true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name            string
		services        string
		expectedHTTP    bool
		expectedRefresh bool
	}{
		{
			name:            "default - http only",
			services:        "http",
			expectedHTTP:    true,
			expectedRefresh: false,
		},
		{
			name:            "http and session-refresh",
			services:        "http,session-refresh",
			expectedHTTP:    true,
			expectedRefresh: true,
		},
		{
			name:            "session-refresh only",
			services:        "session-refresh",
			expectedHTTP:    false,
			expectedRefresh: true,
		},
		{
			name:            "invalid configuration",
			services:        "invalid-service",
			expectedHTTP:    false,
			expectedRefresh: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}

			if cfg.IsSessionRefreshEnabled() != tt.expectedRefresh {
				t.Errorf(
					"IsSessionRefreshEnabled(): expected %v, got %v",
					tt.expectedRefresh,
					cfg.IsSessionRefreshEnabled(),
				)
			}
		})
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "supabase")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	t.Setenv("SUPABASE_REQUEST_TIMEOUT", "15s")
	t.Setenv("SESSION_DURATION", "24h")
	t.Setenv("SESSION_REMEMBER_ME_DURATION", "168h")
	t.Setenv("REVIEW_ENABLED", "true")
	t.Setenv("REVIEW_ALLOW_ANONYMOUS_PATHS", "/;/about;/software/*")
	t.Setenv("OFFLINE_AUTH_EMAIL", "dev@example.com")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode: AuthModeSupabase,
		Supabase: SupabaseConfig{
			URL:            "https://project.supabase.co",
			AnonKey:        "anon-key",
			RequestTimeout: 15 * time.Second,
			JWKSPath:       "/auth/v1/.well-known/jwks.json",
		},
		Offline: OfflineAuthConfig{
			UserID:   "offline-user",
			Email:    "dev@example.com",
			Username: "dev",
			FullName: "Dev User",
		},
		Session: SessionConfig{
			Duration:           24 * time.Hour,
			RememberMeDuration: 168 * time.Hour,
			RenewWithin:        24 * time.Hour,
			RefreshInterval:    5 * time.Minute,
			StorageKey:         "appfun:auth:session",
		},
		Review: ReviewConfig{
			Enabled:             true,
			Notice:              "App is under review",
			AllowAnonymousPaths: []string{"/", "/about", "/software/*"},
		},
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	if err := m.UnmarshalText([]byte("OFFLINE")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != AuthModeOffline {
		t.Fatalf("expected offline, got %q", m)
	}

	if err := m.UnmarshalText([]byte("basic")); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	cfg := SessionConfig{
		Duration:           0,
		RememberMeDuration: time.Hour,
		RefreshInterval:    time.Second,
	}

	cfg.Sanitize()

	if cfg.Duration != 24*time.Hour {
		t.Fatalf("expected duration fallback, got %v", cfg.Duration)
	}
	if cfg.RememberMeDuration < cfg.Duration {
		t.Fatalf("expected remember-me duration >= duration, got %v", cfg.RememberMeDuration)
	}
	if cfg.RefreshInterval < 10*time.Second {
		t.Fatalf("expected refresh interval clamp, got %v", cfg.RefreshInterval)
	}
	if cfg.StorageKey == "" {
		t.Fatal("expected storage key default")
	}
}

func TestCatalogConfig_Sanitize(t *testing.T) {
	cfg := CatalogConfig{Timeout: 0}
	cfg.Sanitize()
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("expected timeout default, got %v", cfg.Timeout)
	}

	cfg = CatalogConfig{Timeout: 5 * time.Minute}
	cfg.Sanitize()
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("expected oversized timeout clamp, got %v", cfg.Timeout)
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{
		ServiceModeHTTP,
		ServiceModeSessionRefresh,
	}

	if len(modes) != len(expected) {
		t.Errorf("expected %d service modes, got %d", len(expected), len(modes))
	}

	for i, mode := range modes {
		if mode != expected[i] {
			t.Errorf("expected service mode %s at index %d, got %s", expected[i], i, mode)
		}
	}
}
