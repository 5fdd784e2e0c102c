package stripe

import (
	"context"
	"testing"

	"github.com/GoStans-Co/gostans-backend/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnv(t *testing.T) {
	cases := map[string]struct {
		cfg     config.StripeConfig
		wantErr bool
		wantEnv string
	}{
		"test key in test env": {
			cfg:     config.StripeConfig{APIKey: "sk_test_abc", Env: "test"},
			wantEnv: "test",
		},
		"restricted test key": {
			cfg:     config.StripeConfig{APIKey: "rk_test_abc", Env: "test"},
			wantEnv: "test",
		},
		"live key in live env": {
			cfg:     config.StripeConfig{APIKey: "sk_live_abc", Env: "live"},
			wantEnv: "live",
		},
		"env defaults to test": {
			cfg:     config.StripeConfig{APIKey: "sk_test_abc"},
			wantEnv: "test",
		},
		"live key in test env": {
			cfg:     config.StripeConfig{APIKey: "sk_live_abc", Env: "test"},
			wantErr: true,
		},
		"test key in live env": {
			cfg:     config.StripeConfig{APIKey: "sk_test_abc", Env: "live"},
			wantErr: true,
		},
		"missing key": {
			cfg:     config.StripeConfig{Env: "test"},
			wantErr: true,
		},
		"unknown env": {
			cfg:     config.StripeConfig{APIKey: "sk_test_abc", Env: "staging"},
			wantErr: true,
		},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Environment() != tt.wantEnv {
				t.Fatalf("expected env %q, got %q", tt.wantEnv, client.Environment())
			}
		})
	}
}
