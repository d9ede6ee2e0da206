package authcore

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with keys",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "token leeway valid",
			mutate: func(c *Config) {
				c.Token.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "token leeway invalid",
			mutate: func(c *Config) {
				c.Token.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "token signing hs256 valid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "hs256"
				c.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
			},
			wantValid: true,
		},
		{
			name: "token signing invalid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 without private key",
			mutate: func(c *Config) {
				c.Token.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl zero",
			mutate: func(c *Config) {
				c.Refresh.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh prefix empty",
			mutate: func(c *Config) {
				c.Refresh.RedisPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "password cost too low",
			mutate: func(c *Config) {
				c.Password.Cost = 4
			},
			wantValid: false,
		},
		{
			name: "password workers zero",
			mutate: func(c *Config) {
				c.Password.Workers = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "refresh throttle without attempts",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = true
				c.Security.MaxRefreshAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "production mode requires audit",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
			},
			wantValid: false,
		},
		{
			name: "production mode complete",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Audit.Enabled = true
			},
			wantValid: true,
		},
		{
			name: "production mode rejects hs256",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Audit.Enabled = true
				c.Token.SigningMethod = "hs256"
				c.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
			},
			wantValid: false,
		},
		{
			name: "production mode rejects long access ttl",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Audit.Enabled = true
				c.Token.AccessTTL = 2 * time.Hour
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token.VerifyKeys = map[string][]byte{"k1": append([]byte(nil), cfg.Token.PublicKey...)}

	clone := cloneConfig(cfg)

	clone.Token.PrivateKey[0] ^= 0xff
	clone.Token.PublicKey[0] ^= 0xff
	clone.Token.VerifyKeys["k1"][0] ^= 0xff

	if cfg.Token.PrivateKey[0] == clone.Token.PrivateKey[0] {
		t.Fatal("private key must be deep-copied")
	}
	if cfg.Token.PublicKey[0] == clone.Token.PublicKey[0] {
		t.Fatal("public key must be deep-copied")
	}
	if cfg.Token.VerifyKeys["k1"][0] == clone.Token.VerifyKeys["k1"][0] {
		t.Fatal("verify keys must be deep-copied")
	}
}
