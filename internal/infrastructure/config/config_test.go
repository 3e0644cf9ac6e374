package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, "account-api", cfg.Auth.JWTIssuer)
	require.Equal(t, 5, cfg.Auth.LoginMaxFailures)
	require.Equal(t, 15*time.Minute, cfg.Auth.LoginLockout)
	require.Equal(t, "accounts", cfg.Mongo.Database)
	require.Equal(t, 5.0, cfg.RateLimit.RPS)
	require.Equal(t, 10, cfg.RateLimit.Burst)
	require.True(t, cfg.IsDevelopment(), "expected development by default")
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":     "s3cret",
		"TOKEN_TTL":      "2h",
		"ENV":            "production",
		"ADMIN_USERNAME": "root",
		"AUDIT_WORKERS":  "8",
	}))
	require.NoError(t, err)

	require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	require.False(t, cfg.IsDevelopment())
	require.Equal(t, "root", cfg.Auth.AdminUsername)
	require.Equal(t, 8, cfg.Audit.Workers)
}

func TestLoadWith_RequiresSecret(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.Error(t, err, "JWT_SECRET is required")
}
