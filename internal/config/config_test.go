package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CLAIM_HOLD", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SUPERADMIN_WALLETS", "")
	t.Setenv("MINIO_ENDPOINT", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.ClaimHold)
	assert.NoError(t, cfg.CheckJWTSecret())
	assert.Empty(t, cfg.SuperadminWallets)
	assert.False(t, cfg.MinioEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("CLAIM_HOLD", "45m")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SUPERADMIN_WALLETS", " 0xAbc , ,0xdef")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 45*time.Minute, cfg.ClaimHold)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, []string{"0xAbc", "0xdef"}, cfg.SuperadminWallets)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadConfigRejectsUnknownDriverAndBadHold(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("CLAIM_HOLD", "-5m")

	cfg := LoadConfig()

	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.ClaimHold)
}

func TestJWTSecretRequiredOutsideMemoryDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	t.Setenv("STORE_DRIVER", "mongo")
	cfg := LoadConfig()
	assert.Empty(t, cfg.JWTSecret)
	assert.ErrorIs(t, cfg.CheckJWTSecret(), ErrMissingJWTSecret)

	t.Setenv("STORE_DRIVER", "memory")
	cfg = LoadConfig()
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.NoError(t, cfg.CheckJWTSecret())
}

func TestGoogleEnabled(t *testing.T) {
	cfg := &Config{GoogleClientID: "id", GoogleClientSecret: "secret"}
	assert.False(t, cfg.GoogleEnabled())
	cfg.GoogleRedirectURL = "http://localhost:8080/api/auth/google/callback"
	assert.True(t, cfg.GoogleEnabled())
}
