package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SERVER_URL", "")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, int64(8<<20), cfg.MaxFileBytes())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "Research Blog", cfg.Mail.FromName)
	assert.Equal(t, "http://localhost:9000/research-blog", cfg.Storage.PublicURL)
	assert.Empty(t, cfg.JWTSecret)
}

func TestParse_FromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_URL", "https://api.example.com/")
	t.Setenv("CLIENT_URL", "")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("STORAGE_PUBLIC_URL", "https://cdn.example.com/")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "https://api.example.com", cfg.ServerURL)
	assert.Equal(t, "https://api.example.com", cfg.ClientURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "https://cdn.example.com", cfg.Storage.PublicURL)
}

func TestParse_InvalidNumber(t *testing.T) {
	t.Setenv("BCRYPT_COST", "ten")

	_, err := Parse()
	assert.Error(t, err)
}
