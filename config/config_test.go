package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("DB_NAME", "recipes")
	t.Setenv("DB_SSL_MODE", "disable")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("AI_MAX_CONCURRENT", "4")
	t.Setenv("USE_PGBOUNCER", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "db", cfg.DBHost)
	assert.Equal(t, "5433", cfg.DBPort)
	assert.Equal(t, "postgres", cfg.DBUser)
	assert.Equal(t, "recipes", cfg.DBName)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 4, cfg.AIMaxConcurrent)
	assert.False(t, cfg.UsePgBouncer)
}

func TestLoadConfigWithDefaults(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("ENV", "development")
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/recipes")
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 2, cfg.DBMinConns)
	assert.Equal(t, 20, cfg.DBMaxConns)
	assert.Equal(t, 60*time.Second, cfg.AITimeout)
	assert.Equal(t, 10, cfg.AIMaxConcurrent)
	assert.Equal(t, 30, cfg.BackupRetention)
	assert.Equal(t, "0 2 * * *", cfg.BackupSchedule)
	assert.Equal(t, "0 3 * * 0", cfg.MaintenanceCron)
	assert.Equal(t, developmentJWTSecret, cfg.JWTSecret)
}

func TestLoadConfigReadsSecrets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("from-secret\n"), 0o600))
	t.Setenv("CI", "")
	t.Setenv("SECRETS_DIR", dir)
	t.Setenv("DATABASE_URL", "postgres://localhost/recipes")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-secret", cfg.JWTSecret)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n",
		PgBouncerURL: "postgres://pgbouncer:6432/n",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())

	cfg.UsePgBouncer = true
	assert.Equal(t, "postgres://pgbouncer:6432/n", cfg.DSN())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DirectDSN())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		env     Environment
		wantErr bool
	}{
		{
			name: "development fills in jwt secret",
			cfg:  Config{DBName: "recipes", DBMinConns: 2, DBMaxConns: 20},
			env:  Development,
		},
		{
			name:    "production requires jwt secret",
			cfg:     Config{DBName: "recipes", DBMinConns: 2, DBMaxConns: 20},
			env:     Production,
			wantErr: true,
		},
		{
			name:    "pgbouncer without url",
			cfg:     Config{DBName: "recipes", UsePgBouncer: true, JWTSecret: "s"},
			env:     Development,
			wantErr: true,
		},
		{
			name:    "missing database",
			cfg:     Config{JWTSecret: "s"},
			env:     Development,
			wantErr: true,
		},
		{
			name:    "min conns above max",
			cfg:     Config{DBName: "recipes", DBMinConns: 30, DBMaxConns: 20, JWTSecret: "s"},
			env:     Development,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(&tt.cfg, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("ENV", "")
	t.Setenv("NODE_ENV", "production")
	assert.Equal(t, Production, GetEnvironment())

	t.Setenv("ENV", "test")
	assert.Equal(t, Test, GetEnvironment())

	t.Setenv("CI", "true")
	assert.Equal(t, CI, GetEnvironment())
}
