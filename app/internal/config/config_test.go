package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearSecrets blanks the secret-bearing variables so ambient values do not
// leak into a test.
func clearSecrets(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "PERPLEXITY_API_KEY", "HUGGINGFACE_API_KEY", "ADMIN_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestGetConfig_Singleton(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg1 := config.GetConfig()
	require.NotNil(t, cfg1)
	cfg2 := config.GetConfig()
	assert.Same(t, cfg1, cfg2)
}

func TestLoad_Defaults(t *testing.T) {
	clearSecrets(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "memory", cfg.Repository.Type)
	assert.Equal(t, "sqlite", cfg.Registry.DBType)
	assert.Equal(t, 30*time.Second, cfg.Providers.CallTimeout)
	assert.Equal(t, 20, cfg.RateLimit.Limit)
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "claude", cfg.Council.Chairman)
	assert.Len(t, cfg.Council.Members, 3)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9000
admins: [root, ops]
council:
  name: Small Council
  chairman: solo
  members:
    - id: solo
      name: Solo
      provider: openai
      model: gpt-4o-mini
`), 0o600))
	clearSecrets(t)
	t.Setenv("BREAKER_THRESHOLD", "2")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 2, cfg.Breaker.Threshold)
	assert.Equal(t, "Small Council", cfg.Council.Name)
	require.Len(t, cfg.Council.Members, 1)
	assert.Equal(t, "gpt-4o-mini", cfg.Council.Members[0].Model)
	assert.True(t, cfg.IsAdmin("ops"))
	assert.False(t, cfg.IsAdmin("guest"))
	assert.Equal(t, map[string]string{"openai": "sk-test"}, cfg.APIKeys())
}

func TestSave_RoundTripWithoutKeys(t *testing.T) {
	clearSecrets(t)
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	t.Setenv("ADMIN_TOKEN", "admin-secret")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.HTTP.Port = 7070

	path := filepath.Join(t.TempDir(), "saved.yml")
	require.NoError(t, config.Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret")
	assert.NotContains(t, string(raw), "admin-secret")

	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ADMIN_TOKEN", "")
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, loaded.HTTP.Port)
	assert.Equal(t, cfg.Council, loaded.Council)
	assert.Empty(t, loaded.APIKeys())
	assert.Empty(t, loaded.AdminToken)
}
