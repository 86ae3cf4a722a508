package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	for k, v := range kv {
		t.Setenv(k, v)
	}
	_ = os.Unsetenv("UNRELATED")
}

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":   "user:pass@tcp(127.0.0.1:3306)/objectmail",
		"EMAIL_PROVIDER": "generic",
		"EMAIL_HOST":     "imap.example.com",
		"EMAIL_USER":     "bot@example.com",
		"EMAIL_PASSWORD": "secret",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	setEnv(t, baseEnv())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 18, cfg.ChunkSizeMB)
	assert.Equal(t, 4, cfg.EmailPoolSize)
	assert.Equal(t, "Drafts", cfg.EmailDraftsFolder)
}

func TestLoadAddrOverride(t *testing.T) {
	setEnv(t, baseEnv())
	cfg, err := Load("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadRejectsBadChunkSize(t *testing.T) {
	env := baseEnv()
	env["CHUNK_SIZE_MB"] = "30"
	setEnv(t, env)
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	delete(env, "DATABASE_URL")
	setEnv(t, env)
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	env := baseEnv()
	env["EMAIL_PROVIDER"] = "outlook"
	setEnv(t, env)
	_, err := Load("")
	assert.Error(t, err)
}

func TestChunkSizeBytes(t *testing.T) {
	setEnv(t, baseEnv())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 18*1024*1024, cfg.ChunkSizeBytes())
}
