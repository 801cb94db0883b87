package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HONEYPOT_DB_DSN", filepath.Join(dir, "data", "test.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 5, cfg.Honeypot.RateLimit)
	assert.Equal(t, 60*time.Second, cfg.Honeypot.RatePeriod)
	assert.True(t, cfg.Honeypot.BlockByIP)
	assert.Equal(t, 5, cfg.Admin.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Admin.BaseBackoff)
	assert.Equal(t, 24*time.Hour, cfg.Admin.MaxBackoff)
	assert.Equal(t, time.Hour, cfg.Admin.SessionTimeout)
	assert.True(t, cfg.SecretKeyGenerated)
	assert.Len(t, cfg.SecretKey, 64)

	require.Len(t, cfg.Honeypot.Tiers, 2)
	assert.Equal(t, 85, cfg.Honeypot.Tiers[0].MinScore)
	assert.Equal(t, 7*24*time.Hour, cfg.Honeypot.Tiers[0].Duration)
	assert.Equal(t, 60, cfg.Honeypot.Tiers[1].MinScore)
	assert.Equal(t, 24*time.Hour, cfg.Honeypot.Tiers[1].Duration)

	_, err = os.Stat(filepath.Join(dir, "data"))
	assert.NoError(t, err)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HONEYPOT_DB_DSN", filepath.Join(dir, "hp.db"))
	t.Setenv("HONEYPOT_RATE_LIMIT", "10")
	t.Setenv("HONEYPOT_RATE_PERIOD", "99")
	t.Setenv("HONEYPOT_BLOCK_MEDIUM_DURATION", "12h")
	t.Setenv("HONEYPOT_STORE_TIMEOUT", "2")
	t.Setenv("HONEYPOT_BLOCK_BY_IP", "false")
	t.Setenv("HONEYPOT_NOTIFY_URLS", "discord://token@id, ,generic://example.com")
	t.Setenv("SECRET_KEY", "configured")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Honeypot.RateLimit)
	assert.Equal(t, 99*time.Second, cfg.Honeypot.RatePeriod)
	assert.Equal(t, 12*time.Hour, cfg.Honeypot.Tiers[1].Duration)
	assert.Equal(t, 2*time.Second, cfg.Honeypot.StoreTimeout)
	assert.False(t, cfg.Honeypot.BlockByIP)
	assert.Equal(t, []string{"discord://token@id", "generic://example.com"}, cfg.Notify.URLs)
	assert.Equal(t, "configured", cfg.SecretKey)
	assert.False(t, cfg.SecretKeyGenerated)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HONEYPOT_DB_DRIVER", "mongodb")

	_, err := Load()
	assert.Error(t, err)
}

func TestSortedTiersAndLowestScore(t *testing.T) {
	hp := HoneypotConfig{Tiers: []EscalationTier{
		{Name: "medium", MinScore: 60, Duration: time.Hour},
		{Name: "high", MinScore: 85, Duration: 2 * time.Hour},
	}}

	sorted := hp.SortedTiers()
	assert.Equal(t, "high", sorted[0].Name)
	assert.Equal(t, "medium", sorted[1].Name)
	assert.Equal(t, "medium", hp.Tiers[0].Name, "original slice untouched")
	assert.Equal(t, 60, hp.LowestTierScore())
	assert.Equal(t, -1, HoneypotConfig{}.LowestTierScore())
}

func TestLoadSignaturesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanner_signatures:\n  - Nuclei\n  - wpscan\n"), 0o600))

	sigs, err := LoadSignatures(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"nuclei", "wpscan"}, sigs.ScannerSignatures)
	assert.Equal(t, DefaultSignatures().BotStrings, sigs.BotStrings)
}

func TestLoadSignaturesErrors(t *testing.T) {
	_, err := LoadSignatures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot_strings: [unclosed"), 0o600))
	_, err = LoadSignatures(path)
	assert.Error(t, err)
}

func TestMatchAny(t *testing.T) {
	needle, ok := MatchAny("Mozilla/5.0 Nikto/2.1.6", DefaultSignatures().ScannerSignatures)
	assert.True(t, ok)
	assert.Equal(t, "nikto", needle)

	_, ok = MatchAny("Mozilla/5.0 (Windows NT 10.0)", DefaultSignatures().ScannerSignatures)
	assert.False(t, ok)
}
