package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decoyworks/honeypot/internal/config"
)

func TestAnalyticsService_Summary(t *testing.T) {
	db := openTestDB(t)
	cfg := testHoneypotConfig()
	scans := NewScanLogger(db, nil, cfg, config.DefaultSignatures())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := scans.Log(ctx, scannerRequest("203.0.113.60", "/wp-login.php"))
		require.True(t, ok)
	}
	noisy := scannerRequest("203.0.113.61", "/phpmyadmin")
	noisy.Headers.Set("User-Agent", "Nikto/2.5.0")
	_, ok := scans.Log(ctx, noisy)
	require.True(t, ok)
	_, ok = scans.Log(ctx, scannerRequest("203.0.113.61", "/.env"))
	require.True(t, ok)

	NewEscalationService(db, cfg, nil).Escalate(ctx, "fp-x", 90, "")

	a, err := NewAnalyticsService(db).Summary(ctx, 0, 0)
	require.NoError(t, err)

	stats := a.ScanStats
	assert.EqualValues(t, 5, stats.TotalAttempts)
	assert.EqualValues(t, 2, stats.UniqueIPs)
	assert.EqualValues(t, 3, stats.UniqueClients)
	require.NotEmpty(t, stats.TopPaths)
	assert.Equal(t, CountByKey{Key: "/wp-login.php", Count: 3}, stats.TopPaths[0])
	assert.Equal(t, CountByKey{Key: "203.0.113.60", Count: 3}, stats.TopIPs[0])
	assert.Equal(t, "wordpress", stats.TopCategories[0].Key)
	assert.Len(t, stats.RecentActivity, 5)
	assert.Equal(t, "/.env", stats.RecentActivity[0].Path)

	require.Len(t, a.Watchlist, 3)
	assert.Equal(t, "203.0.113.61", a.Watchlist[0].IP, "scanner user agent has the highest severity")
	assert.EqualValues(t, 1, a.ActiveBlocks)
}

func TestAnalyticsService_Profile(t *testing.T) {
	db := openTestDB(t)
	cfg := testHoneypotConfig()
	scans := NewScanLogger(db, nil, cfg, config.DefaultSignatures())
	ctx := context.Background()

	var fp string
	for _, p := range []string{"/a", "/b", "/c"} {
		fp, _ = scans.Log(ctx, scannerRequest("203.0.113.62", p))
	}

	svc := NewAnalyticsService(db)
	profile, err := svc.Profile(ctx, NewThreatScorer(db, cfg), fp)
	require.NoError(t, err)
	assert.EqualValues(t, 3, profile.Entry.Count)
	require.Len(t, profile.Entry.RecentPaths, 3)
	assert.Equal(t, "/c", profile.Entry.RecentPaths[0].Path)
	assert.Positive(t, profile.Score.Total)

	_, err = svc.Profile(ctx, NewThreatScorer(db, cfg), "missing")
	assert.Error(t, err)
}
