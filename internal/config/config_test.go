package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobsift")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ledger", cfg.LedgerDir)
	assert.Equal(t, 2*time.Second, cfg.ItemDelay)
	assert.Equal(t, 10000, cfg.TaxonomyCap)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobsift")
	t.Setenv("ITEM_DELAY", "500ms")
	t.Setenv("TAXONOMY_CAP", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.ItemDelay)
	assert.Equal(t, 50, cfg.TaxonomyCap)
}

func TestLoadRejectsNonPositiveTaxonomyCap(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobsift")

	for _, cap := range []string{"0", "-5"} {
		t.Setenv("TAXONOMY_CAP", cap)
		_, err := Load()
		require.Error(t, err, "TAXONOMY_CAP=%s", cap)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}
