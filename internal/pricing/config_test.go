package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeServiceType(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"dump_run", ServiceHaulAway, true},
		{"junk_removal", ServiceHaulAway, true},
		{"junk", ServiceHaulAway, true},
		{"haulaway", ServiceHaulAway, true},
		{"moving", ServiceSmallMove, true},
		{"small_moving", ServiceSmallMove, true},
		{"delivery", ServiceItemDelivery, true},
		{"haul_away", ServiceHaulAway, true},
		{"scrap_pickup", ServiceScrapPickup, true},
		{"demolition", ServiceDemolition, true},
		{"lawn_care", "lawn_care", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeServiceType(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 7, "gas_minimum": 35}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Version)
	assert.Equal(t, 35.0, cfg.GasMinimum)
	// Untouched fields keep default values.
	assert.Equal(t, 0.13, cfg.EMTTaxRate)
	assert.Equal(t, 30.0, cfg.ScrapInside)
}

func TestLoadConfigBadFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
