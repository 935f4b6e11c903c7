package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconware/sweeper/internal/config"
)

func TestParseCron(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
		ok       bool
	}{
		{"valid_5_fields", "*/15 * * * *", true},
		{"valid_nightly", "0 2 * * *", true},
		{"macro_daily", "@daily", true},
		{"macro_every", "@every 4h", true},
		{"invalid_minute", "61 * * * *", false},
		{"invalid_field_count", "* * * *", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			err := config.ParseCron(tc.given)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
		want     time.Duration
		ok       bool
	}{
		{"seconds", "90s", 90 * time.Second, true},
		{"minutes", "15m", 15 * time.Minute, true},
		{"mixed", "1h30m", 90 * time.Minute, true},
		{"days", "1d12h", 36 * time.Hour, true},
		{"empty", "", 0, false},
		{"unordered", "30m1h", 0, false},
		{"prose", "15 minutes", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			got, err := config.ParseDuration(tc.given)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
