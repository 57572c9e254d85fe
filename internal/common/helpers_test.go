package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatCoins(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{100, "+100 RateCoins"},
		{1, "+1 RateCoin"},
		{0, "+0 RateCoins"},
		{-1, "-1 RateCoin"},
		{-200, "-200 RateCoins"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatCoins(tt.amount))
	}
	require.Equal(t, "day", PluralizeDays(1))
	require.Equal(t, "days", PluralizeDays(7))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC — уже следующий день в UTC+3
	ts := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)

	require.True(t, StartOfDay(ts, loc).Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, loc)))
	require.True(t, StartOfDay(ts, time.UTC).Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, time.UTC, LoadLocation("Nowhere/Invalid"))
}

func TestCooldownBlockedErrorUnwraps(t *testing.T) {
	err := &CooldownBlockedError{BypassCost: 200, AvailableAt: time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)}

	require.ErrorIs(t, err, ErrCooldownBlocked)
	require.Contains(t, err.Error(), "pay 200 RateCoins")
	require.True(t, IsValidation(NewValidationError("value", "out of range")))
	require.False(t, IsValidation(err))
}
