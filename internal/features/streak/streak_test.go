package streak

import (
	"context"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

func ptr(t time.Time) *time.Time { return &t }

func TestShouldOffer(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		streak  Streak
		session string
		want    bool
	}{
		{"fresh session", Streak{}, "s1", true},
		{"no session id", Streak{}, "", false},
		{"already offered in session", Streak{OfferSession: "s1", PendingDay: 1}, "s1", false},
		{"new session after yesterday claim", Streak{OfferSession: "s0", LastClaimedAt: ptr(now.Add(-24 * time.Hour))}, "s1", true},
		{"claimed today", Streak{OfferSession: "s0", LastClaimedAt: ptr(now.Add(-time.Hour))}, "s1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ShouldOffer(&tt.streak, tt.session, now, time.UTC))
		})
	}
}

func TestIsBroken(t *testing.T) {
	midnight := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)

	require.False(t, (&Streak{StreakDays: 0}).IsBroken(midnight, time.UTC))
	require.True(t, (&Streak{StreakDays: 3}).IsBroken(midnight, time.UTC))
	require.False(t, (&Streak{StreakDays: 3, LastActiveAt: ptr(midnight.Add(-2 * time.Hour))}).IsBroken(midnight, time.UTC))
	require.True(t, (&Streak{StreakDays: 3, LastActiveAt: ptr(midnight.Add(-25 * time.Hour))}).IsBroken(midnight, time.UTC))
}

type fakeBreaker struct {
	before time.Time
}

func (f *fakeBreaker) BreakInactive(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 2, nil
}

func TestDailyBreak(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	now := time.Date(2024, 5, 11, 0, 0, 5, 0, loc)
	fb := &fakeBreaker{}

	svc := NewService(fb, loc, func() time.Time { return now })
	n, err := svc.DailyBreak(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.True(t, fb.before.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, loc)))
}
