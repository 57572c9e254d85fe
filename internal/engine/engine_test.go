package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/engine"
	"rateme.app/engine/internal/features/admin"
	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/members"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/poll"
	"rateme.app/engine/internal/features/rating"
	"rateme.app/engine/internal/features/rewards"
	"rateme.app/engine/internal/features/streak"
	"rateme.app/engine/internal/testutil"
)

func init() {
	log.SetOutput(io.Discard)
}

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	eng   *engine.Engine
	store *testutil.MemStore
	hub   *notify.Hub
	now   time.Time
	ctx   context.Context
}

func testSettings() engine.Settings {
	return engine.Settings{
		DefaultScale:   5,
		Cooldown:       cooldown.Gate{Period: 7 * 24 * time.Hour, BypassCost: 200},
		RewardRate:     10,
		RewardRated:    5,
		RewardDescribe: 50,
		RewardPost:     100,
		RewardPoll:     50,
		Location:       time.UTC,
	}
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	f := &fixture{now: t0, ctx: context.Background(), hub: notify.NewHub(16)}
	clock := func() time.Time { return f.now }
	f.store = testutil.NewMemStore(clock)

	opts = append([]engine.Option{engine.WithClock(clock), engine.WithPublisher(f.hub)}, opts...)
	f.eng = engine.New(f.store.Stores(), testSettings(), mustCalc(t), opts...)
	return f
}

func (f *fixture) members(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, f.eng.RegisterMember(f.ctx, &members.Member{ID: name, Username: name}))
	}
}

func (f *fixture) post(t *testing.T, creator string) string {
	t.Helper()
	p, _, err := f.eng.CreatePost(f.ctx, creator, "https://cdn.example/"+creator+".jpg", "")
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) rate(t *testing.T, rater string, kind rating.TargetKind, target string, value float64) *engine.RatingResult {
	t.Helper()
	res, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
		RaterID:    rater,
		TargetID:   target,
		TargetKind: kind,
		Value:      value,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.eng.Balance(f.ctx, userID)
	require.NoError(t, err)
	return b.Balance
}

func TestRatePostEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob", "carol", "dave")
	p1 := f.post(t, "bob")

	f.rate(t, "carol", rating.TargetPost, p1, 4)
	f.rate(t, "dave", rating.TargetPost, p1, 4)

	res := f.rate(t, "alice", rating.TargetPost, p1, 5)

	require.InDelta(t, 13.0/3.0, res.Aggregate.Average, 1e-9)
	require.Equal(t, 3, res.Aggregate.Count)
	require.Equal(t, int64(10), res.CoinsAwarded)
	require.Equal(t, int64(10), f.balance(t, "alice"))
	// 100 за пост и по 5 за каждую из трёх оценок
	require.Equal(t, int64(115), f.balance(t, "bob"))

	post, err := f.store.GetPost(f.ctx, p1, false)
	require.NoError(t, err)
	require.InDelta(t, 13.0/3.0, post.AverageRating, 1e-9)
	require.Equal(t, 3, post.RatingCount)

	n := res.Notification
	require.NotNil(t, n)
	require.Equal(t, notify.TypeRating, n.Type)
	require.Equal(t, "bob", n.RecipientID)
	require.Equal(t, "alice", n.ActorID)
	require.Equal(t, 5.0, n.Score)
	require.Equal(t, p1, n.PostID)
	require.Equal(t, "🔥", n.Emoji)
}

func TestDescribeSharedCounter(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob", "carol", "dave")

	for _, rater := range []string{"carol", "dave"} {
		_, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
			RaterID: rater, TargetID: "bob", TargetKind: rating.TargetUser, Value: 3,
			Badges: badges.Scores{badges.Intelligence: 3},
		})
		require.NoError(t, err)
	}

	res, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
		RaterID: "alice", TargetID: "bob", TargetKind: rating.TargetUser, Value: 4,
		Badges: badges.Scores{badges.Intelligence: 4},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Badges)
	require.InDelta(t, 10.0/3.0, res.Badges.Averages[badges.Intelligence], 1e-9)
	require.Equal(t, 3, res.Badges.Count)
	require.Zero(t, res.Badges.Averages[badges.Humor])
	require.Equal(t, int64(50), res.CoinsAwarded)

	require.Equal(t, notify.TypeDescribed, res.Notification.Type)
	require.Equal(t, "bob", res.Notification.RecipientID)
	require.Equal(t, 4.0, res.Notification.BadgeScores[badges.Intelligence])

	profile, err := f.eng.Profile(f.ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 3, profile.Badges.Count)
	require.Equal(t, 3, profile.Member.TotalRatings)
	require.InDelta(t, 10.0/3.0, profile.Member.AverageScore, 1e-9)
}

func TestSelfRating(t *testing.T) {
	f := newFixture(t)
	f.members(t, "bob")
	p := f.post(t, "bob")

	res := f.rate(t, "bob", rating.TargetPost, p, 5)

	require.Nil(t, res.Notification)
	require.Zero(t, res.CoinsAwarded)
	require.Equal(t, 1, res.Aggregate.Count)
	require.Empty(t, f.store.AllNotifications())
	require.Equal(t, int64(100), f.balance(t, "bob"))
}

func TestOverwriteKeepsOneRatingPerRater(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")

	first := f.rate(t, "alice", rating.TargetPost, p, 2)
	second := f.rate(t, "alice", rating.TargetPost, p, 4)

	require.Equal(t, first.Rating.ID, second.Rating.ID)
	require.Equal(t, rating.Aggregate{Average: 4, Count: 1}, second.Aggregate)
	require.Zero(t, second.CoinsAwarded)
	require.Equal(t, int64(10), f.balance(t, "alice"))
}

func TestScaleConversion(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")

	res, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
		RaterID: "alice", TargetID: p, TargetKind: rating.TargetPost, Value: 8, Scale: 10,
	})
	require.NoError(t, err)
	require.Equal(t, 4.0, res.Rating.Value)
}

func TestSubmitRatingValidation(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")

	tests := []struct {
		name string
		req  engine.SubmitRatingRequest
	}{
		{"above scale", engine.SubmitRatingRequest{TargetID: p, TargetKind: rating.TargetPost, Value: 6}},
		{"negative", engine.SubmitRatingRequest{TargetID: p, TargetKind: rating.TargetPost, Value: -1}},
		{"unsupported scale", engine.SubmitRatingRequest{TargetID: p, TargetKind: rating.TargetPost, Value: 3, Scale: 7}},
		{"empty target", engine.SubmitRatingRequest{TargetKind: rating.TargetPost, Value: 3}},
		{"unknown kind", engine.SubmitRatingRequest{TargetID: p, TargetKind: "story", Value: 3}},
		{"badges on post", engine.SubmitRatingRequest{TargetID: p, TargetKind: rating.TargetPost, Value: 3,
			Badges: badges.Scores{badges.Humor: 4}}},
		{"unknown badge", engine.SubmitRatingRequest{TargetID: "bob", TargetKind: rating.TargetUser, Value: 3,
			Badges: badges.Scores{"Wisdom": 4}}},
		{"badge out of range", engine.SubmitRatingRequest{TargetID: "bob", TargetKind: rating.TargetUser, Value: 3,
			Badges: badges.Scores{badges.Humor: 5.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.RaterID = "alice"
			_, err := f.eng.SubmitRating(f.ctx, tt.req)
			require.Error(t, err)
			require.True(t, common.IsValidation(err), err)
		})
	}

	_, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
		RaterID: "alice", TargetID: "missing", TargetKind: rating.TargetPost, Value: 3,
	})
	require.ErrorIs(t, err, common.ErrTargetNotFound)

	_, err = f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
		RaterID: "alice", TargetID: "nobody", TargetKind: rating.TargetUser, Value: 3,
	})
	require.ErrorIs(t, err, common.ErrTargetNotFound)
	require.Empty(t, f.store.AllNotifications())
}

func TestStreakMultiplierUsesReceiver(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	f.store.SetStreakDays("alice", 20)
	f.store.SetStreakDays("bob", 3)
	p := f.post(t, "bob") // floor(100 × 1.15)

	res := f.rate(t, "alice", rating.TargetPost, p, 3)

	require.Equal(t, int64(20), res.CoinsAwarded)
	require.Equal(t, int64(20), f.balance(t, "alice"))
	require.Equal(t, int64(115+5), f.balance(t, "bob"))
}

func TestAwardCoins(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice")

	got, err := f.eng.AwardCoins(f.ctx, "alice", 100, "test")
	require.NoError(t, err)
	require.Equal(t, int64(100), got)

	f.store.SetStreakDays("alice", 20)
	got, err = f.eng.AwardCoins(f.ctx, "alice", 100, "test")
	require.NoError(t, err)
	require.Equal(t, int64(200), got)
	require.Equal(t, int64(300), f.balance(t, "alice"))

	_, err = f.eng.AwardCoins(f.ctx, "alice", -1, "test")
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = f.eng.AwardCoins(f.ctx, "ghost", 10, "test")
	require.ErrorIs(t, err, common.ErrUserNotFound)

	txs, err := f.eng.Transactions(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, int64(200), txs[0].Amount)
}

func TestCooldownAndBypass(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")

	describe := func(value float64, pay bool) (*engine.RatingResult, error) {
		return f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
			RaterID: "alice", TargetID: "bob", TargetKind: rating.TargetUser, Value: value,
			Badges: badges.Scores{badges.Humor: value}, PayBypass: pay,
		})
	}

	_, err := describe(3, false)
	require.NoError(t, err)
	require.Equal(t, int64(50), f.balance(t, "alice"))

	f.now = t0.Add(6 * 24 * time.Hour)

	_, err = describe(5, false)
	require.ErrorIs(t, err, common.ErrCooldownBlocked)
	var blocked *common.CooldownBlockedError
	require.True(t, errors.As(err, &blocked))
	require.Equal(t, int64(200), blocked.BypassCost)
	require.Equal(t, t0.Add(7*24*time.Hour), blocked.AvailableAt)

	// денег не хватает: ничего не меняется
	_, err = describe(5, true)
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
	require.Equal(t, int64(50), f.balance(t, "alice"))
	r, err := f.store.GetRating(f.ctx, "alice", rating.TargetUser, "bob")
	require.NoError(t, err)
	require.Equal(t, 3.0, r.Value)
	profile, err := f.eng.Profile(f.ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, profile.Badges.Count)
	require.Equal(t, 3.0, profile.Member.AverageScore)

	f.post(t, "alice")
	f.post(t, "alice")
	require.Equal(t, int64(250), f.balance(t, "alice"))

	res, err := describe(5, true)
	require.NoError(t, err)
	require.Equal(t, int64(200), res.BypassPaid)
	require.Zero(t, res.CoinsAwarded)
	require.Equal(t, int64(50), f.balance(t, "alice"))
	require.Equal(t, rating.Aggregate{Average: 5, Count: 1}, res.Aggregate)
	require.Equal(t, 2, res.Badges.Count)

	// платный обход часы не сбрасывает
	d, err := f.eng.CheckCooldown(f.ctx, "alice", "bob", f.now)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	f.now = t0.Add(7 * 24 * time.Hour)
	d, err = f.eng.CheckCooldown(f.ctx, "alice", "bob", f.now)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	_, err = describe(4, false)
	require.NoError(t, err)
	d, err = f.eng.CheckCooldown(f.ctx, "alice", "bob", f.now.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestPostRatingsHaveNoCooldown(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")

	f.rate(t, "alice", rating.TargetPost, p, 1)
	f.now = t0.Add(time.Minute)
	res := f.rate(t, "alice", rating.TargetPost, p, 2)
	require.Equal(t, 2.0, res.Aggregate.Average)
}

func TestStreakOfferAndClaim(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p1 := f.post(t, "bob")
	p2 := f.post(t, "bob")

	rate := func(post, session string) *engine.RatingResult {
		res, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
			RaterID: "alice", TargetID: post, TargetKind: rating.TargetPost, Value: 4, SessionID: session,
		})
		require.NoError(t, err)
		return res
	}

	p3 := f.post(t, "bob")
	p4 := f.post(t, "bob")

	res := rate(p1, "s1")
	require.Equal(t, &streak.Offer{Day: 1, Points: 50}, res.StreakOffer)
	require.Nil(t, rate(p2, "s1").StreakOffer)

	claim, err := f.eng.ClaimStreak(f.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, engine.ClaimResult{Day: 1, Points: 50, Balance: 10 + 10 + 50}, *claim)

	_, err = f.eng.ClaimStreak(f.ctx, "alice")
	require.ErrorIs(t, err, common.ErrNoStreakOffer)

	// новая сессия, но сегодня уже забирали
	require.Nil(t, rate(p3, "s2").StreakOffer)

	// следующий день: перезапись старой оценки предложения не даёт, новая оценка — даёт
	f.now = t0.Add(24 * time.Hour)
	require.Nil(t, rate(p1, "s3").StreakOffer)
	res = rate(p4, "s3")
	require.Equal(t, &streak.Offer{Day: 2, Points: 55}, res.StreakOffer)

	claim, err = f.eng.ClaimStreak(f.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(70+10+10+55), claim.Balance)

	profile, err := f.eng.Profile(f.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, profile.Streak.StreakDays)
	require.Equal(t, 2, profile.Streak.LongestStreak)
	require.Zero(t, profile.Streak.PendingDay)
}

func TestToggleNotifiesOnlyOnTransitionOn(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")

	on, err := f.eng.ToggleSave(f.ctx, p, "alice")
	require.NoError(t, err)
	require.True(t, on)
	on, err = f.eng.ToggleSave(f.ctx, p, "alice")
	require.NoError(t, err)
	require.False(t, on)
	on, err = f.eng.ToggleRepost(f.ctx, p, "alice")
	require.NoError(t, err)
	require.True(t, on)

	all := f.store.AllNotifications()
	require.Len(t, all, 2)
	require.Equal(t, notify.TypeSaved, all[0].Type)
	require.Equal(t, notify.TypeReposted, all[1].Type)
	require.Equal(t, "bob", all[1].RecipientID)

	post, err := f.store.GetPost(f.ctx, p, false)
	require.NoError(t, err)
	require.Zero(t, post.SaveCount)
	require.Equal(t, 1, post.RepostCount)

	// своё сохранение — без уведомления
	_, err = f.eng.ToggleSave(f.ctx, p, "bob")
	require.NoError(t, err)
	require.Len(t, f.store.AllNotifications(), 2)

	_, err = f.eng.ToggleSave(f.ctx, "missing", "alice")
	require.ErrorIs(t, err, common.ErrPostNotFound)
}

func TestCommentFanOut(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob", "carol")
	p := f.post(t, "bob")

	c, err := f.eng.PostComment(f.ctx, p, "carol", "@alice look at this")
	require.NoError(t, err)
	require.Equal(t, "alice", c.Mention)
	require.NotEmpty(t, c.ID)

	all := f.store.AllNotifications()
	require.Len(t, all, 2)
	require.Equal(t, notify.TypeComment, all[0].Type)
	require.Equal(t, "bob", all[0].RecipientID)
	require.Equal(t, notify.TypeReply, all[1].Type)
	require.Equal(t, "alice", all[1].RecipientID)
	require.Equal(t, c.ID, all[1].CommentID)

	tests := []struct {
		name  string
		actor string
		text  string
		added int
	}{
		{"owner mentions self", "bob", "@bob note to self", 0},
		{"unknown mention", "carol", "@ghost hi", 1},
		{"mention not leading", "carol", "hi @alice", 1},
		{"owner mentions other", "bob", "@carol thanks", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.store.AllNotifications())
			_, err := f.eng.PostComment(f.ctx, p, tt.actor, tt.text)
			require.NoError(t, err)
			require.Len(t, f.store.AllNotifications(), before+tt.added)
		})
	}

	_, err = f.eng.PostComment(f.ctx, p, "carol", "   ")
	require.True(t, common.IsValidation(err))
	require.Len(t, f.store.Comments(p), 5)
}

func TestAnswerPollPaysOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice")

	resp, awarded, err := f.eng.AnswerPoll(f.ctx, "alice", poll.Answer{ResponseType: poll.ResponseVoteA})
	require.NoError(t, err)
	require.Equal(t, int64(50), awarded)
	require.Equal(t, "A", resp.VoteChoice)

	_, awarded, err = f.eng.AnswerPoll(f.ctx, "alice", poll.Answer{ResponseType: poll.ResponseNote, NoteText: "both"})
	require.NoError(t, err)
	require.Zero(t, awarded)

	f.now = t0.Add(24 * time.Hour)
	_, awarded, err = f.eng.AnswerPoll(f.ctx, "alice", poll.Answer{ResponseType: poll.ResponseVoteB})
	require.NoError(t, err)
	require.Equal(t, int64(50), awarded)
	require.Equal(t, int64(100), f.balance(t, "alice"))

	_, _, err = f.eng.AnswerPoll(f.ctx, "alice", poll.Answer{ResponseType: "VOTE_C"})
	require.True(t, common.IsValidation(err))
}

func TestConcurrentRatingsAllCounted(t *testing.T) {
	f := newFixture(t)
	f.members(t, "bob")
	p := f.post(t, "bob")

	const raters = 25
	var sum float64
	for i := 0; i < raters; i++ {
		f.members(t, raterName(i))
		sum += float64(i % 6)
	}

	var wg sync.WaitGroup
	errs := make(chan error, raters)
	for i := 0; i < raters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
				RaterID: raterName(i), TargetID: p, TargetKind: rating.TargetPost, Value: float64(i % 6),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	post, err := f.store.GetPost(f.ctx, p, false)
	require.NoError(t, err)
	require.Equal(t, raters, post.RatingCount)
	require.InDelta(t, sum/raters, post.AverageRating, 1e-9)
	require.Equal(t, int64(100+5*raters), f.balance(t, "bob"))
}

func raterName(i int) string {
	return fmt.Sprintf("rater_%02d", i)
}

func TestFailedNotificationRollsBackRating(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	f.store.FailOn("CreateNotification", errors.New("disk full"))

	_, err := f.eng.SubmitRating(f.ctx, engine.SubmitRatingRequest{
		RaterID: "alice", TargetID: "bob", TargetKind: rating.TargetUser, Value: 4,
		Badges: badges.Scores{badges.Charisma: 4},
	})
	require.Error(t, err)

	_, err = f.store.GetRating(f.ctx, "alice", rating.TargetUser, "bob")
	require.ErrorIs(t, err, common.ErrRatingNotFound)
	d, err := f.eng.CheckCooldown(f.ctx, "alice", "bob", f.now)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	profile, err := f.eng.Profile(f.ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, profile.Badges.Count)
	require.Zero(t, profile.Member.TotalRatings)
	require.Zero(t, f.balance(t, "alice"))
}

func TestAwardFailureDoesNotUndoRating(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")
	f.store.FailOn("Credit", errors.New("ledger offline"))

	res := f.rate(t, "alice", rating.TargetPost, p, 4)
	require.Zero(t, res.CoinsAwarded)
	require.Equal(t, 1, res.Aggregate.Count)
	require.NotNil(t, res.Notification)
	require.Zero(t, f.balance(t, "alice"))
}

func TestDeleteRating(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob", "carol")
	p := f.post(t, "bob")

	f.rate(t, "alice", rating.TargetPost, p, 5)
	f.rate(t, "carol", rating.TargetPost, p, 3)

	agg, err := f.eng.DeleteRating(f.ctx, "alice", rating.TargetPost, p)
	require.NoError(t, err)
	require.Equal(t, rating.Aggregate{Average: 3, Count: 1}, agg)

	_, err = f.eng.DeleteRating(f.ctx, "alice", rating.TargetPost, p)
	require.ErrorIs(t, err, common.ErrRatingNotFound)

	_, err = f.eng.DeleteRating(f.ctx, "alice", rating.TargetPost, "missing")
	require.ErrorIs(t, err, common.ErrTargetNotFound)
}

func TestRerateAfterDeletePaysOnce(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob", "carol")
	p := f.post(t, "bob")

	for i := 0; i < 5; i++ {
		res := f.rate(t, "alice", rating.TargetPost, p, 4)
		if i == 0 {
			require.Equal(t, int64(10), res.CoinsAwarded)
		} else {
			require.Zero(t, res.CoinsAwarded)
		}
		_, err := f.eng.DeleteRating(f.ctx, "alice", rating.TargetPost, p)
		require.NoError(t, err)
	}

	require.Equal(t, int64(10), f.balance(t, "alice"))
	require.Equal(t, int64(100+5), f.balance(t, "bob"))

	// другой оценщик по-прежнему получает свою награду
	res := f.rate(t, "carol", rating.TargetPost, p, 3)
	require.Equal(t, int64(10), res.CoinsAwarded)
	require.Equal(t, int64(100+5+5), f.balance(t, "bob"))
}

func TestNotificationsDeliveredAndPulled(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice", "bob")
	p := f.post(t, "bob")

	ch, cancel := f.hub.Subscribe("bob")
	defer cancel()

	res := f.rate(t, "alice", rating.TargetPost, p, 2)

	select {
	case n := <-ch:
		require.Equal(t, res.Notification.ID, n.ID)
		require.Equal(t, "⭐", n.Emoji)
	case <-time.After(time.Second):
		t.Fatal("уведомление не доставлено")
	}

	f.now = t0.Add(time.Minute)
	_, err := f.eng.ToggleSave(f.ctx, p, "alice")
	require.NoError(t, err)

	list, err := f.eng.Notifications(f.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, notify.TypeSaved, list[0].Type)

	unread, err := f.eng.UnreadCount(f.ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 2, unread)

	marked, err := f.eng.MarkRead(f.ctx, "bob", []string{list[1].ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)
	marked, err = f.eng.MarkRead(f.ctx, "bob", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	unread, err = f.eng.UnreadCount(f.ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestRegisterMember(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice")

	err := f.eng.RegisterMember(f.ctx, &members.Member{ID: "alice-2", Username: "alice"})
	require.ErrorIs(t, err, common.ErrUsernameTaken)

	err = f.eng.RegisterMember(f.ctx, &members.Member{ID: "x", Username: "a!"})
	require.True(t, common.IsValidation(err))

	profile, err := f.eng.Profile(f.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "@alice", profile.Member.Name())
	require.Len(t, profile.Badges.Averages, len(badges.Keys))
	require.Zero(t, profile.Streak.StreakDays)

	_, err = f.eng.Profile(f.ctx, "alice-2")
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestAdjustBalance(t *testing.T) {
	f := newFixture(t)
	f.members(t, "alice")

	_, err := f.eng.AdjustBalance(f.ctx, "op", "pass", "alice", 10, "bonus")
	require.ErrorIs(t, err, common.ErrAdminDisabled)

	hash, err := admin.HashPassword("op-pass")
	require.NoError(t, err)
	clock := func() time.Time { return f.now }
	f.eng = engine.New(f.store.Stores(), testSettings(), mustCalc(t),
		engine.WithClock(clock), engine.WithAdmin(admin.NewService(f.store, hash, clock)))

	balance, err := f.eng.AdjustBalance(f.ctx, "op", "op-pass", "alice", 300, "bonus")
	require.NoError(t, err)
	require.Equal(t, int64(300), balance)

	balance, err = f.eng.AdjustBalance(f.ctx, "op", "op-pass", "alice", -100, "refund")
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)

	_, err = f.eng.AdjustBalance(f.ctx, "op", "op-pass", "alice", -500, "oops")
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
	require.Equal(t, int64(200), f.balance(t, "alice"))

	_, err = f.eng.AdjustBalance(f.ctx, "op", "op-pass", "alice", 0, "noop")
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = f.eng.AdjustBalance(f.ctx, "op", "guess", "alice", 10, "bonus")
	require.ErrorIs(t, err, common.ErrWrongPassword)
}

func mustCalc(t *testing.T) *rewards.Calculator {
	t.Helper()
	calc, err := rewards.NewCalculator("0.05", 50, "1.1")
	require.NoError(t, err)
	return calc
}
