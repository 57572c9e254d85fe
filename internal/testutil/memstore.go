// Package testutil — хранилище в памяти для тестов движка.
//
// MemStore реализует все порты движка. Транзакция — это общий мьютекс
// хранилища плюс снимок данных: ошибка внутри WithinTx возвращает снимок,
// так что атомарность и сериализацию можно проверять так же, как на PostgreSQL.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rateme.app/engine/internal/common"
	"rateme.app/engine/internal/engine"
	"rateme.app/engine/internal/features/admin"
	"rateme.app/engine/internal/features/badges"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/economy"
	"rateme.app/engine/internal/features/engagement"
	"rateme.app/engine/internal/features/members"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/poll"
	"rateme.app/engine/internal/features/posts"
	"rateme.app/engine/internal/features/rating"
	"rateme.app/engine/internal/features/streak"
)

type txKey struct{}

type ratingKey struct {
	rater  string
	kind   rating.TargetKind
	target string
}

type pairKey struct{ a, b string }

type pollKey struct {
	day  string
	user string
}

type memData struct {
	members       map[string]*members.Member
	posts         map[string]*posts.Post
	ratings       map[ratingKey]*rating.Rating
	rewarded      map[ratingKey]time.Time
	badges        map[string]*badges.Set
	cooldowns     map[pairKey]time.Time
	balances      map[string]*economy.Balance
	transactions  []*economy.Transaction
	streaks       map[string]*streak.Streak
	saves         map[pairKey]bool
	reposts       map[pairKey]bool
	comments      []*engagement.Comment
	polls         map[pollKey]*poll.Response
	notifications []*notify.Notification
	attempts      []*admin.LoginAttempt
}

func newMemData() *memData {
	return &memData{
		members:   make(map[string]*members.Member),
		posts:     make(map[string]*posts.Post),
		ratings:   make(map[ratingKey]*rating.Rating),
		rewarded:  make(map[ratingKey]time.Time),
		badges:    make(map[string]*badges.Set),
		cooldowns: make(map[pairKey]time.Time),
		balances:  make(map[string]*economy.Balance),
		streaks:   make(map[string]*streak.Streak),
		saves:     make(map[pairKey]bool),
		reposts:   make(map[pairKey]bool),
		polls:     make(map[pollKey]*poll.Response),
	}
}

// clone делает снимок: все записи копируются по значению.
func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.members {
		m := *v
		c.members[k] = &m
	}
	for k, v := range d.posts {
		p := *v
		c.posts[k] = &p
	}
	for k, v := range d.ratings {
		c.ratings[k] = copyRating(v)
	}
	for k, v := range d.rewarded {
		c.rewarded[k] = v
	}
	for k, v := range d.badges {
		c.badges[k] = v.Clone()
	}
	for k, v := range d.cooldowns {
		c.cooldowns[k] = v
	}
	for k, v := range d.balances {
		b := *v
		c.balances[k] = &b
	}
	for k, v := range d.streaks {
		s := *v
		c.streaks[k] = &s
	}
	for k, v := range d.saves {
		c.saves[k] = v
	}
	for k, v := range d.reposts {
		c.reposts[k] = v
	}
	for k, v := range d.polls {
		r := *v
		c.polls[k] = &r
	}
	c.transactions = append(c.transactions, d.transactions...)
	c.comments = append(c.comments, d.comments...)
	for _, n := range d.notifications {
		cp := *n
		c.notifications = append(c.notifications, &cp)
	}
	c.attempts = append(c.attempts, d.attempts...)
	return c
}

// MemStore — хранилище в памяти.
type MemStore struct {
	mu       sync.Mutex
	data     *memData
	clock    common.Clock
	failures map[string]error
	nextID   int64
}

// NewMemStore создаёт пустое хранилище. clock задаёт created_at/updated_at.
func NewMemStore(clock common.Clock) *MemStore {
	return &MemStore{data: newMemData(), clock: clock, failures: make(map[string]error)}
}

var (
	_ streak.Breaker     = (*MemStore)(nil)
	_ notify.Purger      = (*MemStore)(nil)
	_ notify.ChatLookup  = (*MemStore)(nil)
	_ admin.AttemptStore = (*MemStore)(nil)
)

// Stores раздаёт хранилище во все порты движка.
func (s *MemStore) Stores() engine.Stores {
	return engine.Stores{
		Tx:            s,
		Members:       s,
		Posts:         s,
		Ratings:       s,
		Badges:        s,
		Cooldowns:     s,
		Balances:      s,
		Streaks:       s,
		Engagement:    s,
		Polls:         s,
		Notifications: s,
	}
}

// FailOn заставляет операцию op (имя метода) возвращать err. nil снимает сбой.
func (s *MemStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemStore) fail(op string) error {
	return s.failures[op]
}

// WithinTx выполняет fn под мьютексом хранилища; при ошибке данные откатываются.
// Вложенный вызов выполняется в уже открытой транзакции.
func (s *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snap
		return err
	}
	return nil
}

// lock берёт мьютекс, если вызов пришёл не из транзакции.
func (s *MemStore) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemStore) now() time.Time {
	return s.clock.Now().UTC()
}

// --- members ---

func (s *MemStore) CreateMember(ctx context.Context, m *members.Member) error {
	defer s.lock(ctx)()
	if err := s.fail("CreateMember"); err != nil {
		return err
	}
	for _, existing := range s.data.members {
		if existing.Username == m.Username {
			return fmt.Errorf("участник %s: %w", m.Username, common.ErrUsernameTaken)
		}
	}
	if _, ok := s.data.members[m.ID]; ok {
		return fmt.Errorf("участник %s уже есть", m.ID)
	}
	m.CreatedAt, m.UpdatedAt = s.now(), s.now()
	cp := *m
	s.data.members[m.ID] = &cp
	return nil
}

func (s *MemStore) GetMember(ctx context.Context, id string, _ bool) (*members.Member, error) {
	defer s.lock(ctx)()
	m, ok := s.data.members[id]
	if !ok {
		return nil, fmt.Errorf("участник %s: %w", id, common.ErrUserNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) GetMemberByUsername(ctx context.Context, username string) (*members.Member, error) {
	defer s.lock(ctx)()
	for _, m := range s.data.members {
		if m.Username == username {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("участник @%s: %w", username, common.ErrUserNotFound)
}

func (s *MemStore) UpdateMemberScore(ctx context.Context, id string, average float64, count int) error {
	defer s.lock(ctx)()
	m, ok := s.data.members[id]
	if !ok {
		return common.ErrUserNotFound
	}
	m.AverageScore, m.TotalRatings, m.UpdatedAt = average, count, s.now()
	return nil
}

func (s *MemStore) TelegramChatID(ctx context.Context, id string) (int64, bool, error) {
	defer s.lock(ctx)()
	m, ok := s.data.members[id]
	if !ok || m.TelegramChatID == nil {
		return 0, false, nil
	}
	return *m.TelegramChatID, true, nil
}

// --- posts ---

func (s *MemStore) CreatePost(ctx context.Context, p *posts.Post) error {
	defer s.lock(ctx)()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = s.now()
	cp := *p
	s.data.posts[p.ID] = &cp
	return nil
}

func (s *MemStore) GetPost(ctx context.Context, id string, _ bool) (*posts.Post, error) {
	defer s.lock(ctx)()
	p, ok := s.data.posts[id]
	if !ok {
		return nil, fmt.Errorf("пост %s: %w", id, common.ErrPostNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) UpdatePostRating(ctx context.Context, id string, average float64, count int) error {
	defer s.lock(ctx)()
	p, ok := s.data.posts[id]
	if !ok {
		return common.ErrPostNotFound
	}
	p.AverageRating, p.RatingCount = average, count
	return nil
}

func (s *MemStore) AdjustPostCounters(ctx context.Context, id string, saveDelta, repostDelta int) error {
	defer s.lock(ctx)()
	p, ok := s.data.posts[id]
	if !ok {
		return common.ErrPostNotFound
	}
	p.SaveCount = max(p.SaveCount+saveDelta, 0)
	p.RepostCount = max(p.RepostCount+repostDelta, 0)
	return nil
}

// --- ratings ---

func copyRating(r *rating.Rating) *rating.Rating {
	cp := *r
	if r.Badges != nil {
		cp.Badges = make(badges.Scores, len(r.Badges))
		for k, v := range r.Badges {
			cp.Badges[k] = v
		}
	}
	return &cp
}

func (s *MemStore) GetRating(ctx context.Context, raterID string, kind rating.TargetKind, targetID string) (*rating.Rating, error) {
	defer s.lock(ctx)()
	r, ok := s.data.ratings[ratingKey{raterID, kind, targetID}]
	if !ok {
		return nil, common.ErrRatingNotFound
	}
	return copyRating(r), nil
}

func (s *MemStore) UpsertRating(ctx context.Context, r *rating.Rating) (*rating.Rating, error) {
	defer s.lock(ctx)()
	if err := s.fail("UpsertRating"); err != nil {
		return nil, err
	}
	key := ratingKey{r.RaterID, r.TargetKind, r.TargetID}
	now := s.now()

	prev, ok := s.data.ratings[key]
	if !ok {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt, r.UpdatedAt = now, now
		s.data.ratings[key] = copyRating(r)
		return nil, nil
	}

	old := copyRating(prev)
	r.ID, r.CreatedAt, r.UpdatedAt = prev.ID, prev.CreatedAt, now
	s.data.ratings[key] = copyRating(r)
	return old, nil
}

func (s *MemStore) TargetValues(ctx context.Context, kind rating.TargetKind, targetID string) ([]float64, error) {
	defer s.lock(ctx)()
	var values []float64
	for k, r := range s.data.ratings {
		if k.kind == kind && k.target == targetID {
			values = append(values, r.Value)
		}
	}
	return values, nil
}

func (s *MemStore) DeleteRating(ctx context.Context, raterID string, kind rating.TargetKind, targetID string) (*rating.Rating, error) {
	defer s.lock(ctx)()
	key := ratingKey{raterID, kind, targetID}
	r, ok := s.data.ratings[key]
	if !ok {
		return nil, common.ErrRatingNotFound
	}
	delete(s.data.ratings, key)
	return r, nil
}

func (s *MemStore) MarkRewarded(ctx context.Context, raterID string, kind rating.TargetKind, targetID string, at time.Time) (bool, error) {
	defer s.lock(ctx)()
	key := ratingKey{raterID, kind, targetID}
	if _, ok := s.data.rewarded[key]; ok {
		return false, nil
	}
	s.data.rewarded[key] = at
	return true, nil
}

// --- badges ---

func (s *MemStore) CreateBadgeSet(ctx context.Context, userID string) error {
	defer s.lock(ctx)()
	if _, ok := s.data.badges[userID]; !ok {
		s.data.badges[userID] = badges.NewSet(userID)
	}
	return nil
}

func (s *MemStore) GetBadgeSet(ctx context.Context, userID string, _ bool) (*badges.Set, error) {
	defer s.lock(ctx)()
	set, ok := s.data.badges[userID]
	if !ok {
		return nil, fmt.Errorf("бейджи %s: %w", userID, common.ErrUserNotFound)
	}
	return set.Clone(), nil
}

func (s *MemStore) SaveBadgeSet(ctx context.Context, set *badges.Set) error {
	defer s.lock(ctx)()
	if _, ok := s.data.badges[set.UserID]; !ok {
		return common.ErrUserNotFound
	}
	s.data.badges[set.UserID] = set.Clone()
	return nil
}

// --- cooldowns ---

func (s *MemStore) GetCooldown(ctx context.Context, raterID, targetID string) (*cooldown.Record, error) {
	defer s.lock(ctx)()
	at, ok := s.data.cooldowns[pairKey{raterID, targetID}]
	if !ok {
		return nil, nil
	}
	return &cooldown.Record{RaterID: raterID, TargetID: targetID, LastFreeRatingAt: at}, nil
}

func (s *MemStore) TouchCooldown(ctx context.Context, raterID, targetID string, at time.Time) error {
	defer s.lock(ctx)()
	s.data.cooldowns[pairKey{raterID, targetID}] = at
	return nil
}

// --- balances ---

func (s *MemStore) CreateBalance(ctx context.Context, userID string) error {
	defer s.lock(ctx)()
	if _, ok := s.data.balances[userID]; !ok {
		now := s.now()
		s.data.balances[userID] = &economy.Balance{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *MemStore) GetBalance(ctx context.Context, userID string) (*economy.Balance, error) {
	defer s.lock(ctx)()
	b, ok := s.data.balances[userID]
	if !ok {
		return nil, fmt.Errorf("баланс %s: %w", userID, common.ErrUserNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *MemStore) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	defer s.lock(ctx)()
	if err := s.fail("Credit"); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	b, ok := s.data.balances[userID]
	if !ok {
		return 0, fmt.Errorf("начисление (user_id=%s): %w", userID, common.ErrUserNotFound)
	}
	b.Balance += amount
	b.TotalEarned += amount
	b.UpdatedAt = s.now()
	s.logTransaction(userID, amount, economy.DirectionCredit, reason)
	return b.Balance, nil
}

func (s *MemStore) Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	defer s.lock(ctx)()
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	b, ok := s.data.balances[userID]
	if !ok {
		return 0, fmt.Errorf("списание (user_id=%s): %w", userID, common.ErrUserNotFound)
	}
	if b.Balance < amount {
		return 0, fmt.Errorf("нужно %d, есть %d: %w", amount, b.Balance, common.ErrInsufficientFunds)
	}
	b.Balance -= amount
	b.TotalSpent += amount
	b.UpdatedAt = s.now()
	s.logTransaction(userID, amount, economy.DirectionDebit, reason)
	return b.Balance, nil
}

func (s *MemStore) logTransaction(userID string, amount int64, direction, reason string) {
	s.data.transactions = append(s.data.transactions, &economy.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Direction: direction,
		Reason:    reason,
		CreatedAt: s.now(),
	})
}

func (s *MemStore) GetTransactions(ctx context.Context, userID string, limit int) ([]*economy.Transaction, error) {
	defer s.lock(ctx)()
	var out []*economy.Transaction
	for i := len(s.data.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if t := s.data.transactions[i]; t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- streaks ---

func (s *MemStore) CreateStreak(ctx context.Context, userID string) error {
	defer s.lock(ctx)()
	if _, ok := s.data.streaks[userID]; !ok {
		now := s.now()
		s.data.streaks[userID] = &streak.Streak{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *MemStore) GetStreak(ctx context.Context, userID string, _ bool) (*streak.Streak, error) {
	defer s.lock(ctx)()
	st, ok := s.data.streaks[userID]
	if !ok {
		return nil, fmt.Errorf("стрик %s: %w", userID, common.ErrUserNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *MemStore) SaveOffer(ctx context.Context, userID, sessionID string, day int) error {
	defer s.lock(ctx)()
	st, ok := s.data.streaks[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	st.OfferSession, st.PendingDay, st.UpdatedAt = sessionID, day, s.now()
	return nil
}

func (s *MemStore) MarkActive(ctx context.Context, userID string, at time.Time) error {
	defer s.lock(ctx)()
	st, ok := s.data.streaks[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	st.LastActiveAt = &at
	return nil
}

func (s *MemStore) ClaimStreak(ctx context.Context, userID string, day int, at time.Time) error {
	defer s.lock(ctx)()
	st, ok := s.data.streaks[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	st.StreakDays = day
	st.LongestStreak = max(st.LongestStreak, day)
	st.PendingDay = 0
	st.LastClaimedAt = &at
	return nil
}

func (s *MemStore) BreakInactive(ctx context.Context, before time.Time) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for _, st := range s.data.streaks {
		if st.StreakDays > 0 && (st.LastActiveAt == nil || st.LastActiveAt.Before(before)) {
			st.StreakDays, st.PendingDay = 0, 0
			n++
		}
	}
	return n, nil
}

// --- engagement ---

func (s *MemStore) ToggleSave(ctx context.Context, postID, userID string) (bool, error) {
	defer s.lock(ctx)()
	return toggle(s.data.saves, pairKey{postID, userID}), nil
}

func (s *MemStore) ToggleRepost(ctx context.Context, postID, userID string) (bool, error) {
	defer s.lock(ctx)()
	return toggle(s.data.reposts, pairKey{postID, userID}), nil
}

func toggle(set map[pairKey]bool, key pairKey) bool {
	if set[key] {
		delete(set, key)
		return false
	}
	set[key] = true
	return true
}

func (s *MemStore) CreateComment(ctx context.Context, c *engagement.Comment) error {
	defer s.lock(ctx)()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.now()
	cp := *c
	s.data.comments = append(s.data.comments, &cp)
	return nil
}

// --- poll ---

func (s *MemStore) UpsertPollResponse(ctx context.Context, r *poll.Response) (bool, error) {
	defer s.lock(ctx)()
	key := pollKey{r.PollDate.Format(time.DateOnly), r.UserID}
	now := s.now()
	prev, ok := s.data.polls[key]
	if ok {
		r.CreatedAt = prev.CreatedAt
	} else {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cp := *r
	s.data.polls[key] = &cp
	return !ok, nil
}

// --- notifications ---

func (s *MemStore) CreateNotification(ctx context.Context, n *notify.Notification) error {
	defer s.lock(ctx)()
	if err := s.fail("CreateNotification"); err != nil {
		return err
	}
	cp := *n
	s.data.notifications = append(s.data.notifications, &cp)
	return nil
}

func (s *MemStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*notify.Notification, error) {
	defer s.lock(ctx)()
	var out []*notify.Notification
	for i := len(s.data.notifications) - 1; i >= 0; i-- {
		if n := s.data.notifications[i]; n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	// при равном времени первой идёт добавленная позже
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	defer s.lock(ctx)()
	var n int
	for _, x := range s.data.notifications {
		if x.RecipientID == recipientID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error) {
	defer s.lock(ctx)()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, x := range s.data.notifications {
		if x.RecipientID != recipientID || x.IsRead {
			continue
		}
		if len(ids) == 0 || want[x.ID] {
			x.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemStore) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	defer s.lock(ctx)()
	kept := s.data.notifications[:0]
	var n int64
	for _, x := range s.data.notifications {
		if x.IsRead && x.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, x)
	}
	s.data.notifications = kept
	return n, nil
}

// --- admin ---

func (s *MemStore) LogAttempt(ctx context.Context, actorID string, success bool) error {
	defer s.lock(ctx)()
	s.nextID++
	s.data.attempts = append(s.data.attempts, &admin.LoginAttempt{
		ID:          s.nextID,
		ActorID:     actorID,
		AttemptTime: s.now(),
		Success:     success,
	})
	return nil
}

func (s *MemStore) RecentFailures(ctx context.Context, actorID string, since time.Time) (int, error) {
	defer s.lock(ctx)()
	var n int
	for _, a := range s.data.attempts {
		if a.ActorID == actorID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- помощники для тестов ---

// SetStreakDays выставляет длину стрика напрямую.
func (s *MemStore) SetStreakDays(userID string, days int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.data.streaks[userID]; ok {
		st.StreakDays = days
	}
}

// LinkTelegram привязывает Telegram-чат к участнику.
func (s *MemStore) LinkTelegram(userID string, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.data.members[userID]; ok {
		m.TelegramChatID = &chatID
	}
}

// Comments возвращает все комментарии к посту.
func (s *MemStore) Comments(postID string) []*engagement.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*engagement.Comment
	for _, c := range s.data.comments {
		if c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

// AllNotifications возвращает все уведомления в порядке создания.
func (s *MemStore) AllNotifications() []*notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notify.Notification, 0, len(s.data.notifications))
	for _, n := range s.data.notifications {
		cp := *n
		out = append(out, &cp)
	}
	return out
}
