package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"rateme.app/engine/internal/engine"
	"rateme.app/engine/internal/features/cooldown"
	"rateme.app/engine/internal/features/notify"
	"rateme.app/engine/internal/features/rewards"
	"rateme.app/engine/internal/httpapi"
	"rateme.app/engine/internal/testutil"
)

func init() {
	log.SetOutput(io.Discard)
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type apiFixture struct {
	router *gin.Engine
	hub    *notify.Hub
	now    time.Time
}

func newAPI(t *testing.T, rl *httpapi.RateLimiter) *apiFixture {
	t.Helper()
	f := &apiFixture{now: t0, hub: notify.NewHub(16)}
	clock := func() time.Time { return f.now }

	calc, err := rewards.NewCalculator("0.05", 50, "1.1")
	require.NoError(t, err)
	store := testutil.NewMemStore(clock)
	eng := engine.New(store.Stores(), engine.Settings{
		DefaultScale:   5,
		Cooldown:       cooldown.Gate{Period: 7 * 24 * time.Hour, BypassCost: 200},
		RewardRate:     10,
		RewardRated:    5,
		RewardDescribe: 50,
		RewardPost:     100,
		RewardPoll:     50,
	}, calc, engine.WithClock(clock), engine.WithPublisher(f.hub))

	f.router = httpapi.NewRouter(httpapi.NewHandler(eng, f.hub, nil, clock), rl)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(httpapi.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (f *apiFixture) register(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		w, _ := f.do(t, http.MethodPost, "/v1/members", name, gin.H{"username": name})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func (f *apiFixture) createPost(t *testing.T, user string) string {
	t.Helper()
	w, body := f.do(t, http.MethodPost, "/v1/posts", user, gin.H{"media_url": "https://cdn.example/1.jpg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, float64(100), body["coins_awarded"])
	return body["post"].(map[string]any)["id"].(string)
}

func TestHealthz(t *testing.T) {
	f := newAPI(t, nil)
	w, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", body["status"])
}

func TestRequiresUserHeader(t *testing.T) {
	f := newAPI(t, nil)
	w, _ := f.do(t, http.MethodGet, "/v1/notifications", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRatingFlow(t *testing.T) {
	f := newAPI(t, nil)
	f.register(t, "alice", "bob")
	post := f.createPost(t, "bob")

	w, body := f.do(t, http.MethodPost, "/v1/ratings", "alice", gin.H{
		"target_id": post, "target_kind": "post", "value": 9, "scale": 10,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, float64(10), body["coins_awarded"])
	agg := body["aggregate"].(map[string]any)
	require.Equal(t, 4.5, agg["average"])
	require.Equal(t, float64(1), agg["count"])

	w, body = f.do(t, http.MethodGet, "/v1/members/alice/balance", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(10), body["balance"])

	w, body = f.do(t, http.MethodGet, "/v1/notifications/unread", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), body["unread"])

	w, body = f.do(t, http.MethodPost, "/v1/notifications/read", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), body["marked"])

	w, body = f.do(t, http.MethodDelete, "/v1/ratings/post/"+post, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(0), body["aggregate"].(map[string]any)["count"])
}

func TestErrorMapping(t *testing.T) {
	f := newAPI(t, nil)
	f.register(t, "alice", "bob")

	describe := gin.H{"target_id": "bob", "target_kind": "user", "value": 4, "badges": gin.H{"Humor": 4}}
	w, _ := f.do(t, http.MethodPost, "/v1/ratings", "alice", describe)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.now = t0.Add(24 * time.Hour)
	w, body := f.do(t, http.MethodPost, "/v1/ratings", "alice", describe)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, float64(200), body["bypass_cost"])

	describe["pay_bypass"] = true
	w, _ = f.do(t, http.MethodPost, "/v1/ratings", "alice", describe)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	w, body = f.do(t, http.MethodGet, "/v1/cooldowns/bob", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, body["allowed"])

	w, body = f.do(t, http.MethodPost, "/v1/ratings", "alice", gin.H{"target_id": "bob", "target_kind": "user", "value": 7})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "value", body["field"])

	w, body = f.do(t, http.MethodPost, "/v1/ratings", "alice", gin.H{"target_id": "nope", "target_kind": "post", "value": 3})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "rating target not found", body["error"])

	w, _ = f.do(t, http.MethodPost, "/v1/streak/claim", "alice", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, http.MethodPost, "/v1/members", "alice-2", gin.H{"username": "alice"})
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, http.MethodPost, "/v1/admin/coins", "op", gin.H{"password": "x", "user_id": "alice", "delta": 5})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCommentAndPoll(t *testing.T) {
	f := newAPI(t, nil)
	f.register(t, "alice", "bob")
	post := f.createPost(t, "bob")

	w, body := f.do(t, http.MethodPost, "/v1/posts/"+post+"/comments", "alice", gin.H{"text": "@bob wow"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "bob", body["mention"])

	w, body = f.do(t, http.MethodPost, "/v1/posts/"+post+"/save", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["saved"])

	w, body = f.do(t, http.MethodGet, "/v1/notifications", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// COMMENT и REPLY от комментария, SAVED от сохранения
	require.Len(t, body["notifications"], 3)

	w, body = f.do(t, http.MethodPost, "/v1/polls/today", "alice", gin.H{"response_type": "NOTE", "note_text": "hi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, float64(50), body["coins_awarded"])
}

func TestRateLimit(t *testing.T) {
	rl := httpapi.NewRateLimiter(2, time.Minute)
	defer rl.Close()
	f := newAPI(t, rl)

	for i := 0; i < 2; i++ {
		w, _ := f.do(t, http.MethodGet, "/v1/notifications", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ := f.do(t, http.MethodGet, "/v1/notifications", "alice", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// лимит считается на пользователя
	w, _ = f.do(t, http.MethodGet, "/v1/notifications", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNotificationStream(t *testing.T) {
	f := newAPI(t, nil)
	f.register(t, "alice", "bob")
	post := f.createPost(t, "bob")

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set(httpapi.HeaderUserID, "bob")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return f.hub.Subscribers("bob") == 1 }, time.Second, 10*time.Millisecond)

	w, _ := f.do(t, http.MethodPost, "/v1/ratings", "alice", gin.H{"target_id": post, "target_kind": "post", "value": 3})
	require.Equal(t, http.StatusOK, w.Code)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "notification":
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	var n notify.Notification
	require.NoError(t, json.Unmarshal([]byte(data), &n))
	require.Equal(t, notify.TypeRating, n.Type)
	require.Equal(t, "alice", n.ActorID)
	require.Equal(t, "👍", n.Emoji)
}
