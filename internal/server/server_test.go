package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"peakshare/internal/config"
	"peakshare/internal/feed"
	"peakshare/internal/graph"
	"peakshare/internal/models"
	"peakshare/internal/observability"
	"peakshare/internal/resort"
	"peakshare/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	srv *Server
	st  *store.Store
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	log := observability.NewLogger(&bytes.Buffer{}, "test", "error")
	catalog := resort.Default()
	st := store.New(
		store.WithBcryptCost(bcrypt.MinCost),
		store.WithResorts(catalog),
		store.WithLogger(log),
	)
	g := graph.New(st)
	deps := Deps{
		Store:   st,
		Graph:   g,
		Feed:    feed.New(st, g),
		Resorts: catalog,
		Logger:  log,
	}
	for _, o := range opts {
		o(&deps)
	}
	cfg := &config.Config{Port: "0", AllowedOrigins: "*"}
	return &testEnv{srv: NewServer(cfg, deps), st: st}
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, userID string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}

	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) signup(t *testing.T, username string) *models.User {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/users", map[string]string{
		"email":    username + "@peakshare.app",
		"username": username,
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, status, string(raw))
	var u models.User
	require.NoError(t, json.Unmarshal(raw, &u))
	return &u
}

func (e *testEnv) post(t *testing.T, userID string, body map[string]string) *models.Post {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/posts", body, userID)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var p models.Post
	require.NoError(t, json.Unmarshal(raw, &p))
	return &p
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.NewNotFoundError("Post", "p1"), http.StatusNotFound},
		{models.NewValidationError("bad"), http.StatusBadRequest},
		{models.NewConflictError("taken"), http.StatusConflict},
		{models.NewUnauthorizedError("nope"), http.StatusForbidden},
		{models.NewSelfFollowError("u1"), http.StatusUnprocessableEntity},
		{models.NewInternalError(assert.AnError), http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, status)

	status, raw := env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, status)
	body := decode[map[string]interface{}](t, raw)
	assert.Equal(t, "disabled", body["checks"].(map[string]interface{})["redis"])
}

func TestReadinessWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, func(d *Deps) { d.Redis = rdb })

	status, _ := env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, status)

	mr.Close()
	status, raw := env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(raw), "unhealthy")
}

func TestUserRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	status, raw := env.do(t, http.MethodPost, "/api/users", map[string]string{
		"email": "ALICE@peakshare.app", "username": "someone", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, decode[models.ErrorResponse](t, raw).Code)

	status, _ = env.do(t, http.MethodPost, "/api/users", map[string]string{
		"email": "x@peakshare.app", "username": "x", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = env.do(t, http.MethodGet, "/api/users/"+alice.ID, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", decode[models.User](t, raw).Username)
	assert.NotContains(t, string(raw), "password")

	status, raw = env.do(t, http.MethodGet, "/api/users/alice", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, decode[models.User](t, raw).ID)

	status, _ = env.do(t, http.MethodGet, "/api/users/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, raw = env.do(t, http.MethodPut, "/api/users/"+alice.ID, map[string]string{"bio": "Tele skier"}, alice.ID)
	require.Equal(t, http.StatusOK, status, string(raw))
	updated := decode[models.User](t, raw)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "Tele skier", *updated.Bio)

	status, _ = env.do(t, http.MethodPut, "/api/users/"+alice.ID, map[string]string{"bio": "hacked"}, bob.ID)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw = env.do(t, http.MethodPut, "/api/users/"+alice.ID, map[string]string{"bio": "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthorized, decode[models.ErrorResponse](t, raw).Code)
}

func TestFollowRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")

	status, _ := env.do(t, http.MethodPost, "/api/users/"+bob.ID+"/follow", nil, alice.ID)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = env.do(t, http.MethodPost, "/api/users/"+bob.ID+"/follow", nil, alice.ID)
	assert.Equal(t, http.StatusCreated, status)

	status, raw := env.do(t, http.MethodPost, "/api/users/"+alice.ID+"/follow", nil, alice.ID)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, models.CodeSelfFollow, decode[models.ErrorResponse](t, raw).Code)

	status, _ = env.do(t, http.MethodPost, "/api/users/ghost/follow", nil, alice.ID)
	assert.Equal(t, http.StatusNotFound, status)

	status, raw = env.do(t, http.MethodGet, "/api/users/"+bob.ID+"/followers", nil, "")
	require.Equal(t, http.StatusOK, status)
	followers := decode[[]models.User](t, raw)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)

	status, raw = env.do(t, http.MethodGet, "/api/users/"+alice.ID+"/following", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.User](t, raw), 1)

	status, raw = env.do(t, http.MethodGet, "/api/users/"+bob.ID+"/stats", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Stats{FollowerCount: 1}, decode[models.Stats](t, raw))

	status, _ = env.do(t, http.MethodGet, "/api/users/ghost/stats", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, raw = env.do(t, http.MethodGet, "/api/users/suggested", nil, alice.ID)
	require.Equal(t, http.StatusOK, status)
	suggestions := decode[[]map[string]interface{}](t, raw)
	require.Len(t, suggestions, 1)
	assert.Equal(t, carol.ID, suggestions[0]["user"].(map[string]interface{})["id"])

	status, _ = env.do(t, http.MethodDelete, "/api/users/"+bob.ID+"/follow", nil, alice.ID)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodDelete, "/api/users/"+bob.ID+"/follow", nil, alice.ID)
	assert.Equal(t, http.StatusNoContent, status)

	status, raw = env.do(t, http.MethodGet, "/api/users/"+bob.ID+"/followers", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.User](t, raw))
}

func TestPostRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	status, _ := env.do(t, http.MethodPost, "/api/posts", map[string]string{"content": "  "}, alice.ID)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, http.MethodPost, "/api/posts", map[string]string{"content": "hi", "resort_id": "nowhere"}, alice.ID)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, http.MethodPost, "/api/posts", map[string]string{"content": "hi"}, "ghost")
	assert.Equal(t, http.StatusNotFound, status)

	p := env.post(t, alice.ID, map[string]string{"content": "Corduroy #groomers", "resort_id": "vail"})
	require.NotNil(t, p.ResortID)
	assert.Equal(t, "vail", *p.ResortID)

	status, raw := env.do(t, http.MethodPost, "/api/posts/"+p.ID+"/like", nil, bob.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, store.LikeResult{Liked: true, LikeCount: 1}, decode[store.LikeResult](t, raw))

	status, raw = env.do(t, http.MethodPost, "/api/posts/"+p.ID+"/comments", map[string]string{"content": " nice "}, bob.ID)
	require.Equal(t, http.StatusCreated, status)
	comment := decode[models.Comment](t, raw)
	assert.Equal(t, "nice", comment.Content)

	status, _ = env.do(t, http.MethodPost, "/api/posts/"+p.ID+"/comments", map[string]string{"content": "   "}, bob.ID)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = env.do(t, http.MethodGet, "/api/posts/"+p.ID, nil, "")
	require.Equal(t, http.StatusOK, status)
	got := decode[models.Post](t, raw)
	assert.Equal(t, 1, got.Likes)
	assert.Len(t, got.Comments, 1)

	stranger := env.signup(t, "carol")
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID+"/comments/"+comment.ID, nil, stranger.ID)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID+"/comments/"+comment.ID, nil, alice.ID)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID+"/comments/"+comment.ID, nil, alice.ID)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID, nil, bob.ID)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID, nil, alice.ID)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID, nil, alice.ID)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodGet, "/api/posts/"+p.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFeedRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")

	status, _ := env.do(t, http.MethodPost, "/api/users/"+bob.ID+"/follow", nil, alice.ID)
	require.Equal(t, http.StatusCreated, status)

	b1 := env.post(t, bob.ID, map[string]string{"content": "Storm day #powder", "resort_id": "niseko"})
	env.post(t, carol.ID, map[string]string{"content": "Park laps #parkday"})
	a1 := env.post(t, alice.ID, map[string]string{"content": "More #powder please"})

	status, raw := env.do(t, http.MethodGet, "/api/feed/following", nil, alice.ID)
	require.Equal(t, http.StatusOK, status)
	following := decode[[]models.Post](t, raw)
	require.Len(t, following, 2)
	assert.ElementsMatch(t, []string{a1.ID, b1.ID}, []string{following[0].ID, following[1].ID})

	status, _ = env.do(t, http.MethodGet, "/api/feed/following", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw = env.do(t, http.MethodGet, "/api/feed/global?limit=2", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Post](t, raw), 2)

	status, raw = env.do(t, http.MethodGet, "/api/feed/global?limit=2&offset=2", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Post](t, raw), 1)

	status, raw = env.do(t, http.MethodGet, "/api/feed/hashtags/POWDER", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Post](t, raw), 2)

	status, raw = env.do(t, http.MethodGet, "/api/hashtags/trending", nil, "")
	require.Equal(t, http.StatusOK, status)
	trending := decode[[]feed.TagCount](t, raw)
	require.NotEmpty(t, trending)
	assert.Equal(t, feed.TagCount{Tag: "powder", Count: 2}, trending[0])

	status, raw = env.do(t, http.MethodGet, "/api/users/"+bob.ID+"/posts", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Post](t, raw), 1)
}

func TestResortRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	p := env.post(t, alice.ID, map[string]string{"content": "Matterhorn views", "resort_id": "zermatt"})

	status, raw := env.do(t, http.MethodGet, "/api/resorts", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]resort.Resort](t, raw), resort.Default().Len())

	status, raw = env.do(t, http.MethodGet, "/api/resorts/zermatt", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "zermatt", decode[resort.Resort](t, raw).ID)

	status, _ = env.do(t, http.MethodGet, "/api/resorts/atlantis", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, raw = env.do(t, http.MethodGet, "/api/resorts/zermatt/posts", nil, "")
	require.Equal(t, http.StatusOK, status)
	posts := decode[[]models.Post](t, raw)
	require.Len(t, posts, 1)
	assert.Equal(t, p.ID, posts[0].ID)

	status, _ = env.do(t, http.MethodGet, "/api/resorts/atlantis/posts", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	status, raw := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "peakshare_store_mutations_total")
}

func TestStoredIDsSurviveLaterRequests(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")

	p := env.post(t, alice.ID, map[string]string{"content": "Dawn patrol #powder"})
	status, _ := env.do(t, http.MethodPost, "/api/users/"+carol.ID+"/follow", nil, alice.ID)
	require.Equal(t, http.StatusCreated, status)
	status, _ = env.do(t, http.MethodPost, "/api/posts/"+p.ID+"/like", nil, carol.ID)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/posts/"+p.ID+"/comments", map[string]string{"content": "send it"}, carol.ID)
	require.Equal(t, http.StatusCreated, status)

	for i := 0; i < 20; i++ {
		env.do(t, http.MethodGet, "/api/users/"+bob.ID+"/following", nil, bob.ID)
		env.do(t, http.MethodGet, "/api/feed/following", nil, bob.ID)
	}

	posts := env.st.ListPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, alice.ID, posts[0].UserID)
	assert.Equal(t, []string{carol.ID}, posts[0].LikedBy)
	require.Len(t, posts[0].Comments, 1)
	assert.Equal(t, carol.ID, posts[0].Comments[0].UserID)

	follows := env.st.ListFollows()
	require.Len(t, follows, 1)
	assert.Equal(t, alice.ID, follows[0].FollowerID)
	assert.Equal(t, carol.ID, follows[0].FollowingID)

	status, _ = env.do(t, http.MethodPost, "/api/users/"+carol.ID+"/follow", nil, alice.ID)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, env.st.ListFollows(), 1, "edge index still keyed by the original ids")

	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+p.ID, nil, bob.ID)
	assert.Equal(t, http.StatusForbidden, status)
}
