package persistence

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"peakshare/internal/observability"
	"peakshare/internal/resort"
	"peakshare/internal/store"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(&bytes.Buffer{}, "test", "error")
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore() *store.Store {
	clock := &testClock{now: time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)}
	n := 0
	var mu sync.Mutex
	return store.New(
		store.WithClock(clock.Now),
		store.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		store.WithBcryptCost(bcrypt.MinCost),
		store.WithResorts(resort.Default()),
		store.WithLogger(quietLogger()),
	)
}

// populate drives st through every kind of mutation.
func populate(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()

	mk := func(name string) string {
		u, err := st.CreateUser(ctx, store.CreateUserInput{
			Email:    name + "@peakshare.app",
			Username: name,
			Password: "secret123",
			FullName: name + " skier",
		})
		require.NoError(t, err)
		return u.ID
	}
	alice, bob, carol := mk("alice"), mk("bob"), mk("carol")

	bio := "Tele skier"
	_, err := st.UpdateUser(ctx, alice, store.UpdateUserInput{Bio: &bio})
	require.NoError(t, err)

	p1, err := st.CreatePost(ctx, store.CreatePostInput{UserID: alice, Content: "First chair #powder", ResortID: "vail"})
	require.NoError(t, err)
	p2, err := st.CreatePost(ctx, store.CreatePostInput{UserID: bob, ImageURL: "https://img.example/1.jpg"})
	require.NoError(t, err)
	p3, err := st.CreatePost(ctx, store.CreatePostInput{UserID: carol, Content: "to be deleted"})
	require.NoError(t, err)

	_, err = st.AddComment(ctx, p1.ID, bob, "nice")
	require.NoError(t, err)
	c2, err := st.AddComment(ctx, p1.ID, carol, "jealous")
	require.NoError(t, err)
	_, err = st.AddComment(ctx, p1.ID, alice, "thanks")
	require.NoError(t, err)
	require.NoError(t, st.RemoveComment(ctx, p1.ID, c2.ID))
	_, err = st.AddComment(ctx, p3.ID, alice, "gone with the post")
	require.NoError(t, err)

	for _, u := range []string{bob, carol, alice} {
		_, err = st.ToggleLike(ctx, p1.ID, u)
		require.NoError(t, err)
	}
	_, err = st.ToggleLike(ctx, p1.ID, carol)
	require.NoError(t, err)
	_, err = st.ToggleLike(ctx, p2.ID, alice)
	require.NoError(t, err)

	_, err = st.Follow(ctx, alice, bob)
	require.NoError(t, err)
	_, err = st.Follow(ctx, bob, alice)
	require.NoError(t, err)
	_, err = st.Follow(ctx, carol, alice)
	require.NoError(t, err)
	require.NoError(t, st.Unfollow(ctx, carol, alice))

	require.NoError(t, st.DeletePost(ctx, p3.ID))
}

// recordingSink remembers every applied event.
type recordingSink struct {
	mu     sync.Mutex
	name   string
	events []store.ChangeEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Apply(_ context.Context, ev store.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Load(context.Context) (store.Snapshot, error) {
	return store.Snapshot{}, nil
}

func (s *recordingSink) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		ids = append(ids, ev.ID)
	}
	return ids
}

// failingSink rejects every event.
type failingSink struct{ calls int }

func (s *failingSink) Name() string { return "failing" }

func (s *failingSink) Apply(context.Context, store.ChangeEvent) error {
	s.calls++
	return fmt.Errorf("disk full")
}

func (s *failingSink) Load(context.Context) (store.Snapshot, error) {
	return store.Snapshot{}, fmt.Errorf("disk full")
}

// gateSink blocks in Apply until released.
type gateSink struct {
	recordingSink
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateSink() *gateSink {
	return &gateSink{
		recordingSink: recordingSink{name: "gate"},
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (s *gateSink) Apply(ctx context.Context, ev store.ChangeEvent) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.recordingSink.Apply(ctx, ev)
}
