package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"peakshare/internal/observability"
	"peakshare/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func userEvent(id string) store.ChangeEvent {
	return store.ChangeEvent{Entity: store.EntityUser, Op: store.OpDelete, ID: id}
}

func TestDispatcher_AppliesEventsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newTestStore()
	rec := &recordingSink{name: "rec"}
	d := NewDispatcher(quietLogger(), 256, rec)
	d.Attach(st)

	var direct []string
	st.Subscribe(func(_ context.Context, ev store.ChangeEvent) {
		direct = append(direct, ev.ID)
	})

	populate(t, st)
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, direct, rec.IDs())
}

func TestDispatcher_SinkFailureDoesNotStopDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	failing := &failingSink{}
	rec := &recordingSink{name: "rec"}
	before := testutil.ToFloat64(observability.PersistenceErrors.WithLabelValues("failing", "user"))

	d := NewDispatcher(quietLogger(), 8, failing, rec)
	d.Enqueue(context.Background(), userEvent("u1"))
	d.Enqueue(context.Background(), userEvent("u2"))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, failing.calls)
	assert.Equal(t, []string{"u1", "u2"}, rec.IDs())
	after := testutil.ToFloat64(observability.PersistenceErrors.WithLabelValues("failing", "user"))
	assert.Equal(t, 2.0, after-before)
}

func TestDispatcher_StoreUnaffectedBySinkFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := newTestStore()
	d := NewDispatcher(quietLogger(), 64, &failingSink{})
	d.Attach(st)

	u, err := st.CreateUser(context.Background(), store.CreateUserInput{
		Email: "a@peakshare.app", Username: "alice", Password: "secret123",
	})
	require.NoError(t, err)
	require.NoError(t, d.Close(context.Background()))

	got, err := st.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := newGateSink()
	before := testutil.ToFloat64(observability.PersistenceDrops)

	d := NewDispatcher(quietLogger(), 1, gate)
	d.Enqueue(context.Background(), userEvent("u1"))
	<-gate.started

	d.Enqueue(context.Background(), userEvent("u2"))
	d.Enqueue(context.Background(), userEvent("u3"))

	close(gate.release)
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []string{"u1", "u2"}, gate.IDs())
	assert.Equal(t, 1.0, testutil.ToFloat64(observability.PersistenceDrops)-before)
}

func TestDispatcher_EnqueueAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recordingSink{name: "rec"}
	d := NewDispatcher(quietLogger(), 4, rec)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.Enqueue(context.Background(), userEvent("late"))
	assert.Empty(t, rec.IDs())
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := newGateSink()
	d := NewDispatcher(quietLogger(), 4, gate)
	d.Enqueue(context.Background(), userEvent("u1"))
	<-gate.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(gate.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"u1"}, gate.IDs())
}

func TestHydrate(t *testing.T) {
	src := newTestStore()
	rec := &snapshotSink{}
	populate(t, src)
	rec.snap = src.Snapshot()

	dst := newTestStore()
	snap, err := Hydrate(context.Background(), dst, rec)
	require.NoError(t, err)
	assert.Len(t, snap.Users, 3)
	assert.Equal(t, src.Snapshot(), dst.Snapshot())

	_, err = Hydrate(context.Background(), newTestStore(), &failingSink{})
	assert.Error(t, err)

	empty := newTestStore()
	_, err = Hydrate(context.Background(), empty, &snapshotSink{})
	require.NoError(t, err)
	assert.Empty(t, empty.ListUsers())
}

type snapshotSink struct{ snap store.Snapshot }

func (s *snapshotSink) Name() string { return "snapshot" }

func (s *snapshotSink) Apply(context.Context, store.ChangeEvent) error { return nil }

func (s *snapshotSink) Load(context.Context) (store.Snapshot, error) { return s.snap, nil }

func TestDispatcher_ConcurrentMutationsConverge(t *testing.T) {
	ctx := context.Background()
	sink, _, _ := newRedisSink(t)
	st := newTestStore()
	d := NewDispatcher(quietLogger(), 1<<14, sink)
	d.Attach(st)

	var ids []string
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		u, err := st.CreateUser(ctx, store.CreateUserInput{
			Email: name + "@peakshare.app", Username: name, Password: "secret123",
		})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	p, err := st.CreatePost(ctx, store.CreatePostInput{UserID: ids[0], Content: "storm day #powder"})
	require.NoError(t, err)

	// Two goroutines per edge, out of phase, so follows and unfollows of the
	// same pair race each other.
	var wg sync.WaitGroup
	for i := 0; i < 2*len(ids); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := ids[i%len(ids)]
			target := ids[(i+1)%len(ids)]
			for j := 0; j < 25; j++ {
				_, err := st.ToggleLike(ctx, p.ID, uid)
				assert.NoError(t, err)
				if (i/len(ids)+j)%2 == 0 {
					_, err = st.Follow(ctx, uid, target)
				} else {
					err = st.Unfollow(ctx, uid, target)
				}
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, d.Close(ctx))

	loaded, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Snapshot(), loaded)
}
