package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"peakshare/internal/config"
	"peakshare/internal/database"
	"peakshare/internal/models"
	"peakshare/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newSQLSink(t *testing.T) *SQLSink {
	t.Helper()
	cfg := &config.Config{PersistenceDriver: config.DriverSQLite, SQLitePath: ":memory:"}
	db, err := database.Connect(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	sink := NewSQLSink(db, quietLogger())
	require.NoError(t, sink.Migrate(context.Background()))
	return sink
}

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

// mirror applies every store event to sink synchronously.
func mirror(t *testing.T, st *store.Store, sink Sink) {
	st.Subscribe(func(ctx context.Context, ev store.ChangeEvent) {
		require.NoError(t, sink.Apply(ctx, ev))
	})
}

func TestSQLSink_RoundTrip(t *testing.T) {
	sink := newSQLSink(t)
	st := newTestStore()
	mirror(t, st, sink)
	populate(t, st)

	loaded, err := sink.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st.Snapshot(), loaded)

	restored := newTestStore()
	_, err = Hydrate(context.Background(), restored, sink)
	require.NoError(t, err)
	assert.Equal(t, st.Snapshot(), restored.Snapshot())
}

func TestSQLSink_ApplyIsIdempotent(t *testing.T) {
	sink := newSQLSink(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	user := &models.User{ID: "u1", Email: "a@peakshare.app", Username: "alice", PasswordHash: "h", CreatedAt: at, UpdatedAt: at}
	post := &models.Post{ID: "p1", UserID: "u1", Content: "hi", CreatedAt: at, Likes: 1, LikedBy: []string{"u1"}, Comments: []*models.Comment{}}
	follow := &models.Follow{ID: "f1", FollowerID: "u1", FollowingID: "u2", CreatedAt: at}

	for i := 0; i < 2; i++ {
		require.NoError(t, sink.Apply(ctx, store.ChangeEvent{Entity: store.EntityUser, Op: store.OpUpsert, ID: "u1", User: user}))
		require.NoError(t, sink.Apply(ctx, store.ChangeEvent{Entity: store.EntityPost, Op: store.OpUpsert, ID: "p1", Post: post}))
		require.NoError(t, sink.Apply(ctx, store.ChangeEvent{Entity: store.EntityFollow, Op: store.OpUpsert, ID: "f1", Follow: follow}))
	}

	snap, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Users, 1)
	require.Len(t, snap.Posts, 1)
	assert.Equal(t, []string{"u1"}, snap.Posts[0].LikedBy)
	assert.Equal(t, 1, snap.Posts[0].Likes)
	assert.Len(t, snap.Follows, 1)
	assert.Equal(t, "h", snap.Users[0].PasswordHash)

	require.NoError(t, sink.Apply(ctx, store.ChangeEvent{Entity: store.EntityPost, Op: store.OpDelete, ID: "p1"}))
	require.NoError(t, sink.Apply(ctx, store.ChangeEvent{Entity: store.EntityFollow, Op: store.OpDelete, ID: "f1"}))
	snap, err = sink.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Posts)
	assert.Empty(t, snap.Follows)
}

func TestSQLSink_UnsupportedEvent(t *testing.T) {
	sink := newSQLSink(t)
	err := sink.Apply(context.Background(), store.ChangeEvent{Entity: store.EntityPost, Op: store.OpUpsert, ID: "p1"})
	assert.Error(t, err)
}

func TestSQLSink_ApplyFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	sink := NewSQLSink(db, quietLogger())

	mock.ExpectBegin().WillReturnError(errors.New("connection reset by peer"))

	err := sink.Apply(context.Background(), store.ChangeEvent{
		Entity: store.EntityPost,
		Op:     store.OpDelete,
		ID:     "p1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSink_LoadFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	sink := NewSQLSink(db, quietLogger())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnError(errors.New("relation \"users\" does not exist"))

	_, err := sink.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSink_LoadQueriesInInsertionOrder(t *testing.T) {
	db, mock := setupMockDB(t)
	sink := NewSQLSink(db, quietLogger())
	at := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" ORDER BY seq`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "id", "email", "username", "password_hash", "created_at", "updated_at"}).
			AddRow(1, "u1", "a@peakshare.app", "alice", "h", at, at))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" ORDER BY seq`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "id", "user_id", "content", "created_at"}).
			AddRow(1, "p1", "u1", "hi", at))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "comments" ORDER BY seq`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "id", "post_id", "user_id", "content", "created_at"}).
			AddRow(1, "c1", "p1", "u1", "first", at))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "likes" ORDER BY seq`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "post_id", "user_id"}).AddRow(1, "p1", "u1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "follows" ORDER BY seq`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "id", "follower_id", "following_id", "created_at"}))

	snap, err := sink.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Posts, 1)
	assert.Equal(t, 1, snap.Posts[0].Likes)
	require.Len(t, snap.Posts[0].Comments, 1)
	assert.Equal(t, "first", snap.Posts[0].Comments[0].Content)
	assert.Empty(t, snap.Follows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
