// Package store is the authoritative in-memory holder of users, posts and
// follow edges. Every mutation is serialized behind a single writer lock and
// reported to subscribers once committed.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"peakshare/internal/models"
	"peakshare/internal/observability"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ResortLookup validates resort ids referenced by posts.
type ResortLookup interface {
	Has(id string) bool
}

type edgeKey struct {
	follower  string
	following string
}

// Store holds the Users, Posts and Follows collections.
type Store struct {
	mu sync.RWMutex

	users     map[string]*models.User
	userOrder []string
	usernames map[string]string // lower(username) -> user id
	emails    map[string]string // lower(email) -> user id

	posts     map[string]*models.Post
	postOrder []string

	follows     map[string]*models.Follow
	followOrder []string
	edges       map[edgeKey]string

	listenersMu sync.RWMutex
	listeners   []Listener

	// emitMu is taken before mu is released so events reach listeners in
	// commit order.
	emitMu sync.Mutex

	now        func() time.Time
	newID      func() string
	resorts    ResortLookup
	bcryptCost int

	userLog   *observability.RepoLogger
	postLog   *observability.RepoLogger
	followLog *observability.RepoLogger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithResorts enables validation of Post.ResortID against a catalog.
func WithResorts(r ResortLookup) Option {
	return func(s *Store) { s.resorts = r }
}

// WithBcryptCost sets the hashing cost for registration credentials.
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.bcryptCost = cost }
}

// WithLogger routes store logs through l.
func WithLogger(l *observability.Logger) Option {
	return func(s *Store) {
		s.userLog = observability.NewRepoLoggerWith("users", l)
		s.postLog = observability.NewRepoLoggerWith("posts", l)
		s.followLog = observability.NewRepoLoggerWith("follows", l)
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		users:      make(map[string]*models.User),
		usernames:  make(map[string]string),
		emails:     make(map[string]string),
		posts:      make(map[string]*models.Post),
		follows:    make(map[string]*models.Follow),
		edges:      make(map[edgeKey]string),
		now:        time.Now,
		newID:      uuid.NewString,
		bcryptCost: bcrypt.DefaultCost,
		userLog:    observability.NewRepoLogger("users"),
		postLog:    observability.NewRepoLogger("posts"),
		followLog:  observability.NewRepoLogger("follows"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// write runs fn under the writer lock, then records the outcome and emits
// the resulting event. Emission happens after mu is released but before the
// next committed mutation can emit, so listeners see commit order.
func (s *Store) write(ctx context.Context, op string, log *observability.RepoLogger, fn func() (*ChangeEvent, error)) error {
	ev, err := func() (*ChangeEvent, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ev, err := fn()
		if err == nil && ev != nil {
			s.emitMu.Lock()
		}
		return ev, err
	}()
	if err != nil {
		return s.reject(ctx, op, log, err)
	}
	if ev == nil {
		return nil
	}
	defer s.emitMu.Unlock()

	ev.CorrelationID = observability.ExtractCorrelationID(ctx)
	observability.StoreMutations.WithLabelValues(string(ev.Entity), op).Inc()
	fields := map[string]interface{}{"id": ev.ID, "op": op}
	if ev.Op == OpDelete {
		log.LogDelete(ctx, fields)
	} else {
		log.LogUpdate(ctx, fields)
	}
	s.emit(ctx, *ev)
	return nil
}

func (s *Store) reject(ctx context.Context, op string, log *observability.RepoLogger, err error) error {
	observability.StoreRejections.WithLabelValues(op, models.ErrorCode(err)).Inc()
	log.LogError(ctx, err, op)
	return err
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
