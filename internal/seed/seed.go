// Package seed fills a store with demo skiers, posts and social activity for
// local development.
package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"peakshare/internal/models"
	"peakshare/internal/observability"
	"peakshare/internal/resort"
	"peakshare/internal/store"

	"github.com/brianvoe/gofakeit/v6"
)

// DemoPassword is the credential every seeded account gets.
const DemoPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// FollowsPerUser is the number of follow edges each user tries to create.
	FollowsPerUser int
}

// Result counts what a seeding run created.
type Result struct {
	Users    int `json:"users"`
	Posts    int `json:"posts"`
	Follows  int `json:"follows"`
	Comments int `json:"comments"`
	Likes    int `json:"likes"`
}

var (
	hashtags = []string{
		"powder", "bluebird", "firstchair", "apres", "groomers",
		"backcountry", "sendit", "treeskiing", "parkday", "corduroy",
	}

	openers = []string{
		"Unreal conditions today", "Legs are done", "Lapped the same chair all morning",
		"Visibility was rough but worth it", "Finally dialed in my turns",
		"Caught the last chair", "Fresh tracks before nine", "Spring slush laps",
	}

	comments = []string{
		"So jealous!", "Looks epic", "Save some for me", "Which run is that?",
		"Sending it", "Next weekend?", "That light though", "Need to get out there",
	}

	usernameStrip = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
)

// Seeder creates demo data through the store's public operations so every
// invariant and change event applies as for real traffic.
type Seeder struct {
	st      *store.Store
	resorts *resort.Catalog
	faker   *gofakeit.Faker
	log     *observability.Logger
}

// New returns a Seeder writing to st. A nil catalog skips resort tagging.
// The same non-zero seed reproduces the same data; zero picks a random one.
func New(st *store.Store, resorts *resort.Catalog, log *observability.Logger, seed int64) *Seeder {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &Seeder{st: st, resorts: resorts, faker: gofakeit.New(seed), log: log}
}

// Run creates opts.NumUsers users and opts.NumPosts posts, then follows,
// comments and likes between them.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.NumUsers <= 0 {
		return res, nil
	}
	if opts.FollowsPerUser <= 0 {
		opts.FollowsPerUser = 3
	}

	users := make([]*models.User, 0, opts.NumUsers)
	for len(users) < opts.NumUsers {
		u, err := s.createUser(ctx)
		if models.IsConflict(err) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)

	for _, u := range users {
		for i := 0; i < opts.FollowsPerUser && len(users) > 1; i++ {
			target := users[s.faker.Number(0, len(users)-1)]
			if target.ID == u.ID {
				continue
			}
			if s.following(u.ID, target.ID) {
				continue
			}
			if _, err := s.st.Follow(ctx, u.ID, target.ID); err != nil {
				return res, fmt.Errorf("seed follow: %w", err)
			}
			res.Follows++
		}
	}

	for i := 0; i < opts.NumPosts; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		p, err := s.st.CreatePost(ctx, s.postInput(author.ID))
		if err != nil {
			return res, fmt.Errorf("seed post: %w", err)
		}
		res.Posts++

		for n := s.faker.Number(0, 2); n > 0; n-- {
			commenter := users[s.faker.Number(0, len(users)-1)]
			text := comments[s.faker.Number(0, len(comments)-1)]
			if _, err := s.st.AddComment(ctx, p.ID, commenter.ID, text); err != nil {
				return res, fmt.Errorf("seed comment: %w", err)
			}
			res.Comments++
		}

		var last store.LikeResult
		for n := s.faker.Number(0, len(users)/2); n > 0; n-- {
			liker := users[s.faker.Number(0, len(users)-1)]
			if last, err = s.st.ToggleLike(ctx, p.ID, liker.ID); err != nil {
				return res, fmt.Errorf("seed like: %w", err)
			}
		}
		res.Likes += last.LikeCount
	}

	s.log.InfoContext(ctx, "demo data seeded",
		"users", res.Users,
		"posts", res.Posts,
		"follows", res.Follows,
		"comments", res.Comments,
		"likes", res.Likes,
	)
	return res, nil
}

func (s *Seeder) following(followerID, followingID string) bool {
	var ok bool
	s.st.Read(func(r store.Reader) {
		ok = r.HasEdge(followerID, followingID)
	})
	return ok
}

func (s *Seeder) createUser(ctx context.Context) (*models.User, error) {
	first, last := s.faker.FirstName(), s.faker.LastName()
	username := usernameStrip.ReplaceAllString(strings.ToLower(first+"."+last), "")
	if len(username) > 24 {
		username = username[:24]
	}
	username = fmt.Sprintf("%s%d", username, s.faker.Number(10, 99))

	return s.st.CreateUser(ctx, store.CreateUserInput{
		Email:           username + "@peakshare.app",
		Username:        username,
		Password:        DemoPassword,
		FullName:        first + " " + last,
		Bio:             s.faker.Sentence(8),
		ProfileImageURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", s.faker.UUID()),
		Location:        s.faker.City(),
	})
}

func (s *Seeder) postInput(userID string) store.CreatePostInput {
	in := store.CreatePostInput{
		UserID: userID,
		Content: fmt.Sprintf("%s. #%s #%s",
			openers[s.faker.Number(0, len(openers)-1)],
			hashtags[s.faker.Number(0, len(hashtags)-1)],
			hashtags[s.faker.Number(0, len(hashtags)-1)],
		),
	}
	if s.faker.Number(0, 2) == 0 {
		in.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID())
	}
	if s.resorts != nil && s.resorts.Len() > 0 && s.faker.Bool() {
		ids := s.resorts.IDs()
		in.ResortID = ids[s.faker.Number(0, len(ids)-1)]
	}
	return in
}
