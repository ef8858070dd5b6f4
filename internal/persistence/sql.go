package persistence

import (
	"context"
	"fmt"
	"time"

	"peakshare/internal/models"
	"peakshare/internal/observability"
	"peakshare/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Row models. Seq is an auto-increment key recording insertion order so Load
// can rebuild the store in the same order it was written.

type userRow struct {
	Seq             uint64 `gorm:"primaryKey;autoIncrement"`
	ID              string `gorm:"uniqueIndex;size:64"`
	Email           string `gorm:"size:254"`
	Username        string `gorm:"size:30"`
	FullName        string
	Bio             *string
	ProfileImageURL *string
	Website         *string
	Location        *string
	PasswordHash    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (userRow) TableName() string { return "users" }

type postRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"uniqueIndex;size:64"`
	UserID    string `gorm:"index;size:64"`
	Content   string
	ResortID  *string `gorm:"index;size:64"`
	ImageURL  *string
	CreatedAt time.Time
}

func (postRow) TableName() string { return "posts" }

type commentRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"uniqueIndex;size:64"`
	PostID    string `gorm:"index;size:64"`
	UserID    string `gorm:"size:64"`
	Content   string
	CreatedAt time.Time
}

func (commentRow) TableName() string { return "comments" }

type likeRow struct {
	Seq    uint64 `gorm:"primaryKey;autoIncrement"`
	PostID string `gorm:"uniqueIndex:idx_likes_post_user;size:64"`
	UserID string `gorm:"uniqueIndex:idx_likes_post_user;size:64"`
}

func (likeRow) TableName() string { return "likes" }

type followRow struct {
	Seq         uint64 `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex;size:64"`
	FollowerID  string `gorm:"uniqueIndex:idx_follows_edge;size:64"`
	FollowingID string `gorm:"uniqueIndex:idx_follows_edge;size:64"`
	CreatedAt   time.Time
}

func (followRow) TableName() string { return "follows" }

// SQLSink persists change events through gorm.
type SQLSink struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSQLSink wraps db. Call Migrate before first use on a fresh database.
func NewSQLSink(db *gorm.DB, log *observability.Logger) *SQLSink {
	return &SQLSink{db: db, log: observability.NewRepoLoggerWith("sql_sink", log)}
}

// Name implements Sink.
func (s *SQLSink) Name() string { return "sql" }

// Migrate creates or updates the tables.
func (s *SQLSink) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&userRow{},
		&postRow{},
		&commentRow{},
		&likeRow{},
		&followRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Apply implements Sink.
func (s *SQLSink) Apply(ctx context.Context, ev store.ChangeEvent) error {
	db := s.db.WithContext(ctx)

	var err error
	switch {
	case ev.Entity == store.EntityUser && ev.Op == store.OpUpsert && ev.User != nil:
		err = upsertUser(db, ev.User)
	case ev.Entity == store.EntityUser && ev.Op == store.OpDelete:
		err = db.Where("id = ?", ev.ID).Delete(&userRow{}).Error
	case ev.Entity == store.EntityPost && ev.Op == store.OpUpsert && ev.Post != nil:
		err = db.Transaction(func(tx *gorm.DB) error { return upsertPost(tx, ev.Post) })
	case ev.Entity == store.EntityPost && ev.Op == store.OpDelete:
		err = db.Transaction(func(tx *gorm.DB) error { return deletePost(tx, ev.ID) })
	case ev.Entity == store.EntityFollow && ev.Op == store.OpUpsert && ev.Follow != nil:
		err = upsertFollow(db, ev.Follow)
	case ev.Entity == store.EntityFollow && ev.Op == store.OpDelete:
		err = db.Where("id = ?", ev.ID).Delete(&followRow{}).Error
	default:
		return fmt.Errorf("sql sink: unsupported event %s/%s", ev.Entity, ev.Op)
	}
	if err != nil {
		return fmt.Errorf("sql sink %s/%s %s: %w", ev.Entity, ev.Op, ev.ID, err)
	}

	fields := map[string]interface{}{"entity": string(ev.Entity), "id": ev.ID}
	if ev.Op == store.OpDelete {
		s.log.LogDelete(ctx, fields)
	} else {
		s.log.LogUpdate(ctx, fields)
	}
	return nil
}

func upsertUser(db *gorm.DB, u *models.User) error {
	row := userRow{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		FullName:        u.FullName,
		Bio:             u.Bio,
		ProfileImageURL: u.ProfileImageURL,
		Website:         u.Website,
		Location:        u.Location,
		PasswordHash:    u.PasswordHash,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "username", "full_name", "bio", "profile_image_url",
			"website", "location", "password_hash", "updated_at",
		}),
	}).Create(&row).Error
}

// upsertPost rewrites the post row and replaces its comments and likes so
// the stored lists match the event exactly, order included.
func upsertPost(tx *gorm.DB, p *models.Post) error {
	row := postRow{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		ResortID:  p.ResortID,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "resort_id", "image_url"}),
	}).Create(&row).Error; err != nil {
		return err
	}

	if err := tx.Where("post_id = ?", p.ID).Delete(&commentRow{}).Error; err != nil {
		return err
	}
	if len(p.Comments) > 0 {
		comments := make([]commentRow, 0, len(p.Comments))
		for _, c := range p.Comments {
			comments = append(comments, commentRow{
				ID:        c.ID,
				PostID:    p.ID,
				UserID:    c.UserID,
				Content:   c.Content,
				CreatedAt: c.CreatedAt,
			})
		}
		if err := tx.Create(&comments).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("post_id = ?", p.ID).Delete(&likeRow{}).Error; err != nil {
		return err
	}
	if len(p.LikedBy) > 0 {
		likes := make([]likeRow, 0, len(p.LikedBy))
		for _, uid := range p.LikedBy {
			likes = append(likes, likeRow{PostID: p.ID, UserID: uid})
		}
		if err := tx.Create(&likes).Error; err != nil {
			return err
		}
	}
	return nil
}

func deletePost(tx *gorm.DB, postID string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&commentRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("post_id = ?", postID).Delete(&likeRow{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", postID).Delete(&postRow{}).Error
}

func upsertFollow(db *gorm.DB, f *models.Follow) error {
	row := followRow{
		ID:          f.ID,
		FollowerID:  f.FollowerID,
		FollowingID: f.FollowingID,
		CreatedAt:   f.CreatedAt,
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Load implements Sink.
func (s *SQLSink) Load(ctx context.Context) (store.Snapshot, error) {
	db := s.db.WithContext(ctx)
	snap := store.Snapshot{
		Users:   []*models.User{},
		Posts:   []*models.Post{},
		Follows: []*models.Follow{},
	}

	var users []userRow
	if err := db.Order("seq").Find(&users).Error; err != nil {
		return snap, fmt.Errorf("load users: %w", err)
	}
	for _, r := range users {
		snap.Users = append(snap.Users, &models.User{
			ID:              r.ID,
			Email:           r.Email,
			Username:        r.Username,
			FullName:        r.FullName,
			Bio:             r.Bio,
			ProfileImageURL: r.ProfileImageURL,
			Website:         r.Website,
			Location:        r.Location,
			PasswordHash:    r.PasswordHash,
			CreatedAt:       r.CreatedAt.UTC(),
			UpdatedAt:       r.UpdatedAt.UTC(),
		})
	}

	var posts []postRow
	if err := db.Order("seq").Find(&posts).Error; err != nil {
		return snap, fmt.Errorf("load posts: %w", err)
	}
	var comments []commentRow
	if err := db.Order("seq").Find(&comments).Error; err != nil {
		return snap, fmt.Errorf("load comments: %w", err)
	}
	var likes []likeRow
	if err := db.Order("seq").Find(&likes).Error; err != nil {
		return snap, fmt.Errorf("load likes: %w", err)
	}

	byPost := make(map[string]*models.Post, len(posts))
	for _, r := range posts {
		p := &models.Post{
			ID:        r.ID,
			UserID:    r.UserID,
			Content:   r.Content,
			ResortID:  r.ResortID,
			ImageURL:  r.ImageURL,
			CreatedAt: r.CreatedAt.UTC(),
			LikedBy:   []string{},
			Comments:  []*models.Comment{},
		}
		byPost[p.ID] = p
		snap.Posts = append(snap.Posts, p)
	}
	for _, r := range comments {
		if p, ok := byPost[r.PostID]; ok {
			p.Comments = append(p.Comments, &models.Comment{
				ID:        r.ID,
				PostID:    r.PostID,
				UserID:    r.UserID,
				Content:   r.Content,
				CreatedAt: r.CreatedAt.UTC(),
			})
		}
	}
	for _, r := range likes {
		if p, ok := byPost[r.PostID]; ok {
			p.LikedBy = append(p.LikedBy, r.UserID)
			p.Likes = len(p.LikedBy)
		}
	}

	var follows []followRow
	if err := db.Order("seq").Find(&follows).Error; err != nil {
		return snap, fmt.Errorf("load follows: %w", err)
	}
	for _, r := range follows {
		snap.Follows = append(snap.Follows, &models.Follow{
			ID:          r.ID,
			FollowerID:  r.FollowerID,
			FollowingID: r.FollowingID,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}

	return snap, nil
}
