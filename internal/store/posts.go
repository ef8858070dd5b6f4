package store

import (
	"context"
	"strings"

	"peakshare/internal/models"
)

const (
	maxContentLen = 2200
	maxCommentLen = 1000
)

// CreatePostInput is the payload for a new post. ResortID and ImageURL are optional.
type CreatePostInput struct {
	UserID   string
	Content  string
	ResortID string
	ImageURL string
}

// LikeResult reports the state of a post's like after a toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// CreatePost publishes a post for an existing user. A post needs text or an image.
func (s *Store) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	imageURL := strings.TrimSpace(in.ImageURL)
	resortID := strings.TrimSpace(in.ResortID)

	var created *models.Post
	err := s.write(ctx, "create_post", s.postLog, func() (*ChangeEvent, error) {
		if _, ok := s.users[in.UserID]; !ok {
			return nil, models.NewNotFoundError("User", in.UserID)
		}
		if content == "" && imageURL == "" {
			return nil, models.NewValidationError("Post needs content or an image")
		}
		if len(content) > maxContentLen {
			return nil, models.NewValidationError("Content too long (max 2200 characters)")
		}
		if resortID != "" && s.resorts != nil && !s.resorts.Has(resortID) {
			return nil, models.NewValidationError("Unknown resort " + resortID)
		}

		p := &models.Post{
			ID:        s.newID(),
			UserID:    in.UserID,
			Content:   content,
			ResortID:  models.StringPtr(resortID),
			ImageURL:  models.StringPtr(imageURL),
			CreatedAt: s.now(),
			LikedBy:   []string{},
			Comments:  []*models.Comment{},
		}
		s.posts[p.ID] = p
		s.postOrder = append(s.postOrder, p.ID)

		created = p.Clone()
		return s.postEvent(p), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeletePost removes a post together with its comments and likes. Deleting
// an unknown (or already deleted) post fails with a not-found error.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	return s.write(ctx, "delete_post", s.postLog, func() (*ChangeEvent, error) {
		return s.deletePostLocked(postID)
	})
}

// DeletePostAs deletes a post on behalf of actorID, who must own it.
func (s *Store) DeletePostAs(ctx context.Context, actorID, postID string) error {
	return s.write(ctx, "delete_post", s.postLog, func() (*ChangeEvent, error) {
		p, ok := s.posts[postID]
		if !ok {
			return nil, models.NewNotFoundError("Post", postID)
		}
		if p.UserID != actorID {
			return nil, models.NewUnauthorizedError("You can only delete your own posts")
		}
		return s.deletePostLocked(postID)
	})
}

func (s *Store) deletePostLocked(postID string) (*ChangeEvent, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	delete(s.posts, postID)
	s.postOrder = removeID(s.postOrder, postID)
	return &ChangeEvent{Entity: EntityPost, Op: OpDelete, ID: postID, Post: p.Clone(), At: s.now()}, nil
}

// AddComment appends a comment by userID to the post.
func (s *Store) AddComment(ctx context.Context, postID, userID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)

	var created *models.Comment
	err := s.write(ctx, "add_comment", s.postLog, func() (*ChangeEvent, error) {
		p, ok := s.posts[postID]
		if !ok {
			return nil, models.NewNotFoundError("Post", postID)
		}
		if _, ok := s.users[userID]; !ok {
			return nil, models.NewNotFoundError("User", userID)
		}
		if text == "" {
			return nil, models.NewValidationError("Comment text is required")
		}
		if len(text) > maxCommentLen {
			return nil, models.NewValidationError("Comment too long (max 1000 characters)")
		}

		c := &models.Comment{
			ID:        s.newID(),
			PostID:    postID,
			UserID:    userID,
			Content:   text,
			CreatedAt: s.now(),
		}
		p.Comments = append(p.Comments, c)

		cp := *c
		created = &cp
		return s.postEvent(p), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RemoveComment deletes a comment from a post, keeping the order of the rest.
func (s *Store) RemoveComment(ctx context.Context, postID, commentID string) error {
	return s.write(ctx, "remove_comment", s.postLog, func() (*ChangeEvent, error) {
		return s.removeCommentLocked(postID, commentID, nil)
	})
}

// RemoveCommentAs deletes a comment on behalf of actorID, who must be the
// comment author or the post owner.
func (s *Store) RemoveCommentAs(ctx context.Context, actorID, postID, commentID string) error {
	return s.write(ctx, "remove_comment", s.postLog, func() (*ChangeEvent, error) {
		return s.removeCommentLocked(postID, commentID, func(p *models.Post, c *models.Comment) error {
			if c.UserID != actorID && p.UserID != actorID {
				return models.NewUnauthorizedError("You can only delete your own comments")
			}
			return nil
		})
	})
}

func (s *Store) removeCommentLocked(postID, commentID string, authorize func(*models.Post, *models.Comment) error) (*ChangeEvent, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	for i, c := range p.Comments {
		if c.ID != commentID {
			continue
		}
		if authorize != nil {
			if err := authorize(p, c); err != nil {
				return nil, err
			}
		}
		remaining := make([]*models.Comment, 0, len(p.Comments)-1)
		remaining = append(remaining, p.Comments[:i]...)
		remaining = append(remaining, p.Comments[i+1:]...)
		p.Comments = remaining
		return s.postEvent(p), nil
	}
	return nil, models.NewNotFoundError("Comment", commentID)
}

// ToggleLike adds userID to the post's like set, or removes it if present.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (LikeResult, error) {
	var res LikeResult
	err := s.write(ctx, "toggle_like", s.postLog, func() (*ChangeEvent, error) {
		p, ok := s.posts[postID]
		if !ok {
			return nil, models.NewNotFoundError("Post", postID)
		}
		if _, ok := s.users[userID]; !ok {
			return nil, models.NewNotFoundError("User", userID)
		}

		if p.LikedByUser(userID) {
			p.LikedBy = removeID(p.LikedBy, userID)
			res.Liked = false
		} else {
			p.LikedBy = append(p.LikedBy, userID)
			res.Liked = true
		}
		p.Likes = len(p.LikedBy)
		res.LikeCount = p.Likes
		return s.postEvent(p), nil
	})
	return res, err
}

// GetPost returns a copy of the post.
func (s *Store) GetPost(id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	return p.Clone(), nil
}

// ListPosts returns every post in creation order.
func (s *Store) ListPosts() []*models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Post, 0, len(s.postOrder))
	for _, id := range s.postOrder {
		out = append(out, s.posts[id].Clone())
	}
	return out
}

func (s *Store) postEvent(p *models.Post) *ChangeEvent {
	return &ChangeEvent{Entity: EntityPost, Op: OpUpsert, ID: p.ID, Post: p.Clone(), At: s.now()}
}
