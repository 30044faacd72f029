package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// A Store persists post aggregates. SavePost is conditional on the version
// the aggregate was loaded with and returns ErrConflict when another write
// got there first. Implementations must never apply a partial mutation.
type Store interface {
	LoadPost(ctx context.Context, id string) (Post, error)
	ListPosts(ctx context.Context) ([]Post, error)
	SavePost(ctx context.Context, post Post) (Post, error)
	DeletePost(ctx context.Context, id string) error
}

// A Directory resolves a user id to the display profile captured on posts
// and comments.
type Directory interface {
	LookupUser(ctx context.Context, userID string) (Profile, error)
}

// Engine performs all post, like and comment mutations. Concurrent writes
// against the same post are resolved optimistically: each read-modify-write
// retries on version conflict up to maxSaveAttempts before giving up with
// ErrConflict.
type Engine struct {
	Store     Store
	Directory Directory
	Logger    *slog.Logger
}

const maxSaveAttempts = 3

// CreatePost creates a post authored by ident. The author's display name
// and avatar are snapshotted at creation time.
func (e *Engine) CreatePost(ctx context.Context, ident Identity, text string) (Post, error) {
	prof, err := e.Directory.LookupUser(ctx, ident.UserID)
	if err != nil {
		return Post{}, fmt.Errorf("lookup user: %w", err)
	}
	post := Post{
		ID:        uuid.NewString(),
		UserID:    ident.UserID,
		Text:      text,
		Name:      prof.Name,
		Avatar:    prof.Avatar,
		CreatedAt: time.Now().UTC(),
		Likes:     []Like{},
		Comments:  []Comment{},
	}
	saved, err := e.Store.SavePost(ctx, post)
	if err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	return saved, nil
}

// GetPost returns the post with the given id or ErrNotFound.
func (e *Engine) GetPost(ctx context.Context, id string) (Post, error) {
	return e.Store.LoadPost(ctx, id)
}

// ListPosts returns all posts, newest first.
func (e *Engine) ListPosts(ctx context.Context) ([]Post, error) {
	return e.Store.ListPosts(ctx)
}

// DeletePost removes a post. Only the author may delete it; the ownership
// check happens before anything is touched.
func (e *Engine) DeletePost(ctx context.Context, ident Identity, id string) error {
	post, err := e.Store.LoadPost(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != ident.UserID {
		return ErrNotOwner
	}
	if err := e.Store.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// Like records that ident liked the post and returns the updated like
// sequence. A second like by the same user fails with ErrAlreadyLiked.
func (e *Engine) Like(ctx context.Context, ident Identity, postID string) ([]Like, error) {
	post, err := e.mutate(ctx, postID, func(p *Post) error {
		for _, l := range p.Likes {
			if l.UserID == ident.UserID {
				return ErrAlreadyLiked
			}
		}
		p.Likes = append([]Like{{UserID: ident.UserID}}, p.Likes...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Likes, nil
}

// Unlike removes ident's like from the post and returns the updated
// sequence. The like is matched by user id, not by position.
func (e *Engine) Unlike(ctx context.Context, ident Identity, postID string) ([]Like, error) {
	post, err := e.mutate(ctx, postID, func(p *Post) error {
		for i, l := range p.Likes {
			if l.UserID == ident.UserID {
				p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
				return nil
			}
		}
		return ErrNotLiked
	})
	if err != nil {
		return nil, err
	}
	return post.Likes, nil
}

// AddComment prepends a comment by ident to the post and returns the
// updated comment sequence. The commenter's display profile is snapshotted.
func (e *Engine) AddComment(ctx context.Context, ident Identity, postID, text string) ([]Comment, error) {
	prof, err := e.Directory.LookupUser(ctx, ident.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	comment := Comment{
		ID:        uuid.NewString(),
		UserID:    ident.UserID,
		Text:      text,
		Name:      prof.Name,
		Avatar:    prof.Avatar,
		CreatedAt: time.Now().UTC(),
	}
	post, err := e.mutate(ctx, postID, func(p *Post) error {
		p.Comments = append([]Comment{comment}, p.Comments...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Comments, nil
}

// DeleteComment removes the comment matched by its own id. The comment
// must exist and belong to ident; the match happens before the ownership
// check, and removal targets exactly the matched comment.
func (e *Engine) DeleteComment(ctx context.Context, ident Identity, postID, commentID string) ([]Comment, error) {
	post, err := e.mutate(ctx, postID, func(p *Post) error {
		idx := -1
		for i, c := range p.Comments {
			if c.ID == commentID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		if p.Comments[idx].UserID != ident.UserID {
			return ErrNotOwner
		}
		p.Comments = append(p.Comments[:idx], p.Comments[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Comments, nil
}

// mutate runs a load-apply-save cycle on the post, retrying on version
// conflicts. Errors from apply abort without touching persisted state.
func (e *Engine) mutate(ctx context.Context, postID string, apply func(*Post) error) (Post, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		post, err := e.Store.LoadPost(ctx, postID)
		if err != nil {
			return Post{}, err
		}
		if err := apply(&post); err != nil {
			return Post{}, err
		}
		saved, err := e.Store.SavePost(ctx, post)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Post{}, fmt.Errorf("save post: %w", err)
		}
		lastErr = err
		if e.Logger != nil {
			e.Logger.Warn("Post save conflict, retrying", "post_id", postID, "attempt", attempt)
		}
	}
	return Post{}, lastErr
}
