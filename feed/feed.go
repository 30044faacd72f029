// Package feed holds the post aggregate and the interaction engine that
// mutates it. Every mutation is gated by ownership or uniqueness rules and
// persisted through a Store as a single unit.
package feed

import (
	"errors"
	"time"
)

// Error kinds returned by the engine. Callers dispatch with errors.Is.
var (
	// ErrNotFound reports that a post, or a comment within a post, does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner reports that the acting user is not the author of the
	// post or comment being mutated.
	ErrNotOwner = errors.New("not the owner")

	// ErrAlreadyLiked reports that the acting user has already liked the
	// post.
	ErrAlreadyLiked = errors.New("already liked")

	// ErrNotLiked reports that the acting user has no like to remove.
	ErrNotLiked = errors.New("not liked")

	// ErrConflict reports a concurrent write collision on the aggregate.
	ErrConflict = errors.New("concurrent modification")
)

// An Identity is the trusted user id resolved from a verified credential.
type Identity struct {
	UserID string
}

// A Profile carries the display fields snapshotted onto posts and comments
// at the moment of the action. They are frozen, not live-joined.
type Profile struct {
	Name   string
	Avatar string
}

// A Post is the aggregate root. Likes and Comments are embedded,
// most-recent-first, and have no lifecycle outside their post.
type Post struct {
	ID        string
	UserID    string
	Text      string
	Name      string
	Avatar    string
	CreatedAt time.Time
	Version   int64
	Likes     []Like
	Comments  []Comment
}

// A Like marks that a user liked a post. At most one per (post, user).
type Like struct {
	UserID string
}

// A Comment is an embedded reply on a post, deletable only by its author.
type Comment struct {
	ID        string
	UserID    string
	Text      string
	Name      string
	Avatar    string
	CreatedAt time.Time
}
