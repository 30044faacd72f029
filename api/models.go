package api

import (
	"time"

	"github.com/devconnecthq/devconnect/account"
	"github.com/devconnecthq/devconnect/feed"
)

// A Post is the wire representation of a post aggregate.
type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Text         string    `json:"text"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	Likes        []Like    `json:"likes"`
	Comments     []Comment `json:"comments"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
}

// A Like is the wire representation of a like.
type Like struct {
	UserID string `json:"user_id"`
}

// A Comment is the wire representation of a comment.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

// A User is the wire representation of an account. The password hash is
// never part of it.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func apiPost(p feed.Post) Post {
	return Post{
		ID:           p.ID,
		UserID:       p.UserID,
		Text:         p.Text,
		Name:         p.Name,
		Avatar:       p.Avatar,
		CreatedAt:    p.CreatedAt,
		Likes:        apiLikes(p.Likes),
		Comments:     apiComments(p.Comments),
		LikeCount:    len(p.Likes),
		CommentCount: len(p.Comments),
	}
}

func apiLikes(likes []feed.Like) []Like {
	out := make([]Like, len(likes))
	for i, l := range likes {
		out[i] = Like{UserID: l.UserID}
	}
	return out
}

func apiComments(comments []feed.Comment) []Comment {
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = Comment{
			ID:        c.ID,
			UserID:    c.UserID,
			Text:      c.Text,
			Name:      c.Name,
			Avatar:    c.Avatar,
			CreatedAt: c.CreatedAt,
		}
	}
	return out
}

func apiUser(u account.User) User {
	return User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
