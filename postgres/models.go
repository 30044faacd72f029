package postgres

import (
	"time"

	"github.com/devconnecthq/devconnect/account"
	"github.com/devconnecthq/devconnect/feed"
)

// A post represents a post aggregate root in the database. The version
// column backs the conditional save.
type post struct {
	ID        string    `bun:",pk"`
	UserID    string    `bun:",notnull"`
	PostText  string    `bun:"post_text,notnull"`
	Name      string    `bun:",notnull"`
	Avatar    string
	Version   int64     `bun:",notnull"`
	CreatedAt time.Time `bun:",notnull"`
	Likes     []like    `bun:"rel:has-many,join:id=post_id"`
	Comments  []comment `bun:"rel:has-many,join:id=post_id"`
}

// A like is an embedded like row. Position preserves the sequence order of
// the aggregate; position 0 is the most recent like.
type like struct {
	PostID   string `bun:",pk"`
	UserID   string `bun:",pk"`
	Position int    `bun:",notnull"`
}

// A comment is an embedded comment row, ordered by position like likes.
type comment struct {
	ID          string    `bun:",pk"`
	PostID      string    `bun:",notnull"`
	UserID      string    `bun:",notnull"`
	CommentText string    `bun:"comment_text,notnull"`
	Name        string    `bun:",notnull"`
	Avatar      string
	Position    int       `bun:",notnull"`
	CreatedAt   time.Time `bun:",notnull"`
}

// A user represents a registered account in the database.
type user struct {
	ID           string    `bun:",pk"`
	Name         string    `bun:",notnull"`
	Email        string    `bun:",notnull,unique"`
	Avatar       string
	PasswordHash string    `bun:",notnull"`
	CreatedAt    time.Time `bun:",notnull"`
}

func (p post) feedPost() feed.Post {
	likes := make([]feed.Like, len(p.Likes))
	for i, l := range p.Likes {
		likes[i] = feed.Like{UserID: l.UserID}
	}
	comments := make([]feed.Comment, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = feed.Comment{
			ID:        c.ID,
			UserID:    c.UserID,
			Text:      c.CommentText,
			Name:      c.Name,
			Avatar:    c.Avatar,
			CreatedAt: c.CreatedAt,
		}
	}
	return feed.Post{
		ID:        p.ID,
		UserID:    p.UserID,
		Text:      p.PostText,
		Name:      p.Name,
		Avatar:    p.Avatar,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		Likes:     likes,
		Comments:  comments,
	}
}

func postRow(p feed.Post) (post, []like, []comment) {
	row := post{
		ID:        p.ID,
		UserID:    p.UserID,
		PostText:  p.Text,
		Name:      p.Name,
		Avatar:    p.Avatar,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
	}
	likes := make([]like, len(p.Likes))
	for i, l := range p.Likes {
		likes[i] = like{PostID: p.ID, UserID: l.UserID, Position: i}
	}
	comments := make([]comment, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = comment{
			ID:          c.ID,
			PostID:      p.ID,
			UserID:      c.UserID,
			CommentText: c.Text,
			Name:        c.Name,
			Avatar:      c.Avatar,
			Position:    i,
			CreatedAt:   c.CreatedAt,
		}
	}
	return row, likes, comments
}

func (u user) accountUser() account.User {
	return account.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Avatar:       u.Avatar,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userRow(u account.User) user {
	return user{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Avatar:       u.Avatar,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}
