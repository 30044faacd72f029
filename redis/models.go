package redis

import (
	"time"

	"github.com/devconnecthq/devconnect/feed"
)

// A post is the cached JSON shape of a post aggregate. The version travels
// with it so a cache hit can feed a later conditional save.
type post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Likes     []like    `json:"likes"`
	Comments  []comment `json:"comments"`
}

type like struct {
	UserID string `json:"user_id"`
}

type comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func cachePost(p feed.Post) post {
	likes := make([]like, len(p.Likes))
	for i, l := range p.Likes {
		likes[i] = like{UserID: l.UserID}
	}
	comments := make([]comment, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = comment{
			ID:        c.ID,
			UserID:    c.UserID,
			Text:      c.Text,
			Name:      c.Name,
			Avatar:    c.Avatar,
			CreatedAt: c.CreatedAt,
		}
	}
	return post{
		ID:        p.ID,
		UserID:    p.UserID,
		Text:      p.Text,
		Name:      p.Name,
		Avatar:    p.Avatar,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		Likes:     likes,
		Comments:  comments,
	}
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
			Text:      c.Text,
			Name:      c.Name,
			Avatar:    c.Avatar,
			CreatedAt: c.CreatedAt,
		}
	}
	return feed.Post{
		ID:        p.ID,
		UserID:    p.UserID,
		Text:      p.Text,
		Name:      p.Name,
		Avatar:    p.Avatar,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		Likes:     likes,
		Comments:  comments,
	}
}
