package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

func TestEngine_CreatePost(t *testing.T) {
	store := newMemStore()
	e := newEngine(t, store)

	post, err := e.CreatePost(context.Background(), Identity{UserID: "user-a"}, "hello")
	if err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}
	if post.ID == "" {
		t.Error("Expected a generated post id")
	}

	got, err := e.GetPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPost() error: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("Got text %q, want hello", got.Text)
	}
	if got.UserID != "user-a" {
		t.Errorf("Got author %q, want user-a", got.UserID)
	}
	if got.Name != "User A" || got.Avatar != "https://example.com/a.png" {
		t.Errorf("Profile snapshot not captured, got name=%q avatar=%q", got.Name, got.Avatar)
	}
	if len(got.Likes) != 0 || len(got.Comments) != 0 {
		t.Errorf("Expected empty likes and comments, got %d likes, %d comments", len(got.Likes), len(got.Comments))
	}
}

func TestEngine_ListPosts_newestFirst(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	store.put(Post{ID: "p2", UserID: "user-a", CreatedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)})
	store.put(Post{ID: "p3", UserID: "user-a", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)})
	e := newEngine(t, store)

	posts, err := e.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts() error: %v", err)
	}
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"p2", "p3", "p1"}, ids); diff != "" {
		t.Errorf("Post order mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Like(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a"})
	e := newEngine(t, store)
	ctx := context.Background()

	likes, err := e.Like(ctx, Identity{UserID: "user-b"}, "p1")
	if err != nil {
		t.Fatalf("Like() error: %v", err)
	}
	if diff := cmp.Diff([]Like{{UserID: "user-b"}}, likes); diff != "" {
		t.Errorf("Likes mismatch (-want +got):\n%s", diff)
	}

	// A second like by the same user must fail and change nothing.
	if _, err := e.Like(ctx, Identity{UserID: "user-b"}, "p1"); !errors.Is(err, ErrAlreadyLiked) {
		t.Fatalf("Got error %v, want %v", err, ErrAlreadyLiked)
	}
	got, err := e.GetPost(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Likes) != 1 {
		t.Errorf("Got %d likes after failed double like, want 1", len(got.Likes))
	}
}

func TestEngine_Like_missingPost(t *testing.T) {
	e := newEngine(t, newMemStore())
	if _, err := e.Like(context.Background(), Identity{UserID: "user-b"}, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Got error %v, want %v", err, ErrNotFound)
	}
}

func TestEngine_LikeUnlike_roundTrip(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a", Likes: []Like{{UserID: "user-c"}}})
	e := newEngine(t, store)
	ctx := context.Background()

	likes, err := e.Like(ctx, Identity{UserID: "user-b"}, "p1")
	if err != nil {
		t.Fatalf("Like() error: %v", err)
	}
	if diff := cmp.Diff([]Like{{UserID: "user-b"}, {UserID: "user-c"}}, likes); diff != "" {
		t.Errorf("Likes after like (-want +got):\n%s", diff)
	}

	likes, err = e.Unlike(ctx, Identity{UserID: "user-b"}, "p1")
	if err != nil {
		t.Fatalf("Unlike() error: %v", err)
	}
	if diff := cmp.Diff([]Like{{UserID: "user-c"}}, likes); diff != "" {
		t.Errorf("Likes did not round-trip (-want +got):\n%s", diff)
	}
}

func TestEngine_Unlike_notLiked(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a", Likes: []Like{{UserID: "user-c"}}})
	e := newEngine(t, store)
	ctx := context.Background()

	if _, err := e.Unlike(ctx, Identity{UserID: "user-b"}, "p1"); !errors.Is(err, ErrNotLiked) {
		t.Fatalf("Got error %v, want %v", err, ErrNotLiked)
	}
	got, err := e.GetPost(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Like{{UserID: "user-c"}}, got.Likes); diff != "" {
		t.Errorf("State mutated by failed unlike (-want +got):\n%s", diff)
	}
}

func TestEngine_DeletePost(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a", Text: "mine"})
	e := newEngine(t, store)
	ctx := context.Background()

	// Only the author may delete; the post must survive a foreign attempt
	// untouched.
	if err := e.DeletePost(ctx, Identity{UserID: "user-b"}, "p1"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Got error %v, want %v", err, ErrNotOwner)
	}
	before := store.get(t, "p1")
	after, err := e.GetPost(ctx, "p1")
	if err != nil {
		t.Fatalf("Post vanished after denied delete: %v", err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("Post changed by denied delete (-want +got):\n%s", diff)
	}

	if err := e.DeletePost(ctx, Identity{UserID: "user-a"}, "p1"); err != nil {
		t.Fatalf("DeletePost() error: %v", err)
	}
	if _, err := e.GetPost(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Got error %v, want %v", err, ErrNotFound)
	}

	// Deleted is terminal: every later operation on the id fails.
	if _, err := e.Like(ctx, Identity{UserID: "user-a"}, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Like after delete: got %v, want %v", err, ErrNotFound)
	}
	if _, err := e.AddComment(ctx, Identity{UserID: "user-a"}, "p1", "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddComment after delete: got %v, want %v", err, ErrNotFound)
	}
}

func TestEngine_AddComment_prepends(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a"})
	e := newEngine(t, store)
	ctx := context.Background()

	if _, err := e.AddComment(ctx, Identity{UserID: "user-b"}, "p1", "first"); err != nil {
		t.Fatalf("AddComment() error: %v", err)
	}
	comments, err := e.AddComment(ctx, Identity{UserID: "user-a"}, "p1", "second")
	if err != nil {
		t.Fatalf("AddComment() error: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("Got %d comments, want 2", len(comments))
	}
	if comments[0].Text != "second" || comments[1].Text != "first" {
		t.Errorf("Comments not most-recent-first: %q, %q", comments[0].Text, comments[1].Text)
	}
	if comments[0].Name != "User A" {
		t.Errorf("Commenter profile not snapshotted, got name %q", comments[0].Name)
	}
	if comments[0].ID == comments[1].ID {
		t.Error("Comments share an id")
	}
}

func TestEngine_DeleteComment(t *testing.T) {
	// Two comments identical in every field except id: removal must match
	// on the comment's own id and nothing else.
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	twin := Comment{UserID: "user-b", Text: "same", Name: "User B", CreatedAt: at}
	c1, c2 := twin, twin
	c1.ID = "c1"
	c2.ID = "c2"

	tests := []struct {
		name      string
		ident     Identity
		commentID string
		wantErr   error
		wantLeft  []string
	}{
		{
			name:      "RemovesExactlyByID",
			ident:     Identity{UserID: "user-b"},
			commentID: "c2",
			wantLeft:  []string{"c1"},
		},
		{
			name:      "NotOwner",
			ident:     Identity{UserID: "user-a"},
			commentID: "c1",
			wantErr:   ErrNotOwner,
			wantLeft:  []string{"c1", "c2"},
		},
		{
			name:      "CommentMissing",
			ident:     Identity{UserID: "user-b"},
			commentID: "c9",
			wantErr:   ErrNotFound,
			wantLeft:  []string{"c1", "c2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.put(Post{ID: "p1", UserID: "user-a", Comments: []Comment{c1, c2}})
			e := newEngine(t, store)

			_, err := e.DeleteComment(context.Background(), tt.ident, "p1", tt.commentID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Got error %v, want %v", err, tt.wantErr)
			}

			got := store.get(t, "p1")
			var left []string
			for _, c := range got.Comments {
				left = append(left, c.ID)
			}
			if diff := cmp.Diff(tt.wantLeft, left); diff != "" {
				t.Errorf("Remaining comments (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEngine_conflictRetry(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a"})
	flaky := &conflictStore{Store: store, conflicts: 2}
	e := &Engine{Store: flaky, Directory: testdir{}, Logger: slogt.New(t)}

	likes, err := e.Like(context.Background(), Identity{UserID: "user-b"}, "p1")
	if err != nil {
		t.Fatalf("Like() error after retries: %v", err)
	}
	if len(likes) != 1 {
		t.Errorf("Got %d likes, want 1", len(likes))
	}
	if flaky.saves != 3 {
		t.Errorf("Got %d save attempts, want 3", flaky.saves)
	}
}

func TestEngine_conflictExhausted(t *testing.T) {
	store := newMemStore()
	store.put(Post{ID: "p1", UserID: "user-a"})
	flaky := &conflictStore{Store: store, conflicts: 100}
	e := &Engine{Store: flaky, Directory: testdir{}, Logger: slogt.New(t)}

	if _, err := e.Like(context.Background(), Identity{UserID: "user-b"}, "p1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("Got error %v, want %v", err, ErrConflict)
	}
	got := store.get(t, "p1")
	if len(got.Likes) != 0 {
		t.Errorf("State mutated despite exhausted retries: %d likes", len(got.Likes))
	}
}

func newEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	return &Engine{Store: store, Directory: testdir{}, Logger: slogt.New(t)}
}

type testdir struct{}

func (testdir) LookupUser(_ context.Context, userID string) (Profile, error) {
	switch userID {
	case "user-a":
		return Profile{Name: "User A", Avatar: "https://example.com/a.png"}, nil
	case "user-b":
		return Profile{Name: "User B", Avatar: "https://example.com/b.png"}, nil
	}
	return Profile{}, errors.New("unknown user")
}

// memStore is an in-memory Store with the same version-conditional save
// semantics as the Postgres store.
type memStore struct {
	mu    sync.Mutex
	posts map[string]Post
}

func newMemStore() *memStore {
	return &memStore{posts: make(map[string]Post)}
}

// put seeds a post directly, bypassing version checks.
func (s *memStore) put(p Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Version == 0 {
		p.Version = 1
	}
	s.posts[p.ID] = clonePost(p)
}

func (s *memStore) get(t *testing.T, id string) Post {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		t.Fatalf("Post %q not in store", id)
	}
	return clonePost(p)
}

func (s *memStore) LoadPost(_ context.Context, id string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return clonePost(p), nil
}

func (s *memStore) ListPosts(_ context.Context) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, clonePost(p))
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *memStore) SavePost(_ context.Context, p Post) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.posts[p.ID]
	if ok && cur.Version != p.Version {
		return Post{}, ErrConflict
	}
	if !ok && p.Version != 0 {
		return Post{}, ErrNotFound
	}
	p.Version++
	s.posts[p.ID] = clonePost(p)
	return clonePost(p), nil
}

func (s *memStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

// conflictStore fails the first n saves with ErrConflict, then delegates.
type conflictStore struct {
	Store
	conflicts int
	saves     int
}

func (s *conflictStore) SavePost(ctx context.Context, p Post) (Post, error) {
	s.saves++
	if s.saves <= s.conflicts {
		return Post{}, ErrConflict
	}
	return s.Store.SavePost(ctx, p)
}

func clonePost(p Post) Post {
	p.Likes = append([]Like(nil), p.Likes...)
	p.Comments = append([]Comment(nil), p.Comments...)
	return p
}
