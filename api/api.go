// Package api exposes the REST surface: routing, the credential gate,
// request validation and the mapping from error kinds to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/devconnecthq/devconnect/account"
	"github.com/devconnecthq/devconnect/api/validator"
	"github.com/devconnecthq/devconnect/auth"
	"github.com/devconnecthq/devconnect/feed"
)

// An Engine performs the post, like and comment interactions.
type Engine interface {
	CreatePost(ctx context.Context, ident feed.Identity, text string) (feed.Post, error)
	GetPost(ctx context.Context, id string) (feed.Post, error)
	ListPosts(ctx context.Context) ([]feed.Post, error)
	DeletePost(ctx context.Context, ident feed.Identity, id string) error
	Like(ctx context.Context, ident feed.Identity, postID string) ([]feed.Like, error)
	Unlike(ctx context.Context, ident feed.Identity, postID string) ([]feed.Like, error)
	AddComment(ctx context.Context, ident feed.Identity, postID, text string) ([]feed.Comment, error)
	DeleteComment(ctx context.Context, ident feed.Identity, postID, commentID string) ([]feed.Comment, error)
}

// Accounts handles registration, login and user lookup.
type Accounts interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	CurrentUser(ctx context.Context, userID string) (account.User, error)
}

// An Authenticator resolves the raw credential header to a user id.
type Authenticator interface {
	Authenticate(raw string) (string, error)
}

// A Cache provides a storage layer that caches post aggregates. A cached
// post must be removed whenever it is mutated.
type Cache interface {
	GetPost(ctx context.Context, id string) (feed.Post, bool, error)
	InsertPost(ctx context.Context, post feed.Post) error
	RemovePost(ctx context.Context, id string) error
}

// API provides the REST endpoints for the application.
type API struct {
	Logger   *slog.Logger
	Auth     Authenticator
	Engine   Engine
	Accounts Accounts
	Cache    Cache
	Val      *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", a.register)
	mux.HandleFunc("POST /auth", a.login)
	mux.HandleFunc("GET /auth", a.authed(a.currentUser))

	mux.HandleFunc("GET /posts", a.authed(a.listPosts))
	mux.HandleFunc("POST /posts", a.authed(a.createPost))
	mux.HandleFunc("GET /posts/{postID}", a.authed(a.getPost))
	mux.HandleFunc("DELETE /posts/{postID}", a.authed(a.deletePost))
	mux.HandleFunc("PUT /posts/{postID}/like", a.authed(a.likePost))
	mux.HandleFunc("PUT /posts/{postID}/unlike", a.authed(a.unlikePost))
	mux.HandleFunc("POST /posts/{postID}/comments", a.authed(a.addComment))
	mux.HandleFunc("DELETE /posts/{postID}/comments/{commentID}", a.authed(a.deleteComment))

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

// authed gates a handler behind the credential check. Missing and invalid
// credentials get the same outward message; only the log tells them apart.
func (a *API) authed(next func(w http.ResponseWriter, r *http.Request, ident feed.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Auth.Authenticate(r.Header.Get(auth.Header))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingCredential), errors.Is(err, auth.ErrInvalidCredential):
				a.respondError(w, http.StatusUnauthorized, err, "Authorization denied")
			default:
				a.respondError(w, http.StatusInternalServerError, err, "Server error")
			}
			return
		}
		next(w, r, feed.Identity{UserID: userID})
	}
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

// engineError maps an interaction failure to its status code. Messages
// tell the client what to correct and nothing about other users.
func (a *API) engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrNotFound):
		a.respondError(w, http.StatusNotFound, err, "Not found")
	case errors.Is(err, feed.ErrNotOwner):
		a.respondError(w, http.StatusForbidden, err, "Not authorized")
	case errors.Is(err, feed.ErrAlreadyLiked):
		a.respondError(w, http.StatusBadRequest, err, "Post already liked")
	case errors.Is(err, feed.ErrNotLiked):
		a.respondError(w, http.StatusBadRequest, err, "Post has not yet been liked")
	case errors.Is(err, feed.ErrConflict):
		a.respondError(w, http.StatusConflict, err, "Concurrent update, please retry")
	default:
		a.respondError(w, http.StatusInternalServerError, err, "Server error")
	}
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, body any) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	errs := a.Val.ValidateStruct(body)
	if len(errs) > 0 {
		type response struct {
			Errors []validator.ValidationError `json:"errors"`
		}
		a.respond(w, http.StatusBadRequest, &response{Errors: errs})
		return false
	}
	return true
}

// removeFromCache drops a mutated post from the cache. Cache trouble is
// never fatal to the request.
func (a *API) removeFromCache(ctx context.Context, postID string) {
	if err := a.Cache.RemovePost(ctx, postID); err != nil {
		a.Logger.Error("Could not invalidate cached post", "post_id", postID, "error", err.Error())
	}
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			Name     string `json:"name" validate:"required"`
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=6"`
		}
		response struct {
			Token string `json:"token"`
		}
	)

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	token, err := a.Accounts.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			a.respondError(w, http.StatusBadRequest, err, "User already exists")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Server error")
		return
	}

	a.respond(w, http.StatusCreated, response{Token: token})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required"`
		}
		response struct {
			Token string `json:"token"`
		}
	)

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	token, err := a.Accounts.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidLogin) {
			a.respondError(w, http.StatusBadRequest, err, "Failed to login")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Server error")
		return
	}

	a.respond(w, http.StatusOK, response{Token: token})
}

func (a *API) currentUser(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	u, err := a.Accounts.CurrentUser(r.Context(), ident.UserID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, "Not found")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Server error")
		return
	}
	a.respond(w, http.StatusOK, apiUser(u))
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request, _ feed.Identity) {
	type response struct {
		Posts []Post `json:"posts"`
	}

	posts, err := a.Engine.ListPosts(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
		return
	}

	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = apiPost(p)
	}
	a.respond(w, http.StatusOK, response{Posts: out})
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	type request struct {
		Text string `json:"text" validate:"required"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	post, err := a.Engine.CreatePost(r.Context(), ident, body.Text)
	if err != nil {
		a.engineError(w, err)
		return
	}

	if err := a.Cache.InsertPost(r.Context(), post); err != nil {
		a.Logger.Error("Could not cache post", "post_id", post.ID, "error", err.Error())
	}

	a.respond(w, http.StatusCreated, apiPost(post))
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request, _ feed.Identity) {
	postID := r.PathValue("postID")

	post, ok, err := a.Cache.GetPost(r.Context(), postID)
	if err != nil {
		a.Logger.Error("Could not read cached post", "post_id", postID, "error", err.Error())
	}
	if ok {
		a.respond(w, http.StatusOK, apiPost(post))
		return
	}

	post, err = a.Engine.GetPost(r.Context(), postID)
	if err != nil {
		a.engineError(w, err)
		return
	}

	if err := a.Cache.InsertPost(r.Context(), post); err != nil {
		a.Logger.Error("Could not cache post", "post_id", postID, "error", err.Error())
	}

	a.respond(w, http.StatusOK, apiPost(post))
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	type response struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}

	postID := r.PathValue("postID")
	if err := a.Engine.DeletePost(r.Context(), ident, postID); err != nil {
		a.engineError(w, err)
		return
	}
	a.removeFromCache(r.Context(), postID)

	a.respond(w, http.StatusOK, response{ID: postID, Deleted: true})
}

func (a *API) likePost(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	type response struct {
		Likes []Like `json:"likes"`
	}

	postID := r.PathValue("postID")
	likes, err := a.Engine.Like(r.Context(), ident, postID)
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.removeFromCache(r.Context(), postID)

	a.respond(w, http.StatusOK, response{Likes: apiLikes(likes)})
}

func (a *API) unlikePost(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	type response struct {
		Likes []Like `json:"likes"`
	}

	postID := r.PathValue("postID")
	likes, err := a.Engine.Unlike(r.Context(), ident, postID)
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.removeFromCache(r.Context(), postID)

	a.respond(w, http.StatusOK, response{Likes: apiLikes(likes)})
}

func (a *API) addComment(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	type (
		request struct {
			Text string `json:"text" validate:"required"`
		}
		response struct {
			Comments []Comment `json:"comments"`
		}
	)

	postID := r.PathValue("postID")
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	comments, err := a.Engine.AddComment(r.Context(), ident, postID, body.Text)
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.removeFromCache(r.Context(), postID)

	a.respond(w, http.StatusCreated, response{Comments: apiComments(comments)})
}

func (a *API) deleteComment(w http.ResponseWriter, r *http.Request, ident feed.Identity) {
	type response struct {
		Comments []Comment `json:"comments"`
	}

	postID := r.PathValue("postID")
	commentID := r.PathValue("commentID")
	comments, err := a.Engine.DeleteComment(r.Context(), ident, postID, commentID)
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.removeFromCache(r.Context(), postID)

	a.respond(w, http.StatusOK, response{Comments: apiComments(comments)})
}
