package ringslog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/postform"
	"github.com/eringen/ringslog/postsapi"
	"github.com/eringen/ringslog/submit"
	"github.com/eringen/ringslog/uploads"
)

var (
	// ErrUnauthorized is returned for a missing or invalid access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a user edits a review they do not own.
	ErrForbidden = errors.New("not the owner of this review")
)

// postService is the posts API backend: it authenticates the access token,
// validates the fields again, stores the image and saves the review.
type postService struct {
	store   *Store
	cache   *ReviewCache
	tokens  *TokenIssuer
	uploads uploads.Store
	logger  *zap.Logger
	newUID  func() string
	now     func() time.Time
}

func (s *postService) create(ctx context.Context, p submit.Payload) (Review, error) {
	userID, err := s.authenticate(p.AccessToken)
	if err != nil {
		return Review{}, err
	}
	in := payloadInput(p)
	if fe := postform.ValidateInput(in); fe != nil {
		return Review{}, fe
	}
	uid := s.newUID()
	image, err := s.storeImage(ctx, uid, p.Image)
	if err != nil {
		return Review{}, err
	}
	now := s.now().UTC()
	r := Review{
		UID:       uid,
		UserID:    userID,
		ISBN:      in.ISBN,
		Title:     in.Title,
		Author:    in.Author,
		Content:   in.Content,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveReview(r); err != nil {
		return Review{}, fmt.Errorf("save review: %w", err)
	}
	s.cache.Invalidate()
	s.logger.Info("review created", zap.String("uid", uid), zap.String("user_id", userID))
	return r, nil
}

func (s *postService) update(ctx context.Context, p submit.Payload) (Review, error) {
	userID, err := s.authenticate(p.AccessToken)
	if err != nil {
		return Review{}, err
	}
	existing, err := s.store.GetReview(p.PostID)
	if err != nil {
		return Review{}, err
	}
	if existing.UserID != userID {
		return Review{}, ErrForbidden
	}
	in := payloadInput(p)
	if fe := postform.ValidateInput(in); fe != nil {
		return Review{}, fe
	}
	// No image in the payload keeps the stored one.
	if p.Image != "" {
		image, err := s.storeImage(ctx, existing.UID, p.Image)
		if err != nil {
			return Review{}, err
		}
		existing.Image = image
	}
	existing.ISBN = in.ISBN
	existing.Title = in.Title
	existing.Author = in.Author
	existing.Content = in.Content
	existing.UpdatedAt = s.now().UTC()
	if err := s.store.SaveReview(existing); err != nil {
		return Review{}, fmt.Errorf("save review: %w", err)
	}
	s.cache.Invalidate()
	s.logger.Info("review updated", zap.String("uid", existing.UID), zap.String("user_id", userID))
	return existing, nil
}

func (s *postService) authenticate(token string) (string, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return userID, nil
}

// storeImage decodes a data URL, normalises it to a JPEG thumbnail and puts
// it in the upload store. Keys are unique per upload so public URLs can be
// cached forever.
func (s *postService) storeImage(ctx context.Context, uid, dataURL string) (string, error) {
	if dataURL == "" {
		return "", nil
	}
	data, _, err := uploads.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	if len(data) > imagestage.MaxSize {
		return "", imagestage.ErrTooLarge
	}
	thumb, _, err := uploads.Thumbnail(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", imagestage.ErrUnsupportedType, err)
	}
	key := uid + "-" + uuid.NewString()[:8] + ".jpg"
	return s.uploads.Put(ctx, key, thumb, "image/jpeg")
}

func payloadInput(p submit.Payload) postform.Input {
	return postform.Input{ISBN: p.ISBN, Title: p.Title, Author: p.Author, Content: p.Content}
}

// LocalPoster serves submit.Poster in-process, without an HTTP round trip.
// Rejections are reported as Success:false like the HTTP API does.
type LocalPoster struct {
	svc *postService
}

var _ submit.Poster = (*LocalPoster)(nil)

// CreatePost implements submit.Poster.
func (l *LocalPoster) CreatePost(ctx context.Context, p submit.Payload) (submit.CreateResult, error) {
	r, err := l.svc.create(ctx, p)
	if err != nil {
		if isRejection(err) {
			return submit.CreateResult{Success: false, Message: err.Error()}, nil
		}
		return submit.CreateResult{}, err
	}
	return submit.CreateResult{Success: true, Post: reviewRef(r)}, nil
}

// UpdatePost implements submit.Poster.
func (l *LocalPoster) UpdatePost(ctx context.Context, p submit.Payload) (submit.UpdateResult, error) {
	if _, err := l.svc.update(ctx, p); err != nil {
		if isRejection(err) {
			return submit.UpdateResult{Success: false, Message: err.Error()}, nil
		}
		return submit.UpdateResult{}, err
	}
	return submit.UpdateResult{Success: true}, nil
}

// isRejection reports whether err is the caller's fault rather than a
// server failure.
func isRejection(err error) bool {
	var fe postform.FieldErrors
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, imagestage.ErrTooLarge) ||
		errors.Is(err, imagestage.ErrUnsupportedType) ||
		errors.Is(err, uploads.ErrBadDataURL) ||
		errors.As(err, &fe)
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, imagestage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusUnprocessableEntity
	}
}

func reviewRef(r Review) *submit.PostRef {
	return &submit.PostRef{UID: r.UID, Title: r.Title, Author: r.Author, Image: r.Image}
}

func reviewJSON(r Review) *postsapi.Post {
	return &postsapi.Post{
		UID:       r.UID,
		UserID:    r.UserID,
		ISBN:      r.ISBN,
		Title:     r.Title,
		Author:    r.Author,
		Content:   r.Content,
		Image:     r.Image,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// bindPayload reads the JSON body and falls back to the Authorization
// header for the access token.
func bindPayload(c echo.Context) (submit.Payload, error) {
	var p submit.Payload
	if err := c.Bind(&p); err != nil {
		return p, err
	}
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok && tok != "" {
			p.AccessToken = tok
		}
	}
	return p, nil
}

func (a *App) handleAPICreate(c echo.Context) error {
	p, err := bindPayload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, submit.CreateResult{Message: "invalid request body"})
	}
	r, err := a.posts.create(c.Request().Context(), p)
	if err != nil {
		if isRejection(err) {
			return c.JSON(rejectionStatus(err), submit.CreateResult{Message: err.Error()})
		}
		return err
	}
	return c.JSON(http.StatusCreated, submit.CreateResult{Success: true, Post: reviewRef(r)})
}

func (a *App) handleAPIUpdate(c echo.Context) error {
	p, err := bindPayload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, submit.UpdateResult{Message: "invalid request body"})
	}
	if id := c.Param("uid"); p.PostID == "" {
		p.PostID = id
	} else if p.PostID != id {
		return c.JSON(http.StatusBadRequest, submit.UpdateResult{Message: "postId does not match the URL"})
	}
	if _, err := a.posts.update(c.Request().Context(), p); err != nil {
		if isRejection(err) {
			return c.JSON(rejectionStatus(err), submit.UpdateResult{Message: err.Error()})
		}
		return err
	}
	return c.JSON(http.StatusOK, submit.UpdateResult{Success: true})
}

type listPostsResponse struct {
	Success bool            `json:"success"`
	Posts   []postsapi.Post `json:"posts"`
}

func (a *App) handleAPIList(c echo.Context) error {
	reviews, err := a.Cache.ListReviews()
	if err != nil {
		return err
	}
	posts := make([]postsapi.Post, len(reviews))
	for i, r := range reviews {
		posts[i] = *reviewJSON(r)
	}
	return c.JSON(http.StatusOK, listPostsResponse{Success: true, Posts: posts})
}

type getPostResponse struct {
	Success bool           `json:"success"`
	Post    *postsapi.Post `json:"post,omitempty"`
	Message string         `json:"message,omitempty"`
}

func (a *App) handleAPIGet(c echo.Context) error {
	r, err := a.Store.GetReview(c.Param("uid"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, getPostResponse{Message: "post not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, getPostResponse{Success: true, Post: reviewJSON(r)})
}
