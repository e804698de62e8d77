package ringslog

import (
	"context"
	"errors"

	"github.com/eringen/ringslog/postsapi"
)

// reviewSource is where pages read reviews from: the local cache, or the
// posts API when reviews are stored remotely.
type reviewSource interface {
	ListReviews(ctx context.Context) ([]Review, error)
	GetReview(ctx context.Context, uid string) (Review, error)
}

type localReviews struct {
	cache *ReviewCache
}

func (l localReviews) ListReviews(context.Context) ([]Review, error) {
	return l.cache.ListReviews()
}

func (l localReviews) GetReview(_ context.Context, uid string) (Review, error) {
	return l.cache.GetReview(uid)
}

type remoteReviews struct {
	client *postsapi.Client
}

func (r remoteReviews) ListReviews(ctx context.Context) ([]Review, error) {
	posts, err := r.client.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Review, len(posts))
	for i, p := range posts {
		out[i] = reviewFromPost(p)
	}
	return out, nil
}

// GetReview maps the API's not-found to ErrNotFound so handlers treat both
// sources alike.
func (r remoteReviews) GetReview(ctx context.Context, uid string) (Review, error) {
	p, err := r.client.GetPost(ctx, uid)
	if err != nil {
		if errors.Is(err, postsapi.ErrNotFound) {
			return Review{}, ErrNotFound
		}
		return Review{}, err
	}
	return reviewFromPost(p), nil
}

func reviewFromPost(p postsapi.Post) Review {
	return Review{
		UID:       p.UID,
		UserID:    p.UserID,
		ISBN:      p.ISBN,
		Title:     p.Title,
		Author:    p.Author,
		Content:   p.Content,
		Image:     p.Image,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
