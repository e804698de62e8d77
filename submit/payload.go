package submit

import "context"

// Payload is the request body sent to the posts API. PostID is only set when
// updating; Image only when a new image was selected.
type Payload struct {
	AccessToken string `json:"accessToken"`
	PostID      string `json:"postId,omitempty"`
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Content     string `json:"content"`
	Image       string `json:"image,omitempty"`
}

// PostRef identifies a stored post.
type PostRef struct {
	UID    string `json:"uid"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Image  string `json:"image,omitempty"`
}

// CreateResult is the posts API response to a create.
type CreateResult struct {
	Success bool     `json:"success"`
	Post    *PostRef `json:"post,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (r CreateResult) reason() string {
	if r.Message != "" {
		return r.Message
	}
	if r.Success {
		return "no post in response"
	}
	return "rejected"
}

// UpdateResult is the posts API response to an update.
type UpdateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (r UpdateResult) reason() string {
	if r.Message != "" {
		return r.Message
	}
	return "rejected"
}

// Poster is the posts API.
type Poster interface {
	CreatePost(ctx context.Context, p Payload) (CreateResult, error)
	UpdatePost(ctx context.Context, p Payload) (UpdateResult, error)
}
