// Package submit drives a post form from a valid set of values to a created
// or updated post.
package submit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/ringslog/notify"
	"github.com/eringen/ringslog/postform"
)

// State of a Controller.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Mode selects between creating a post and editing one.
type Mode int

const (
	Create Mode = iota
	Update
)

// Notification strings.
const (
	MsgCreated      = "投稿しました"
	MsgCreateFailed = "投稿に失敗しました"
	MsgUpdated      = "投稿を編集しました"
	MsgUpdateFailed = "投稿の編集に失敗しました"
)

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("submit: submission in progress")

	// ErrSubmissionFailed is returned when the posts API rejects or fails
	// the request.
	ErrSubmissionFailed = errors.New("submit: submission failed")
)

// Validator yields the form values once they pass validation.
type Validator interface {
	Validate() (postform.Input, error)
}

// ImageSource yields the image payload to upload, if any.
type ImageSource interface {
	Payload() (string, bool)
}

// Navigator moves the user to another page once a submission succeeds.
type Navigator interface {
	Navigate(path string)
	// Refresh drops any cached data for path so the next render is fresh.
	Refresh(path string)
}

// Deps are the collaborators a Controller talks to.
type Deps struct {
	Form      Validator
	Images    ImageSource
	Poster    Poster
	Navigator Navigator
	Notifier  notify.Notifier
}

// Outcome describes a finished submission.
type Outcome struct {
	State   State
	PostUID string
	Path    string
}

// Controller is the per-session submission state machine:
// Idle -> Submitting -> Succeeded|Failed -> Idle.
type Controller struct {
	mu          sync.Mutex
	state       State
	last        State
	mode        Mode
	postID      string
	accessToken string
	deps        Deps
	observers   []func(from, to State)
	logger      *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// OnTransition registers fn to be called on every state change. fn runs
// with the controller locked and must not call back into it.
func OnTransition(fn func(from, to State)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// NewCreate returns a Controller that creates a new post.
func NewCreate(accessToken string, deps Deps, opts ...Option) *Controller {
	return newController(Create, "", accessToken, deps, opts)
}

// NewUpdate returns a Controller that replaces post postID.
func NewUpdate(postID, accessToken string, deps Deps, opts ...Option) *Controller {
	return newController(Update, postID, accessToken, deps, opts)
}

func newController(mode Mode, postID, accessToken string, deps Deps, opts []Option) *Controller {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	c := &Controller{
		mode:        mode,
		postID:      postID,
		accessToken: accessToken,
		deps:        deps,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode reports whether the controller creates or updates.
func (c *Controller) Mode() Mode { return c.mode }

// PostID is the post being edited; empty in create mode.
func (c *Controller) PostID() string { return c.postID }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the terminal state of the most recent submission, or Idle if
// none has finished.
func (c *Controller) Last() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Disabled reports whether the submit control should be disabled.
func (c *Controller) Disabled() bool {
	return c.State() == Submitting
}

// Submit validates the form and sends it to the posts API once.
//
// A call made while another is in flight returns ErrBusy without touching
// the API. Validation failures return postform.FieldErrors and leave the
// controller Idle. A rejected or failed request raises a notice and returns
// an error wrapping ErrSubmissionFailed; the form is not modified.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return Outcome{State: Submitting}, ErrBusy
	}
	in, err := c.deps.Form.Validate()
	if err != nil {
		c.mu.Unlock()
		return Outcome{State: Idle}, err
	}
	c.transitionLocked(Submitting)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.transitionLocked(Idle)
		c.mu.Unlock()
	}()

	payload := c.buildPayload(in)
	out, err := c.send(ctx, payload)

	c.mu.Lock()
	c.last = out.State
	c.transitionLocked(out.State)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("post submission failed",
			zap.Stringer("mode", modeName(c.mode)),
			zap.String("post_id", c.postID),
			zap.Error(err))
		c.deps.Notifier.Notify(notify.Notice{Level: notify.Error, Message: c.failureMessage()})
		return out, err
	}

	c.logger.Info("post submitted", zap.Stringer("mode", modeName(c.mode)), zap.String("uid", out.PostUID))
	c.deps.Notifier.Notify(notify.Notice{Level: notify.Success, Message: c.successMessage()})
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(out.Path)
		c.deps.Navigator.Refresh(out.Path)
	}
	return out, nil
}

func (c *Controller) buildPayload(in postform.Input) Payload {
	p := Payload{
		AccessToken: c.accessToken,
		ISBN:        in.ISBN,
		Title:       in.Title,
		Author:      in.Author,
		Content:     in.Content,
	}
	if c.mode == Update {
		p.PostID = c.postID
	}
	if c.deps.Images != nil {
		if img, ok := c.deps.Images.Payload(); ok {
			p.Image = img
		}
	}
	return p
}

func (c *Controller) send(ctx context.Context, p Payload) (Outcome, error) {
	failed := Outcome{State: Failed}
	switch c.mode {
	case Update:
		res, err := c.deps.Poster.UpdatePost(ctx, p)
		if err != nil {
			return failed, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		}
		if !res.Success {
			return failed, fmt.Errorf("%w: %s", ErrSubmissionFailed, res.reason())
		}
		return Outcome{State: Succeeded, PostUID: c.postID, Path: PostPath(c.postID)}, nil
	default:
		res, err := c.deps.Poster.CreatePost(ctx, p)
		if err != nil {
			return failed, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		}
		if !res.Success || res.Post == nil || res.Post.UID == "" {
			return failed, fmt.Errorf("%w: %s", ErrSubmissionFailed, res.reason())
		}
		return Outcome{State: Succeeded, PostUID: res.Post.UID, Path: PostPath(res.Post.UID)}, nil
	}
}

// transitionLocked must be called with c.mu held.
func (c *Controller) transitionLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	for _, fn := range c.observers {
		fn(from, to)
	}
}

func (c *Controller) successMessage() string {
	if c.mode == Update {
		return MsgUpdated
	}
	return MsgCreated
}

func (c *Controller) failureMessage() string {
	if c.mode == Update {
		return MsgUpdateFailed
	}
	return MsgCreateFailed
}

// PostPath is the detail page route for a post.
func PostPath(uid string) string {
	return "/post/" + url.PathEscape(uid) + "/"
}

type modeName Mode

func (m modeName) String() string {
	if Mode(m) == Update {
		return "update"
	}
	return "create"
}
