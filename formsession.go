package ringslog

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/notify"
	"github.com/eringen/ringslog/postform"
	"github.com/eringen/ringslog/submit"
)

// FormSession is the server-side state of one open editor page: the form
// values, the staged image and the submission controller.
type FormSession struct {
	ID     string
	UserID string
	PostID string // empty for a new review

	Form   *postform.Form
	Images *imagestage.Stager
	Submit *submit.Controller

	notices *notify.Queue
	nav     *sessionNav

	mu      sync.Mutex
	touched time.Time
}

// Notices drains the toasts raised since the last call.
func (s *FormSession) Notices() []notify.Notice {
	return s.notices.Drain()
}

// Redirect is the path the last successful submission navigated to.
func (s *FormSession) Redirect() string {
	return s.nav.target()
}

func (s *FormSession) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

func (s *FormSession) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touched)
}

// sessionNav records where a successful submission wants to go and drops
// the cached review list so that page renders fresh data.
type sessionNav struct {
	mu     sync.Mutex
	path   string
	cache  *ReviewCache
	logger *zap.Logger
}

func (n *sessionNav) Navigate(path string) {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
}

func (n *sessionNav) Refresh(path string) {
	n.logger.Debug("refreshing cached reviews", zap.String("path", path))
	if n.cache != nil {
		n.cache.Invalidate()
	}
}

func (n *sessionNav) target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// sessionDeps are the shared collaborators every form session is built with.
type sessionDeps struct {
	lookup postform.Lookuper
	poster submit.Poster
	cache  *ReviewCache
	logger *zap.Logger
}

// FormSessions is the in-memory registry of open editor pages. Sessions idle
// longer than ttl are swept by a background goroutine until Close.
type FormSessions struct {
	mu       sync.Mutex
	sessions map[string]*FormSession
	ttl      time.Duration
	deps     sessionDeps
	now      func() time.Time
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewFormSessions starts a registry that sweeps every ttl/4.
func NewFormSessions(ttl time.Duration, deps sessionDeps) *FormSessions {
	if deps.logger == nil {
		deps.logger = zap.NewNop()
	}
	r := &FormSessions{
		sessions: make(map[string]*FormSession),
		ttl:      ttl,
		deps:     deps,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

func (r *FormSessions) sweepLoop() {
	defer close(r.done)
	interval := r.ttl / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *FormSessions) sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.idleSince(now) >= r.ttl {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		r.deps.logger.Debug("expired form sessions", zap.Int("count", n))
	}
	return n
}

// Open creates a session for user. An empty review.UID opens a new-review
// form; otherwise the form is prefilled from review for editing.
func (r *FormSessions) Open(user User, review Review) *FormSession {
	id := uuid.NewString()
	notices := &notify.Queue{}
	nav := &sessionNav{cache: r.deps.cache, logger: r.deps.logger}
	logger := r.deps.logger.With(zap.String("form_session", id))

	initial := postform.Input{}
	img := imagestage.Image{}
	if review.UID != "" {
		initial = postform.Input{ISBN: review.ISBN, Title: review.Title, Author: review.Author, Content: review.Content}
		img = imagestage.Remote(review.Image)
	}

	form := postform.New(initial, r.deps.lookup, notices, postform.WithLogger(logger))
	images := imagestage.NewStager(img, notices, imagestage.WithLogger(logger))
	deps := submit.Deps{
		Form:      form,
		Images:    images,
		Poster:    r.deps.poster,
		Navigator: nav,
		Notifier:  notices,
	}
	onTransition := submit.OnTransition(func(from, to submit.State) {
		logger.Debug("submit state", zap.Stringer("from", from), zap.Stringer("to", to))
	})
	var ctrl *submit.Controller
	if review.UID != "" {
		ctrl = submit.NewUpdate(review.UID, user.AccessToken, deps, submit.WithLogger(logger), onTransition)
	} else {
		ctrl = submit.NewCreate(user.AccessToken, deps, submit.WithLogger(logger), onTransition)
	}

	s := &FormSession{
		ID:      id,
		UserID:  user.ID,
		PostID:  review.UID,
		Form:    form,
		Images:  images,
		Submit:  ctrl,
		notices: notices,
		nav:     nav,
		touched: r.now(),
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// Get returns the session id owned by userID and marks it used.
func (r *FormSessions) Get(id, userID string) (*FormSession, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok || s.UserID != userID {
		return nil, false
	}
	s.touch(r.now())
	return s, true
}

// Delete removes a session.
func (r *FormSessions) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of open sessions.
func (r *FormSessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the sweeper and waits for it to exit.
func (r *FormSessions) Close() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}
