package submit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/notify"
	"github.com/eringen/ringslog/postform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePoster struct {
	mu        sync.Mutex
	creates   []Payload
	updates   []Payload
	createRes CreateResult
	updateRes UpdateResult
	err       error
	entered   chan struct{}
	release   chan struct{}
}

func (p *fakePoster) wait() {
	if p.entered != nil {
		close(p.entered)
		<-p.release
	}
}

func (p *fakePoster) CreatePost(_ context.Context, pl Payload) (CreateResult, error) {
	p.mu.Lock()
	p.creates = append(p.creates, pl)
	p.mu.Unlock()
	p.wait()
	return p.createRes, p.err
}

func (p *fakePoster) UpdatePost(_ context.Context, pl Payload) (UpdateResult, error) {
	p.mu.Lock()
	p.updates = append(p.updates, pl)
	p.mu.Unlock()
	p.wait()
	return p.updateRes, p.err
}

type fakeNav struct {
	navigated []string
	refreshed []string
}

func (n *fakeNav) Navigate(path string) { n.navigated = append(n.navigated, path) }
func (n *fakeNav) Refresh(path string)  { n.refreshed = append(n.refreshed, path) }

func validForm() *postform.Form {
	return postform.New(postform.Input{ISBN: "1234567890", Title: "Title", Author: "Author", Content: "Great book"}, nil, nil)
}

func TestCreateSuccess(t *testing.T) {
	poster := &fakePoster{createRes: CreateResult{Success: true, Post: &PostRef{UID: "42"}}}
	nav := &fakeNav{}
	var q notify.Queue
	var transitions []string

	c := NewCreate("token-1", Deps{
		Form:      validForm(),
		Images:    imagestage.NewStager(imagestage.Image{}, nil),
		Poster:    poster,
		Navigator: nav,
		Notifier:  &q,
	}, OnTransition(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))

	out, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, out.State)
	assert.Equal(t, "42", out.PostUID)
	assert.Equal(t, []string{"/post/42/"}, nav.navigated)
	assert.Equal(t, []string{"/post/42/"}, nav.refreshed)
	assert.Equal(t, []notify.Notice{{Level: notify.Success, Message: MsgCreated}}, q.Drain())
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, Succeeded, c.Last())
	assert.Equal(t, []string{"idle->submitting", "submitting->succeeded", "succeeded->idle"}, transitions)

	require.Len(t, poster.creates, 1)
	assert.Equal(t, Payload{
		AccessToken: "token-1",
		ISBN:        "1234567890",
		Title:       "Title",
		Author:      "Author",
		Content:     "Great book",
	}, poster.creates[0])
}

func TestCreateFailures(t *testing.T) {
	cases := map[string]*fakePoster{
		"success false":  {createRes: CreateResult{Success: false}},
		"missing post":   {createRes: CreateResult{Success: true}},
		"transport fail": {err: errors.New("connection refused")},
	}
	for name, poster := range cases {
		t.Run(name, func(t *testing.T) {
			form := validForm()
			before := form.Values()
			nav := &fakeNav{}
			var q notify.Queue
			c := NewCreate("tok", Deps{Form: form, Poster: poster, Navigator: nav, Notifier: &q})

			out, err := c.Submit(context.Background())
			assert.ErrorIs(t, err, ErrSubmissionFailed)
			assert.Equal(t, Failed, out.State)
			assert.Empty(t, nav.navigated)
			assert.Equal(t, []notify.Notice{{Level: notify.Error, Message: MsgCreateFailed}}, q.Drain())
			assert.Equal(t, before, form.Values())
			assert.Equal(t, Idle, c.State())
			assert.False(t, c.Disabled())
		})
	}
}

func TestUpdateCarriesPostIDAndOnlyLocalImage(t *testing.T) {
	poster := &fakePoster{updateRes: UpdateResult{Success: true}}
	nav := &fakeNav{}
	var q notify.Queue
	images := imagestage.NewStager(imagestage.Remote("https://cdn.example/old.jpg"), nil)
	c := NewUpdate("p-9", "tok", Deps{Form: validForm(), Images: images, Poster: poster, Navigator: nav, Notifier: &q})

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, poster.updates, 1)
	assert.Equal(t, "p-9", poster.updates[0].PostID)
	assert.Empty(t, poster.updates[0].Image, "remote image must not be sent")
	assert.Equal(t, []string{"/post/p-9/"}, nav.navigated)
	assert.Equal(t, MsgUpdated, q.Drain()[0].Message)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	_, err = images.Stage(imagestage.FromBytes("new.png", png))
	require.NoError(t, err)
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, poster.updates, 2)
	assert.Contains(t, poster.updates[1].Image, "data:image/png;base64,")
}

func TestUpdateFailure(t *testing.T) {
	poster := &fakePoster{updateRes: UpdateResult{Success: false}}
	var q notify.Queue
	c := NewUpdate("p-1", "tok", Deps{Form: validForm(), Poster: poster, Notifier: &q})

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Equal(t, []notify.Notice{{Level: notify.Error, Message: MsgUpdateFailed}}, q.Drain())
}

func TestInvalidFormNeverSubmits(t *testing.T) {
	poster := &fakePoster{}
	form := postform.New(postform.Input{Title: "ab"}, nil, nil)
	c := NewCreate("tok", Deps{Form: form, Poster: poster})

	out, err := c.Submit(context.Background())
	var fe postform.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, postform.MsgMinLength3, fe[postform.FieldTitle])
	assert.Equal(t, Idle, out.State)
	assert.Empty(t, poster.creates)
	assert.Equal(t, Idle, c.Last())
}

func TestDoubleSubmitIsNoOp(t *testing.T) {
	poster := &fakePoster{
		createRes: CreateResult{Success: true, Post: &PostRef{UID: "1"}},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	c := NewCreate("tok", Deps{Form: validForm(), Poster: poster})

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	<-poster.entered
	assert.True(t, c.Disabled())
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(poster.release)
	require.NoError(t, <-done)

	poster.mu.Lock()
	defer poster.mu.Unlock()
	assert.Len(t, poster.creates, 1)
	assert.Equal(t, Idle, c.State())
}

func TestPostPathEscapes(t *testing.T) {
	assert.Equal(t, "/post/42/", PostPath("42"))
	assert.Equal(t, "/post/a%2Fb/", PostPath("a/b"))
}
