package ringslog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/postform"
)

func newTestSessions(t *testing.T, cache *ReviewCache) *FormSessions {
	t.Helper()
	r := NewFormSessions(time.Hour, sessionDeps{lookup: fakeBooks{}, cache: cache})
	t.Cleanup(r.Close)
	return r
}

func TestFormSessionsOpenNew(t *testing.T) {
	r := newTestSessions(t, nil)
	s := r.Open(User{ID: "u1", AccessToken: "tok"}, Review{})

	assert.Empty(t, s.PostID)
	assert.Equal(t, postform.Input{}, s.Form.Values())
	assert.Equal(t, imagestage.KindNone, s.Images.Current().Kind)
	assert.False(t, s.Submit.Disabled())
	assert.Empty(t, s.Redirect())
	assert.Equal(t, 1, r.Len())
}

func TestFormSessionsOpenEditPrefills(t *testing.T) {
	r := newTestSessions(t, nil)
	review := Review{UID: "r1", UserID: "u1", ISBN: testISBN, Title: "Title", Author: "Author", Content: "Body"}
	s := r.Open(User{ID: "u1"}, review)

	assert.Equal(t, "r1", s.PostID)
	assert.Equal(t, postform.Input{ISBN: testISBN, Title: "Title", Author: "Author", Content: "Body"}, s.Form.Values())
	img := s.Images.Current()
	assert.Equal(t, imagestage.KindRemote, img.Kind)
	assert.Equal(t, imagestage.NoImagePath, img.URL)
}

func TestFormSessionsGetChecksOwner(t *testing.T) {
	r := newTestSessions(t, nil)
	s := r.Open(User{ID: "u1"}, Review{})

	got, ok := r.Get(s.ID, "u1")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Get(s.ID, "u2")
	assert.False(t, ok)
	_, ok = r.Get("unknown", "u1")
	assert.False(t, ok)

	r.Delete(s.ID)
	_, ok = r.Get(s.ID, "u1")
	assert.False(t, ok)
}

func TestFormSessionsSweepIdle(t *testing.T) {
	r := newTestSessions(t, nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Open(User{ID: "u1"}, Review{})
	busy := r.Open(User{ID: "u1"}, Review{})

	now = now.Add(50 * time.Minute)
	_, ok := r.Get(busy.ID, "u1")
	require.True(t, ok)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, r.sweep())
	_, ok = r.Get(idle.ID, "u1")
	assert.False(t, ok)
	_, ok = r.Get(busy.ID, "u1")
	assert.True(t, ok)
}

func TestFormSessionNavRefreshInvalidatesCache(t *testing.T) {
	store := setupTestStore(t)
	seedUser(t, store, "u1")
	cache := NewReviewCache(store, time.Hour)
	r := newTestSessions(t, cache)
	s := r.Open(User{ID: "u1"}, Review{})

	list, err := cache.ListReviews()
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, store.SaveReview(Review{UID: "r1", UserID: "u1", Title: "T", CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	s.nav.Navigate("/post/r1/")
	s.nav.Refresh("/post/r1/")

	list, err = cache.ListReviews()
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "/post/r1/", s.Redirect())
}

func TestFormSessionsCloseStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	r := NewFormSessions(time.Millisecond, sessionDeps{})
	r.Close()
	r.Close()
}
