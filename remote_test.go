package ringslog

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEditorAgainstRemotePostsAPI runs the editor on one app that stores
// reviews through another app's posts API.
func TestEditorAgainstRemotePostsAPI(t *testing.T) {
	backend := newTestApp(t)
	srv := httptest.NewServer(backend.Echo)
	defer srv.Close()

	front := newTestApp(t, func(cfg *SiteConfig) { cfg.PostsAPIURL = srv.URL })
	b := newBrowser(t, front)
	b.signup("読書家", "reader@example.com")
	u, err := front.Store.GetUserByEmail("reader@example.com")
	require.NoError(t, err)
	require.NoError(t, backend.Store.CreateUser(u))

	id, _ := b.openEditor("/post/new/")
	rec := b.postForm("/editor/"+id+"/submit/", reviewForm(testISBN, "Go言語による並行処理", "Katherine Cox-Buday", "リモートに保存"), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	target := rec.Header().Get("HX-Redirect")
	require.True(t, strings.HasPrefix(target, "/post/"), "HX-Redirect = %q", target)

	local, err := front.Store.ListReviews()
	require.NoError(t, err)
	assert.Empty(t, local)
	remote, err := backend.Store.ListReviews()
	require.NoError(t, err)
	require.Len(t, remote, 1)

	rec = b.get(target)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "content=リモートに保存")
	assert.Contains(t, rec.Body.String(), "canEdit=true")
	assert.Contains(t, b.get("/").Body.String(), "reviews=1")

	id, body := b.openEditor(target + "edit/")
	assert.Contains(t, body, "editing=true")
	assert.Contains(t, body, "content=リモートに保存")

	rec = b.postForm("/editor/"+id+"/submit/", reviewForm(testISBN, "Go言語による並行処理", "Katherine Cox-Buday", "書き直した"), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, b.get(target).Body.String(), "content=書き直した")

	assert.Equal(t, http.StatusNotFound, b.get("/post/missing/").Code)
}
