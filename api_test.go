package ringslog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/ringslog/postsapi"
	"github.com/eringen/ringslog/submit"
)

func apiUser(t *testing.T, a *App, id string) string {
	t.Helper()
	require.NoError(t, a.Store.CreateUser(User{ID: id, Name: id, Email: id + "@example.com", PasswordHash: "x"}))
	tok, err := a.tokens.Sign(id)
	require.NoError(t, err)
	return tok
}

func apiCall(t *testing.T, a *App, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func pngDataURL(t *testing.T) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 40, 30))
}

func TestAPICreateRequiresToken(t *testing.T) {
	a := newTestApp(t)
	p := submit.Payload{ISBN: testISBN, Title: "title", Author: "author", Content: "content"}

	rec := apiCall(t, a, http.MethodPost, "/api/posts", "", p)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = apiCall(t, a, http.MethodPost, "/api/posts", "not-a-token", p)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var res submit.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Success)
}

func TestAPICreateAndGet(t *testing.T) {
	a := newTestApp(t)
	tok := apiUser(t, a, "u1")

	rec := apiCall(t, a, http.MethodPost, "/api/posts", tok, submit.Payload{
		ISBN: testISBN, Title: "並行処理", Author: "Cox-Buday", Content: "良い本", Image: pngDataURL(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res submit.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.NotNil(t, res.Post)
	assert.True(t, strings.HasSuffix(res.Post.Image, ".jpg"), res.Post.Image)

	rec = apiCall(t, a, http.MethodGet, "/api/posts/"+res.Post.UID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got getPostResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Post)
	assert.Equal(t, "u1", got.Post.UserID)
	assert.Equal(t, "良い本", got.Post.Content)

	rec = apiCall(t, a, http.MethodGet, "/api/posts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIRejectsInvalidFields(t *testing.T) {
	a := newTestApp(t)
	tok := apiUser(t, a, "u1")

	rec := apiCall(t, a, http.MethodPost, "/api/posts", tok, submit.Payload{ISBN: "1", Title: "t", Author: "", Content: "c"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = apiCall(t, a, http.MethodPost, "/api/posts", tok, submit.Payload{
		ISBN: testISBN, Title: "title", Author: "author", Content: "content", Image: "data:image/png;base64,!!!",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPIUpdateOwnership(t *testing.T) {
	a := newTestApp(t)
	owner := apiUser(t, a, "owner")
	other := apiUser(t, a, "other")

	rec := apiCall(t, a, http.MethodPost, "/api/posts", owner, submit.Payload{
		ISBN: testISBN, Title: "title", Author: "author", Content: "content", Image: pngDataURL(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created submit.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	uid := created.Post.UID

	edit := submit.Payload{PostID: uid, ISBN: testISBN, Title: "title", Author: "author", Content: "changed"}
	assert.Equal(t, http.StatusForbidden, apiCall(t, a, http.MethodPut, "/api/posts/"+uid, other, edit).Code)
	assert.Equal(t, http.StatusBadRequest, apiCall(t, a, http.MethodPut, "/api/posts/elsewhere", owner, edit).Code)
	assert.Equal(t, http.StatusNotFound, apiCall(t, a, http.MethodPut, "/api/posts/missing", owner,
		submit.Payload{ISBN: testISBN, Title: "title", Author: "author", Content: "changed"}).Code)

	rec = apiCall(t, a, http.MethodPut, "/api/posts/"+uid, owner, edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	r, err := a.Store.GetReview(uid)
	require.NoError(t, err)
	assert.Equal(t, "changed", r.Content)
	assert.Equal(t, created.Post.Image, r.Image, "no image in the payload keeps the stored one")
}

func TestPostsAPIClientAgainstServer(t *testing.T) {
	a := newTestApp(t)
	tok := apiUser(t, a, "u1")
	srv := httptest.NewServer(a.Echo)
	defer srv.Close()

	c := postsapi.New(srv.URL)
	ctx := context.Background()

	res, err := c.CreatePost(ctx, submit.Payload{AccessToken: tok, ISBN: testISBN, Title: "title", Author: "author", Content: "content"})
	require.NoError(t, err)
	require.True(t, res.Success)

	up, err := c.UpdatePost(ctx, submit.Payload{AccessToken: tok, PostID: res.Post.UID, ISBN: testISBN, Title: "title", Author: "author", Content: "again"})
	require.NoError(t, err)
	assert.True(t, up.Success)

	post, err := c.GetPost(ctx, res.Post.UID)
	require.NoError(t, err)
	assert.Equal(t, "again", post.Content)

	_, err = c.GetPost(ctx, "missing")
	assert.ErrorIs(t, err, postsapi.ErrNotFound)

	rejected, err := c.CreatePost(ctx, submit.Payload{AccessToken: "bad", ISBN: testISBN, Title: "title", Author: "author", Content: "content"})
	require.NoError(t, err)
	assert.False(t, rejected.Success)
}

func TestLocalPosterReportsRejections(t *testing.T) {
	a := newTestApp(t)
	tok := apiUser(t, a, "u1")
	lp := &LocalPoster{svc: a.posts}
	ctx := context.Background()

	res, err := lp.CreatePost(ctx, submit.Payload{AccessToken: "bad", ISBN: testISBN, Title: "title", Author: "author", Content: "content"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unauthorized")

	res, err = lp.CreatePost(ctx, submit.Payload{AccessToken: tok, ISBN: testISBN, Title: "title", Author: "author", Content: "content"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Empty(t, res.Post.Image)

	up, err := lp.UpdatePost(ctx, submit.Payload{AccessToken: tok, PostID: "missing", ISBN: testISBN, Title: "title", Author: "author", Content: "content"})
	require.NoError(t, err)
	assert.False(t, up.Success)
}

func TestAPIList(t *testing.T) {
	a := newTestApp(t)
	tok := apiUser(t, a, "u1")
	for _, title := range []string{"first", "second"} {
		rec := apiCall(t, a, http.MethodPost, "/api/posts", tok, submit.Payload{ISBN: testISBN, Title: title, Author: "author", Content: "content"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := apiCall(t, a, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res listPostsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Len(t, res.Posts, 2)
}
