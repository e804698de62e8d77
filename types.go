package ringslog

import (
	"time"

	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/notify"
	"github.com/eringen/ringslog/postform"
	"github.com/eringen/ringslog/submit"
)

// Review is a stored book review post.
type Review struct {
	UID       string
	UserID    string
	ISBN      string
	Title     string
	Author    string
	Content   string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Link is the detail page path for the review.
func (r Review) Link() string {
	return submit.PostPath(r.UID)
}

// User is a signed-up account. AccessToken is only populated for the user of
// the current request.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	AccessToken  string
}

// Layout is the data every page template receives.
type Layout struct {
	Site    SiteConfig
	User    *User
	CSRF    string
	Notices []notify.Notice
	Meta    PageMeta
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// HomePage lists the latest reviews.
type HomePage struct {
	Layout
	Reviews []Review
}

// PostPage shows a single review.
type PostPage struct {
	Layout
	Review  Review
	CanEdit bool
}

// AuthPage is the login or signup form.
type AuthPage struct {
	Layout
	Name  string
	Email string
	Error string
}

// EditorPage is the new/edit review form.
type EditorPage struct {
	Layout
	FormID     string
	Editing    bool
	PostID     string
	Values     postform.Input
	Errors     postform.FieldErrors
	Image      imagestage.Image
	Submitting bool
	// CatalogCover is the catalog thumbnail from the last ISBN lookup,
	// shown while no image is staged. It is never submitted.
	CatalogCover string
}

// Action is the URL the editor posts to for op ("isbn", "image", "submit").
func (p EditorPage) Action(op string) string {
	return "/editor/" + p.FormID + "/" + op + "/"
}
