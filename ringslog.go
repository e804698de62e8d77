// Package ringslog is a book-review blog built with Go, Echo, and templ.
// Readers sign up, enter an ISBN to autofill a review's title and author
// from the book catalog, attach a cover image, and publish.
//
// Users provide their own templ components via the ViewFuncs struct, and
// ringslog handles the handler logic, middleware, editor sessions and
// database operations.
package ringslog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/ringslog/bookinfo"
	"github.com/eringen/ringslog/postform"
	"github.com/eringen/ringslog/postsapi"
	"github.com/eringen/ringslog/submit"
	"github.com/eringen/ringslog/uploads"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages. EditorForm is the form fragment htmx swaps in after
// an ISBN lookup, image selection or failed submission.
type ViewFuncs struct {
	Home        func(p HomePage) templ.Component
	Post        func(p PostPage) templ.Component
	Editor      func(p EditorPage) templ.Component
	EditorForm  func(p EditorPage) templ.Component
	Login       func(p AuthPage) templ.Component
	Signup      func(p AuthPage) templ.Component
	NotFound    func(l Layout) templ.Component
	ServerError func(l Layout) templ.Component
}

// App is the central ringslog application. It wires together the store,
// cache, editor sessions, handlers, middleware, and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *ReviewCache
	Views  ViewFuncs
	Logger *zap.Logger

	loginLimiter *LoginLimiter
	tokens       *TokenIssuer
	forms        *FormSessions
	posts        *postService
	lookup       postform.Lookuper
	poster       submit.Poster
	reviews      reviewSource
	uploads      uploads.Store
	customRoutes []func(*App)
	staticDir    string
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		Logger:    zap.NewNop(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the database and wires every component, middleware and route
// without listening. Start calls it; tests call it directly.
func (a *App) Init() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("ringslog: SessionSecret is required")
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("ringslog: init store: %w", err)
		}
		a.Store = store
	}

	a.Cache = NewReviewCache(a.Store, a.Config.ReviewCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.tokens = NewTokenIssuer(a.Config.SessionSecret, a.Config.TokenTTL)

	if a.uploads == nil {
		us, err := a.newUploadStore()
		if err != nil {
			return fmt.Errorf("ringslog: init uploads: %w", err)
		}
		a.uploads = us
	}
	a.posts = &postService{
		store:   a.Store,
		cache:   a.Cache,
		tokens:  a.tokens,
		uploads: a.uploads,
		logger:  a.Logger.Named("posts"),
		newUID:  uuid.NewString,
		now:     time.Now,
	}

	if a.lookup == nil {
		bookOpts := []bookinfo.Option{bookinfo.WithLogger(a.Logger.Named("bookinfo"))}
		if a.Config.BookAPIURL != "" {
			bookOpts = append(bookOpts, bookinfo.WithEndpoint(a.Config.BookAPIURL))
		}
		a.lookup = bookinfo.New(bookOpts...)
	}
	if a.poster == nil {
		if a.Config.PostsAPIURL != "" {
			a.poster = postsapi.New(a.Config.PostsAPIURL, postsapi.WithLogger(a.Logger.Named("postsapi")))
		} else {
			a.poster = &LocalPoster{svc: a.posts}
		}
	}
	// Pages read reviews from wherever the editor writes them.
	if client, ok := a.poster.(*postsapi.Client); ok {
		a.reviews = remoteReviews{client: client}
	} else {
		a.reviews = localReviews{cache: a.Cache}
	}

	a.forms = NewFormSessions(a.Config.FormSessionTTL, sessionDeps{
		lookup: a.lookup,
		poster: a.poster,
		cache:  a.Cache,
		logger: a.Logger.Named("editor"),
	})

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and starts the server. It returns nil after a
// graceful Shutdown.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Logger.Info("listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) newUploadStore() (uploads.Store, error) {
	switch a.Config.Storage {
	case "s3":
		return uploads.NewS3(a.Config.S3)
	case "local", "":
		return uploads.Local{Dir: a.Config.UploadDir, URLPrefix: a.Config.UploadURLPrefix}, nil
	default:
		return nil, fmt.Errorf("unknown storage %q", a.Config.Storage)
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	if _, ok := a.uploads.(uploads.Local); ok {
		e.Static(a.Config.UploadURLPrefix, a.Config.UploadDir)
	}
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)

	// Public routes
	e.GET("/", a.handleHome)
	e.GET("/post/:uid/", a.handlePost)

	// Auth
	e.GET("/login/", a.handleLoginPage)
	e.POST("/login/", a.handleLogin)
	e.GET("/signup/", a.handleSignupPage)
	e.POST("/signup/", a.handleSignup)
	e.POST("/logout/", a.handleLogout)

	// Editor
	e.GET("/post/new/", a.handleNewPost, requireUser)
	e.GET("/post/:uid/edit/", a.handleEditPost, requireUser)
	ed := e.Group("/editor/:id", requireUser)
	ed.POST("/isbn/", a.handleISBNBlur)
	ed.POST("/image/", a.handleImageSelect)
	ed.POST("/submit/", a.handleSubmit)

	// Posts API
	e.GET("/api/posts", a.handleAPIList)
	e.POST("/api/posts", a.handleAPICreate)
	e.GET("/api/posts/:uid", a.handleAPIGet)
	e.PUT("/api/posts/:uid", a.handleAPIUpdate)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.forms != nil {
		a.forms.Close()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
