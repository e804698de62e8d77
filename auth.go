package ringslog

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/ringslog/notify"
)

const (
	msgLoginFailed     = "メールアドレスまたはパスワードが違います"
	msgTooManyAttempts = "ログイン試行回数が多すぎます。しばらくしてから再度お試しください"
	msgSignupInvalid   = "名前・メールアドレス・パスワード(8文字以上)を入力してください"
	msgEmailTaken      = "このメールアドレスは既に登録されています"
	msgLoggedIn        = "ログインしました"
	msgLoggedOut       = "ログアウトしました"
	msgSignedUp        = "アカウントを登録しました"

	minPasswordLength = 8
)

func (a *App) handleLoginPage(c echo.Context) error {
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, a.Views.Login(AuthPage{Layout: a.layout(c, PageMeta{Title: "ログイン"})}))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	email := strings.TrimSpace(c.FormValue("email"))
	page := AuthPage{Layout: a.layout(c, PageMeta{Title: "ログイン"}), Email: email}

	if !a.loginLimiter.Check(ip) {
		page.Error = msgTooManyAttempts
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.Login(page))
	}

	u, err := a.Store.GetUserByEmail(email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.FormValue("password")))
	}
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return err
		}
		a.loginLimiter.Record(ip)
		a.Logger.Info("login failed", zap.String("ip", ip))
		page.Error = msgLoginFailed
		return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(page))
	}
	return a.signIn(c, u, msgLoggedIn)
}

func (a *App) handleSignupPage(c echo.Context) error {
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, a.Views.Signup(AuthPage{Layout: a.layout(c, PageMeta{Title: "新規登録"})}))
}

func (a *App) handleSignup(c echo.Context) error {
	if CurrentUser(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	page := AuthPage{Layout: a.layout(c, PageMeta{Title: "新規登録"}), Name: name, Email: email}

	if name == "" || !strings.Contains(email, "@") || utf8.RuneCountInString(password) < minPasswordLength {
		page.Error = msgSignupInvalid
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Signup(page))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: string(hash)}
	if err := a.Store.CreateUser(u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			page.Error = msgEmailTaken
			return RenderStatus(c, http.StatusConflict, a.Views.Signup(page))
		}
		return err
	}
	a.Logger.Info("user signed up", zap.String("user_id", u.ID))
	return a.signIn(c, u, msgSignedUp)
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	if err := addFlash(c, notify.Notice{Level: notify.Success, Message: msgLoggedOut}); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) signIn(c echo.Context, u User, msg string) error {
	token, err := a.tokens.Sign(u.ID)
	if err != nil {
		return err
	}
	if err := setUserSession(c, u, token); err != nil {
		return err
	}
	if err := addFlash(c, notify.Notice{Level: notify.Success, Message: msg}); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
