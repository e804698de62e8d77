package ringslog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/postform"
	"github.com/eringen/ringslog/submit"
)

func (a *App) handleNewPost(c echo.Context) error {
	s := a.forms.Open(*CurrentUser(c), Review{})
	return a.renderEditor(c, s, nil, http.StatusOK)
}

func (a *App) handleEditPost(c echo.Context) error {
	r, err := a.reviews.GetReview(c.Request().Context(), c.Param("uid"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	u := CurrentUser(c)
	if r.UserID != u.ID {
		return echo.NewHTTPError(http.StatusForbidden, "この投稿を編集する権限がありません")
	}
	s := a.forms.Open(*u, r)
	return a.renderEditor(c, s, nil, http.StatusOK)
}

// handleISBNBlur runs the autofill after the ISBN field loses focus.
func (a *App) handleISBNBlur(c echo.Context) error {
	s, err := a.formSession(c)
	if err != nil {
		return err
	}
	s.Form.SetAll(formInput(c))
	// Lookup failures are surfaced as notices.
	_ = s.Form.BlurISBN(c.Request().Context())
	return a.renderEditor(c, s, nil, http.StatusOK)
}

// handleImageSelect stages the chosen image for preview.
func (a *App) handleImageSelect(c echo.Context) error {
	s, err := a.formSession(c)
	if err != nil {
		return err
	}
	s.Form.SetAll(formInput(c))
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "画像ファイルを選択してください")
	}
	// Rejections are surfaced as notices with the previous image kept.
	_, _ = s.Images.Stage(imagestage.FromFileHeader(fh))
	return a.renderEditor(c, s, nil, http.StatusOK)
}

func (a *App) handleSubmit(c echo.Context) error {
	s, err := a.formSession(c)
	if err != nil {
		return err
	}
	if s.Submit.Disabled() {
		return a.renderEditor(c, s, nil, http.StatusConflict)
	}
	s.Form.SetAll(formInput(c))
	// Without htmx the file arrives with the submit rather than on change.
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		if _, err := s.Images.Stage(imagestage.FromFileHeader(fh)); err != nil {
			return a.renderEditor(c, s, nil, http.StatusOK)
		}
	}

	out, err := s.Submit.Submit(c.Request().Context())
	var fieldErrs postform.FieldErrors
	switch {
	case errors.Is(err, submit.ErrBusy):
		return a.renderEditor(c, s, nil, http.StatusConflict)
	case errors.As(err, &fieldErrs):
		return a.renderEditor(c, s, fieldErrs, http.StatusOK)
	case err != nil:
		return a.renderEditor(c, s, nil, http.StatusOK)
	}

	if err := addFlash(c, s.Notices()...); err != nil {
		return err
	}
	a.forms.Delete(s.ID)
	target := s.Redirect()
	if target == "" {
		target = out.Path
	}
	if isHTMX(c) {
		c.Response().Header().Set("HX-Redirect", target)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// formSession resolves the :id form session for the signed-in user.
// An unknown or expired session sends the user back to start over.
func (a *App) formSession(c echo.Context) (*FormSession, error) {
	s, ok := a.forms.Get(c.Param("id"), CurrentUser(c).ID)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusGone, "編集セッションの有効期限が切れました。ページを再読み込みしてください")
	}
	return s, nil
}

func (a *App) renderEditor(c echo.Context, s *FormSession, errs postform.FieldErrors, status int) error {
	title := "新規投稿"
	if s.PostID != "" {
		title = "投稿編集"
	}
	img := s.Images.Current()
	var catalogCover string
	if img.Kind == imagestage.KindNone {
		if book, ok := s.Form.Book(); ok {
			catalogCover = book.Image
		}
	}
	page := EditorPage{
		Layout:       a.layout(c, PageMeta{Title: title}, s.Notices()...),
		FormID:       s.ID,
		Editing:      s.PostID != "",
		PostID:       s.PostID,
		Values:       s.Form.Values(),
		Errors:       errs,
		Image:        img,
		Submitting:   s.Submit.Disabled(),
		CatalogCover: catalogCover,
	}
	return RenderSwap(c, status, a.Views.Editor(page), a.Views.EditorForm(page))
}

func formInput(c echo.Context) postform.Input {
	return postform.Input{
		ISBN:    c.FormValue(string(postform.FieldISBN)),
		Title:   c.FormValue(string(postform.FieldTitle)),
		Author:  c.FormValue(string(postform.FieldAuthor)),
		Content: c.FormValue(string(postform.FieldContent)),
	}
}
