// Package views provides the default RingsLog page components. Sites can
// pass Default() to ringslog.New as is, or override single fields.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/ringslog"
)

//go:embed templates/*.html
var files embed.FS

// pages maps a page name to its template set: base.html plus the page file.
var pages = map[string]*template.Template{}

func init() {
	base := template.Must(template.New("base.html").Funcs(funcs).ParseFS(files, "templates/base.html"))
	for _, name := range []string{"home", "post", "editor", "login", "signup", "notfound", "error"} {
		pages[name] = template.Must(template.Must(base.Clone()).ParseFS(files, "templates/"+name+".html"))
	}
}

// Default returns ViewFuncs backed by the embedded templates.
func Default() ringslog.ViewFuncs {
	return ringslog.ViewFuncs{
		Home:        func(p ringslog.HomePage) templ.Component { return page("home", "base", p) },
		Post:        func(p ringslog.PostPage) templ.Component { return page("post", "base", p) },
		Editor:      func(p ringslog.EditorPage) templ.Component { return page("editor", "base", p) },
		EditorForm:  func(p ringslog.EditorPage) templ.Component { return page("editor", "editor-partial", p) },
		Login:       func(p ringslog.AuthPage) templ.Component { return page("login", "base", p) },
		Signup:      func(p ringslog.AuthPage) templ.Component { return page("signup", "base", p) },
		NotFound:    func(l ringslog.Layout) templ.Component { return page("notfound", "base", l) },
		ServerError: func(l ringslog.Layout) templ.Component { return page("error", "base", l) },
	}
}

func page(name, entry string, data interface{}) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[name]
		if !ok {
			return fmt.Errorf("views: unknown page %q", name)
		}
		return t.ExecuteTemplate(w, entry, data)
	})
}
