package postform

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Field names a form input.
type Field string

const (
	FieldISBN    Field = "isbn"
	FieldTitle   Field = "title"
	FieldAuthor  Field = "author"
	FieldContent Field = "content"
)

// Fields lists every form field in display order.
var Fields = []Field{FieldISBN, FieldTitle, FieldAuthor, FieldContent}

// Validation messages shown inline under each field.
const (
	MsgMinLength3     = "3文字以上入力する必要があります"
	MsgAuthorRequired = "著者名を入力してください"
	MsgISBNLength     = "ISBNは10桁または13桁である必要があります"
)

// Input is the submittable content of the post form.
type Input struct {
	ISBN    string `json:"isbn"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Get returns the value of field f.
func (in Input) Get(f Field) string {
	switch f {
	case FieldISBN:
		return in.ISBN
	case FieldTitle:
		return in.Title
	case FieldAuthor:
		return in.Author
	case FieldContent:
		return in.Content
	}
	return ""
}

func (in *Input) set(f Field, v string) bool {
	switch f {
	case FieldISBN:
		in.ISBN = v
	case FieldTitle:
		in.Title = v
	case FieldAuthor:
		in.Author = v
	case FieldContent:
		in.Content = v
	default:
		return false
	}
	return true
}

// rule is one predicate with the message shown when it fails.
type rule struct {
	ok  func(string) bool
	msg string
}

func minLength(n int) func(string) bool {
	return func(s string) bool { return utf8.RuneCountInString(s) >= n }
}

// ValidISBNLength reports whether isbn has exactly 10 or 13 characters.
func ValidISBNLength(isbn string) bool {
	n := utf8.RuneCountInString(isbn)
	return n == 10 || n == 13
}

var rules = map[Field][]rule{
	FieldTitle:   {{minLength(3), MsgMinLength3}},
	FieldContent: {{minLength(3), MsgMinLength3}},
	FieldAuthor:  {{minLength(1), MsgAuthorRequired}},
	FieldISBN:    {{ValidISBNLength, MsgISBNLength}},
}

// FieldErrors maps each failing field to its message.
type FieldErrors map[Field]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for f := range fe {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[Field(k)]
	}
	return "invalid post: " + strings.Join(parts, "; ")
}

// ValidateInput checks every field independently and returns nil when all
// of them pass.
func ValidateInput(in Input) FieldErrors {
	errs := FieldErrors{}
	for _, f := range Fields {
		v := in.Get(f)
		for _, r := range rules[f] {
			if !r.ok(v) {
				errs[f] = r.msg
				break
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
