// Package postform holds the state of the review editor form: field values,
// validation rules and the ISBN autofill flow.
package postform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/ringslog/bookinfo"
	"github.com/eringen/ringslog/notify"
)

// MsgUnknownError is shown when a lookup fails in an unexpected way.
const MsgUnknownError = "不明なエラーが発生しました"

// ErrUnknownField is returned by Set for a field the form does not have.
var ErrUnknownField = errors.New("postform: unknown field")

// Lookuper resolves an ISBN to book metadata.
type Lookuper interface {
	Lookup(ctx context.Context, isbn string) (bookinfo.Book, error)
}

// Listener is called after a field changes.
type Listener func(field Field, value string)

// Form is an observable post form. It is safe for concurrent use; listeners
// are invoked outside the form's lock.
type Form struct {
	mu        sync.Mutex
	values    Input
	book      *bookinfo.Book
	listeners map[int]Listener
	nextID    int

	lookup   Lookuper
	notifier notify.Notifier
	logger   *zap.Logger
}

// Option configures a Form.
type Option func(*Form)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Form) { f.logger = l }
}

// New creates a form holding initial, which is the zero Input for a new post
// and the stored values for an edit.
func New(initial Input, lookup Lookuper, notifier notify.Notifier, opts ...Option) *Form {
	if notifier == nil {
		notifier = notify.Discard
	}
	f := &Form{
		values:    initial,
		listeners: make(map[int]Listener),
		lookup:    lookup,
		notifier:  notifier,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Values returns a snapshot of the current field values.
func (f *Form) Values() Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// Book returns the last successful lookup result, if any.
func (f *Form) Book() (bookinfo.Book, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.book == nil {
		return bookinfo.Book{}, false
	}
	return *f.book, true
}

// Subscribe registers l and returns a function that removes it.
func (f *Form) Subscribe(l Listener) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Set updates a single field.
func (f *Form) Set(field Field, value string) error {
	f.mu.Lock()
	if !f.values.set(field, value) {
		f.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	ls := f.snapshotListeners()
	f.mu.Unlock()
	emit(ls, field, value)
	return nil
}

// SetAll replaces every field value, e.g. from a submitted HTML form.
func (f *Form) SetAll(in Input) {
	f.mu.Lock()
	f.values = in
	ls := f.snapshotListeners()
	f.mu.Unlock()
	for _, field := range Fields {
		emit(ls, field, in.Get(field))
	}
}

// Validate checks all fields and returns the values when they are all valid.
// The error, when non-nil, is a FieldErrors.
func (f *Form) Validate() (Input, error) {
	in := f.Values()
	if errs := ValidateInput(in); errs != nil {
		return Input{}, errs
	}
	return in, nil
}

// BlurISBN runs the autofill that follows the ISBN field losing focus.
// An empty ISBN does nothing. An ISBN of the wrong length raises a notice and
// skips the lookup. A successful lookup overwrites title and author; a failed
// one raises a notice and leaves the fields as they were. The returned error
// mirrors the notice for callers that want it.
func (f *Form) BlurISBN(ctx context.Context) error {
	isbn := f.Values().ISBN
	if isbn == "" {
		return nil
	}
	if !ValidISBNLength(isbn) {
		f.notifier.Notify(notify.Notice{Level: notify.Error, Message: MsgISBNLength})
		return FieldErrors{FieldISBN: MsgISBNLength}
	}

	book, err := f.lookup.Lookup(ctx, isbn)
	if err != nil {
		f.logger.Info("isbn lookup failed", zap.String("isbn", isbn), zap.Error(err))
		f.notifier.Notify(notify.Notice{Level: notify.Error, Message: lookupMessage(err)})
		return err
	}

	f.mu.Lock()
	f.book = &book
	f.values.Title = book.Title
	f.values.Author = book.Author
	ls := f.snapshotListeners()
	f.mu.Unlock()

	emit(ls, FieldTitle, book.Title)
	emit(ls, FieldAuthor, book.Author)
	return nil
}

func lookupMessage(err error) string {
	switch {
	case errors.Is(err, bookinfo.ErrNotFound):
		return bookinfo.ErrNotFound.Error()
	case errors.Is(err, bookinfo.ErrLookupFailed):
		return bookinfo.ErrLookupFailed.Error()
	}
	return MsgUnknownError
}

// snapshotListeners must be called with f.mu held.
func (f *Form) snapshotListeners() []Listener {
	ls := make([]Listener, 0, len(f.listeners))
	for i := 0; i < f.nextID; i++ {
		if l, ok := f.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	return ls
}

func emit(ls []Listener, field Field, value string) {
	for _, l := range ls {
		l(field, value)
	}
}
