// Package imagestage keeps the single thumbnail image attached to a post
// being edited.
package imagestage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/ringslog/notify"
)

// MaxSize is the largest accepted image, in bytes.
const MaxSize = 2 * 1024 * 1024

// NoImagePath is the placeholder shown for a post without a thumbnail.
const NoImagePath = "/public/noImage.png"

var (
	// ErrTooLarge is returned for a selection larger than MaxSize.
	ErrTooLarge = errors.New("ファイルサイズは2MBを超えることはできません")

	// ErrUnsupportedType is returned for anything other than JPEG or PNG.
	ErrUnsupportedType = errors.New("ファイル形式はjpg / jpeg / pngのみ対応しています")
)

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Kind says where a staged image came from.
type Kind int

const (
	KindNone   Kind = iota
	KindRemote      // already stored, referenced by URL
	KindLocal       // freshly selected, held as a data URL
)

// Image is the currently staged thumbnail.
type Image struct {
	Kind        Kind
	URL         string // remote reference, or the data URL for a local image
	Name        string
	Size        int64
	ContentType string
}

// Remote returns a staged image referencing an existing URL. An empty url
// yields the placeholder.
func Remote(url string) Image {
	if url == "" {
		url = NoImagePath
	}
	return Image{Kind: KindRemote, URL: url}
}

// IsLocal reports whether the image was selected in this session.
func (i Image) IsLocal() bool { return i.Kind == KindLocal }

// Src is the value for an <img src> preview.
func (i Image) Src() string { return i.URL }

// Selection is a file chosen by the user.
type Selection struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromFileHeader wraps a multipart upload as a Selection.
func FromFileHeader(fh *multipart.FileHeader) Selection {
	return Selection{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// FromBytes wraps an in-memory file as a Selection.
func FromBytes(name string, data []byte) Selection {
	return Selection{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Stager holds at most one staged image. It is safe for concurrent use.
type Stager struct {
	mu       sync.Mutex
	current  Image
	notifier notify.Notifier
	logger   *zap.Logger
}

// Option configures a Stager.
type Option func(*Stager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Stager) { s.logger = l }
}

// NewStager creates a Stager whose initial image is initial (the zero Image
// for a new post, Remote(url) for an edit).
func NewStager(initial Image, notifier notify.Notifier, opts ...Option) *Stager {
	if notifier == nil {
		notifier = notify.Discard
	}
	s := &Stager{current: initial, notifier: notifier, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the staged image.
func (s *Stager) Current() Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stage validates sel and, if accepted, makes it the sole staged image.
// A rejected selection raises a notice and leaves the previous image staged.
func (s *Stager) Stage(sel Selection) (Image, error) {
	img, err := encode(sel)
	if err != nil {
		s.logger.Info("image rejected", zap.String("name", sel.Name), zap.Int64("size", sel.Size), zap.Error(err))
		msg := err.Error()
		switch {
		case errors.Is(err, ErrTooLarge):
			msg = ErrTooLarge.Error()
		case errors.Is(err, ErrUnsupportedType):
			msg = ErrUnsupportedType.Error()
		}
		s.notifier.Notify(notify.Notice{Level: notify.Error, Message: msg})
		return Image{}, err
	}

	s.mu.Lock()
	s.current = img
	s.mu.Unlock()
	return img, nil
}

// Replace swaps the staged image for a new selection.
func (s *Stager) Replace(sel Selection) (Image, error) {
	return s.Stage(sel)
}

// Payload returns the data URL to upload. Only a locally selected image is
// uploaded; a remote reference is never sent back.
func (s *Stager) Payload() (string, bool) {
	cur := s.Current()
	if !cur.IsLocal() {
		return "", false
	}
	return cur.URL, true
}

func encode(sel Selection) (Image, error) {
	if sel.Size > MaxSize {
		return Image{}, ErrTooLarge
	}
	if sel.Open == nil {
		return Image{}, errors.New("imagestage: empty selection")
	}
	rc, err := sel.Open()
	if err != nil {
		return Image{}, fmt.Errorf("imagestage: open %s: %w", sel.Name, err)
	}
	defer rc.Close()

	// The declared size can lie; never read past the limit.
	data, err := io.ReadAll(io.LimitReader(rc, MaxSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("imagestage: read %s: %w", sel.Name, err)
	}
	if len(data) > MaxSize {
		return Image{}, ErrTooLarge
	}

	ct := http.DetectContentType(data)
	if !acceptedTypes[ct] {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}

	return Image{
		Kind:        KindLocal,
		URL:         "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data),
		Name:        sel.Name,
		Size:        int64(len(data)),
		ContentType: ct,
	}, nil
}
