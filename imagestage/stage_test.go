package imagestage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/ringslog/notify"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func fakePNG(size int) []byte {
	b := make([]byte, size)
	copy(b, pngSignature)
	return b
}

func fakeJPEG(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return b
}

func TestStageAcceptsOneMiB(t *testing.T) {
	var q notify.Queue
	s := NewStager(Image{}, &q)

	img, err := s.Stage(FromBytes("cover.png", fakePNG(1<<20)))
	require.NoError(t, err)
	assert.Equal(t, KindLocal, img.Kind)
	assert.Equal(t, "image/png", img.ContentType)
	assert.True(t, strings.HasPrefix(img.URL, "data:image/png;base64,"))
	assert.Equal(t, img, s.Current())
	assert.Empty(t, q.Drain())
}

func TestStageBoundaryIsInclusive(t *testing.T) {
	s := NewStager(Image{}, nil)
	_, err := s.Stage(FromBytes("exact.jpg", fakeJPEG(MaxSize)))
	assert.NoError(t, err)

	_, err = s.Stage(FromBytes("over.jpg", fakeJPEG(MaxSize+1)))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "exact.jpg", s.Current().Name)
}

func TestStageRejectsThreeMiBAndKeepsPrevious(t *testing.T) {
	var q notify.Queue
	s := NewStager(Remote("https://cdn.example/old.jpg"), &q)
	before := s.Current()

	_, err := s.Stage(FromBytes("huge.png", fakePNG(3<<20)))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, before, s.Current())
	assert.Equal(t, []notify.Notice{{Level: notify.Error, Message: "ファイルサイズは2MBを超えることはできません"}}, q.Drain())
}

func TestStageDoesNotTrustDeclaredSize(t *testing.T) {
	data := fakePNG(3 << 20)
	opened := false
	sel := Selection{
		Name: "liar.png",
		Size: 10,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
	s := NewStager(Image{}, nil)
	_, err := s.Stage(sel)
	assert.True(t, opened)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, KindNone, s.Current().Kind)
}

func TestStageRejectsUnsupportedType(t *testing.T) {
	var q notify.Queue
	s := NewStager(Image{}, &q)
	_, err := s.Stage(FromBytes("notes.txt", []byte("just some text")))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, KindNone, s.Current().Kind)
	assert.Equal(t, ErrUnsupportedType.Error(), q.Drain()[0].Message)
}

func TestReplaceIsExclusive(t *testing.T) {
	s := NewStager(Remote(""), nil)
	assert.Equal(t, NoImagePath, s.Current().Src())

	first, err := s.Stage(FromBytes("a.png", fakePNG(100)))
	require.NoError(t, err)
	second, err := s.Replace(FromBytes("b.jpg", fakeJPEG(200)))
	require.NoError(t, err)

	assert.NotEqual(t, first.URL, second.URL)
	assert.Equal(t, "b.jpg", s.Current().Name)
}

func TestPayloadOnlyForLocalImages(t *testing.T) {
	s := NewStager(Remote("https://cdn.example/old.jpg"), nil)
	_, ok := s.Payload()
	assert.False(t, ok, "remote reference must not be uploaded")

	img, err := s.Stage(FromBytes("new.png", fakePNG(64)))
	require.NoError(t, err)
	payload, ok := s.Payload()
	assert.True(t, ok)
	assert.Equal(t, img.URL, payload)
}
