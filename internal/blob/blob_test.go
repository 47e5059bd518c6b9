package blob

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	"github.com/example/farmcart/internal/config"
)

func TestUploadAndURL(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenLocal(dir, "http://media.local/media/")
	require.NoError(t, err)
	defer s.Close()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	ref, err := s.Upload(ctx, "Tomato.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(ref), "products/2024/05/"))
	assert.True(t, strings.HasSuffix(string(ref), ".png"))

	body, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(string(ref))))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	u, err := s.DownloadURL(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "http://media.local/media/"+string(ref), u)

	root, ok := s.LocalRoot()
	assert.True(t, ok)
	assert.Equal(t, dir, root)
}

func TestUploadRejects(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	s := NewBucketStore(bucket, "/media", 0)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Upload(ctx, "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = s.Upload(ctx, "script.sh", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedExt)
	_, err = s.Upload(ctx, "big.jpg", bytes.NewReader(make([]byte, MaxUploadSize+10)))
	assert.ErrorIs(t, err, ErrTooLarge)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Upload(cancelled, "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)

	// 被拒绝的上传不留下对象
	_, err = bucket.List(nil).Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	_, ok := s.LocalRoot()
	assert.False(t, ok)
}

func TestSignedDownloadURL(t *testing.T) {
	base, err := url.Parse("http://files.test/signed")
	require.NoError(t, err)
	bucket, err := fileblob.OpenBucket(t.TempDir(), &fileblob.Options{
		URLSigner: fileblob.NewURLSignerHMAC(base, []byte("secret")),
	})
	require.NoError(t, err)
	s := NewBucketStore(bucket, "", 10*time.Minute)
	defer s.Close()
	ctx := context.Background()

	ref, err := s.Upload(ctx, "kale.jpg", strings.NewReader("jpg"))
	require.NoError(t, err)
	u, err := s.DownloadURL(ctx, ref)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://files.test/signed"), u)
	assert.Contains(t, u, "signature=")
}

func TestOpenFromConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	s, err := Open(context.Background(), &config.BlobConfig{
		BucketURL: "file://" + filepath.ToSlash(dir),
		BaseURL:   "http://127.0.0.1:8081/media",
	})
	require.NoError(t, err)
	defer s.Close()

	root, ok := s.LocalRoot()
	assert.True(t, ok)
	assert.Equal(t, dir, root)

	mem, err := Open(context.Background(), &config.BlobConfig{BucketURL: "mem://", BaseURL: "https://cdn.test/img"})
	require.NoError(t, err)
	defer mem.Close()
	_, ok = mem.LocalRoot()
	assert.False(t, ok)
	ref, err := mem.Upload(context.Background(), "leaf.webp", strings.NewReader("webp"))
	require.NoError(t, err)
	u, err := mem.DownloadURL(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/img/"+string(ref), u)
}
