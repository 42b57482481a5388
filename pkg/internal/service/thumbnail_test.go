package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/internal/service"
)

func pngBytes(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.String()
}

func TestThumbnailEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res := e.upload(t, testTag, "photo.png", pngBytes(t, 800, 600))
	require.Equal(t, "image/png", res.File.MimeType)

	path, ok := e.svc.Thumbnails.Ensure(ctx, testTag, "photo.png")
	require.True(t, ok)

	first, err := os.Stat(path)
	require.NoError(t, err)

	again, ok := e.svc.Thumbnails.Ensure(ctx, testTag, "photo.png")
	require.True(t, ok)
	assert.Equal(t, path, again)

	second, err := os.Stat(again)
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), second.ModTime())

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 260)
	assert.LessOrEqual(t, img.Bounds().Dy(), 180)
	assert.Equal(t, 240, img.Bounds().Dx(), "aspect ratio is kept")
}

func TestThumbnailSkipsUnsupportedAndDisabled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res := e.upload(t, testTag, "notes.txt", "plain text")
	_, ok := e.svc.Thumbnails.Ensure(ctx, testTag, "notes.txt")
	assert.False(t, ok)

	e.upload(t, testTag, "photo.png", pngBytes(t, 32, 32))

	off := false
	_, err := e.svc.Admin.Update(ctx, testTag, res.Secret, service.TagUpdate{PreviewEnabled: &off})
	require.NoError(t, err)

	_, ok = e.svc.Thumbnails.Ensure(ctx, testTag, "photo.png")
	assert.False(t, ok)
}

func TestThumbnailInvalidatedOnOverwrite(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.upload(t, testTag, "photo.png", pngBytes(t, 400, 300))

	path, ok := e.svc.Thumbnails.Ensure(ctx, testTag, "photo.png")
	require.True(t, ok)

	e.upload(t, testTag, "photo.png", pngBytes(t, 100, 300))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	path, ok = e.svc.Thumbnails.Ensure(ctx, testTag, "photo.png")
	require.True(t, ok)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 180, img.Bounds().Dy())
}

func TestThumbnailCorruptImage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	// PNG 签名后跟垃圾数据
	e.upload(t, testTag, "broken.png", "\x89PNG\r\n\x1a\n garbage garbage")

	_, ok := e.svc.Thumbnails.Ensure(ctx, testTag, "broken.png")
	assert.False(t, ok)
}
