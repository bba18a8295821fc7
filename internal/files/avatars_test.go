package files

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/contacts-api/internal/apperror"
)

func TestGravatarURL(t *testing.T) {
	t.Parallel()

	// md5("anna@example.com")
	want := "https://www.gravatar.com/avatar/6b56db1f84a3997b902509d3fbf0a306?d=identicon"
	assert.Equal(t, want, GravatarURL("anna@example.com"))

	// Normalization: case and surrounding whitespace do not change the hash.
	assert.Equal(t, GravatarURL("anna@example.com"), GravatarURL("  Anna@Example.COM "))
}

func TestCheckAvatarUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		mimeType string
		ok       bool
	}{
		{"png", "me.png", "image/png", true},
		{"jpeg", "me.jpeg", "image/jpeg", true},
		{"jpg extension", "me.jpg", "image/jpeg", true},
		{"uppercase extension", "ME.PNG", "image/png", true},
		{"gif", "me.gif", "image/gif", false},
		{"extension mismatch", "me.txt", "image/png", false},
		{"not an image", "me.png", "text/plain", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAvatarUpload(tt.filename, tt.mimeType)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			ae, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.KindValidation, ae.Kind)
			assert.Equal(t, "Invalid file type. Valid types for this request: jpeg, png", ae.Details[0].Message)
		})
	}
}

func pngUpload(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestSaveAvatar(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "public"), filepath.Join(root, "tmp"))
	require.NoError(t, err)

	avatarURL, err := store.SaveAvatar(pngUpload(t, 512, 384), "me.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(avatarURL, PublicAvatarPath+"/"))
	assert.True(t, strings.HasSuffix(avatarURL, "_250.png"))

	// The stored file is a decodable 250x250 image.
	stored, err := os.Open(filepath.Join(root, "public", "avatars", filepath.Base(avatarURL)))
	require.NoError(t, err)
	defer stored.Close()
	img, _, err := image.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, 250, img.Bounds().Dx())
	assert.Equal(t, 250, img.Bounds().Dy())

	// The temp dir is clean again.
	leftovers, err := os.ReadDir(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSaveAvatarRejectsGarbage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "public"), filepath.Join(root, "tmp"))
	require.NoError(t, err)

	_, err = store.SaveAvatar(strings.NewReader("not an image at all"), "me.png")
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, ae.Kind)
	assert.Equal(t, "Invalid file in request", ae.Details[0].Message)
}

func TestSaveAvatarIOFailureIsServerError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "public"), filepath.Join(root, "tmp"))
	require.NoError(t, err)

	// Yank the temp dir so the first write fails like a full or broken disk.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "tmp")))

	_, err = store.SaveAvatar(pngUpload(t, 8, 8), "me.png")
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindServer, ae.Kind)
	assert.Equal(t, "Internal server error", ae.Message)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "public"), filepath.Join(root, "tmp"))
	require.NoError(t, err)

	avatarURL, err := store.SaveAvatar(pngUpload(t, 64, 64), "me.png")
	require.NoError(t, err)

	require.NoError(t, store.Remove(avatarURL))
	_, err = os.Stat(filepath.Join(root, "public", "avatars", filepath.Base(avatarURL)))
	assert.True(t, os.IsNotExist(err))

	// Gravatar URLs have no backing file and are skipped.
	assert.NoError(t, store.Remove(GravatarURL("anna@example.com")))
}
