// Package files stores avatar images: uploads land in a temp dir, get
// resized to a fixed square and are then moved into the public avatars dir.
package files

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"image/jpeg"
	"image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/redmonkez12/contacts-api/internal/apperror"
)

// PublicAvatarPath is the URL prefix avatars are served under.
const PublicAvatarPath = "/avatars"

// avatarSize is the square edge avatars are resized to.
const avatarSize = 250

var (
	validSubtypes   = []string{"jpeg", "png"}
	validExtensions = []string{"jpg", "jpeg", "png"}
)

// CheckAvatarUpload validates the upload's extension and MIME type before
// any bytes are processed.
func CheckAvatarUpload(filename, mimeType string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	kind, subtype, _ := strings.Cut(mimeType, "/")

	if kind == "image" && slices.Contains(validSubtypes, subtype) && slices.Contains(validExtensions, ext) {
		return nil
	}
	return apperror.ValidationMsg(fmt.Sprintf(
		"Invalid file type. Valid types for this request: %s", strings.Join(validSubtypes, ", "),
	))
}

// Store writes, resizes and deletes avatar files on local disk.
type Store struct {
	avatarDir string
	tmpDir    string
}

// NewStore creates the avatar and temp directories if needed.
func NewStore(publicDir, tmpDir string) (*Store, error) {
	avatarDir := filepath.Join(publicDir, "avatars")
	for _, dir := range []string{avatarDir, tmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{avatarDir: avatarDir, tmpDir: tmpDir}, nil
}

// SaveAvatar writes the upload to the temp dir under a generated name,
// resizes it to 250x250, moves the result into the public avatars dir and
// removes the original. It returns the public URL path of the stored file.
func (s *Store) SaveAvatar(upload io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	baseName := uuid.NewString()
	tmpName := filepath.Join(s.tmpDir, baseName+"."+ext)

	tmpFile, err := os.Create(tmpName)
	if err != nil {
		return "", apperror.Server(fmt.Sprintf("failed to create temp file: %v", err))
	}
	if _, err := io.Copy(tmpFile, upload); err != nil {
		tmpFile.Close()
		os.Remove(tmpName)
		return "", apperror.Server(fmt.Sprintf("failed to write upload: %v", err))
	}
	if err := tmpFile.Close(); err != nil {
		return "", apperror.Server(fmt.Sprintf("failed to close temp file: %v", err))
	}

	resizedName := baseName + "_250." + ext
	resizedTmp := filepath.Join(s.tmpDir, resizedName)
	if err := resizeImage(tmpName, resizedTmp, ext); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	if err := os.Rename(resizedTmp, filepath.Join(s.avatarDir, resizedName)); err != nil {
		os.Remove(tmpName)
		os.Remove(resizedTmp)
		return "", apperror.Server(fmt.Sprintf("failed to move avatar into place: %v", err))
	}
	if err := os.Remove(tmpName); err != nil {
		return "", apperror.Server(fmt.Sprintf("failed to remove upload original: %v", err))
	}

	return PublicAvatarPath + "/" + resizedName, nil
}

// Remove deletes the file behind a public avatar URL. Gravatar URLs have no
// file and are skipped.
func (s *Store) Remove(avatarURL string) error {
	if strings.Contains(avatarURL, "gravatar.com/avatar") {
		return nil
	}
	name := filepath.Base(avatarURL)
	return os.Remove(filepath.Join(s.avatarDir, name))
}

// resizeImage scales the upload to the avatar square. Undecodable input is a
// validation failure; everything else that goes wrong here is I/O and
// surfaces as a server error like the rest of the store.
func resizeImage(srcPath, dstPath, ext string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return apperror.Server(fmt.Sprintf("failed to open upload: %v", err))
	}
	defer srcFile.Close()

	src, _, err := image.Decode(srcFile)
	if err != nil {
		return apperror.ValidationMsg("Invalid file in request")
	}

	dst := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return apperror.Server(fmt.Sprintf("failed to create resized file: %v", err))
	}
	defer dstFile.Close()

	switch ext {
	case "png":
		err = png.Encode(dstFile, dst)
	default:
		err = jpeg.Encode(dstFile, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return apperror.Server(fmt.Sprintf("failed to encode resized image: %v", err))
	}
	return nil
}
