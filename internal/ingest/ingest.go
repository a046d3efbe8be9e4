package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/internal/storage"
	"github.com/anime-shed/label-inspector-go/pkg/models"
)

const maxNameAttempts = 3

var dataURIPattern = regexp.MustCompile(`^data:image/([A-Za-z0-9.+-]+);base64,([A-Za-z0-9+/=\r\n]+)$`)

// allowedTypes maps every accepted MIME type to the extension used for stored files.
var allowedTypes = map[string]string{
	models.MimeJPEG: ".jpg",
	"image/jpg":     ".jpg",
	models.MimePNG:  ".png",
	models.MimeWEBP: ".webp",
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Source carries the image candidates found on a request. Exactly one must be set.
type Source struct {
	File    *multipart.FileHeader
	DataURI string
	// Path is a local file, used by the command line entry point.
	Path string
}

// ImageIngestor turns a Source into a stored UploadedImage.
type ImageIngestor interface {
	Ingest(ctx context.Context, src Source) (*models.UploadedImage, error)
}

// Ingestor validates and stores incoming images.
type Ingestor struct {
	store   storage.UploadStore
	names   *NameGenerator
	maxSize int64
}

func NewIngestor(store storage.UploadStore, names *NameGenerator, maxSize int64) *Ingestor {
	if names == nil {
		names = NewNameGenerator()
	}
	return &Ingestor{store: store, names: names, maxSize: maxSize}
}

func (i *Ingestor) Ingest(ctx context.Context, src Source) (*models.UploadedImage, error) {
	file := src.File
	if file != nil {
		if _, ok := normalizeMimeType(file.Header.Get("Content-Type")); !ok {
			// Disallowed uploads are dropped, as if no file had been sent.
			logger.WithFields(logrus.Fields{
				"file_name":    file.Filename,
				"content_type": file.Header.Get("Content-Type"),
			}).Warn("Skipping upload with unsupported content type")
			file = nil
		}
	}
	dataURI := strings.TrimSpace(src.DataURI)

	provided := 0
	for _, present := range []bool{file != nil, dataURI != "", src.Path != ""} {
		if present {
			provided++
		}
	}
	switch {
	case provided == 0:
		return nil, apperrors.NewNoImageProvidedError()
	case provided > 1:
		return nil, apperrors.NewInvalidInputError("Provide either an uploaded file or a camera capture, not both", nil)
	}

	switch {
	case file != nil:
		return i.FromMultipart(ctx, file)
	case dataURI != "":
		return i.FromDataURI(ctx, dataURI)
	default:
		return i.FromPath(ctx, src.Path)
	}
}

// FromMultipart stores a multipart file part using its declared content type.
func (i *Ingestor) FromMultipart(ctx context.Context, fh *multipart.FileHeader) (*models.UploadedImage, error) {
	mimeType, ok := normalizeMimeType(fh.Header.Get("Content-Type"))
	if !ok {
		return nil, apperrors.NewInvalidInputError("Only JPEG, PNG and WEBP images are supported", nil)
	}
	if fh.Size > i.maxSize {
		return nil, i.tooLarge()
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		ext = allowedTypes[mimeType]
	}

	img, err := i.write(ctx, ext, func() (io.ReadCloser, error) { return fh.Open() })
	if err != nil {
		return nil, err
	}
	img.MimeType = mimeType
	return img, nil
}

// FromDataURI decodes a "data:image/<subtype>;base64,<payload>" string.
func (i *Ingestor) FromDataURI(ctx context.Context, dataURI string) (*models.UploadedImage, error) {
	mimeType, payload, err := ParseDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > i.maxSize {
		return nil, i.tooLarge()
	}

	img, err := i.write(ctx, allowedTypes[mimeType], func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	})
	if err != nil {
		return nil, err
	}
	img.MimeType = mimeType
	img.OriginBase64 = true
	return img, nil
}

// FromPath copies a local file into the upload directory. The type is sniffed from content.
func (i *Ingestor) FromPath(ctx context.Context, path string) (*models.UploadedImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("Image file not found", err)
	}
	if info.IsDir() {
		return nil, apperrors.NewInvalidInputError("Image path is a directory", nil)
	}
	if info.Size() > i.maxSize {
		return nil, i.tooLarge()
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("Unable to read image file", err)
	}
	mimeType, ok := normalizeMimeType(detected.String())
	if !ok {
		return nil, apperrors.NewInvalidInputError("Only JPEG, PNG and WEBP images are supported", nil)
	}

	img, err := i.write(ctx, allowedTypes[mimeType], func() (io.ReadCloser, error) { return os.Open(path) })
	if err != nil {
		return nil, err
	}
	img.MimeType = mimeType
	return img, nil
}

func (i *Ingestor) write(ctx context.Context, ext string, open func() (io.ReadCloser, error)) (*models.UploadedImage, error) {
	name := i.names.Next(ext)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		r, err := open()
		if err != nil {
			return nil, apperrors.NewInvalidInputError("Unable to read uploaded image", err)
		}
		path, n, err := i.store.Create(ctx, name, r)
		r.Close()

		if errors.Is(err, storage.ErrNameTaken) {
			name = i.names.Disambiguate(name)
			continue
		}
		if err != nil {
			return nil, apperrors.NewStageFailureError("Failed to store uploaded image", err)
		}
		return &models.UploadedImage{
			SourcePath: path,
			FileName:   name,
			SizeBytes:  n,
		}, nil
	}
	return nil, apperrors.NewStageFailureError("Failed to store uploaded image",
		fmt.Errorf("no free file name after %d attempts", maxNameAttempts))
}

func (i *Ingestor) tooLarge() error {
	return apperrors.NewInvalidInputError(
		fmt.Sprintf("Image exceeds the %d MB size limit", i.maxSize/(1024*1024)), nil)
}

// ParseDataURI validates the data URI shape and subtype, and decodes the payload.
func ParseDataURI(dataURI string) (string, []byte, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(dataURI))
	if m == nil {
		return "", nil, apperrors.NewInvalidInputError("Invalid camera image data", nil)
	}
	mimeType, ok := normalizeMimeType("image/" + m[1])
	if !ok {
		return "", nil, apperrors.NewInvalidInputError("Only JPEG, PNG and WEBP images are supported", nil)
	}

	payload := strings.NewReplacer("\r", "", "\n", "").Replace(m[2])
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, apperrors.NewInvalidInputError("Invalid camera image data", err)
	}
	if len(data) == 0 {
		return "", nil, apperrors.NewInvalidInputError("Invalid camera image data", nil)
	}
	return mimeType, data, nil
}

// normalizeMimeType strips parameters, lowercases, folds image/jpg into image/jpeg
// and reports whether the result is on the allow-list.
func normalizeMimeType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType == "image/jpg" {
		mediaType = models.MimeJPEG
	}
	if _, ok := allowedTypes[mediaType]; !ok {
		return "", false
	}
	return mediaType, true
}
