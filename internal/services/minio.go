package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"bookstore_back_end/internal/apperr"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// MaxImageSize : 10 Mo par couverture
const MaxImageSize = 10 << 20

// ImageStore dépose les couvertures de livres dans un bucket MinIO.
type ImageStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewImageStore(client *minio.Client, bucket, publicURL string) *ImageStore {
	return &ImageStore{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *ImageStore) Enabled() bool { return s != nil && s.client != nil }

func contentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
			ct = byExt
		}
	}
	return ct
}

// ValidateImage n'accepte que des images de 10 Mo au plus.
func ValidateImage(fh *multipart.FileHeader) error {
	if !strings.HasPrefix(contentType(fh), "image/") {
		return apperr.Validation("only image files are allowed")
	}
	if fh.Size > MaxImageSize {
		return apperr.Validation("image must not exceed 10MB")
	}
	return nil
}

// ObjectName : books/<vendeur>/<uuid><ext>
func ObjectName(sellerID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return fmt.Sprintf("books/%s/%s%s", sellerID, uuid.New(), ext)
}

func (s *ImageStore) Upload(ctx context.Context, sellerID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	if err := ValidateImage(fh); err != nil {
		return "", err
	}
	if !s.Enabled() {
		return "", apperr.Validation("image upload is not available")
	}

	f, err := fh.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "unreadable image", err)
	}
	defer f.Close()

	object := ObjectName(sellerID, fh.Filename)
	_, err = s.client.PutObject(ctx, s.bucket, object, f, fh.Size, minio.PutObjectOptions{
		ContentType: contentType(fh),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "upload image", err)
	}

	slog.InfoContext(ctx, "couverture envoyée", "object", object, "size", fh.Size)
	return s.URL(object), nil
}

func (s *ImageStore) URL(object string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, object)
}

// Remove supprime une couverture déposée par Upload (rollback d'une création de livre ratée).
func (s *ImageStore) Remove(ctx context.Context, url string) error {
	if !s.Enabled() {
		return nil
	}
	prefix := fmt.Sprintf("%s/%s/", s.publicURL, s.bucket)
	object, ok := strings.CutPrefix(url, prefix)
	if !ok {
		return fmt.Errorf("url hors bucket: %s", url)
	}
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}
