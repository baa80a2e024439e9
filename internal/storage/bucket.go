package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

var (
	ErrNotAttachment   = errors.New("kind does not carry an attachment")
	ErrTooLarge        = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("file type not allowed for this kind")
)

// File is an attachment ready to be uploaded.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/zip":          true,
	"application/octet-stream": true,
	"text/plain":               true,
	"text/csv":                 true,
}

// contentType returns the declared type, or the type guessed from the file
// extension.
func (f File) contentType() string {
	if f.ContentType != "" {
		ct, _, err := mime.ParseMediaType(f.ContentType)
		if err == nil {
			return ct
		}
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))); ct != "" {
		ct, _, _ = mime.ParseMediaType(ct)
		return ct
	}
	return "application/octet-stream"
}

// Validate checks the file against the kind it is attached to and maxSize.
func Validate(f File, kind domain.Kind, maxSize int64) error {
	if !kind.IsAttachment() {
		return fmt.Errorf("%w: %s", ErrNotAttachment, kind)
	}
	if maxSize > 0 && f.Size > maxSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, f.Size, maxSize)
	}

	ct := f.contentType()
	var ok bool
	switch kind {
	case domain.KindImage:
		ok = strings.HasPrefix(ct, "image/")
	case domain.KindVideo:
		ok = strings.HasPrefix(ct, "video/")
	case domain.KindAudio:
		ok = strings.HasPrefix(ct, "audio/")
	case domain.KindDocument:
		ok = documentTypes[ct]
	}
	if !ok {
		return fmt.Errorf("%w: %s for %s", ErrUnsupportedType, ct, kind)
	}
	return nil
}

// BucketStorage stores attachments in an object storage bucket exposed over
// HTTP.
type BucketStorage struct {
	endpoint   string
	serviceKey string
	bucket     string
	client     *http.Client
}

func NewBucketStorage(endpoint, serviceKey, bucket string) *BucketStorage {
	return &BucketStorage{
		endpoint:   strings.TrimRight(endpoint, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// Upload stores the file under a fresh object name and returns the URL
// clients use to display it.
func (s *BucketStorage) Upload(ctx context.Context, f File, kind domain.Kind) (string, error) {
	if !kind.IsAttachment() {
		return "", fmt.Errorf("%w: %s", ErrNotAttachment, kind)
	}

	object := uuid.New().String() + strings.ToLower(filepath.Ext(f.Name))
	target := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.endpoint, s.bucket, object)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, f.Body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.Size > 0 {
		req.ContentLength = f.Size
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", f.contentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return s.URL(kind, object), nil
}

// URL returns the display URL for an object. Images go through the
// resizing endpoint; other kinds are served as stored.
func (s *BucketStorage) URL(kind domain.Kind, object string) string {
	if kind == domain.KindImage {
		q := url.Values{}
		q.Set("width", "2000")
		q.Set("height", "2000")
		q.Set("quality", "100")
		q.Set("resize", "contain")
		return fmt.Sprintf("%s/storage/v1/render/image/public/%s/%s?%s", s.endpoint, s.bucket, object, q.Encode())
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.endpoint, s.bucket, object)
}
