package backends

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// GCS stores appended executables in a Google Cloud Storage bucket and
// implements backends.Storage. Objects are publicly readable so the CDN can
// serve them, and are treated as missing once older than ExpiresAfter.
type GCS struct {
	ExpiresAfter time.Duration
	Bucket       string
	Client       *storage.Client
}

// NewGCS returns a new GCS storage backend
func NewGCS(client *storage.Client, bucket string, expiresAfter time.Duration) *GCS {
	return &GCS{
		Bucket:       bucket,
		ExpiresAfter: expiresAfter,
		Client:       client,
	}
}

func (s *GCS) object(key string) *storage.ObjectHandle {
	return s.Client.Bucket(s.Bucket).Object(key)
}

// Exists reports whether key was written less than ExpiresAfter ago.
// Lookup failures other than a missing object are logged and count as
// missing, so the caller rewrites the object.
func (s *GCS) Exists(ctx context.Context, key string) bool {
	attrs, err := s.object(key).Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return false
	case err != nil:
		logrus.WithFields(logrus.Fields{
			"bucket": s.Bucket,
			"key":    key,
		}).WithError(err).Error("GCS: Object lookup returned unknown error")
		return false
	}

	return time.Since(attrs.Updated) < s.ExpiresAfter
}

// Put uploads body under key. The object is served as a download named
// after the last path element of key.
func (s *GCS) Put(ctx context.Context, key string, contentType string, body io.ReadSeeker) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objWriter := s.object(key).NewWriter(ctx)
	objWriter.ContentType = contentType
	objWriter.ContentDisposition = mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)})
	objWriter.CacheControl = s.cacheControl()
	objWriter.ACL = []storage.ACLRule{
		{Entity: storage.AllUsers, Role: storage.RoleReader},
	}

	start := time.Now()
	n, err := io.Copy(objWriter, body)
	if err != nil {
		// cancelling before Close aborts the upload
		cancel()
		objWriter.Close()
		return errors.Wrapf(err, "GCS.Writer.Write: %s", key)
	}
	if err := objWriter.Close(); err != nil {
		return errors.Wrapf(err, "GCS.Writer.Close: %s", key)
	}

	logrus.WithFields(logrus.Fields{
		"key":          key,
		"bucket":       s.Bucket,
		"size":         n,
		"elapsed":      time.Since(start).String(),
		"content_type": contentType}).Info("Wrote executable to GCS")

	return nil
}

// cacheControl lets edge caches keep an object for at most half its
// storage lifetime.
func (s *GCS) cacheControl() string {
	maxAge := int64(s.ExpiresAfter.Seconds() / 2)
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", maxAge)
}
