package handlers

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/mozilla-services/exeappend/appendservice/backends"
	"github.com/mozilla-services/exeappend/appendservice/metrics"
	"github.com/mozilla-services/exeappend/payloadcode"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var storagePathRe = regexp.MustCompile("[^a-zA-Z0-9]")

// redirectHandler stores appended executables and redirects to them
type redirectHandler struct {
	CDNPrefix string

	Storage backends.Storage

	KeyPrefix string

	SourceBaseURL string

	Fetcher *SourceFetcher

	locations *locationCache
}

// NewRedirectHandler returns a new ExeHandler
func NewRedirectHandler(fetcher *SourceFetcher, storage backends.Storage, cdnPrefix, keyPrefix, sourceBaseURL string) ExeHandler {
	return &redirectHandler{
		CDNPrefix: cdnPrefix,
		KeyPrefix: keyPrefix,

		Storage: storage,

		SourceBaseURL: sourceBaseURL,

		Fetcher: fetcher,

		locations: newLocationCache(1024*1024*64, 5*time.Minute), // 64M
	}
}

// ServeExe redirects to the appended executable, writing it to storage first
// if needed
func (s *redirectHandler) ServeExe(w http.ResponseWriter, req *http.Request, code *payloadcode.Code) error {
	ctx := req.Context()
	query := req.URL.Query()
	srcURL := sourceURL(s.SourceBaseURL, query.Get("product"), query.Get("lang"), query.Get("os"))

	src, err := s.Fetcher.Fetch(ctx, srcURL)
	if err != nil {
		return errors.Wrap(err, "Fetch")
	}

	key := (s.KeyPrefix + "builds/" +
		storagePathEscape(query.Get("product")) + "/" +
		storagePathEscape(query.Get("lang")) + "/" +
		storagePathEscape(query.Get("os")) + "/" +
		uniqueKey(srcURL, code.Raw) + "/" +
		src.filename)

	location := s.locations.Get(key)
	if location == "" {
		if s.Storage.Exists(ctx, key) {
			metrics.Statsd.Increment(metrics.StoredHit)
		} else {
			metrics.Statsd.Increment(metrics.StoredMiss)
			if err := s.store(req, key, src, code); err != nil {
				return err
			}
		}

		locationURL, err := url.Parse(s.CDNPrefix + key)
		if err != nil {
			return errors.Wrap(err, "url.Parse")
		}
		location = locationURL.String()
		s.locations.Add(key, location)
	}

	http.Redirect(w, req, location, http.StatusFound)
	logrus.WithFields(logrus.Fields{
		"req_url":  req.URL.String(),
		"location": location}).Info("Redirected request")

	return nil
}

func (s *redirectHandler) store(req *http.Request, key string, src *exe, code *payloadcode.Code) error {
	res, err := appendPayload(src, code.Payload)
	if err != nil {
		return err
	}

	defer metrics.Statsd.NewTiming().Send(metrics.StorageTime)
	if err := s.Storage.Put(req.Context(), key, res.contentType, bytes.NewReader(res.body)); err != nil {
		return errors.Wrapf(err, "Put key: %s", key)
	}
	return nil
}

func storagePathEscape(key string) string {
	if key == "" {
		return "-"
	}
	return storagePathRe.ReplaceAllString(key, "-")
}

func uniqueKey(downloadURL, payloadCode string) string {
	hasher := sha256.New()
	hasher.Write([]byte(downloadURL + "|" + payloadCode))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
