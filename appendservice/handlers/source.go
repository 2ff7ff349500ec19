package handlers

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/golang/groupcache/singleflight"
	"github.com/mozilla-services/exeappend/appendservice/metrics"
	"github.com/mozilla-services/exeappend/peappend"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxSourceSize bounds how much of a source response is read.
const maxSourceSize = 512 * 1024 * 1024

// defaultFilename is used when the source URL path has no file name.
const defaultFilename = "installer.exe"

// sourceURL builds the download URL of the unmodified executable.
func sourceURL(base, product, lang, os string) string {
	v := url.Values{}
	v.Set("product", product)
	v.Set("lang", lang)
	v.Set("os", os)
	return base + "?" + v.Encode()
}

func sourceURLFromRequest(base string, req *http.Request) string {
	query := req.URL.Query()
	return sourceURL(base, query.Get("product"), query.Get("lang"), query.Get("os"))
}

// SourceFetcher downloads source executables, caching them and collapsing
// concurrent downloads of the same URL.
type SourceFetcher struct {
	Client *http.Client

	cache   *exeCache
	sfGroup singleflight.Group
}

// NewSourceFetcher returns a fetcher caching up to maxSize bytes of
// executables for dur.
func NewSourceFetcher(maxSize int64, dur time.Duration) *SourceFetcher {
	return &SourceFetcher{
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: newExeCache(maxSize, dur),
	}
}

// Fetch returns the executable at srcURL. The result is owned by the caller.
func (f *SourceFetcher) Fetch(ctx context.Context, srcURL string) (*exe, error) {
	if e := f.cache.Get(srcURL); e != nil {
		metrics.Statsd.Increment(metrics.SourceCacheHit)
		return e, nil
	}
	metrics.Statsd.Increment(metrics.SourceCacheMiss)

	// a single caller going away must not fail the others waiting on it
	ctx = context.WithoutCancel(ctx)
	res, err := f.sfGroup.Do(srcURL, func() (interface{}, error) {
		return f.fetch(ctx, srcURL)
	})
	if err != nil {
		return nil, err
	}
	return res.(*exe).copy(), nil
}

func (f *SourceFetcher) fetch(ctx context.Context, srcURL string) (*exe, error) {
	defer metrics.Statsd.NewTiming().Send(metrics.SourceFetchTime)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "NewRequest url: %s", srcURL)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Get")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("url returned %d expecting 200", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "ReadAll")
	}
	if len(data) > maxSourceSize {
		return nil, errors.Errorf("source larger than %d bytes", maxSourceSize)
	}

	filename := path.Base(resp.Request.URL.Path)
	if filename == "/" || filename == "." {
		filename = defaultFilename
	}

	res := &exe{
		body:        data,
		contentType: resp.Header.Get("Content-Type"),
		filename:    filename,
	}
	f.cache.Add(srcURL, res)

	logrus.WithFields(logrus.Fields{
		"source_url": srcURL,
		"final_url":  resp.Request.URL.String(),
		"size":       len(data)}).Info("Fetched source executable")

	return res, nil
}

// appendPayload returns a copy of e with payload appended behind its
// signature.
func appendPayload(e *exe, payload []byte) (*exe, error) {
	defer metrics.Statsd.NewTiming().Send(metrics.AppendTime)

	img := peappend.New(e.body)
	if err := img.Append(payload); err != nil {
		return nil, errors.Wrapf(err, "Append payload_len: %d", len(payload))
	}
	metrics.Statsd.Histogram(metrics.AppendPayloadBytes, len(payload))

	return &exe{
		body:        img.Bytes(),
		contentType: e.contentType,
		filename:    e.filename,
	}, nil
}
