package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/mozilla-services/exeappend/payloadcode"
	"github.com/pkg/errors"
)

// directHandler serves appended executables directly
type directHandler struct {
	Fetcher *SourceFetcher

	SourceBaseURL string
}

// NewDirectHandler returns a new direct type handler
func NewDirectHandler(fetcher *SourceFetcher, sourceBaseURL string) ExeHandler {
	return &directHandler{
		Fetcher:       fetcher,
		SourceBaseURL: sourceBaseURL,
	}
}

// ServeExe writes the appended executable to w
func (s *directHandler) ServeExe(w http.ResponseWriter, req *http.Request, code *payloadcode.Code) error {
	src, err := s.Fetcher.Fetch(req.Context(), sourceURLFromRequest(s.SourceBaseURL, req))
	if err != nil {
		return errors.Wrap(err, "Fetch")
	}

	res, err := appendPayload(src, code.Payload)
	if err != nil {
		return err
	}

	// Cache response for one week
	w.Header().Set("Cache-Control", "max-age=604800")
	w.Header().Set("Content-Type", res.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.body)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.filename}))
	w.Write(res.body)
	return nil
}
