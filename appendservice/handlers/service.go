package handlers

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/mozilla-services/exeappend/appendservice/metrics"
	"github.com/mozilla-services/exeappend/payloadcode"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AppendService serves executables with a signed payload appended. Any
// failure falls back to redirecting to the unmodified executable.
type AppendService struct {
	Handler ExeHandler

	Validator *payloadcode.Validator

	SourceBaseURL string
}

func (s *AppendService) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	requestID := uuid.New().String()

	logEntry := logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"product":    query.Get("product"),
		"lang":       query.Get("lang"),
		"os":         query.Get("os"),
	})

	redirectSource := func() {
		http.Redirect(w, req, sourceURLFromRequest(s.SourceBaseURL, req), http.StatusFound)
	}

	handleError := func(err error) {
		metrics.Statsd.Increment(metrics.RequestError)
		logEntry.WithError(err).Error("could not serve appended executable")

		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("request_id", requestID)
			scope.SetRequest(req)
		})
		hub.CaptureException(err)

		redirectSource()
	}

	code, err := s.Validator.Validate(query.Get("payload"), query.Get("payload_sig"), query.Get("payload_ts"))
	if err != nil {
		handleError(errors.Wrapf(err, "could not validate payload: %s", trimToLen(query.Get("payload"), 200)))
		return
	}

	if err := s.Handler.ServeExe(w, req, code); err != nil {
		handleError(errors.Wrapf(err, "ServeExe url: %s", trimToLen(req.URL.String(), 400)))
		return
	}
	logEntry.WithField("payload_len", len(code.Payload)).Info("Served appended executable")
}

func trimToLen(s string, l int) string {
	if l < 0 || len(s) <= l {
		return s
	}
	return s[:l]
}
