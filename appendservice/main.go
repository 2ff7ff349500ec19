package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/mozilla-services/exeappend/appendservice/backends"
	"github.com/mozilla-services/exeappend/appendservice/handlers"
	"github.com/mozilla-services/exeappend/payloadcode"
	"github.com/sirupsen/logrus"
	"go.mozilla.org/mozlogrus"
)

func init() {
	mozlogrus.Enable("exeappend")
}

func initSentry(dsn string) {
	opts := sentry.ClientOptions{Dsn: dsn}
	if err := sentry.Init(opts); err != nil {
		logrus.WithError(err).Error("Could not initialize sentry")
		return
	}

	hook, err := sentrylogrus.New([]logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}, opts)
	if err != nil {
		logrus.WithError(err).Error("Could not create sentry logrus hook")
		return
	}
	logrus.AddHook(hook)
}

func main() {
	cfg, err := loadConfig(os.Environ())
	if err != nil {
		logrus.WithError(err).Fatal("Could not load config")
	}

	if cfg.SentryDSN != "" {
		initSentry(cfg.SentryDSN)
		defer sentry.Flush(2 * time.Second)
	}

	fetcher := handlers.NewSourceFetcher(cfg.CacheSizeMB*1024*1024, cfg.CacheTTL)

	var exeHandler handlers.ExeHandler
	switch cfg.ReturnMode {
	case "redirect":
		client, err := storage.NewClient(context.Background())
		if err != nil {
			logrus.WithError(err).Fatal("Could not create GCS client")
		}
		defer client.Close()

		exeHandler = handlers.NewRedirectHandler(
			fetcher,
			backends.NewGCS(client, cfg.GCSBucket, cfg.StorageTTL),
			cfg.CDNPrefix,
			cfg.GCSPrefix,
			cfg.SourceURL,
		)
	default:
		exeHandler = handlers.NewDirectHandler(fetcher, cfg.SourceURL)
	}

	service := &handlers.AppendService{
		Handler:       exeHandler,
		Validator:     payloadcode.NewValidator(cfg.HMACKey, cfg.HMACTimeout),
		SourceBaseURL: cfg.SourceURL,
	}

	mux := http.NewServeMux()
	mux.Handle("/", service)
	mux.HandleFunc("/__heartbeat__", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/__lbheartbeat__", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":        cfg.Addr,
		"return_mode": cfg.ReturnMode,
		"source_url":  cfg.SourceURL}).Info("Starting server")

	if err := server.ListenAndServe(); err != nil {
		logrus.WithError(err).Error("Server stopped")
	}
}
