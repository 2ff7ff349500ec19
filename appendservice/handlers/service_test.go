package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"testing/quick"
	"time"

	"github.com/mozilla-services/exeappend/appendservice/backends"
	"github.com/mozilla-services/exeappend/payloadcode"
	"github.com/mozilla-services/exeappend/peappend"
)

const testHMACKey = "testkey"

func signedQuery(payload []byte) url.Values {
	code := base64.URLEncoding.WithPadding('.').EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(testHMACKey))
	mac.Write([]byte(code))

	query := url.Values{}
	query.Set("product", "firefox-stub")
	query.Set("lang", "en-US")
	query.Set("os", "win")
	query.Set("payload", code)
	query.Set("payload_sig", fmt.Sprintf("%x", mac.Sum(nil)))
	return query
}

// sourceServer serves body from /thefile.exe after a redirect from /, and
// storage contents under /cdn/.
func sourceServer(t *testing.T, body []byte, storage *backends.MapStorage) (*httptest.Server, *int32) {
	var fetches int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.URL.Path == "/":
			http.Redirect(w, req, server.URL+"/thefile.exe", http.StatusFound)
		case req.URL.Path == "/thefile.exe":
			atomic.AddInt32(&fetches, 1)
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(body)
		case strings.HasPrefix(req.URL.Path, "/cdn/") && storage != nil:
			item, ok := storage.Get(strings.TrimPrefix(req.URL.Path, "/cdn/"))
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", item.ContentType)
			w.Write(item.Bytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &fetches
}

func checkAppended(t *testing.T, body, payload []byte) {
	t.Helper()
	orig := testExe()
	if len(body) != len(orig)+len(payload)+4 {
		t.Fatalf("body len: %d, expected %d", len(body), len(orig)+len(payload)+4)
	}
	last, err := peappend.LastPayload(body)
	if err != nil {
		t.Fatalf("LastPayload: %s", err)
	}
	if !bytes.Equal(last, payload) {
		t.Errorf("payload: %q, expected %q", last, payload)
	}
	cert, err := peappend.New(body).CertificateTable()
	if err != nil {
		t.Fatalf("CertificateTable: %s", err)
	}
	if cert.Offset+int(cert.Length) != len(body) {
		t.Errorf("certificate table does not cover the payload")
	}
}

func TestDirectFull(t *testing.T) {
	server, fetches := sourceServer(t, testExe(), nil)

	svc := &AppendService{
		Handler:       NewDirectHandler(NewSourceFetcher(1024*1024, time.Minute), server.URL+"/"),
		Validator:     payloadcode.NewValidator(testHMACKey, time.Hour),
		SourceBaseURL: server.URL + "/",
	}

	payload := []byte("campaign=test&source=www.mozilla.org")
	for i := 0; i < 2; i++ {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "http://test/?"+signedQuery(payload).Encode(), nil)
		svc.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("request was not 200 res: %d", recorder.Code)
		}
		if cd := recorder.Header().Get("Content-Disposition"); !strings.Contains(cd, "thefile.exe") {
			t.Errorf("Content-Disposition: %s", cd)
		}
		checkAppended(t, recorder.Body.Bytes(), payload)
	}

	if n := atomic.LoadInt32(fetches); n != 1 {
		t.Errorf("source fetched %d times, expected 1", n)
	}
}

func TestRedirectFull(t *testing.T) {
	storage := backends.NewMapStorage()
	server, _ := sourceServer(t, testExe(), storage)

	svc := &AppendService{
		Handler: NewRedirectHandler(
			NewSourceFetcher(1024*1024, time.Minute),
			storage,
			server.URL+"/cdn/",
			"prefix/",
			server.URL+"/",
		),
		Validator:     payloadcode.NewValidator(testHMACKey, time.Hour),
		SourceBaseURL: server.URL + "/",
	}

	payload := []byte("\x00binary payload\xff")
	var location string
	for i := 0; i < 2; i++ {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "http://test/?"+signedQuery(payload).Encode(), nil)
		svc.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusFound {
			t.Fatalf("request was not 302 res: %d", recorder.Code)
		}
		location = recorder.Header().Get("Location")
		if !strings.HasPrefix(location, server.URL+"/cdn/prefix/builds/firefox-stub/en-US/win/") {
			t.Fatalf("unexpected Location: %s", location)
		}
	}
	if storage.Puts() != 1 {
		t.Errorf("Puts: %d, expected 1", storage.Puts())
	}

	resp, err := http.Get(location)
	if err != nil {
		t.Fatal("request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request was not 200 res: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal("could not read body", err)
	}
	checkAppended(t, body, payload)
}

func TestServiceFallback(t *testing.T) {
	notPE, _ := sourceServer(t, []byte("this is not an executable"), nil)
	good, _ := sourceServer(t, testExe(), nil)

	for _, tc := range []struct {
		name   string
		source string
		query  func() url.Values
	}{
		{"bad signature", good.URL + "/", func() url.Values {
			q := signedQuery([]byte("payload"))
			q.Set("payload_sig", strings.Repeat("00", 32))
			return q
		}},
		{"bad base64", good.URL + "/", func() url.Values {
			q := signedQuery([]byte("payload"))
			q.Set("payload", "!!")
			return q
		}},
		{"source is not a PE", notPE.URL + "/", func() url.Values { return signedQuery([]byte("payload")) }},
		{"source missing", good.URL + "/missing", func() url.Values { return signedQuery([]byte("payload")) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := &AppendService{
				Handler:       NewDirectHandler(NewSourceFetcher(1024*1024, time.Minute), tc.source),
				Validator:     payloadcode.NewValidator(testHMACKey, time.Hour),
				SourceBaseURL: tc.source,
			}
			query := tc.query()
			recorder := httptest.NewRecorder()
			svc.ServeHTTP(recorder, httptest.NewRequest("GET", "http://test/?"+query.Encode(), nil))

			if recorder.Code != http.StatusFound {
				t.Fatalf("expected 302, got: %d", recorder.Code)
			}
			expected := sourceURL(tc.source, query.Get("product"), query.Get("lang"), query.Get("os"))
			if location := recorder.Header().Get("Location"); location != expected {
				t.Errorf("Location: %s, expected %s", location, expected)
			}
		})
	}
}

func TestSourceURL(t *testing.T) {
	u := sourceURL("https://download.mozilla.org/", "firefox", "en-US", "win")
	if u != "https://download.mozilla.org/?lang=en-US&os=win&product=firefox" {
		t.Errorf("url is not correct: %s", u)
	}
}

func TestUniqueKey(t *testing.T) {
	f := func(url, code string) bool {
		return len(uniqueKey(url, code)) == 64
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestStoragePathEscape(t *testing.T) {
	for in, out := range map[string]string{
		"":             "-",
		"firefox-stub": "firefox-stub",
		"en-US":        "en-US",
		"../etc":       "---etc",
	} {
		if got := storagePathEscape(in); got != out {
			t.Errorf("storagePathEscape(%q): %q, expected %q", in, got, out)
		}
	}
}

func TestTrimToLen(t *testing.T) {
	f := func(s string, l int) bool {
		// make sure l is positive
		if l < 0 {
			l = l * -1
		}

		res := trimToLen(s, l)
		return len(res) <= l
	}

	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
