package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"
)

var (
	baseURL string

	payload string
	noTS    bool

	lang    string
	os      string
	product string

	hmacKey string
)

func init() {
	flag.StringVar(&baseURL, "baseurl", "http://localhost:8000", "base append service url")

	flag.StringVar(&payload, "payload", "campaign=testcampaign&source=mozilla.com", "payload to append")
	flag.BoolVar(&noTS, "nots", false, "omit payload_ts from the signed url")

	flag.StringVar(&lang, "lang", "en-US", "")
	flag.StringVar(&os, "os", "win", "")
	flag.StringVar(&product, "product", "test-stub", "")

	flag.StringVar(&hmacKey, "hmackey", "testkey", "test hmac key")
}

func genCode() string {
	return base64.URLEncoding.WithPadding('.').EncodeToString([]byte(payload))
}

func hmacSig(msg string) string {
	mac := hmac.New(sha256.New, []byte(hmacKey))
	mac.Write([]byte(msg))
	return fmt.Sprintf("%x", mac.Sum(nil))
}

func genURL(code, sig, ts string) string {
	query := url.Values{}
	query.Set("payload", code)
	query.Set("payload_sig", sig)
	if ts != "" {
		query.Set("payload_ts", ts)
	}

	query.Set("lang", lang)
	query.Set("os", os)
	query.Set("product", product)

	u, err := url.Parse(baseURL)
	if err != nil {
		log.Fatal("Could not parse url:", err)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func main() {
	flag.Parse()
	code := genCode()
	if noTS {
		fmt.Println(genURL(code, hmacSig(code), ""))
		return
	}
	ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	fmt.Println(genURL(code, hmacSig(code+"|"+ts), ts))
}
