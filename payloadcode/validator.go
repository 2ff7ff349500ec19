package payloadcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MaxPayloadLength is the largest decoded payload accepted for appending.
const MaxPayloadLength = 1024

var base64Decoder = base64.URLEncoding.WithPadding('.')

// maxCodeLength is the encoded length of MaxPayloadLength bytes.
var maxCodeLength = base64Decoder.EncodedLen(MaxPayloadLength)

// Code is a validated payload.
type Code struct {
	// Raw is the encoded code as received.
	Raw string
	// Payload holds the decoded bytes to append.
	Payload []byte
	// Timestamp is when the code was signed, zero if it carried none.
	Timestamp time.Time
}

// Validator validates and decodes signed payload codes
type Validator struct {
	HMACKey string
	Timeout time.Duration
}

// NewValidator returns a new payload code validator
func NewValidator(hmacKey string, timeout time.Duration) *Validator {
	return &Validator{
		HMACKey: hmacKey,
		Timeout: timeout,
	}
}

// Validate decodes code and checks its signature and age. When ts is set it
// is covered by the signature as "code|ts".
func (v *Validator) Validate(code, sig, ts string) (*Code, error) {
	logEntry := logrus.WithField("b64code", trimToLen(code, 200))
	if len(code) > maxCodeLength {
		logEntry.WithField("code_len", len(code)).Error("code longer than max length")
		return nil, errors.Errorf("code longer than %d characters", maxCodeLength)
	}

	payload, err := base64Decoder.DecodeString(code)
	if err != nil {
		logEntry.WithError(err).Error("could not base64 decode code")
		return nil, errors.Wrap(err, "DecodeString")
	}
	if len(payload) > MaxPayloadLength {
		logEntry.WithField("payload_len", len(payload)).Error("payload longer than max length")
		return nil, errors.Errorf("payload longer than %d bytes", MaxPayloadLength)
	}

	if v.HMACKey != "" {
		msg := code
		if ts != "" {
			msg = code + "|" + ts
		}
		if err := v.validateSignature(msg, sig); err != nil {
			logEntry.WithError(err).Error("could not validate signature")
			return nil, err
		}
	}

	timestamp, err := v.validateTimestamp(ts)
	if err != nil {
		logEntry.WithError(err).WithField("code_ts", ts).Error("could not validate timestamp")
		return nil, err
	}

	return &Code{
		Raw:       code,
		Payload:   payload,
		Timestamp: timestamp,
	}, nil
}

func (v *Validator) validateSignature(code, sig string) error {
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return errors.Wrapf(err, "hex.DecodeString: %s", trimToLen(sig, 64))
	}

	return checkMAC([]byte(v.HMACKey), []byte(code), sigBytes)
}

func (v *Validator) validateTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, nil
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "ParseInt")
	}

	timestamp := time.Unix(tsInt, 0)
	if v.Timeout > 0 && time.Since(timestamp) > v.Timeout {
		return time.Time{}, errors.Errorf("Timestamp is older than timeout: %v", v.Timeout)
	}

	return timestamp, nil
}

func checkMAC(key, msg, msgMAC []byte) error {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	expectedMac := mac.Sum(nil)
	if !hmac.Equal(msgMAC, expectedMac) {
		return errors.Errorf("HMAC would not validate. given: %x expected: %x", msgMAC, expectedMac)
	}
	return nil
}

func trimToLen(s string, l int) string {
	if l < 0 || len(s) <= l {
		return s
	}
	return s[:l]
}
