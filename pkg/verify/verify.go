package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/slackrelay/slackrelay/pkg/logger"
)

const (
	headerTimestamp = "X-Slack-Request-Timestamp"
	headerSignature = "X-Slack-Signature"

	versionPrefix = "v0"
)

// ErrNotAuthentic covers every verification failure. Which sub-check failed is
// logged for operators but never exposed to the caller.
var ErrNotAuthentic = errors.New("request verification failed")

// Verifier checks the authenticity and freshness of inbound webhook calls.
// The signature covers the exact bytes received; callers must pass the raw
// body, not a re-serialized copy.
type Verifier struct {
	secret      []byte
	allowedSkew time.Duration
	now         func() time.Time
}

func NewVerifier(secret string, allowedSkewSec int) *Verifier {
	return &Verifier{
		secret:      []byte(secret),
		allowedSkew: time.Duration(allowedSkewSec) * time.Second,
		now:         time.Now,
	}
}

func (v *Verifier) Verify(header http.Header, body []byte) error {
	ts := header.Get(headerTimestamp)
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		logger.WarnC("verify", "Rejected request with unparsable timestamp header")
		return ErrNotAuthentic
	}

	skew := v.now().Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.allowedSkew {
		logger.WarnCF("verify", "Rejected stale request timestamp", map[string]interface{}{
			"skew_sec":    int64(skew.Seconds()),
			"allowed_sec": int64(v.allowedSkew.Seconds()),
		})
		return ErrNotAuthentic
	}

	expected := Signature(v.secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(header.Get(headerSignature))) {
		logger.WarnC("verify", "Rejected request with signature mismatch")
		return ErrNotAuthentic
	}

	return nil
}

// Signature computes "v0=" + hex(HMAC-SHA256(secret, "v0:<timestamp>:<body>")).
func Signature(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(versionPrefix + ":" + timestamp + ":"))
	mac.Write(body)
	return versionPrefix + "=" + hex.EncodeToString(mac.Sum(nil))
}
