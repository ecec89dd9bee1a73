package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fixedVerifier(secret string, skewSec int, now time.Time) *Verifier {
	v := NewVerifier(secret, skewSec)
	v.now = func() time.Time { return now }
	return v
}

func signedHeader(secret, timestamp string, body []byte) http.Header {
	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", timestamp)
	h.Set("X-Slack-Signature", Signature([]byte(secret), timestamp, body))
	return h
}

// TestSignature_MatchesReference checks the digest against an independently
// computed HMAC-SHA256 over "v0:<timestamp>:<body>".
func TestSignature_MatchesReference(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	timestamp := "1531420618"
	body := []byte(`{"event":{"type":"message","text":"hi"}}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":" + string(body)))
	want := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if got := Signature([]byte(secret), timestamp, body); got != want {
		t.Errorf("Signature mismatch: got %s, want %s", got, want)
	}
}

func TestVerify_AcceptsFreshSignedRequest(t *testing.T) {
	now := time.Unix(1531420618, 0)
	v := fixedVerifier("secret", 300, now)
	body := []byte(`{"event":{}}`)

	if err := v.Verify(signedHeader("secret", "1531420618", body), body); err != nil {
		t.Errorf("expected valid request to pass, got %v", err)
	}
}

// TestVerify_RejectsStaleTimestamp verifies that a correctly signed request
// is still rejected once the timestamp falls outside the allowed skew, in
// either direction.
func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1531420618, 0)
	body := []byte(`{}`)

	cases := []struct {
		name      string
		timestamp string
	}{
		{"past", "1531420017"},   // 601s old, skew 600
		{"future", "1531421219"}, // 601s ahead
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := fixedVerifier("secret", 600, now)
			err := v.Verify(signedHeader("secret", tc.timestamp, body), body)
			if !errors.Is(err, ErrNotAuthentic) {
				t.Errorf("expected ErrNotAuthentic, got %v", err)
			}
		})
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	now := time.Unix(1531420618, 0)
	v := fixedVerifier("secret", 300, now)
	body := []byte(`{}`)

	err := v.Verify(signedHeader("other-secret", "1531420618", body), body)
	if !errors.Is(err, ErrNotAuthentic) {
		t.Errorf("expected ErrNotAuthentic, got %v", err)
	}
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	now := time.Unix(1531420618, 0)
	v := fixedVerifier("secret", 300, now)

	h := signedHeader("secret", "1531420618", []byte(`{"a":1}`))
	err := v.Verify(h, []byte(`{"a":2}`))
	if !errors.Is(err, ErrNotAuthentic) {
		t.Errorf("expected ErrNotAuthentic, got %v", err)
	}
}

func TestVerify_RejectsMissingOrGarbageTimestamp(t *testing.T) {
	v := fixedVerifier("secret", 300, time.Unix(1531420618, 0))
	body := []byte(`{}`)

	h := http.Header{}
	h.Set("X-Slack-Signature", Signature([]byte("secret"), "banana", body))
	h.Set("X-Slack-Request-Timestamp", "banana")
	if err := v.Verify(h, body); !errors.Is(err, ErrNotAuthentic) {
		t.Errorf("expected ErrNotAuthentic for garbage timestamp, got %v", err)
	}

	if err := v.Verify(http.Header{}, body); !errors.Is(err, ErrNotAuthentic) {
		t.Errorf("expected ErrNotAuthentic for absent headers, got %v", err)
	}
}
